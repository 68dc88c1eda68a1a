package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
)

// Mode — режим сессии
type Mode string

const (
	ModeBrowsing Mode = "browsing"
	ModeSharing  Mode = "sharing"
)

// state — состояние сессии. Доступ только из цикла Controller.Run.
type state struct {
	ctx context.Context

	searches []*domain.PhotoSearchResults // новые в начале
	mode     Mode
	enlarged *domain.IndexPath
	selected []*domain.Photo

	pendingSearches int
	shareInFlight   bool
	largeFetches    map[string]struct{}
	revision        uint64
}

func newState() state {
	return state{
		ctx:          context.Background(),
		mode:         ModeBrowsing,
		largeFetches: make(map[string]struct{}),
	}
}

func (s *state) prependResults(results *domain.PhotoSearchResults) {
	s.searches = slices.Insert(s.searches, 0, results)
}

func (s *state) photoAt(ip domain.IndexPath) (*domain.Photo, bool) {
	if ip.Section < 0 || ip.Section >= len(s.searches) {
		return nil, false
	}
	results := s.searches[ip.Section].Results
	if ip.Row < 0 || ip.Row >= len(results) {
		return nil, false
	}
	return results[ip.Row], true
}

func (s *state) isEnlarged(ip domain.IndexPath) bool {
	return s.enlarged != nil && *s.enlarged == ip
}

func (s *state) enlargedPhoto() (*domain.Photo, bool) {
	if s.enlarged == nil {
		return nil, false
	}
	return s.photoAt(*s.enlarged)
}

func (s *state) forEachPhoto(fn func(*domain.Photo)) {
	for _, group := range s.searches {
		for _, photo := range group.Results {
			fn(photo)
		}
	}
}

// setSharing переключает режим. Любое переключение сбрасывает выбор,
// включение режима отправки сбрасывает увеличенное фото.
func (s *state) setSharing(on bool) {
	s.selected = nil
	if on {
		s.mode = ModeSharing
		s.enlarged = nil
	} else {
		s.mode = ModeBrowsing
	}
	s.revision++
}

func (s *state) cleanupSharing() {
	s.setSharing(false)
}

// toggleSelection добавляет фото в выбор или убирает его оттуда.
// Возвращает true, если фото теперь выбрано.
func (s *state) toggleSelection(photo *domain.Photo) bool {
	idx := slices.IndexFunc(s.selected, photo.Equal)
	if idx >= 0 {
		s.selected = slices.Delete(s.selected, idx, idx+1)
		return false
	}
	s.selected = append(s.selected, photo)
	return true
}

func (s *state) isSelected(photo *domain.Photo) bool {
	return slices.ContainsFunc(s.selected, photo.Equal)
}

func (s *state) countLabel() string {
	if s.mode != ModeSharing {
		return ""
	}
	return fmt.Sprintf("%d photos selected", len(s.selected))
}

func (s *state) move(from, to domain.IndexPath) error {
	photo, ok := s.photoAt(from)
	if !ok {
		return fmt.Errorf("%w: source %s", domain.ErrInvalidIndex, from)
	}
	if to.Section < 0 || to.Section >= len(s.searches) {
		return fmt.Errorf("%w: destination %s", domain.ErrInvalidIndex, to)
	}

	limit := len(s.searches[to.Section].Results)
	if to.Section == from.Section {
		limit--
	}
	if to.Row < 0 || to.Row > limit {
		return fmt.Errorf("%w: destination %s", domain.ErrInvalidIndex, to)
	}

	src := s.searches[from.Section]
	src.Results = slices.Delete(src.Results, from.Row, from.Row+1)

	dst := s.searches[to.Section]
	dst.Results = slices.Insert(dst.Results, to.Row, photo)
	return nil
}
