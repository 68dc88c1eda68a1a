package session

import (
	"github.com/GoArmGo/PhotoSearch/internal/domain"
)

const emptyMessage = "No photos found. \nPlease start a search."

const (
	DisplayThumbnail = "thumbnail"
	DisplayLarge     = "large"
)

// ShareStatus описывает, чем закончилось нажатие «поделиться»
type ShareStatus string

const (
	ShareNoop         ShareStatus = "noop"
	ShareModeEnabled  ShareStatus = "sharing_enabled"
	ShareModeDisabled ShareStatus = "sharing_disabled"
	ShareCompleted    ShareStatus = "shared"
)

type ShareOutcome struct {
	Status     ShareStatus   `json:"status"`
	Mode       Mode          `json:"mode"`
	CountLabel string        `json:"count_label,omitempty"`
	Share      *domain.Share `json:"share,omitempty"`
	Shared     int           `json:"shared,omitempty"`
	Skipped    int           `json:"skipped,omitempty"`
}

type TapResult struct {
	IndexPath     domain.IndexPath `json:"index_path"`
	PhotoID       string           `json:"photo_id"`
	Mode          Mode             `json:"mode"`
	Enlarged      bool             `json:"enlarged"`
	Selected      bool             `json:"selected"`
	FetchStarted  bool             `json:"fetch_started"`
	SelectedCount int              `json:"selected_count"`
	CountLabel    string           `json:"count_label"`
}

type ItemView struct {
	IndexPath    domain.IndexPath `json:"index_path"`
	PhotoID      string           `json:"photo_id"`
	ThumbnailURL string           `json:"thumbnail_url"`
	LargeURL     string           `json:"large_url"`
	Display      string           `json:"display"`
	Enlarged     bool             `json:"enlarged"`
	Selected     bool             `json:"selected"`
	LargeLoading bool             `json:"large_loading"`
	FillSize     *domain.Size     `json:"fill_size,omitempty"`
}

type GroupView struct {
	Section    int        `json:"section"`
	SearchTerm string     `json:"search_term"`
	Items      []ItemView `json:"items"`
}

type View struct {
	Mode            Mode              `json:"mode"`
	Sections        []GroupView       `json:"sections"`
	Enlarged        *domain.IndexPath `json:"enlarged,omitempty"`
	SelectedIDs     []string          `json:"selected_ids"`
	SelectedCount   int               `json:"selected_count"`
	CountLabel      string            `json:"count_label"`
	EmptyMessage    string            `json:"empty_message,omitempty"`
	PendingSearches int               `json:"pending_searches"`
	ShareInFlight   bool              `json:"share_in_flight"`
	Revision        uint64            `json:"revision"`
}

func (s *state) view(bounds *domain.Size) View {
	v := View{
		Mode:            s.mode,
		Sections:        make([]GroupView, 0, len(s.searches)),
		SelectedIDs:     make([]string, 0, len(s.selected)),
		SelectedCount:   len(s.selected),
		CountLabel:      s.countLabel(),
		PendingSearches: s.pendingSearches,
		ShareInFlight:   s.shareInFlight,
		Revision:        s.revision,
	}
	if s.enlarged != nil {
		enlarged := *s.enlarged
		v.Enlarged = &enlarged
	}
	for _, photo := range s.selected {
		v.SelectedIDs = append(v.SelectedIDs, photo.ID)
	}
	for section := range s.searches {
		v.Sections = append(v.Sections, s.groupView(section, bounds))
	}
	if len(s.searches) == 0 {
		v.EmptyMessage = emptyMessage
	}
	return v
}

func (s *state) groupView(section int, bounds *domain.Size) GroupView {
	group := s.searches[section]
	gv := GroupView{
		Section:    section,
		SearchTerm: group.SearchTerm,
		Items:      make([]ItemView, 0, len(group.Results)),
	}

	for row, photo := range group.Results {
		ip := domain.IndexPath{Section: section, Row: row}
		thumbURL, _ := photo.ImageURL(domain.SizeThumbnail)
		largeURL, _ := photo.ImageURL(domain.SizeLarge)
		_, loading := s.largeFetches[photo.ID]

		item := ItemView{
			IndexPath:    ip,
			PhotoID:      photo.ID,
			ThumbnailURL: thumbURL,
			LargeURL:     largeURL,
			Display:      DisplayThumbnail,
			Enlarged:     s.isEnlarged(ip),
			Selected:     s.isSelected(photo),
			LargeLoading: loading,
		}
		if item.Enlarged {
			if photo.LargeImage != nil {
				item.Display = DisplayLarge
			}
			if bounds != nil {
				fill := photo.SizeToFillWidth(*bounds)
				item.FillSize = &fill
			}
		}
		gv.Items = append(gv.Items, item)
	}
	return gv
}
