package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
)

// ErrStopped возвращается, если цикл контроллера не запущен или уже завершён
var ErrStopped = errors.New("session controller stopped")

// Searcher выполняет поиск фото во внешнем API
type Searcher interface {
	Search(ctx context.Context, term string) (*domain.PhotoSearchResults, error)
}

// LargeImageLoader скачивает большую версию фото
type LargeImageLoader interface {
	LoadLargeImage(ctx context.Context, ref domain.PhotoRef) (*domain.Image, error)
}

// Sharer отправляет миниатюры выбранных фото (аналог системного share sheet)
type Sharer interface {
	ShareThumbnails(ctx context.Context, images []domain.SharedImage) (*domain.Share, error)
}

// Controller владеет всем изменяемым состоянием сессии: историей поиска,
// режимом, увеличенным фото и выбором. Состояние трогает только горутина Run,
// публичные методы отправляют ей замыкания и ждут ответа.
// Сетевые операции выполняются в отдельных горутинах, а их результат
// возвращается в цикл сообщением.
type Controller struct {
	searcher     Searcher
	loader       LargeImageLoader
	sharer       Sharer
	shareTimeout time.Duration
	logger       *slog.Logger

	inbox chan func(*state)
	done  chan struct{}
	st    state
}

// NewController создаёт контроллер. Цикл нужно запустить через Run.
func NewController(
	searcher Searcher,
	loader LargeImageLoader,
	sharer Sharer,
	shareTimeout time.Duration,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		searcher:     searcher,
		loader:       loader,
		sharer:       sharer,
		shareTimeout: shareTimeout,
		logger:       logger,
		inbox:        make(chan func(*state), 64),
		done:         make(chan struct{}),
		st:           newState(),
	}
}

// Run обрабатывает команды до отмены ctx. ctx также служит временем жизни
// для запущенных сетевых операций: отмена запроса клиента их не прерывает.
func (c *Controller) Run(ctx context.Context) error {
	c.st.ctx = ctx
	c.logger.Info("session controller started")
	defer close(c.done)

	for {
		select {
		case fn := <-c.inbox:
			fn(&c.st)
		case <-ctx.Done():
			c.logger.Info("session controller stopped")
			return nil
		}
	}
}

// do выполняет fn в цикле контроллера и ждёт её завершения
func (c *Controller) do(ctx context.Context, fn func(*state)) error {
	replied := make(chan struct{})
	msg := func(s *state) {
		defer close(replied)
		fn(s)
	}

	select {
	case c.inbox <- msg:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}

	select {
	case <-replied:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// post ставит завершение асинхронной операции в очередь цикла, не дожидаясь выполнения
func (c *Controller) post(fn func(*state)) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

type searchOutcome struct {
	group GroupView
	err   error
}

// Search запускает поиск и ждёт его результата. Успешный результат добавляется
// в начало истории, ошибка историю не меняет.
func (c *Controller) Search(ctx context.Context, term string) (GroupView, error) {
	outcome := make(chan searchOutcome, 1)

	err := c.do(ctx, func(s *state) {
		s.pendingSearches++
		s.revision++
		lifetime := s.ctx

		go func() {
			start := time.Now()
			results, err := c.searcher.Search(lifetime, term)

			c.post(func(s *state) {
				s.pendingSearches--
				s.revision++

				if err != nil {
					c.logger.Error("search failed", "term", term, "error", err)
					outcome <- searchOutcome{err: err}
					return
				}

				s.prependResults(results)
				c.logger.Info("search results added",
					"term", results.SearchTerm,
					"found", len(results.Results),
					"groups", len(s.searches),
					"duration_ms", time.Since(start).Milliseconds(),
				)
				outcome <- searchOutcome{group: s.groupView(0, nil)}
			})
		}()
	})
	if err != nil {
		return GroupView{}, err
	}

	select {
	case o := <-outcome:
		return o.group, o.err
	case <-ctx.Done():
		return GroupView{}, ctx.Err()
	case <-c.done:
		return GroupView{}, ErrStopped
	}
}

// Tap обрабатывает нажатие на ячейку: в режиме просмотра переключает увеличение,
// в режиме отправки переключает выбор фото.
func (c *Controller) Tap(ctx context.Context, ip domain.IndexPath) (TapResult, error) {
	var (
		res   TapResult
		opErr error
	)
	err := c.do(ctx, func(s *state) {
		res, opErr = c.tap(s, ip)
	})
	if err != nil {
		return TapResult{}, err
	}
	return res, opErr
}

func (c *Controller) tap(s *state, ip domain.IndexPath) (TapResult, error) {
	photo, ok := s.photoAt(ip)
	if !ok {
		return TapResult{}, domain.ErrInvalidIndex
	}

	res := TapResult{IndexPath: ip, PhotoID: photo.ID}

	if s.mode == ModeSharing {
		res.Selected = s.toggleSelection(photo)
		s.revision++
		c.logger.Debug("selection toggled", "photo_id", photo.ID, "selected", res.Selected, "count", len(s.selected))
	} else {
		if s.enlarged != nil && *s.enlarged == ip {
			s.enlarged = nil
		} else {
			enlarged := ip
			s.enlarged = &enlarged
			res.Enlarged = true
			res.FetchStarted = c.startLargeFetch(s, photo)
		}
		s.revision++
		c.logger.Debug("enlarge toggled", "index", ip.String(), "photo_id", photo.ID, "enlarged", res.Enlarged)
	}

	res.Mode = s.mode
	res.SelectedCount = len(s.selected)
	res.CountLabel = s.countLabel()
	return res, nil
}

// startLargeFetch запускает загрузку большой картинки, если она ещё не загружена
// и для этого фото нет незавершённой загрузки
func (c *Controller) startLargeFetch(s *state, photo *domain.Photo) bool {
	if photo.LargeImage != nil {
		return false
	}
	if _, busy := s.largeFetches[photo.ID]; busy {
		return false
	}
	s.largeFetches[photo.ID] = struct{}{}

	ref := photo.Ref()
	lifetime := s.ctx
	go func() {
		img, err := c.loader.LoadLargeImage(lifetime, ref)
		c.post(func(s *state) {
			c.finishLargeFetch(s, photo, img, err)
		})
	}()
	return true
}

func (c *Controller) finishLargeFetch(s *state, photo *domain.Photo, img *domain.Image, err error) {
	delete(s.largeFetches, photo.ID)

	if err != nil {
		// миниатюра остаётся на месте, пользователю ошибку не показываем
		c.logger.Warn("large image unavailable, keeping thumbnail", "photo_id", photo.ID, "error", err)
		return
	}

	photo.SetLargeImage(img)
	s.forEachPhoto(func(p *domain.Photo) {
		if p.Equal(photo) {
			p.SetLargeImage(img)
		}
	})

	if current, ok := s.enlargedPhoto(); ok && current.Equal(photo) {
		s.revision++
		c.logger.Debug("large image displayed", "photo_id", photo.ID)
		return
	}
	c.logger.Debug("discarding stale large image completion", "photo_id", photo.ID)
}

type shareOutcome struct {
	outcome ShareOutcome
	err     error
}

// Share повторяет логику кнопки «поделиться»: без выбора переключает режим отправки,
// с выбором отправляет миниатюры и возвращает сессию в режим просмотра.
func (c *Controller) Share(ctx context.Context) (ShareOutcome, error) {
	var (
		immediate *ShareOutcome
		opErr     error
	)
	pending := make(chan shareOutcome, 1)

	err := c.do(ctx, func(s *state) {
		if s.shareInFlight {
			opErr = domain.ErrShareInProgress
			return
		}
		if len(s.searches) == 0 {
			immediate = &ShareOutcome{Status: ShareNoop, Mode: s.mode}
			return
		}
		if len(s.selected) == 0 {
			s.setSharing(s.mode != ModeSharing)
			status := ShareModeDisabled
			if s.mode == ModeSharing {
				status = ShareModeEnabled
			}
			c.logger.Info("sharing mode toggled", "mode", s.mode)
			immediate = &ShareOutcome{Status: status, Mode: s.mode, CountLabel: s.countLabel()}
			return
		}
		if s.mode != ModeSharing {
			immediate = &ShareOutcome{Status: ShareNoop, Mode: s.mode}
			return
		}

		images := make([]domain.SharedImage, 0, len(s.selected))
		for _, photo := range s.selected {
			if photo.Thumbnail == nil {
				continue
			}
			images = append(images, domain.SharedImage{Photo: photo.Ref(), Image: photo.Thumbnail})
		}
		if len(images) == 0 {
			immediate = &ShareOutcome{Status: ShareNoop, Mode: s.mode, CountLabel: s.countLabel()}
			return
		}

		s.shareInFlight = true
		s.revision++
		skipped := len(s.selected) - len(images)
		lifetime := s.ctx

		go func() {
			shareCtx, cancel := context.WithTimeout(lifetime, c.shareTimeout)
			receipt, err := c.sharer.ShareThumbnails(shareCtx, images)
			cancel()

			c.post(func(s *state) {
				s.shareInFlight = false
				s.cleanupSharing()

				if err != nil {
					c.logger.Error("share failed", "photos", len(images), "error", err)
					pending <- shareOutcome{err: err}
					return
				}
				c.logger.Info("share completed", "share_id", receipt.ID, "photos", len(images), "skipped", skipped)
				pending <- shareOutcome{outcome: ShareOutcome{
					Status:  ShareCompleted,
					Mode:    s.mode,
					Share:   receipt,
					Shared:  len(images),
					Skipped: skipped,
				}}
			})
		}()
	})
	if err != nil {
		return ShareOutcome{}, err
	}
	if opErr != nil {
		return ShareOutcome{}, opErr
	}
	if immediate != nil {
		return *immediate, nil
	}

	select {
	case o := <-pending:
		return o.outcome, o.err
	case <-ctx.Done():
		return ShareOutcome{}, ctx.Err()
	case <-c.done:
		return ShareOutcome{}, ErrStopped
	}
}

// Clear сбрасывает режим отправки, выбор, увеличенное фото и всю историю поиска
func (c *Controller) Clear(ctx context.Context) error {
	return c.do(ctx, func(s *state) {
		s.cleanupSharing()
		s.enlarged = nil
		s.searches = nil
		s.revision++
		c.logger.Info("search history cleared")
	})
}

// Move переносит фото с позиции from на позицию to, в том числе между группами.
// Выбор и увеличенное фото не меняются.
func (c *Controller) Move(ctx context.Context, from, to domain.IndexPath) error {
	var opErr error
	err := c.do(ctx, func(s *state) {
		opErr = s.move(from, to)
		if opErr == nil {
			s.revision++
			c.logger.Debug("photo moved", "from", from.String(), "to", to.String())
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// Snapshot возвращает копию текущего состояния для отображения.
// bounds (может быть nil) — размер области, в которую вписывается увеличенное фото.
func (c *Controller) Snapshot(ctx context.Context, bounds *domain.Size) (View, error) {
	var v View
	err := c.do(ctx, func(s *state) {
		v = s.view(bounds)
	})
	return v, err
}

// Image возвращает картинку, которую сейчас показывает ячейка:
// большую для увеличенного фото (если она загружена), иначе миниатюру.
func (c *Controller) Image(ctx context.Context, ip domain.IndexPath) (*domain.Image, error) {
	var (
		img   *domain.Image
		opErr error
	)
	err := c.do(ctx, func(s *state) {
		photo, ok := s.photoAt(ip)
		if !ok {
			opErr = domain.ErrInvalidIndex
			return
		}
		if s.isEnlarged(ip) && photo.LargeImage != nil {
			img = photo.LargeImage
			return
		}
		if photo.Thumbnail == nil {
			opErr = domain.ErrNoData
			return
		}
		img = photo.Thumbnail
	})
	if err != nil {
		return nil, err
	}
	return img, opErr
}
