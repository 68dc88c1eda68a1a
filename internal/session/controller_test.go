package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
	"github.com/GoArmGo/PhotoSearch/internal/logger"
	"github.com/google/uuid"
)

func newPhoto(id string) *domain.Photo {
	return &domain.Photo{
		ID:        id,
		Farm:      1,
		Server:    "srv",
		Secret:    "sec" + id,
		Thumbnail: &domain.Image{Data: []byte("thumb-" + id), Format: "jpeg", Width: 4, Height: 2},
	}
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]string
	errs    map[string]error
	noThumb map[string]bool
}

func (f *fakeSearcher) Search(ctx context.Context, term string) (*domain.PhotoSearchResults, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.errs[term]; ok {
		return nil, err
	}
	out := &domain.PhotoSearchResults{SearchTerm: term}
	for _, id := range f.results[term] {
		p := newPhoto(id)
		if f.noThumb[id] {
			p.Thumbnail = nil
		}
		out.Results = append(out.Results, p)
	}
	return out, nil
}

type fakeLoader struct {
	mu    sync.Mutex
	calls map[string]int
	gate  chan struct{}
	err   error
}

func (f *fakeLoader) LoadLargeImage(ctx context.Context, ref domain.PhotoRef) (*domain.Image, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ref.ID]++
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.Image{Data: []byte("large-" + ref.ID), Format: "jpeg", Width: 1024, Height: 512}, nil
}

func (f *fakeLoader) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type fakeSharer struct {
	mu   sync.Mutex
	got  [][]domain.SharedImage
	gate chan struct{}
	err  error
}

func (f *fakeSharer) ShareThumbnails(ctx context.Context, images []domain.SharedImage) (*domain.Share, error) {
	f.mu.Lock()
	f.got = append(f.got, images)
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &domain.Share{ID: uuid.New(), Status: domain.ShareStatusShared}, nil
}

func (f *fakeSharer) calls() [][]domain.SharedImage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.SharedImage(nil), f.got...)
}

type harness struct {
	ctrl     *Controller
	searcher *fakeSearcher
	loader   *fakeLoader
	sharer   *fakeSharer
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		searcher: &fakeSearcher{
			results: map[string][]string{
				"cats": {"p1", "p2"},
				"dogs": {"p3"},
				"owls": {"p4", "p5", "p6"},
			},
			errs:    map[string]error{},
			noThumb: map[string]bool{},
		},
		loader: &fakeLoader{},
		sharer: &fakeSharer{},
	}
	h.ctrl = NewController(h.searcher, h.loader, h.sharer, time.Second, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.ctrl.Run(ctx) }()
	t.Cleanup(cancel)
	return h
}

func (h *harness) search(t *testing.T, terms ...string) {
	t.Helper()
	for _, term := range terms {
		_, err := h.ctrl.Search(context.Background(), term)
		require.NoError(t, err)
	}
}

func (h *harness) snapshot(t *testing.T) View {
	t.Helper()
	v, err := h.ctrl.Snapshot(context.Background(), nil)
	require.NoError(t, err)
	return v
}

func ids(g GroupView) []string {
	out := make([]string, 0, len(g.Items))
	for _, it := range g.Items {
		out = append(out, it.PhotoID)
	}
	return out
}

func ip(section, row int) domain.IndexPath {
	return domain.IndexPath{Section: section, Row: row}
}

func TestSearchPrependsNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	group, err := h.ctrl.Search(ctx, "cats")
	require.NoError(t, err)
	assert.Equal(t, "cats", group.SearchTerm)
	assert.Equal(t, []string{"p1", "p2"}, ids(group))

	h.search(t, "dogs")

	v := h.snapshot(t)
	require.Len(t, v.Sections, 2)
	assert.Equal(t, "dogs", v.Sections[0].SearchTerm)
	assert.Equal(t, []string{"p3"}, ids(v.Sections[0]))
	assert.Equal(t, "cats", v.Sections[1].SearchTerm)
	assert.Equal(t, []string{"p1", "p2"}, ids(v.Sections[1]))
	assert.Zero(t, v.PendingSearches)
	assert.Empty(t, v.EmptyMessage)
}

func TestSearchFailureLeavesHistoryUntouched(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	h.searcher.errs["broken"] = &domain.APIError{Code: 100, Message: "Invalid API Key"}

	before := h.snapshot(t)

	_, err := h.ctrl.Search(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrAPI)

	after := h.snapshot(t)
	assert.Equal(t, before.Sections, after.Sections)
	assert.Zero(t, after.PendingSearches)
}

func TestEmptyHistoryMessage(t *testing.T) {
	h := newHarness(t)

	v := h.snapshot(t)
	assert.Empty(t, v.Sections)
	assert.Equal(t, "No photos found. \nPlease start a search.", v.EmptyMessage)
	assert.Equal(t, ModeBrowsing, v.Mode)
}

func TestTapTwiceCollapses(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()

	res, err := h.ctrl.Tap(ctx, ip(0, 1))
	require.NoError(t, err)
	assert.True(t, res.Enlarged)
	assert.True(t, res.FetchStarted)

	res, err = h.ctrl.Tap(ctx, ip(0, 1))
	require.NoError(t, err)
	assert.False(t, res.Enlarged)

	v := h.snapshot(t)
	assert.Nil(t, v.Enlarged)
	for _, it := range v.Sections[0].Items {
		assert.False(t, it.Enlarged)
	}
}

func TestTapOtherItemMovesEnlargement(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()

	_, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	_, err = h.ctrl.Tap(ctx, ip(0, 1))
	require.NoError(t, err)

	v := h.snapshot(t)
	require.NotNil(t, v.Enlarged)
	assert.Equal(t, ip(0, 1), *v.Enlarged)
	assert.False(t, v.Sections[0].Items[0].Enlarged)
	assert.True(t, v.Sections[0].Items[1].Enlarged)
}

func TestTapInvalidIndex(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")

	_, err := h.ctrl.Tap(context.Background(), ip(0, 5))
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)
	_, err = h.ctrl.Tap(context.Background(), ip(3, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)
}

func TestLargeImageDisplayedWhenLoaded(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()

	_, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.snapshot(t).Sections[0].Items[0].Display == DisplayLarge
	}, time.Second, 5*time.Millisecond)

	img, err := h.ctrl.Image(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte("large-p1"), img.Data)

	// после сворачивания ячейка снова показывает миниатюру
	_, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	img, err = h.ctrl.Image(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte("thumb-p1"), img.Data)
}

func TestStaleLargeImageCompletionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()
	h.loader.gate = make(chan struct{})

	_, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	_, err = h.ctrl.Tap(ctx, ip(0, 1))
	require.NoError(t, err)

	v := h.snapshot(t)
	assert.True(t, v.Sections[0].Items[0].LargeLoading)
	assert.Equal(t, DisplayThumbnail, v.Sections[0].Items[1].Display)

	close(h.loader.gate)

	require.Eventually(t, func() bool {
		v := h.snapshot(t)
		return !v.Sections[0].Items[0].LargeLoading && v.Sections[0].Items[1].Display == DisplayLarge
	}, time.Second, 5*time.Millisecond)

	v = h.snapshot(t)
	assert.False(t, v.Sections[0].Items[0].Enlarged)
	assert.Equal(t, DisplayThumbnail, v.Sections[0].Items[0].Display)

	img, err := h.ctrl.Image(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte("thumb-p1"), img.Data)
}

func TestLargeFetchIsDeduplicated(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()
	h.loader.gate = make(chan struct{})

	first, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.True(t, first.FetchStarted)
	_, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	again, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.False(t, again.FetchStarted)

	close(h.loader.gate)
	require.Eventually(t, func() bool {
		return h.snapshot(t).Sections[0].Items[0].Display == DisplayLarge
	}, time.Second, 5*time.Millisecond)

	// картинка уже загружена: повторного запроса нет
	_, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	res, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.False(t, res.FetchStarted)
	assert.Equal(t, 1, h.loader.callCount("p1"))
}

func TestLargeFetchFailureKeepsThumbnail(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	h.loader.err = domain.ErrNoData
	ctx := context.Background()

	_, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !h.snapshot(t).Sections[0].Items[0].LargeLoading
	}, time.Second, 5*time.Millisecond)

	item := h.snapshot(t).Sections[0].Items[0]
	assert.True(t, item.Enlarged)
	assert.Equal(t, DisplayThumbnail, item.Display)

	img, err := h.ctrl.Image(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte("thumb-p1"), img.Data)
}

func TestEnableSharingClearsEnlargedAndSelection(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()

	_, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)

	out, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, ShareModeEnabled, out.Status)
	assert.Equal(t, "0 photos selected", out.CountLabel)

	v := h.snapshot(t)
	assert.Equal(t, ModeSharing, v.Mode)
	assert.Nil(t, v.Enlarged)
	assert.Empty(t, v.SelectedIDs)

	// второе нажатие без выбора выключает режим
	out, err = h.ctrl.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, ShareModeDisabled, out.Status)
	assert.Equal(t, ModeBrowsing, h.snapshot(t).Mode)
	assert.Empty(t, h.snapshot(t).CountLabel)
}

func TestSelectionToggleIsIdempotentPerPhoto(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()

	_, err := h.ctrl.Share(ctx)
	require.NoError(t, err)

	res, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.True(t, res.Selected)
	assert.False(t, res.Enlarged)
	assert.False(t, res.FetchStarted)

	res, err = h.ctrl.Tap(ctx, ip(0, 1))
	require.NoError(t, err)
	assert.Equal(t, "2 photos selected", res.CountLabel)

	res, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	assert.False(t, res.Selected)
	assert.Equal(t, 1, res.SelectedCount)

	v := h.snapshot(t)
	assert.Equal(t, []string{"p2"}, v.SelectedIDs)
	assert.False(t, v.Sections[0].Items[0].Selected)
	assert.True(t, v.Sections[0].Items[1].Selected)
	assert.Zero(t, h.loader.callCount("p1"))
}

func TestShareSendsThumbnailsAndResets(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats", "dogs")
	ctx := context.Background()

	_, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.Tap(ctx, ip(1, 1))
	require.NoError(t, err)
	_, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)

	out, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, ShareCompleted, out.Status)
	assert.Equal(t, 2, out.Shared)
	require.NotNil(t, out.Share)

	calls := h.sharer.calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, "p2", calls[0][0].Photo.ID)
	assert.Equal(t, []byte("thumb-p2"), calls[0][0].Image.Data)
	assert.Equal(t, "p3", calls[0][1].Photo.ID)

	v := h.snapshot(t)
	assert.Equal(t, ModeBrowsing, v.Mode)
	assert.Empty(t, v.SelectedIDs)
	assert.False(t, v.ShareInFlight)
}

func TestShareSkipsPhotosWithoutThumbnail(t *testing.T) {
	h := newHarness(t)
	h.searcher.noThumb["p5"] = true
	h.searcher.noThumb["p6"] = true
	h.search(t, "owls")
	ctx := context.Background()

	_, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.Tap(ctx, ip(0, 1))
	require.NoError(t, err)

	out, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, ShareNoop, out.Status)
	assert.Empty(t, h.sharer.calls())
	assert.Equal(t, ModeSharing, h.snapshot(t).Mode)

	_, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	out, err = h.ctrl.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, ShareCompleted, out.Status)
	assert.Equal(t, 1, out.Shared)
	assert.Equal(t, 1, out.Skipped)
}

func TestShareWithoutHistoryIsNoop(t *testing.T) {
	h := newHarness(t)

	out, err := h.ctrl.Share(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ShareNoop, out.Status)
	assert.Equal(t, ModeBrowsing, h.snapshot(t).Mode)
}

func TestShareFailureStillResets(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	h.sharer.err = errors.New("bucket unavailable")
	ctx := context.Background()

	_, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)

	_, err = h.ctrl.Share(ctx)
	assert.Error(t, err)

	v := h.snapshot(t)
	assert.Equal(t, ModeBrowsing, v.Mode)
	assert.Empty(t, v.SelectedIDs)
}

func TestShareInProgressRejectsSecondShare(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	h.sharer.gate = make(chan struct{})
	ctx := context.Background()

	_, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	_, err = h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Share(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.snapshot(t).ShareInFlight
	}, time.Second, 5*time.Millisecond)

	_, err = h.ctrl.Share(ctx)
	assert.ErrorIs(t, err, domain.ErrShareInProgress)

	close(h.sharer.gate)
	require.NoError(t, <-done)
	assert.Len(t, h.sharer.calls(), 1)
}

func TestClearResetsEverything(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats", "dogs")
	ctx := context.Background()

	_, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Clear(ctx))

	v := h.snapshot(t)
	assert.Empty(t, v.Sections)
	assert.Nil(t, v.Enlarged)
	assert.Equal(t, ModeBrowsing, v.Mode)
	assert.Empty(t, v.SelectedIDs)

	out, err := h.ctrl.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, ShareNoop, out.Status)
}

func TestMoveAcrossGroups(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats", "owls") // [owls: p4 p5 p6] [cats: p1 p2]
	ctx := context.Background()

	require.NoError(t, h.ctrl.Move(ctx, ip(0, 1), ip(1, 1)))

	v := h.snapshot(t)
	assert.Equal(t, []string{"p4", "p6"}, ids(v.Sections[0]))
	assert.Equal(t, []string{"p1", "p5", "p2"}, ids(v.Sections[1]))
	assert.Equal(t, "owls", v.Sections[0].SearchTerm)
}

func TestMoveWithinGroup(t *testing.T) {
	h := newHarness(t)
	h.search(t, "owls")
	ctx := context.Background()

	require.NoError(t, h.ctrl.Move(ctx, ip(0, 0), ip(0, 2)))
	assert.Equal(t, []string{"p5", "p6", "p4"}, ids(h.snapshot(t).Sections[0]))

	assert.ErrorIs(t, h.ctrl.Move(ctx, ip(0, 0), ip(0, 3)), domain.ErrInvalidIndex)
	assert.ErrorIs(t, h.ctrl.Move(ctx, ip(0, 7), ip(0, 0)), domain.ErrInvalidIndex)
	assert.ErrorIs(t, h.ctrl.Move(ctx, ip(0, 0), ip(2, 0)), domain.ErrInvalidIndex)
	assert.Equal(t, []string{"p5", "p6", "p4"}, ids(h.snapshot(t).Sections[0]))
}

func TestMoveKeepsSelectionAndEnlarged(t *testing.T) {
	h := newHarness(t)
	h.search(t, "owls")
	ctx := context.Background()

	_, err := h.ctrl.Tap(ctx, ip(0, 2))
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Move(ctx, ip(0, 0), ip(0, 1)))

	v := h.snapshot(t)
	require.NotNil(t, v.Enlarged)
	assert.Equal(t, ip(0, 2), *v.Enlarged)
}

func TestSnapshotFillSizeForEnlarged(t *testing.T) {
	h := newHarness(t)
	h.search(t, "cats")
	ctx := context.Background()

	_, err := h.ctrl.Tap(ctx, ip(0, 0))
	require.NoError(t, err)

	v, err := h.ctrl.Snapshot(ctx, &domain.Size{Width: 200, Height: 500})
	require.NoError(t, err)

	item := v.Sections[0].Items[0]
	require.NotNil(t, item.FillSize)
	assert.Equal(t, domain.Size{Width: 200, Height: 100}, *item.FillSize)
	assert.Nil(t, v.Sections[0].Items[1].FillSize)
	assert.Equal(t, "https://farm1.staticflickr.com/srv/p1_secp1_m.jpg", item.ThumbnailURL)
	assert.Equal(t, "https://farm1.staticflickr.com/srv/p1_secp1_b.jpg", item.LargeURL)
}

func TestStoppedController(t *testing.T) {
	h := newHarness(t)
	h.cancel()

	require.Eventually(t, func() bool {
		_, err := h.ctrl.Snapshot(context.Background(), nil)
		return errors.Is(err, ErrStopped)
	}, time.Second, 5*time.Millisecond)
}
