// internal/adapter/flickr/client.go
package flickr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/GoArmGo/PhotoSearch/internal/config"
	"github.com/GoArmGo/PhotoSearch/internal/domain"
)

const (
	searchMethod = "flickr.photos.search"
	perPage      = 20

	// ограничение размера тела ответа, чтобы не читать в память всё подряд
	maxBodyBytes = 20 << 20
)

// FlickrAPIClient выполняет поиск фото через Flickr REST API и скачивает картинки.
type FlickrAPIClient struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	concurrency int
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// Option позволяет переопределить зависимости клиента (используется в тестах)
type Option func(*FlickrAPIClient)

// WithHTTPClient подменяет HTTP-клиент
func WithHTTPClient(hc *http.Client) Option {
	return func(c *FlickrAPIClient) {
		c.httpClient = hc
	}
}

// NewFlickrAPIClient создает новый экземпляр FlickrAPIClient.
func NewFlickrAPIClient(cfg *config.Config, logger *slog.Logger, opts ...Option) *FlickrAPIClient {
	c := &FlickrAPIClient{
		// таймаута нет: используем поведение транспорта по умолчанию
		httpClient:  &http.Client{},
		apiKey:      cfg.Flickr.APIKey,
		baseURL:     strings.TrimRight(cfg.Flickr.APIBaseURL, "/"),
		concurrency: cfg.Flickr.ThumbnailConcurrency,
		logger:      logger,
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}

	maxFailures := cfg.Flickr.BreakerMaxFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "flickr-search",
		Timeout: cfg.Flickr.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EscapeTerm кодирует поисковую строку: латинские буквы и цифры остаются как есть,
// все остальные байты UTF-8 превращаются в %XX.
func EscapeTerm(term string) (string, error) {
	if !utf8.ValidString(term) {
		return "", fmt.Errorf("%w: term is not valid UTF-8", domain.ErrInvalidQuery)
	}

	var b strings.Builder
	b.Grow(len(term) * 3)
	for i := 0; i < len(term); i++ {
		ch := term[i]
		if isASCIIAlnum(ch) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", ch)
	}
	return b.String(), nil
}

func isASCIIAlnum(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ('0' <= ch && ch <= '9')
}

// SearchURL строит URL запроса flickr.photos.search для данного термина
func (c *FlickrAPIClient) SearchURL(term string) (string, error) {
	escaped, err := EscapeTerm(term)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf(
		"%s/services/rest/?method=%s&api_key=%s&text=%s&per_page=%d&format=json&nojsoncallback=1",
		c.baseURL, searchMethod, url.QueryEscape(c.apiKey), escaped, perPage,
	)
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	return endpoint, nil
}

// Search ищет фото по термину и скачивает миниатюры найденных фото.
// Неполные записи и фото, чью миниатюру не удалось получить, молча отбрасываются.
func (c *FlickrAPIClient) Search(ctx context.Context, term string) (*domain.PhotoSearchResults, error) {
	start := time.Now()

	endpoint, err := c.SearchURL(term)
	if err != nil {
		return nil, err
	}

	body, err := c.searchRoundTrip(ctx, endpoint)
	if err != nil {
		c.logger.Error("flickr search request failed", "term", term, "error", err)
		return nil, err
	}

	candidates, err := parseSearchResponse(body)
	if err != nil {
		c.logger.Error("flickr search response rejected", "term", term, "error", err)
		return nil, err
	}

	photos := c.attachThumbnails(ctx, candidates)

	c.logger.Info("flickr search completed",
		"term", term,
		"records", len(candidates),
		"found", len(photos),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &domain.PhotoSearchResults{SearchTerm: term, Results: photos}, nil
}

// searchRoundTrip выполняет запрос поиска через circuit breaker.
// Пока breaker открыт, запрос сразу завершается ошибкой транспорта.
func (c *FlickrAPIClient) searchRoundTrip(ctx context.Context, endpoint string) ([]byte, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
		}
		return nil, err
	}
	return res.([]byte), nil
}

// attachThumbnails параллельно (с ограничением) скачивает миниатюры,
// сохраняя исходный порядок фото
func (c *FlickrAPIClient) attachThumbnails(ctx context.Context, candidates []*domain.Photo) []*domain.Photo {
	loaded := make([]*domain.Photo, len(candidates))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, photo := range candidates {
		g.Go(func() error {
			img, err := c.fetchImage(ctx, photo.Ref(), domain.SizeThumbnail)
			if err != nil {
				c.logger.Debug("dropping photo without thumbnail", "photo_id", photo.ID, "error", err)
				return nil
			}
			photo.Thumbnail = img
			loaded[i] = photo
			return nil
		})
	}
	_ = g.Wait()

	photos := make([]*domain.Photo, 0, len(loaded))
	for _, photo := range loaded {
		if photo != nil {
			photos = append(photos, photo)
		}
	}
	return photos
}

// LoadLargeImage скачивает большую версию фото. Само фото не изменяется:
// сохранить картинку — забота вызывающего.
func (c *FlickrAPIClient) LoadLargeImage(ctx context.Context, ref domain.PhotoRef) (*domain.Image, error) {
	start := time.Now()

	img, err := c.fetchImage(ctx, ref, domain.SizeLarge)
	if err != nil {
		c.logger.Warn("large image fetch failed", "photo_id", ref.ID, "error", err)
		return nil, err
	}

	c.logger.Info("large image fetched",
		"photo_id", ref.ID,
		"bytes", len(img.Data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return img, nil
}

func (c *FlickrAPIClient) fetchImage(ctx context.Context, ref domain.PhotoRef, size string) (*domain.Image, error) {
	imageURL, err := ref.ImageURL(size)
	if err != nil {
		return nil, err
	}

	data, err := c.get(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return domain.DecodeImage(data)
}

// get выполняет GET-запрос и возвращает тело ответа.
// Любая сетевая ошибка или статус не 2xx считается ошибкой транспорта.
func (c *FlickrAPIClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: flickr вернул статус %d", domain.ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения тела ответа: %w", domain.ErrTransport, err)
	}
	return body, nil
}
