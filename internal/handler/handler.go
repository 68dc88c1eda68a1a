package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
	"github.com/GoArmGo/PhotoSearch/internal/session"
	"github.com/GoArmGo/PhotoSearch/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Session — операции над сессией поиска, которые вызывает HTTP-слой.
// Реализуется session.Controller.
type Session interface {
	Search(ctx context.Context, term string) (session.GroupView, error)
	Tap(ctx context.Context, ip domain.IndexPath) (session.TapResult, error)
	Share(ctx context.Context) (session.ShareOutcome, error)
	Clear(ctx context.Context) error
	Move(ctx context.Context, from, to domain.IndexPath) error
	Snapshot(ctx context.Context, bounds *domain.Size) (session.View, error)
	Image(ctx context.Context, ip domain.IndexPath) (*domain.Image, error)
}

// PhotoHandler — обработчик HTTP-запросов для сетки фото и отправок
type PhotoHandler struct {
	session Session
	shares  usecase.ShareUseCase
	logger  *slog.Logger
}

func NewPhotoHandler(s Session, shares usecase.ShareUseCase, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{
		session: s,
		shares:  shares,
		logger:  logger,
	}
}

// Register подключает маршруты к роутеру
func (h *PhotoHandler) Register(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Post("/searches", h.Search)
	r.Get("/searches", h.Snapshot)
	r.Delete("/searches", h.Clear)

	r.Post("/photos/move", h.Move)
	r.Post("/photos/{section}/{row}/tap", h.Tap)
	r.Get("/photos/{section}/{row}/image", h.Image)

	r.Post("/share", h.Share)
	r.Get("/shares/{id}", h.GetShare)
	r.Get("/shares/{id}/items/{photoID}/{size}", h.ShareImage)
}

// respondWithJSON отправляет JSON-ответ клиенту
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}, logger *slog.Logger) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		logger.Error("failed to marshal JSON response", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(response); err != nil {
		logger.Error("failed to write HTTP response", "error", err)
	}
}

// respondWithError отправляет JSON-ответ с ошибкой
func respondWithError(w http.ResponseWriter, code int, message string, logger *slog.Logger) {
	respondWithJSON(w, code, map[string]string{"error": message}, logger)
}

// respondWithDomainError переводит ошибку в HTTP-код и сообщение
func (h *PhotoHandler) respondWithDomainError(w http.ResponseWriter, op string, err error) {
	code, message := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "status", code, "error", err)
	} else {
		h.logger.Warn("request rejected", "op", op, "status", code, "error", err)
	}
	respondWithError(w, code, message, h.logger)
}

func statusFor(err error) (int, string) {
	var apiErr *domain.APIError
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest, "Некорректный поисковый запрос"
	case errors.Is(err, domain.ErrInvalidIndex):
		return http.StatusBadRequest, "Нет фото с такой позицией"
	case errors.Is(err, domain.ErrInvalidSize):
		return http.StatusBadRequest, "Неизвестный размер картинки"
	case errors.Is(err, domain.ErrNoData):
		return http.StatusNotFound, "Картинка недоступна"
	case errors.Is(err, domain.ErrShareNotFound):
		return http.StatusNotFound, "Отправка не найдена"
	case errors.Is(err, domain.ErrShareInProgress):
		return http.StatusConflict, "Отправка уже выполняется"
	case errors.Is(err, domain.ErrNothingToShare):
		return http.StatusUnprocessableEntity, "Нечего отправлять"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "Сервис фото вернул ошибку: " + apiErr.Message
	case errors.Is(err, domain.ErrAPI), errors.Is(err, domain.ErrUnknownResponse),
		errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrInvalidImage):
		return http.StatusBadGateway, "Некорректный ответ сервиса фото"
	case errors.Is(err, domain.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Сервис фото недоступен"
	case errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable, "Сервис останавливается"
	default:
		return http.StatusInternalServerError, "Внутренняя ошибка сервера"
	}
}

func (h *PhotoHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

type searchRequest struct {
	Term string `json:"term"`
}

// Search — POST /searches, добавляет результаты поиска в начало истории
func (h *PhotoHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid search request body", "error", err)
		respondWithError(w, http.StatusBadRequest, "Некорректное тело запроса", h.logger)
		return
	}
	if strings.TrimSpace(req.Term) == "" {
		h.logger.Warn("missing required parameter", "param", "term")
		respondWithError(w, http.StatusBadRequest, "Не указан поисковый запрос", h.logger)
		return
	}

	group, err := h.session.Search(r.Context(), req.Term)
	if err != nil {
		h.respondWithDomainError(w, "search", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, group, h.logger)
}

// Snapshot — GET /searches, текущее состояние сетки.
// Необязательные width и height задают область для увеличенного фото.
func (h *PhotoHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	bounds, err := parseBounds(r)
	if err != nil {
		h.logger.Warn("invalid bounds", "error", err)
		respondWithError(w, http.StatusBadRequest, "Некорректные width/height", h.logger)
		return
	}

	view, err := h.session.Snapshot(r.Context(), bounds)
	if err != nil {
		h.respondWithDomainError(w, "snapshot", err)
		return
	}
	respondWithJSON(w, http.StatusOK, view, h.logger)
}

func parseBounds(r *http.Request) (*domain.Size, error) {
	q := r.URL.Query()
	ws, hs := q.Get("width"), q.Get("height")
	if ws == "" && hs == "" {
		return nil, nil
	}
	width, err := strconv.ParseFloat(ws, 64)
	if err != nil || width <= 0 {
		return nil, errors.New("width must be a positive number")
	}
	height, err := strconv.ParseFloat(hs, 64)
	if err != nil || height <= 0 {
		return nil, errors.New("height must be a positive number")
	}
	return &domain.Size{Width: width, Height: height}, nil
}

// DELETE /searches
func (h *PhotoHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Clear(r.Context()); err != nil {
		h.respondWithDomainError(w, "clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func indexPathFromURL(r *http.Request) (domain.IndexPath, error) {
	section, err := strconv.Atoi(chi.URLParam(r, "section"))
	if err != nil {
		return domain.IndexPath{}, err
	}
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		return domain.IndexPath{}, err
	}
	return domain.IndexPath{Section: section, Row: row}, nil
}

// Tap — POST /photos/{section}/{row}/tap
func (h *PhotoHandler) Tap(w http.ResponseWriter, r *http.Request) {
	ip, err := indexPathFromURL(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Некорректная позиция фото", h.logger)
		return
	}

	res, err := h.session.Tap(r.Context(), ip)
	if err != nil {
		h.respondWithDomainError(w, "tap", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res, h.logger)
}

// Image — GET /photos/{section}/{row}/image, байты картинки, которую показывает ячейка
func (h *PhotoHandler) Image(w http.ResponseWriter, r *http.Request) {
	ip, err := indexPathFromURL(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Некорректная позиция фото", h.logger)
		return
	}

	img, err := h.session.Image(r.Context(), ip)
	if err != nil {
		h.respondWithDomainError(w, "image", err)
		return
	}

	w.Header().Set("Content-Type", img.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img.Data); err != nil {
		h.logger.Error("failed to write image", "index", ip.String(), "error", err)
	}
}

type moveRequest struct {
	From *domain.IndexPath `json:"from"`
	To   *domain.IndexPath `json:"to"`
}

// Move — POST /photos/move
func (h *PhotoHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == nil || req.To == nil {
		respondWithError(w, http.StatusBadRequest, "Нужны позиции from и to", h.logger)
		return
	}

	if err := h.session.Move(r.Context(), *req.From, *req.To); err != nil {
		h.respondWithDomainError(w, "move", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share — POST /share, нажатие кнопки «поделиться»
func (h *PhotoHandler) Share(w http.ResponseWriter, r *http.Request) {
	out, err := h.session.Share(r.Context())
	if err != nil {
		h.respondWithDomainError(w, "share", err)
		return
	}
	respondWithJSON(w, http.StatusOK, out, h.logger)
}

// GetShare — GET /shares/{id}, квитанция отправки из журнала
func (h *PhotoHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Некорректный ID отправки", h.logger)
		return
	}

	share, err := h.shares.GetShare(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, "get_share", err)
		return
	}
	respondWithJSON(w, http.StatusOK, share, h.logger)
}

// ShareImage — GET /shares/{id}/items/{photoID}/{size}, отдаёт сохранённую
// миниатюру (m) или архивную большую версию (b) из хранилища
func (h *PhotoHandler) ShareImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Некорректный ID отправки", h.logger)
		return
	}
	photoID, size := chi.URLParam(r, "photoID"), chi.URLParam(r, "size")

	body, err := h.shares.OpenShareImage(r.Context(), id, photoID, size)
	if err != nil {
		h.respondWithDomainError(w, "share_image", err)
		return
	}
	defer body.Close()

	br := bufio.NewReader(body)
	head, _ := br.Peek(512)
	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, br); err != nil {
		h.logger.Error("failed to stream share image", "share_id", id, "photo_id", photoID, "size", size, "error", err)
	}
}
