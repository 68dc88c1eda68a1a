package flickr

import (
	"encoding/json"

	"github.com/GoArmGo/PhotoSearch/internal/domain"
)

const (
	statOK   = "ok"
	statFail = "fail"
)

// failResponse — тело ответа при stat = "fail"
type failResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// photosContainer — объект photos из ответа flickr.photos.search.
// Остальные поля (page, pages, total) нам не нужны, а total Flickr иногда отдаёт строкой.
type photosContainer struct {
	Photo *[]json.RawMessage `json:"photo"`
}

// photoRecord — одна запись photos.photo[]. Поля-указатели позволяют отличить
// отсутствующее поле от нулевого значения.
type photoRecord struct {
	ID     *string `json:"id"`
	Farm   *int    `json:"farm"`
	Server *string `json:"server"`
	Secret *string `json:"secret"`
}

// toDomain возвращает false, если запись неполная
func (r photoRecord) toDomain() (*domain.Photo, bool) {
	if r.ID == nil || r.Farm == nil || r.Server == nil || r.Secret == nil {
		return nil, false
	}
	return &domain.Photo{
		ID:     *r.ID,
		Farm:   *r.Farm,
		Server: *r.Server,
		Secret: *r.Secret,
	}, true
}

// parseSearchResponse разбирает тело ответа поиска в список фото без миниатюр.
// Записи с отсутствующими полями или неверными типами пропускаются.
func parseSearchResponse(body []byte) ([]*domain.Photo, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domain.ErrUnknownResponse
	}

	var stat string
	rawStat, ok := envelope["stat"]
	if !ok || json.Unmarshal(rawStat, &stat) != nil {
		return nil, domain.ErrUnknownResponse
	}

	switch stat {
	case statOK:
	case statFail:
		var fail failResponse
		_ = json.Unmarshal(body, &fail)
		return nil, &domain.APIError{Code: fail.Code, Message: fail.Message}
	default:
		return nil, domain.ErrUnknownResponse
	}

	rawPhotos, ok := envelope["photos"]
	if !ok {
		return nil, domain.ErrUnknownResponse
	}
	var container photosContainer
	if err := json.Unmarshal(rawPhotos, &container); err != nil || container.Photo == nil {
		return nil, domain.ErrUnknownResponse
	}

	photos := make([]*domain.Photo, 0, len(*container.Photo))
	for _, raw := range *container.Photo {
		var rec photoRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if photo, ok := rec.toDomain(); ok {
			photos = append(photos, photo)
		}
	}
	return photos, nil
}
