package domain

import (
	"fmt"
	"net/url"
)

const (
	// SizeThumbnail — суффикс размера для миниатюры (240px по длинной стороне)
	SizeThumbnail = "m"
	// SizeLarge — суффикс размера для увеличенного фото (1024px)
	SizeLarge = "b"

	staticHost = "staticflickr.com"
)

// Photo представляет одно фото из результата поиска Flickr.
// ID, Farm, Server и Secret не меняются после создания,
// Thumbnail заполняется клиентом поиска, LargeImage — лениво, по запросу.
type Photo struct {
	ID         string `json:"id"`
	Farm       int    `json:"farm"`
	Server     string `json:"server"`
	Secret     string `json:"secret"`
	Thumbnail  *Image `json:"-"`
	LargeImage *Image `json:"-"`
}

// PhotoRef — неизменяемая копия идентифицирующих полей фото,
// её можно безопасно передавать в горутины
type PhotoRef struct {
	ID     string `json:"id"`
	Farm   int    `json:"farm"`
	Server string `json:"server"`
	Secret string `json:"secret"`
}

// Equal сравнивает фото по ID, остальные поля не учитываются
func (p *Photo) Equal(other *Photo) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ID == other.ID
}

func (p *Photo) Ref() PhotoRef {
	return PhotoRef{ID: p.ID, Farm: p.Farm, Server: p.Server, Secret: p.Secret}
}

// ImageURL строит URL картинки нужного размера. Пустой size означает миниатюру.
func (p *Photo) ImageURL(size string) (string, error) {
	return p.Ref().ImageURL(size)
}

// ImageURL строит URL вида https://farm<farm>.staticflickr.com/<server>/<id>_<secret>_<size>.jpg
func (r PhotoRef) ImageURL(size string) (string, error) {
	if size == "" {
		size = SizeThumbnail
	}
	raw := fmt.Sprintf("https://farm%d.%s/%s/%s_%s_%s.jpg", r.Farm, staticHost, r.Server, r.ID, r.Secret, size)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// SetLargeImage сохраняет большую версию фото.
// Возвращает false, если картинка уже была установлена ранее.
func (p *Photo) SetLargeImage(img *Image) bool {
	if img == nil || p.LargeImage != nil {
		return false
	}
	p.LargeImage = img
	return true
}

// Size — размер ячейки в пикселях
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SizeToFillWidth подбирает размер увеличенной ячейки: сохраняет пропорции миниатюры,
// заполняет ширину bounds и ограничивает высоту.
func (p *Photo) SizeToFillWidth(bounds Size) Size {
	if p.Thumbnail == nil || p.Thumbnail.Width == 0 || p.Thumbnail.Height == 0 {
		return bounds
	}

	aspectRatio := float64(p.Thumbnail.Width) / float64(p.Thumbnail.Height)

	result := bounds
	result.Height = result.Width / aspectRatio

	if result.Height > bounds.Height {
		result.Height = bounds.Height
		result.Width = bounds.Height * aspectRatio
	}
	return result
}

// PhotoSearchResults — группа фото, найденных по одному поисковому запросу.
// SearchTerm не меняется, порядок Results задаёт порядок отображения.
type PhotoSearchResults struct {
	SearchTerm string   `json:"search_term"`
	Results    []*Photo `json:"results"`
}

// IndexPath — координата ячейки в сетке: секция (группа) и строка (фото в группе)
type IndexPath struct {
	Section int `json:"section"`
	Row     int `json:"row"`
}

func (ip IndexPath) String() string {
	return fmt.Sprintf("%d/%d", ip.Section, ip.Row)
}
