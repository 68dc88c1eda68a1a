package domain

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Image хранит байты картинки вместе с форматом и размерами
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// DecodeImage полностью декодирует байты и проверяет, что это картинка известного формата.
// Одного корректного заголовка недостаточно: повреждённые пиксельные данные дают ErrInvalidImage.
func DecodeImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrNoData
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := decoded.Bounds()
	return &Image{
		Data:   data,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// ContentType возвращает MIME-тип картинки
func (img *Image) ContentType() string {
	switch img.Format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
