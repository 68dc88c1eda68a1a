package domain

import "errors"

var (
	ErrInvalidQuery    = errors.New("invalid query")
	ErrTransport       = errors.New("transport error")
	ErrAPI             = errors.New("api reported failure")
	ErrUnknownResponse = errors.New("unknown api response")
	ErrNoData          = errors.New("no data")
	ErrInvalidURL      = errors.New("invalid url")
	ErrInvalidImage    = errors.New("invalid image data")

	ErrInvalidIndex    = errors.New("invalid index path")
	ErrShareInProgress = errors.New("share already in progress")
	ErrNothingToShare  = errors.New("nothing to share")
	ErrShareNotFound   = errors.New("share not found")
	ErrInvalidSize     = errors.New("unknown image size")
)

// APIError описывает отказ, который вернул сам Flickr (stat = "fail").
// errors.Is(err, ErrAPI) для него возвращает true.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return ErrAPI.Error()
	}
	return ErrAPI.Error() + ": " + e.Message
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}
