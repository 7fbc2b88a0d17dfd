package dispatch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoFile is returned by UploadFile when no file path was given
var ErrNoFile = errors.New("no file selected")

// HTTPError is a non-2xx answer from the research server
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}
