package validation

import (
	"errors"
	"strings"
)

var (
	ErrInvalidImageType = errors.New("invalid image type")
	ErrImageTooLarge    = errors.New("image size exceeds 10MB limit")
)

// Errors collects every validation failure of a request so the client
// gets an itemized list instead of the first problem found.
type Errors struct {
	Items []string
}

func (e *Errors) Add(msg string) {
	e.Items = append(e.Items, msg)
}

func (e *Errors) Empty() bool {
	return len(e.Items) == 0
}

func (e *Errors) Error() string {
	return strings.Join(e.Items, "; ")
}
