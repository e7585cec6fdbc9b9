package compose

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound is returned when the template file does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrRender is returned when Markdown or stylesheet rendering fails.
	ErrRender = errors.New("render failed")
	// ErrUnknownStyle is returned for a highlighting style that is not registered.
	ErrUnknownStyle = errors.New("unknown highlighting style")
)

// TemplateError reports a template that could not be used, with the path
// that was actually tried.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}
