package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLoadFailure         = errors.New("load failure")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInferenceFailure    = errors.New("inference failure")
	ErrBusy                = errors.New("worker busy")
	ErrValidation          = errors.New("validation error")
)

// Wire kinds carried by error events.
const (
	KindLoad                = "load"
	KindUnsupportedLanguage = "unsupported_language"
	KindInference           = "inference"
	KindBusy                = "busy"
	KindValidation          = "validation"
	KindInternal            = "internal"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInferenceFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classified reports whether err already carries one of the sentinel markers.
func Classified(err error) bool {
	return err != nil && Kind(err) != KindInternal
}

// Kind maps an error to the wire kind reported to the control side.
// Unsupported language is checked before load and inference failures because
// engines may nest it inside either.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedLanguage):
		return KindUnsupportedLanguage
	case errors.Is(err, ErrLoadFailure):
		return KindLoad
	case errors.Is(err, ErrInferenceFailure):
		return KindInference
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
