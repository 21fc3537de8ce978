package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtraction marks metadata retrieval failures.
	ErrExtraction = errors.New("extraction error")
	// ErrDownload marks media retrieval failures.
	ErrDownload = errors.New("download error")
	// ErrRender marks muxing/transcoding failures.
	ErrRender = errors.New("render error")
	// ErrRouting marks requests no backend variant can serve. Treated as a
	// defect: valid input never produces it.
	ErrRouting = errors.New("routing error")
	// ErrConnection marks observer connections that closed during delivery.
	ErrConnection = errors.New("connection error")
	// ErrCapacity marks connections rejected at the connection limit.
	ErrCapacity = errors.New("capacity error")
	// ErrExternalTool marks raw failures from invoked binaries.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks malformed requests caught before execution.
	ErrValidation = errors.New("validation error")
)

// Failure kinds reported on results and error events.
const (
	KindExtraction = "extraction"
	KindDownload   = "download"
	KindRender     = "render"
	KindRouting    = "routing"
	KindConnection = "connection"
	KindCapacity   = "capacity"
	KindValidation = "validation"
	KindCancelled  = "cancelled"
	KindInternal   = "internal"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the coarse failure kind recorded on results.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrDownload):
		return KindDownload
	case errors.Is(err, ErrRender):
		return KindRender
	case errors.Is(err, ErrRouting):
		return KindRouting
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrCapacity):
		return KindCapacity
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
