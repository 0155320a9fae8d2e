// Package apperr holds the error kinds shared by the pipeline, the worker and
// the HTTP handlers. Callers wrap them with fmt.Errorf("...: %w") and match
// with errors.Is.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExtraction means the source was unreachable, unparseable or empty.
	ErrExtraction = errors.New("extraction failed")
	// ErrUnsupportedType is returned for uploads that are not PDF.
	ErrUnsupportedType = errors.New("only PDF files are supported")
	// ErrEmptyContent is always reported together with ErrExtraction.
	ErrEmptyContent = errors.New("no text content found")

	ErrGeneration = errors.New("script generation failed")
	ErrSynthesis  = errors.New("audio synthesis failed")

	// ErrForbidden means the caller does not own the referenced job.
	ErrForbidden = errors.New("podcast belongs to another user")
	ErrNotFound  = errors.New("podcast not found")

	// ErrCanceled is returned when a context is done before an external call.
	// It is never turned into an error status.
	ErrCanceled = errors.New("canceled")

	// ErrConflict means the stored status changed under a stage update.
	ErrConflict = errors.New("podcast status changed concurrently")

	ErrIllegalTransition = errors.New("illegal status transition")
)

// IsStageFailure reports whether err is one of the stage failure kinds that
// must be recorded on the job as an error status.
func IsStageFailure(err error) bool {
	return errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrGeneration) ||
		errors.Is(err, ErrSynthesis)
}

// Check returns an error wrapping ErrCanceled when ctx is already done.
// Every external call checks it before starting.
func Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	return nil
}

// Canceled rewrites err as ErrCanceled when it was caused by ctx ending,
// and returns it unchanged otherwise.
func Canceled(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	return err
}
