package rowquant

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/rowquant/hfp8"
	"github.com/hupe1980/rowquant/resource"
	"github.com/hupe1980/rowquant/rowwise"
)

var (
	// ErrContractViolation matches every error caused by invalid arguments:
	// bad rank, shape, alignment, bit width, offsets, formats or options.
	// Such calls are rejected before any worker starts.
	ErrContractViolation = errors.New("contract violation")

	// ErrLaunch matches every error raised while starting or running the
	// workers of an accepted call: rejected resource acquisitions, canceled
	// contexts and aborted workers. The output is undefined.
	ErrLaunch = errors.New("launch failed")
)

// ErrInvalidRank indicates a tensor of unsupported rank.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidRank struct {
	Rank  int
	Want  string
	cause error
}

func (e *ErrInvalidRank) Error() string {
	return fmt.Sprintf("invalid rank %d: want %s", e.Rank, e.Want)
}

func (e *ErrInvalidRank) Unwrap() error { return e.cause }

// Is reports a match against ErrContractViolation.
func (e *ErrInvalidRank) Is(target error) bool { return target == ErrContractViolation }

// ErrShapeMismatch indicates a shape that does not describe its data.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrShapeMismatch struct {
	Shape []int
	Len   int
	cause error
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shape %v does not match %d elements", e.Shape, e.Len)
}

func (e *ErrShapeMismatch) Unwrap() error { return e.cause }

// Is reports a match against ErrContractViolation.
func (e *ErrShapeMismatch) Is(target error) bool { return target == ErrContractViolation }

// ErrColumnAlignment indicates a column count the format cannot lay out.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrColumnAlignment struct {
	Cols     int
	Multiple int
	cause    error
}

func (e *ErrColumnAlignment) Error() string {
	return fmt.Sprintf("%d columns is not a multiple of %d", e.Cols, e.Multiple)
}

func (e *ErrColumnAlignment) Unwrap() error { return e.cause }

// Is reports a match against ErrContractViolation.
func (e *ErrColumnAlignment) Is(target error) bool { return target == ErrContractViolation }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Already normalized.
	if errors.Is(err, ErrContractViolation) || errors.Is(err, ErrLaunch) {
		return err
	}

	// Execution failures.
	if errors.Is(err, rowwise.ErrLaunchFailed) ||
		errors.Is(err, resource.ErrMemoryLimitExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	// Argument normalization.
	for _, sentinel := range []error{
		rowwise.ErrInvalidShape,
		rowwise.ErrMisalignedColumns,
		rowwise.ErrBufferTooSmall,
		rowwise.ErrUnsupportedBits,
		rowwise.ErrInvalidOffsets,
		rowwise.ErrInvalidOptions,
		hfp8.ErrInvalidFormat,
	} {
		if errors.Is(err, sentinel) {
			return fmt.Errorf("%w: %w", ErrContractViolation, err)
		}
	}

	return err
}
