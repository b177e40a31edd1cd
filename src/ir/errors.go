package ir

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// Error classes reported by validation and lowering. Every error returned by the backend wraps exactly one of
// them, and each of them wraps the matching errdefs class.
var (
	// ErrUnsupportedWidth is returned for widths other than 8, 16, 32, 64 and 128 bits.
	ErrUnsupportedWidth = fmt.Errorf("unsupported width: %w", errdefs.ErrInvalidArgument)

	// ErrUnsupportedOperation is returned when no lowering rule covers an operation, width and feature combination.
	ErrUnsupportedOperation = fmt.Errorf("unsupported operation: %w", errdefs.ErrNotImplemented)

	// ErrInternalConsistency marks a defect in the lowering rules themselves. Compilation of the unit is aborted.
	ErrInternalConsistency = fmt.Errorf("internal consistency failure: %w", errdefs.ErrInternal)
)
