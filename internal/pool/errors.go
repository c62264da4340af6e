package pool

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoWorkerAvailable is returned when every permit of the pool is held.
	ErrNoWorkerAvailable = errors.New("no worker available")

	// ErrNoLicensedWorker is returned when permits are free but no idle worker
	// holds the required licenses.
	ErrNoLicensedWorker = errors.New("no licensed worker")

	// ErrInsufficientMinimumWorkers is returned when fewer permits than the
	// task's minimum headcount could be reserved.
	ErrInsufficientMinimumWorkers = errors.New("insufficient minimum workers")

	// ErrNoWorkerOnShift is returned when licensed workers are idle but none of
	// them is on shift at the pool's clock.
	ErrNoWorkerOnShift = errors.New("no worker on shift")

	// ErrNotAcquired is returned when releasing a worker this pool did not hand out.
	ErrNotAcquired = errors.New("worker was not acquired from this pool")

	// ErrInvalidHeadcount is returned for min/max pairs outside 1 <= min <= max.
	ErrInvalidHeadcount = errors.New("invalid headcount")
)

// FailureKind classifies a failed allocation attempt.
type FailureKind int

const (
	NoWorkerAvailable FailureKind = iota
	NoLicensedWorker
	InsufficientMinimumWorkers
	NoWorkerOnShift
)

func (k FailureKind) String() string {
	switch k {
	case NoWorkerAvailable:
		return "NoWorkerAvailable"
	case NoLicensedWorker:
		return "NoLicensedWorker"
	case InsufficientMinimumWorkers:
		return "InsufficientMinimumWorkers"
	case NoWorkerOnShift:
		return "NoWorkerOnShift"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// AllocationError describes why a task could not be staffed.
// It is recoverable: the pool is left exactly as it was before the call.
type AllocationError struct {
	Kind     FailureKind
	TaskID   string
	Required int
	Acquired int
	Licenses []string
}

func (e *AllocationError) Error() string {
	msg := fmt.Sprintf("task %s: %s (required %d, acquired %d)", e.TaskID, e.Kind, e.Required, e.Acquired)
	if len(e.Licenses) > 0 {
		msg += fmt.Sprintf(" licenses [%s]", strings.Join(e.Licenses, ","))
	}
	return msg
}

// Is lets errors.Is match the package sentinels.
func (e *AllocationError) Is(target error) bool {
	switch e.Kind {
	case NoWorkerAvailable:
		return target == ErrNoWorkerAvailable
	case NoLicensedWorker:
		return target == ErrNoLicensedWorker
	case InsufficientMinimumWorkers:
		return target == ErrInsufficientMinimumWorkers
	case NoWorkerOnShift:
		return target == ErrNoWorkerOnShift
	}
	return false
}
