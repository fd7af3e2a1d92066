package dispatch

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrJobNotFound struct {
	error
}

func NewErrJobNotFound(id uuid.UUID) *ErrJobNotFound {
	return &ErrJobNotFound{fmt.Errorf("job %s not found", id)}
}

type ErrAppraiserNotFound struct {
	error
}

func NewErrAppraiserNotFound(id uuid.UUID) *ErrAppraiserNotFound {
	return &ErrAppraiserNotFound{fmt.Errorf("appraiser %s not found", id)}
}

type ErrAppraiserNotVerified struct {
	error
}

func NewErrAppraiserNotVerified(id uuid.UUID) *ErrAppraiserNotVerified {
	return &ErrAppraiserNotVerified{fmt.Errorf("appraiser %s is not verified", id)}
}

type ErrInvalidTransition struct {
	error
}

func NewErrInvalidTransition(id uuid.UUID, from, to string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("job %s cannot transition from %s to %s", id, from, to)}
}

// ErrStaleStatus signals a lost race on a conditional update. The caller may
// re-fetch the job and retry once.
type ErrStaleStatus struct {
	error
}

func NewErrStaleStatus(id uuid.UUID) *ErrStaleStatus {
	return &ErrStaleStatus{fmt.Errorf("job %s status changed concurrently", id)}
}
