package ai

import (
	"errors"
	"fmt"
	"time"
)

// Category classifies a backend failure for the invocation pipeline.
type Category string

const (
	// CategoryTransient covers timeouts and connectivity blips; retried.
	CategoryTransient Category = "transient"
	// CategoryQuota covers provider-side rate limiting and exhausted quota;
	// retried, honoring a server wait hint when one was supplied.
	CategoryQuota Category = "quota"
	// CategoryAuth covers bad or revoked credentials; never retried.
	CategoryAuth Category = "auth"
	// CategoryInvalid covers malformed or rejected requests; never retried.
	CategoryInvalid Category = "invalid"
	// CategoryUnknown is everything the adapter could not classify.
	CategoryUnknown Category = "unknown"
)

// Fault normalizes a provider failure. Adapters return a Fault for every
// failure path so no raw transport error reaches the pipeline.
type Fault struct {
	Provider string
	Category Category
	Hint     time.Duration // server-supplied wait hint, zero when absent
	Err      error
}

// Error implements the error interface
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s backend %s fault: %v", f.Provider, f.Category, f.Err)
	}
	return fmt.Sprintf("%s backend %s fault", f.Provider, f.Category)
}

// Unwrap exposes the underlying cause
func (f *Fault) Unwrap() error {
	return f.Err
}

// RetryAfter reports the provider's wait hint, if one was supplied
func (f *Fault) RetryAfter() (time.Duration, bool) {
	return f.Hint, f.Hint > 0
}

func newFault(provider string, category Category, err error) *Fault {
	return &Fault{Provider: provider, Category: category, Err: err}
}

// IsRetryable reports whether the pipeline may retry the failure
func IsRetryable(err error) bool {
	switch CategoryOf(err) {
	case CategoryTransient, CategoryQuota:
		return true
	}
	return false
}

// CategoryOf extracts the fault category, defaulting to unknown
func CategoryOf(err error) Category {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault.Category
	}
	return CategoryUnknown
}
