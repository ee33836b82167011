// Package classify maps raw failures from collaborators into a fixed set of
// categories and recovery strategies. Classification is heuristic string
// matching on the error text, the same way upstream services report failures
// inconsistently; it is deterministic given the same error and offline flag.
package classify

import (
	"fmt"
	"strings"
)

// Category is the failure category of a classified error.
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryPermission Category = "permission"
	CategoryConflict   Category = "conflict"
	CategoryValidation Category = "validation"
	CategoryUnknown    Category = "unknown"
)

// RecoveryKind determines what a caller should do with a classified error.
type RecoveryKind string

const (
	RecoveryRetry  RecoveryKind = "retry"  // bounded automatic retry
	RecoveryManual RecoveryKind = "manual" // surface to the user, no retry
	RecoveryReload RecoveryKind = "reload" // full refetch, discard optimistic state
)

// Strategy describes how to recover from a classified error.
type Strategy struct {
	Kind        RecoveryKind
	CanRetry    bool
	MaxAttempts int
}

// Error is a classified failure. It wraps the original error.
type Error struct {
	Category    Category
	UserMessage string
	Strategy    Strategy
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return string(e.Category)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether automatic retry is worth attempting.
func (e *Error) Retryable() bool {
	return e.Strategy.CanRetry
}

var strategies = map[Category]Strategy{
	CategoryNetwork:    {Kind: RecoveryRetry, CanRetry: true, MaxAttempts: 3},
	CategoryPermission: {Kind: RecoveryManual, CanRetry: false},
	CategoryConflict:   {Kind: RecoveryReload, CanRetry: false},
	CategoryValidation: {Kind: RecoveryManual, CanRetry: false},
	CategoryUnknown:    {Kind: RecoveryRetry, CanRetry: true, MaxAttempts: 1},
}

var messages = map[Category]string{
	CategoryNetwork:    "Connection problem. Check your network and try again.",
	CategoryPermission: "You don't have permission to do that. Sign in again or contact support.",
	CategoryConflict:   "This order changed while you were working. Refreshing the queue.",
	CategoryValidation: "The request was rejected. Check the order details.",
	CategoryUnknown:    "Something went wrong. Please try again.",
}

// Classify maps an arbitrary error into a category and recovery strategy.
// The offline flag is checked first and forces a network classification
// regardless of message content. Detection priority: network, permission,
// conflict, validation, unknown.
func Classify(err error, offline bool) *Error {
	if err == nil {
		return nil
	}

	// Already classified: pass through untouched so wrapping layers
	// cannot reclassify.
	if ce, ok := err.(*Error); ok {
		return ce
	}

	category := CategoryUnknown
	switch {
	case offline, isNetwork(err):
		category = CategoryNetwork
	case isPermission(err):
		category = CategoryPermission
	case isConflict(err):
		category = CategoryConflict
	case isValidation(err):
		category = CategoryValidation
	}

	return &Error{
		Category:    category,
		UserMessage: messages[category],
		Strategy:    strategies[category],
		Err:         err,
	}
}

func isNetwork(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "network") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "timed out") ||
		strings.Contains(s, "offline") ||
		strings.Contains(s, "fetch failed") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "eof") ||
		contains5xx(s)
}

func isPermission(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "401") ||
		strings.Contains(s, "403") ||
		strings.Contains(s, "unauthorized") ||
		strings.Contains(s, "forbidden") ||
		strings.Contains(s, "permission")
}

func isConflict(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "409") ||
		strings.Contains(s, "conflict") ||
		strings.Contains(s, "stale") ||
		strings.Contains(s, "version mismatch")
}

func isValidation(err error) bool {
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "validation") ||
		strings.Contains(s, "invalid") ||
		strings.Contains(s, "bad request") {
		return true
	}
	// Remaining 4xx codes not caught above.
	for _, code := range []string{"400", "404", "405", "406", "410", "412", "422", "429"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return false
}

func contains5xx(s string) bool {
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return false
}
