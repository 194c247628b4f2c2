package watcher

import "errors"

// Sentinel errors mirroring the Rust original's error enums
// (original_source/src/errors/watcher_errors/*.rs), flattened to plain
// errors per Go idiom rather than a type per Rust enum — see SPEC_FULL.md
// §10 on error handling.
var (
	// ErrPathTraversal means an event path had no ancestor equal to the
	// watched root (spec.md §3 HomeDir, §8 I4).
	ErrPathTraversal = errors.New("path has no ancestor equal to the watch root")

	// ErrUnsubscribeMiss means Registry.Remove was asked to remove a hash
	// that was not present.
	ErrUnsubscribeMiss = errors.New("path not found in subscription registry")

	// ErrTooManyConsecutiveFailures is returned by a control loop once it
	// has seen more than 5 consecutive receive errors, escalating a local
	// SubscriptionError to fatal per spec.md §7.
	ErrTooManyConsecutiveFailures = errors.New("exceeded consecutive receive error limit")

	// ErrUnsubscribeExhausted is returned by the Script Runner when it
	// could not publish an unsubscribe message after 5 retries.
	ErrUnsubscribeExhausted = errors.New("exhausted unsubscribe retries")
)

// maxConsecutiveFailures is the escalation threshold from spec.md §4.4 /
// §4.4.1 / §7: more than this many consecutive receive errors in a loop
// turns a local error fatal.
const maxConsecutiveFailures = 5
