package runner

import "errors"

// errUnsubscribeSendTimeout marks a single unsubscribe publish attempt that
// didn't complete within unsubscribeSendTimeout — the "send fails" case
// spec.md §4.5.c asks the runner to retry.
var errUnsubscribeSendTimeout = errors.New("unsubscribe channel send timed out")
