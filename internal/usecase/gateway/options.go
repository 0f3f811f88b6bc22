package gateway

import "time"

// CallOption tweaks one Complete call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
	stream  bool
	retries int
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithStream selects streaming or single-response mode.
func WithStream(stream bool) CallOption {
	return func(o *callOptions) { o.stream = stream }
}

// WithRetries overrides the number of retries after the first attempt.
func WithRetries(n int) CallOption {
	return func(o *callOptions) {
		if n >= 0 {
			o.retries = n
		}
	}
}
