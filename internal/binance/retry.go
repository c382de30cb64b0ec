package binance

import (
	"net/http"
	"time"
)

// RetryPolicy controls how transient upstream failures are retried.
type RetryPolicy struct {
	MaxAttempts     int           // total attempts including the first
	BaseDelay       time.Duration // delay before the second attempt
	MaxDelay        time.Duration // cap for the exponential delay
	Multiplier      float64       // delay growth per attempt
	RetryableStatus map[int]struct{}
}

// DefaultRetryPolicy returns the policy used by the scanner.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   600 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		RetryableStatus: StatusSet(
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		),
	}
}

// StatusSet builds a retryable status set.
func StatusSet(codes ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// IsRetryable reports whether a status code should be retried.
func (p RetryPolicy) IsRetryable(status int) bool {
	_, ok := p.RetryableStatus[status]
	return ok
}

// attempts returns the number of attempts, at least one.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// next returns the delay following d.
func (p RetryPolicy) next(d time.Duration) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d = time.Duration(float64(d) * mult)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
