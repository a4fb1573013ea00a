package apierror

import "errors"

var ErrRetriesExhausted = errors.New("maximum retry attempts reached")

// Retrier counts user-triggered retries of one operation. There is no
// backoff; the caller decides when to try again.
type Retrier struct {
	max      int
	attempts int
	last     *Error
}

func NewRetrier(max int) *Retrier {
	return &Retrier{max: max}
}

// Fail records the error of the first attempt or a retry.
func (r *Retrier) Fail(err error) *Error {
	r.last = Normalize(err)
	return r.last
}

// Retry runs fn if attempts remain. Success clears the counter.
func (r *Retrier) Retry(fn func() error) error {
	if !r.CanRetry() {
		return ErrRetriesExhausted
	}
	r.attempts++
	if err := fn(); err != nil {
		return r.Fail(err)
	}
	r.Reset()
	return nil
}

func (r *Retrier) CanRetry() bool { return r.attempts < r.max }

func (r *Retrier) Attempts() int { return r.attempts }

func (r *Retrier) Remaining() int { return r.max - r.attempts }

// Last is the most recent failure, or nil.
func (r *Retrier) Last() *Error { return r.last }

func (r *Retrier) Reset() {
	r.attempts = 0
	r.last = nil
}
