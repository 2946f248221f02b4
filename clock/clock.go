package clock

import "time"

/* Clock abstracts wall time so the delivery worker and the sweepers can
 * run against a virtual clock in tests instead of real timers.
 */

// Clock provides the current time and interval tickers
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the workers need
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall-clock implementation
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }
