// Package timer provides the microsecond delay primitive used to pace waveforms.
package timer

import (
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Delayer blocks the caller for a number of microseconds
type Delayer interface {
	Delay(us uint16)
}

// BusyWait spins on the monotonic clock.  It holds the calling goroutine's
// thread for the whole delay and has the best resolution.
type BusyWait struct{}

// Delay spins for us microseconds
func (BusyWait) Delay(us uint16) {
	if us == 0 {
		return
	}
	d := time.Duration(us) * time.Microsecond
	start := time.Now()
	for time.Since(start) < d {
	}
}

// Sleep parks the goroutine in the runtime timer.  Resolution is on the order
// of tens of microseconds on linux and much worse elsewhere.
type Sleep struct{}

// Delay sleeps for us microseconds
func (Sleep) Delay(us uint16) {
	if us == 0 {
		return
	}
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// Yield is a busy wait that gives the scheduler a chance between clock reads
type Yield struct{}

// Delay spins for us microseconds, yielding between checks
func (Yield) Delay(us uint16) {
	if us == 0 {
		return
	}
	d := time.Duration(us) * time.Microsecond
	start := time.Now()
	for time.Since(start) < d {
		runtime.Gosched()
	}
}

// Parse returns the Delayer named by s: "busy", "sleep" or "yield"
func Parse(s string) (Delayer, error) {
	switch strings.ToLower(s) {
	case "", "busy", "busywait":
		return BusyWait{}, nil
	case "sleep":
		return Sleep{}, nil
	case "yield":
		return Yield{}, nil
	default:
		return nil, errors.Errorf("timer: unknown delay kind %q", s)
	}
}
