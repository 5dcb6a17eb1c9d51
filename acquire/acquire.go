// Package acquire implements the k2000 acquisition loop: it polls the
// instrument at a fixed cadence and appends the readings to a sample log,
// periodically flushing the log and refreshing an optional plot.
package acquire

import (
	"fmt"
	"io"
	"log"
	"time"

	errgo "gopkg.in/errgo.v1"

	"github.com/rogpeppe/k2000/meter"
	"github.com/rogpeppe/k2000/samplelog"
)

// overflowText replaces the instrument's overflow sentinel in all
// output, so that log files never contain the raw +9.9E37 literal.
const overflowText = "OVERFLOW"

const keyQuit = 'q'
const keyEsc = 27

// Meter is the interface the loop needs from the instrument: trigger
// one measurement and return its text.
type Meter interface {
	Read() (string, error)
}

// Refresher is implemented by the optional plot sink.
type Refresher interface {
	Refresh() error
}

// KeyPoller reports a pending key press without blocking.
type KeyPoller interface {
	Poll() (byte, bool)
}

// DelayDuration converts an inter-sample delay given in tenths of a
// second (the unit used on the command line) to a duration.
func DelayDuration(tenths int) time.Duration {
	return time.Duration(tenths) * 100 * time.Millisecond
}

// Params holds the parameters for Run.
type Params struct {
	// Meter holds the instrument to poll.
	Meter Meter
	// Log holds the sample log to append to.
	Log *samplelog.Writer
	// Plot, if non-nil, is refreshed every FlushEvery samples.
	Plot Refresher
	// Keys, if non-nil, is polled once per iteration; 'q' or ESC
	// stops the acquisition.
	Keys KeyPoller
	// Delay holds the pause at the top of every iteration.
	// Zero means no pause.
	Delay time.Duration
	// TimeLimit stops the acquisition once the elapsed time exceeds
	// it. Zero means no limit.
	TimeLimit time.Duration
	// FlushEvery holds the number of samples between forced log
	// flushes (and plot refreshes). It must be positive.
	FlushEvery int
	// Now is used to query the current time. If it's nil, time.Now
	// will be used.
	Now func() time.Time
	// Sleep is used to implement Delay. If it's nil, time.Sleep
	// will be used.
	Sleep func(time.Duration)
	// Progress, if non-nil, receives a one-line running status per
	// sample.
	Progress io.Writer
}

// Run polls the meter until a stop condition is reached: the time
// limit expires, the user presses 'q' or ESC, or the meter read fails.
// A failed read is logged and treated as a stop condition rather than
// an error, so that the caller proceeds through its normal shutdown
// and the data gathered so far stays intact. Run returns an error only
// when the sample log itself cannot be written.
func Run(p Params) error {
	if p.FlushEvery <= 0 {
		return errgo.Newf("flush interval must be positive")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	if p.Progress == nil {
		p.Progress = io.Discard
	}
	start := p.Now()
	count := 0
	for {
		if p.Delay > 0 {
			p.Sleep(p.Delay)
		}
		reading, err := p.Meter.Read()
		if err != nil {
			log.Printf("error reading instrument: %v", err)
			return nil
		}
		if reading == meter.Overflow {
			reading = overflowText
		}
		elapsed := p.Now().Sub(start)
		minutes := elapsed.Minutes()
		count++
		fmt.Fprintf(p.Progress, "%10d %10.2f min    %s\r", count, minutes, reading)
		if err := p.Log.WriteSample(samplelog.Sample{
			Minutes: minutes,
			Reading: reading,
		}); err != nil {
			return errgo.Notef(err, "cannot write sample to log")
		}
		stop := false
		if p.TimeLimit > 0 && elapsed > p.TimeLimit {
			stop = true
		}
		if count%p.FlushEvery == 0 {
			if err := p.Log.Sync(); err != nil {
				return errgo.Notef(err, "cannot flush sample log")
			}
			if p.Plot != nil {
				if err := p.Plot.Refresh(); err != nil {
					log.Printf("cannot refresh plot: %v", err)
				}
			}
		}
		if p.Keys != nil {
			if key, ok := p.Keys.Poll(); ok && (key == keyQuit || key == keyEsc) {
				stop = true
			}
		}
		if stop {
			return nil
		}
	}
}
