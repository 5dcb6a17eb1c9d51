// Package ntpclock provides an NTP-backed source of wall-clock time
// for timestamping acquisition logs on hosts whose system clock
// can't be relied upon to be NTP-synchronized.
package ntpclock

import (
	"log"
	"time"

	"github.com/beevik/ntp"
	errgo "gopkg.in/errgo.v1"
	"gopkg.in/retry.v1"
)

const DefaultHost = "pool.ntp.org"

// ntpQuery is used to query the current NTP time.
// It's overridden for tests.
var ntpQuery = ntp.QueryWithOptions

var retryStrategy = retry.LimitTime(30*time.Second, retry.Exponential{
	Initial:  time.Second,
	Factor:   1.5,
	MaxDelay: 8 * time.Second,
})

// Clock yields absolute time readings adjusted by the offset between
// the local clock and an NTP server, measured once at creation time.
// An acquisition run is short relative to local clock drift, so a
// single offset measurement is enough; elapsed-time arithmetic should
// keep using the monotonic system clock regardless.
type Clock struct {
	offset time.Duration
}

// New measures the local clock offset against the given NTP host
// (DefaultHost if empty) and returns a Clock applying it. Transient
// query failures are retried for up to 30 seconds.
func New(host string) (*Clock, error) {
	if host == "" {
		host = DefaultHost
	}
	var lastErr error
	for a := retry.Start(retryStrategy, nil); a.Next(); {
		resp, err := ntpQuery(host, ntp.QueryOptions{
			Timeout: 10 * time.Second,
		})
		if err != nil {
			lastErr = err
			log.Printf("cannot query NTP server %q: %v", host, err)
			continue
		}
		return &Clock{
			offset: resp.ClockOffset,
		}, nil
	}
	return nil, errgo.Notef(lastErr, "cannot get time from NTP server %q", host)
}

// Now returns the NTP-adjusted current time. The returned time
// carries no monotonic clock reading.
func (c *Clock) Now() time.Time {
	return time.Now().Add(c.offset).Round(0)
}
