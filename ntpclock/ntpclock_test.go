package ntpclock

import (
	"fmt"
	"testing"
	"time"

	"github.com/beevik/ntp"
	qt "github.com/frankban/quicktest"
	"gopkg.in/retry.v1"
)

func TestNowAppliesOffset(t *testing.T) {
	c := qt.New(t)
	c.Patch(&ntpQuery, func(host string, opt ntp.QueryOptions) (*ntp.Response, error) {
		c.Check(host, qt.Equals, "ntp.example.com")
		return &ntp.Response{
			ClockOffset: time.Hour,
		}, nil
	})
	clk, err := New("ntp.example.com")
	c.Assert(err, qt.IsNil)
	got := clk.Now().Sub(time.Now().Add(time.Hour))
	if got < 0 {
		got = -got
	}
	c.Assert(got < time.Second, qt.IsTrue)
}

func TestDefaultHost(t *testing.T) {
	c := qt.New(t)
	var gotHost string
	c.Patch(&ntpQuery, func(host string, opt ntp.QueryOptions) (*ntp.Response, error) {
		gotHost = host
		return &ntp.Response{}, nil
	})
	_, err := New("")
	c.Assert(err, qt.IsNil)
	c.Assert(gotHost, qt.Equals, DefaultHost)
}

func TestQueryFailure(t *testing.T) {
	c := qt.New(t)
	c.Patch(&retryStrategy, retry.LimitCount(2, retry.Regular{Min: 2}))
	calls := 0
	c.Patch(&ntpQuery, func(host string, opt ntp.QueryOptions) (*ntp.Response, error) {
		calls++
		return nil, fmt.Errorf("no route to host")
	})
	_, err := New("ntp.example.com")
	c.Assert(err, qt.ErrorMatches, `cannot get time from NTP server "ntp.example.com": no route to host`)
	c.Assert(calls, qt.Equals, 2)
}
