package meter

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

type fakeConn struct {
	cmds    []string
	queries map[string]string
	err     error
}

func (c *fakeConn) Command(format string, a ...interface{}) error {
	if c.err != nil {
		return c.err
	}
	c.cmds = append(c.cmds, fmt.Sprintf(format, a...))
	return nil
}

func (c *fakeConn) Query(cmd string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	r, ok := c.queries[cmd]
	if !ok {
		return "", fmt.Errorf("unexpected query %q", cmd)
	}
	return r, nil
}

var modeTests = []struct {
	mode  Mode
	token string
	label string
}{
	{VoltsDC, "volt:dc", "V"},
	{CurrentDC, "curr:dc", "mA"},
	{Resistance, "res", "Ohm"},
	{Temperature, "temp", "degrees C"},
	{Continuity, "cont", "Ohm"},
	{Diode, "diod", "mV"},
}

func TestModeTables(t *testing.T) {
	c := qt.New(t)
	for _, test := range modeTests {
		c.Assert(test.mode.Valid(), qt.IsTrue)
		c.Assert(test.mode.Token(), qt.Equals, test.token)
		c.Assert(test.mode.Label(), qt.Equals, test.label)
	}
	c.Assert(Mode(-1).Valid(), qt.IsFalse)
	c.Assert(Mode(6).Valid(), qt.IsFalse)
}

func TestSessionHandshake(t *testing.T) {
	c := qt.New(t)
	conn := &fakeConn{}
	_, err := NewSession(conn)
	c.Assert(err, qt.IsNil)
	c.Assert(conn.cmds, qt.DeepEquals, []string{
		"*rst;*cls;:form:elem read,unit;*opc",
	})
}

func TestSetFunction(t *testing.T) {
	c := qt.New(t)
	for _, test := range modeTests {
		conn := &fakeConn{}
		s, err := NewSession(conn)
		c.Assert(err, qt.IsNil)
		err = s.SetFunction(test.mode)
		c.Assert(err, qt.IsNil)
		c.Assert(conn.cmds[len(conn.cmds)-1], qt.Equals, fmt.Sprintf(":func '%s';:init; *opc", test.token))
	}
}

func TestSetFunctionInvalidMode(t *testing.T) {
	c := qt.New(t)
	s, err := NewSession(&fakeConn{})
	c.Assert(err, qt.IsNil)
	err = s.SetFunction(Mode(6))
	c.Assert(err, qt.ErrorMatches, "invalid measurement mode 6")
}

func TestIdentifyStripsTerminator(t *testing.T) {
	c := qt.New(t)
	conn := &fakeConn{
		queries: map[string]string{
			"*idn?": "KEITHLEY INSTRUMENTS INC.,MODEL 2000,1234567,A20\r\n",
		},
	}
	s, err := NewSession(conn)
	c.Assert(err, qt.IsNil)
	ident, err := s.Identify()
	c.Assert(err, qt.IsNil)
	c.Assert(ident, qt.Equals, "KEITHLEY INSTRUMENTS INC.,MODEL 2000,1234567,A20")
}

func TestIdentifyTruncatesLongIdentity(t *testing.T) {
	c := qt.New(t)
	long := ""
	for i := 0; i < 20; i++ {
		long += "0123456789"
	}
	conn := &fakeConn{
		queries: map[string]string{
			"*idn?": long + "\n",
		},
	}
	s, err := NewSession(conn)
	c.Assert(err, qt.IsNil)
	ident, err := s.Identify()
	c.Assert(err, qt.IsNil)
	c.Assert(len(ident), qt.Equals, 127)
	c.Assert(ident, qt.Equals, long[:127])
}

func TestReadPreservesReadingText(t *testing.T) {
	c := qt.New(t)
	conn := &fakeConn{
		queries: map[string]string{
			":read?": "+1.23456789E+00VDC\r\n",
		},
	}
	s, err := NewSession(conn)
	c.Assert(err, qt.IsNil)
	r, err := s.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(r, qt.Equals, "+1.23456789E+00VDC")
}

func TestReadOverflowSentinelUntouched(t *testing.T) {
	// The session returns the sentinel verbatim; substitution is the
	// acquisition loop's business.
	c := qt.New(t)
	conn := &fakeConn{
		queries: map[string]string{
			":read?": Overflow + "\r\n",
		},
	}
	s, err := NewSession(conn)
	c.Assert(err, qt.IsNil)
	r, err := s.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(r, qt.Equals, Overflow)
}

func TestDisplayCommands(t *testing.T) {
	c := qt.New(t)
	conn := &fakeConn{}
	s, err := NewSession(conn)
	c.Assert(err, qt.IsNil)
	c.Assert(s.DisplayText("-ACQUIRING- "), qt.IsNil)
	c.Assert(s.DisplayRestore(), qt.IsNil)
	c.Assert(s.Preset(), qt.IsNil)
	c.Assert(conn.cmds[1:], qt.DeepEquals, []string{
		":DISP:TEXT:DATA '-ACQUIRING- ';:DISP:TEXT:STAT 1",
		":DISP:TEXT:STAT 0",
		"syst:pres",
	})
}

func TestOpenRejectsBadAddress(t *testing.T) {
	c := qt.New(t)
	for _, addr := range []int{-1, 31, 100} {
		_, err := Open(Params{Port: "/dev/null", Addr: addr})
		c.Assert(err, qt.ErrorMatches, fmt.Sprintf("GPIB primary address %d out of range 0...30", addr))
	}
}
