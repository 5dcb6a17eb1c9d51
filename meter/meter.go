// Package meter drives a Keithley 2000 multimeter on a GPIB bus
// through a Prologix GPIB-USB controller.
package meter

import (
	"strings"
	"time"

	"github.com/gotmc/prologix"
	"github.com/gotmc/prologix/driver/vcp"
	errgo "gopkg.in/errgo.v1"
)

// Overflow is the literal reading returned by the instrument when the
// input exceeds the measurement range. Callers are expected to rewrite
// it to something human-readable before presenting it.
const Overflow = "+9.9E37"

// maxIdentLen bounds the identity string stored from *idn?. The
// instrument never sends more than this; anything longer is truncated.
const maxIdentLen = 127

// Mode represents one of the instrument's measurement functions.
type Mode int

const (
	VoltsDC Mode = iota
	CurrentDC
	Resistance
	Temperature
	Continuity
	Diode
	numModes
)

var modeInfo = []struct {
	token string
	label string
}{
	{"volt:dc", "V"},
	{"curr:dc", "mA"},
	{"res", "Ohm"},
	{"temp", "degrees C"},
	{"cont", "Ohm"},
	{"diod", "mV"},
}

// Valid reports whether m is one of the defined measurement functions.
func (m Mode) Valid() bool {
	return 0 <= m && m < numModes
}

// Token returns the SCPI function name sent to the instrument
// when selecting m.
func (m Mode) Token() string {
	return modeInfo[m].token
}

// Label returns the measurement unit for m, suitable for
// labelling a plot axis.
func (m Mode) Label() string {
	return modeInfo[m].label
}

func (m Mode) String() string {
	if !m.Valid() {
		return "unknown"
	}
	return modeInfo[m].token
}

// Conn is the subset of *prologix.Controller used by Session.
type Conn interface {
	Command(format string, a ...interface{}) error
	Query(cmd string) (string, error)
}

// Params holds the parameters for opening an instrument session.
type Params struct {
	// Port holds the serial device of the Prologix controller,
	// for example /dev/ttyUSB0.
	Port string
	// Addr holds the GPIB primary address of the instrument (0 to 30).
	Addr int
	// WriteDelay holds an optional delay inserted by the controller
	// before its own command sequences. Some USB-GPIB adapters need it.
	WriteDelay time.Duration
}

// Session represents an open connection to the multimeter.
type Session struct {
	conn   Conn
	closer func() error
}

// Open connects to the instrument at p.Addr via the Prologix
// controller on p.Port and runs the reset/clear/format handshake.
// The session should be closed after use.
func Open(p Params) (*Session, error) {
	if p.Addr < 0 || p.Addr > 30 {
		return nil, errgo.Newf("GPIB primary address %d out of range 0...30", p.Addr)
	}
	port, err := vcp.NewVCP(p.Port)
	if err != nil {
		return nil, errgo.Notef(err, "cannot open serial port %q", p.Port)
	}
	var opts []prologix.ControllerOption
	if p.WriteDelay > 0 {
		opts = append(opts, prologix.WithWriteDelay(p.WriteDelay))
	}
	gpib, err := prologix.NewController(port, p.Addr, false, opts...)
	if err != nil {
		port.Close()
		return nil, errgo.Notef(err, "cannot attach to instrument at address %d", p.Addr)
	}
	s := &Session{
		conn: gpib,
		closer: func() error {
			// Return the front panel to local control before
			// releasing the serial port.
			if err := gpib.FrontPanel(true); err != nil {
				port.Close()
				return errgo.Mask(err)
			}
			return port.Close()
		},
	}
	if err := s.reset(); err != nil {
		s.Close()
		return nil, errgo.Mask(err)
	}
	return s, nil
}

// NewSession returns a session that talks over an existing connection,
// running the same handshake as Open. It's used by tests and by callers
// that manage the controller themselves.
func NewSession(conn Conn) (*Session, error) {
	s := &Session{conn: conn}
	if err := s.reset(); err != nil {
		return nil, errgo.Mask(err)
	}
	return s, nil
}

// reset puts the instrument in a known state and configures the
// response format to reading and unit only.
func (s *Session) reset() error {
	if err := s.conn.Command("*rst;*cls;:form:elem read,unit;*opc"); err != nil {
		return errgo.Notef(err, "instrument reset failed")
	}
	return nil
}

// Identify returns the instrument's identity string.
func (s *Session) Identify() (string, error) {
	ident, err := s.conn.Query("*idn?")
	if err != nil {
		return "", errgo.Notef(err, "cannot read instrument identity")
	}
	ident = strings.TrimRight(ident, "\r\n")
	if len(ident) > maxIdentLen {
		ident = ident[:maxIdentLen]
	}
	return ident, nil
}

// SetFunction selects the measurement function and arms the trigger.
func (s *Session) SetFunction(m Mode) error {
	if !m.Valid() {
		return errgo.Newf("invalid measurement mode %d", int(m))
	}
	if err := s.conn.Command(":func '%s';:init; *opc", m.Token()); err != nil {
		return errgo.Notef(err, "cannot select function %v", m)
	}
	return nil
}

// DisplayText blanks the front-panel readout and shows the given
// status text instead.
func (s *Session) DisplayText(text string) error {
	if err := s.conn.Command(":DISP:TEXT:DATA '%s';:DISP:TEXT:STAT 1", text); err != nil {
		return errgo.Notef(err, "cannot set display text")
	}
	return nil
}

// DisplayRestore returns the front-panel display to normal operation.
func (s *Session) DisplayRestore() error {
	if err := s.conn.Command(":DISP:TEXT:STAT 0"); err != nil {
		return errgo.Notef(err, "cannot restore display")
	}
	return nil
}

// Read triggers one measurement and returns the reading exactly as the
// instrument formatted it, with the line terminator removed. The value
// is deliberately not parsed: the instrument's own formatting (and the
// Overflow sentinel) is preserved end to end.
func (s *Session) Read() (string, error) {
	r, err := s.conn.Query(":read?")
	if err != nil {
		return "", errgo.Mask(err)
	}
	return strings.TrimRight(r, "\r\n"), nil
}

// Preset restores the instrument to its factory preset state.
func (s *Session) Preset() error {
	if err := s.conn.Command("syst:pres"); err != nil {
		return errgo.Notef(err, "cannot restore preset state")
	}
	return nil
}

// Close releases the session. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	f := s.closer
	s.closer = nil
	return f()
}
