// Package samplelog reads and writes k2000 acquisition log files.
//
// A log file is plain text: a header block of #-prefixed lines
// (program version, instrument identity, comment, start timestamp and
// column header), one tab-separated line per sample, and a trailing
// #-prefixed stop timestamp. The reading field is treated as opaque
// text so that the instrument's exact formatting survives a round trip.
package samplelog

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// timeFormat is the format used for the start and stop timestamps,
// matching the C library ctime() representation used historically.
const timeFormat = time.ANSIC

// Sample holds one acquired data point.
type Sample struct {
	// Minutes holds the elapsed time since acquisition start.
	Minutes float64
	// Reading holds the instrument reading verbatim.
	Reading string
}

// Header holds the fields written at the top of a log file.
type Header struct {
	// Version holds the program version tag.
	Version string
	// Instrument holds the instrument identity string.
	Instrument string
	// Comment holds free-form comment text. It may be empty.
	Comment string
	// Start holds the acquisition start time.
	Start time.Time
}

type syncer interface {
	Sync() error
}

// Writer writes a log file. It buffers sample lines; call Sync to
// force them to the underlying writer (and to durable storage when
// the writer is an *os.File).
type Writer struct {
	w   *bufio.Writer
	dst io.Writer
}

// NewWriter returns a Writer that writes to w, writing the
// header block immediately.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	lw := &Writer{
		w:   bufio.NewWriter(w),
		dst: w,
	}
	fmt.Fprintf(lw.w, "# k2000 %s\n", h.Version)
	fmt.Fprintf(lw.w, "# Instrument: %s\n", h.Instrument)
	fmt.Fprintf(lw.w, "# %s\n", h.Comment)
	fmt.Fprintf(lw.w, "# Acquisition start: %s\n", h.Start.Format(timeFormat))
	fmt.Fprintf(lw.w, "# min\treadout\n")
	if err := lw.w.Flush(); err != nil {
		return nil, fmt.Errorf("cannot write log header: %v", err)
	}
	return lw, nil
}

// WriteSample appends one sample line.
func (lw *Writer) WriteSample(s Sample) error {
	_, err := fmt.Fprintf(lw.w, "%.4f\t%s\n", s.Minutes, s.Reading)
	return err
}

// Sync flushes buffered samples and forces them to durable storage
// if the underlying writer supports it.
func (lw *Writer) Sync() error {
	if err := lw.w.Flush(); err != nil {
		return err
	}
	if s, ok := lw.dst.(syncer); ok {
		return s.Sync()
	}
	return nil
}

// Close writes the stop-timestamp trailer and flushes. It does not
// close the underlying writer, which remains owned by the caller.
func (lw *Writer) Close(stop time.Time) error {
	fmt.Fprintf(lw.w, "# Acquisition stop: %s\n", stop.Format(timeFormat))
	return lw.Sync()
}

// Reader reads samples back from a log file.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
	}
}

// ReadSample returns the next data line in the stream, skipping
// header, comment and trailer lines. It returns io.EOF at the end
// of the file.
func (r *Reader) ReadSample() (Sample, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		minStr, reading, ok := strings.Cut(line, "\t")
		if !ok {
			return Sample{}, fmt.Errorf("invalid sample line found: %q", line)
		}
		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid elapsed time in sample line %q", line)
		}
		return Sample{
			Minutes: min,
			Reading: reading,
		}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Sample{}, err
	}
	return Sample{}, io.EOF
}

// ReadAll returns all remaining samples in the stream.
func (r *Reader) ReadAll() ([]Sample, error) {
	var samples []Sample
	for {
		s, err := r.ReadSample()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
		samples = append(samples, s)
	}
}
