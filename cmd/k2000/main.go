// K2000 acquires data from a Keithley 2000 multimeter over GPIB,
// logging readings to a text file and optionally plotting them live
// with gnuplot.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/rogpeppe/k2000/acquire"
	"github.com/rogpeppe/k2000/gnuplot"
	"github.com/rogpeppe/k2000/keyboard"
	"github.com/rogpeppe/k2000/meter"
	"github.com/rogpeppe/k2000/ntpclock"
	"github.com/rogpeppe/k2000/samplelog"
)

const version = "V20250811"

// Exit codes, kept compatible with the original C program.
const (
	exitOK    = 0
	exitUsage = 1
	exitFile  = 4
	exitInst  = 5
)

const displayText = "-ACQUIRING- "

type options struct {
	port         string
	addr         int
	mode         meter.Mode
	delay        int // tenths of a second
	timeLimit    float64
	blankDisplay bool
	flushEvery   int
	force        bool
	comment      string
	gnuplotPath  string
	graph        bool
	ntpHost      string
	dataFile     string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rc, err := loadRC()
	if err != nil {
		fmt.Fprintf(os.Stderr, "k2000: %v\n", err)
		return exitUsage
	}
	opts, err := parseArgs(args, rc)
	if err == flag.ErrHelp {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "k2000: %v\n'k2000 -h' for help.\n", err)
		return exitUsage
	}

	sess, err := meter.Open(meter.Params{
		Port: opts.port,
		Addr: opts.addr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "k2000: cannot open instrument at address %d: %v\n", opts.addr, err)
		return exitInst
	}
	defer sess.Close()

	ident, err := sess.Identify()
	if err != nil {
		fmt.Fprintf(os.Stderr, "k2000: %v\n", err)
		return exitInst
	}
	if opts.blankDisplay {
		if err := sess.DisplayText(displayText); err != nil {
			fmt.Fprintf(os.Stderr, "k2000: %v\n", err)
			return exitInst
		}
	}
	if err := sess.SetFunction(opts.mode); err != nil {
		fmt.Fprintf(os.Stderr, "k2000: %v\n", err)
		return exitInst
	}

	if _, err := os.Stat(opts.dataFile); err == nil && !opts.force {
		if !confirmOverwrite(opts.dataFile, os.Stdin, os.Stderr) {
			return exitUsage
		}
	}
	f, err := os.Create(opts.dataFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "k2000: could not open %q for writing: %v\n", opts.dataFile, err)
		return exitFile
	}

	// Gnuplot is the one tolerated partial failure: without it the
	// acquisition still runs, just without the live plot.
	var plot *gnuplot.Plot
	if opts.graph {
		plot, err = gnuplot.Start(opts.gnuplotPath, opts.dataFile, opts.mode.Label())
		if err != nil {
			log.Printf("cannot launch gnuplot, will continue as is: %v", err)
		}
	}

	now := time.Now
	if opts.ntpHost != "" {
		clk, err := ntpclock.New(opts.ntpHost)
		if err != nil {
			log.Printf("cannot sync to NTP, using system clock: %v", err)
		} else {
			now = clk.Now
		}
	}

	lw, err := samplelog.NewWriter(f, samplelog.Header{
		Version:    version,
		Instrument: ident,
		Comment:    opts.comment,
		Start:      now(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "k2000: %v\n", err)
		f.Close()
		return exitFile
	}

	printSummary(os.Stdout, opts)

	kb, err := keyboard.Open()
	if err != nil {
		log.Printf("cannot set raw keyboard mode, 'q' to quit disabled: %v", err)
	} else {
		defer kb.Close()
	}

	var refresher acquire.Refresher
	if plot != nil {
		refresher = plot
	}
	var keys acquire.KeyPoller
	if kb != nil {
		keys = kb
	}
	runErr := acquire.Run(acquire.Params{
		Meter:      sess,
		Log:        lw,
		Plot:       refresher,
		Keys:       keys,
		Delay:      acquire.DelayDuration(opts.delay),
		TimeLimit:  time.Duration(opts.timeLimit * float64(time.Minute)),
		FlushEvery: opts.flushEvery,
		Progress:   os.Stdout,
	})

	// Shutdown. The data file is made safe first; only then do we
	// talk to the instrument again.
	code := exitOK
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "k2000: %v\n", runErr)
		code = exitFile
	}
	if err := lw.Close(now()); err != nil {
		fmt.Fprintf(os.Stderr, "k2000: cannot finish log file: %v\n", err)
		if code == exitOK {
			code = exitFile
		}
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "k2000: cannot close log file: %v\n", err)
		if code == exitOK {
			code = exitFile
		}
	}
	if kb != nil {
		kb.Close()
	}
	if plot != nil {
		if err := plot.Close(); err != nil {
			log.Printf("error closing gnuplot: %v", err)
		}
	}
	if opts.blankDisplay {
		if err := sess.DisplayRestore(); err != nil {
			fmt.Fprintf(os.Stderr, "k2000: %v\n", err)
			return exitInst
		}
	}
	if err := sess.Preset(); err != nil {
		fmt.Fprintf(os.Stderr, "k2000: %v\n", err)
		return exitInst
	}
	if err := sess.Close(); err != nil {
		log.Printf("error closing instrument session: %v", err)
	}
	fmt.Printf("\n\n")
	return code
}

func parseArgs(args []string, rc rcConfig) (*options, error) {
	fs := flag.NewFlagSet("k2000", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: k2000 [flags] datafile\n")
		fs.PrintDefaults()
	}
	opts := &options{}
	modeFlag := fs.Int("m", 0, "measurement mode (0=DCV 1=DCA 2=Ohm 3=temperature 4=continuity 5=diode)")
	fs.StringVar(&opts.port, "p", rc.Port, "serial `port` of the Prologix GPIB controller")
	fs.IntVar(&opts.addr, "a", rc.Addr, "GPIB primary `address` of the instrument (0...30)")
	fs.IntVar(&opts.delay, "t", 10, "`delay` between measurements in 0.1s units (0...600)")
	fs.Float64Var(&opts.timeLimit, "T", 0, "stop acquisition after this many `minutes` (0 = endless)")
	fs.BoolVar(&opts.blankDisplay, "d", false, "blank the instrument display during acquisition")
	fs.IntVar(&opts.flushEvery, "w", 100, "force write to disk every `n` samples")
	fs.BoolVar(&opts.force, "f", false, "force overwriting of an existing data file")
	fs.StringVar(&opts.comment, "c", "", "comment `text` for the log file header")
	fs.StringVar(&opts.gnuplotPath, "g", rc.Gnuplot, "`path` to the gnuplot executable")
	noGraph := fs.Bool("n", false, "no graphics")
	fs.StringVar(&opts.ntpHost, "ntp", rc.NTPHost, "NTP `host` for log timestamps (empty = system clock)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.graph = !*noGraph
	opts.mode = meter.Mode(*modeFlag)
	if opts.addr < 0 || opts.addr > 30 {
		return nil, fmt.Errorf("primary address must be 0...30")
	}
	if !opts.mode.Valid() {
		return nil, fmt.Errorf("mode must be 0...5 (0=DCV 1=DCA 2=Ohm 3=temperature 4=continuity 5=diode)")
	}
	if opts.delay < 0 || opts.delay > 600 {
		return nil, fmt.Errorf("delay must be 0...600 (0.1...60 s)")
	}
	if opts.timeLimit < 0 {
		return nil, fmt.Errorf("time limit must be positive")
	}
	if opts.flushEvery <= 0 {
		return nil, fmt.Errorf("flush interval must be positive")
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("please specify a data file")
	}
	opts.dataFile = fs.Arg(0)
	return opts, nil
}

// confirmOverwrite asks whether the existing data file may be
// overwritten. Only an answer starting with y or Y is a yes.
func confirmOverwrite(path string, in io.Reader, out io.Writer) bool {
	fmt.Fprintf(out, "\a\nFile '%s' exists - Overwrite? [Y/*] ", path)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return len(line) > 0 && (line[0] == 'y' || line[0] == 'Y')
}

func printSummary(w io.Writer, opts *options) {
	fmt.Fprintf(w, "\n GPIB address :  %d", opts.addr)
	fmt.Fprintf(w, "\n  Output file :  %s", opts.dataFile)
	if opts.comment != "" {
		fmt.Fprintf(w, "\n      Comment :  %s", opts.comment)
	}
	fmt.Fprintf(w, "\n      Refresh :  %d", opts.flushEvery)
	if opts.timeLimit > 0 {
		fmt.Fprintf(w, "\n   Halt after :  %g min", opts.timeLimit)
	}
	fmt.Fprintf(w, "\n         Stop :  Press 'q' or ESC.\n")
	fmt.Fprintf(w, "\n     Count           Time      Reading\n")
}
