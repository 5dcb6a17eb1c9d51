// Package gnuplot drives an external gnuplot process through a pipe,
// replotting the acquisition data file on demand.
package gnuplot

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// DefaultPath is the gnuplot executable looked up on $PATH when no
// explicit path is configured.
const DefaultPath = "gnuplot"

// Plot represents a running gnuplot process. It's a one-way command
// channel: gnuplot never sends anything back on the pipe.
type Plot struct {
	w        io.WriteCloser
	cmd      *exec.Cmd
	dataFile string
}

// Start launches gnuplot and sends the one-off setup commands, titling
// the plot after the data file and labelling the y axis with the
// measurement unit. The caller is expected to degrade gracefully
// (disable graphing) when Start fails.
func Start(path, dataFile, yLabel string) (*Plot, error) {
	if path == "" {
		path = DefaultPath
	}
	cmd := exec.Command(path)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cannot launch %s: %v", path, err)
	}
	p := &Plot{
		w:        stdin,
		cmd:      cmd,
		dataFile: dataFile,
	}
	if err := writeSetup(stdin, dataFile, yLabel); err != nil {
		p.Close()
		return nil, fmt.Errorf("cannot initialize plot: %v", err)
	}
	return p, nil
}

// Refresh makes gnuplot replot from the current contents of the
// data file.
func (p *Plot) Refresh() error {
	return writeRefresh(p.w, p.dataFile)
}

// Close closes the command pipe and waits for gnuplot to exit.
func (p *Plot) Close() error {
	if err := p.w.Close(); err != nil {
		p.cmd.Wait()
		return err
	}
	return p.cmd.Wait()
}

func writeSetup(w io.Writer, title, yLabel string) error {
	if _, err := fmt.Fprintf(w, "set mouse;set mouse labels; set style data lines; set title '%s'\n", title); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "set grid xt; set grid yt; set xlabel 'min'; set ylabel '%s'\n", yLabel)
	return err
}

func writeRefresh(w io.Writer, dataFile string) error {
	_, err := fmt.Fprintf(w, "plot '%s' with lines title ''\n", dataFile)
	return err
}
