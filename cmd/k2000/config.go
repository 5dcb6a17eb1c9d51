package main

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"
)

// rcConfig holds per-host defaults read from the rc file, so that the
// serial port and instrument address don't need repeating on every
// invocation. Command-line flags override all of it.
type rcConfig struct {
	Port    string `yaml:"port"`
	Addr    int    `yaml:"addr"`
	Gnuplot string `yaml:"gnuplot"`
	NTPHost string `yaml:"ntp"`
}

const defaultPort = "/dev/ttyUSB0"
const defaultAddr = 16

// loadRC reads $K2000RC if set, otherwise ~/.k2000.yaml. A missing
// file is not an error; an unreadable or malformed one is.
func loadRC() (rcConfig, error) {
	rc := rcConfig{
		Port: defaultPort,
		Addr: defaultAddr,
	}
	path := os.Getenv("K2000RC")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return rc, nil
		}
		path = filepath.Join(home, ".k2000.yaml")
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rc, nil
	}
	if err != nil {
		return rc, fmt.Errorf("cannot read rc file: %v", err)
	}
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return rc, fmt.Errorf("cannot parse rc file %q: %v", path, err)
	}
	if rc.Port == "" {
		rc.Port = defaultPort
	}
	return rc, nil
}
