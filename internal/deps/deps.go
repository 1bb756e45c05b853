package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotConfigured is reported for a requirement with a blank command.
var ErrNotConfigured = errors.New("command not configured")

// Requirement is an external binary arcmigrate executes.
type Requirement struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// Status is the result of resolving one Requirement on PATH.
type Status struct {
	Requirement
	// Path is the resolved executable; empty when unavailable.
	Path string
	Err  error
}

// Available reports whether the binary was found.
func (s Status) Available() bool {
	return s.Err == nil && s.Path != ""
}

// Detail is the resolved path, or the reason the binary is unusable.
func (s Status) Detail() string {
	if s.Available() {
		return s.Path
	}
	if s.Err != nil {
		return s.Err.Error()
	}
	return "not resolved"
}

// CheckBinaries resolves every requirement, keeping input order.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		statuses[i] = Status{Requirement: req}
		if req.Command == "" {
			statuses[i].Err = ErrNotConfigured
			continue
		}
		path, err := exec.LookPath(req.Command)
		if err != nil {
			statuses[i].Err = fmt.Errorf("binary %q not found", req.Command)
			continue
		}
		statuses[i].Path = path
	}
	return statuses
}
