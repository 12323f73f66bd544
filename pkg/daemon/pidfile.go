// Package daemon guards an engine database directory against a second
// picotd process.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

const PIDFileName = "picotd.pid"

// PIDFile records the process that owns a directory.
type PIDFile struct {
	path string
	mu   sync.Mutex
}

// NewPIDFile returns the PID file inside dir. The directory is created on
// Acquire.
func NewPIDFile(dir string) *PIDFile {
	return &PIDFile{path: filepath.Join(dir, PIDFileName)}
}

func (p *PIDFile) Path() string { return p.path }

// Acquire writes the current pid. A file left by a dead process is
// replaced; a live owner yields *ProcessRunningError.
func (p *PIDFile) Acquire() error {
	return p.acquire(os.Getpid())
}

func (p *PIDFile) acquire(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(p.path), err)
	}

	if owner, err := p.read(); err == nil && owner != pid && processRunning(owner) {
		return &ProcessRunningError{PID: owner, Path: p.path}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// Release removes the file if this process still owns it.
func (p *PIDFile) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner, err := p.read(); err == nil && owner == os.Getpid() {
		_ = os.Remove(p.path)
	}
}

// Owner returns the recorded pid, or 0 when no live process owns the file.
func (p *PIDFile) Owner() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pid, err := p.read()
	if err != nil || !processRunning(pid) {
		return 0
	}
	return pid
}

func (p *PIDFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", p.path, err)
	}
	return pid, nil
}

// processRunning probes pid with signal 0. EPERM means the process exists
// but belongs to someone else.
func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

type ProcessRunningError struct {
	PID  int
	Path string
}

func (e *ProcessRunningError) Error() string {
	return fmt.Sprintf("picotd already running with PID %d (pid file: %s)", e.PID, e.Path)
}
