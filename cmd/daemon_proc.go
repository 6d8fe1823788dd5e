package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// daemonState is written next to the pid file so status can find the API.
type daemonState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DataDir   string    `json:"data_dir"`
	Watching  bool      `json:"watching"`
}

// pidFile is the path of the daemon's pid file. Its state lives at path.json.
type pidFile string

func (f pidFile) statePath() string { return string(f) + ".json" }

func (f pidFile) write(st daemonState) error {
	if err := os.MkdirAll(filepath.Dir(string(f)), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.WriteFile(string(f), []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	// The state file is informational; status falls back to flags without it.
	_ = os.WriteFile(f.statePath(), append(data, '\n'), 0o600)
	return nil
}

func (f pidFile) pid() (int, error) {
	data, err := os.ReadFile(string(f)) //nolint:gosec // pid path is chosen by the local user
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", f)
	}
	return pid, nil
}

func (f pidFile) state() (daemonState, error) {
	var st daemonState
	data, err := os.ReadFile(f.statePath()) //nolint:gosec // state path is chosen by the local user
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

// running reports the recorded pid and whether that process is alive. A
// stale or unreadable pid file is removed.
func (f pidFile) running() (int, bool) {
	pid, err := f.pid()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.remove()
		}
		return 0, false
	}
	if !processAlive(pid) {
		f.remove()
		return pid, false
	}
	return pid, true
}

func (f pidFile) remove() {
	_ = os.Remove(string(f))
	_ = os.Remove(f.statePath())
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
