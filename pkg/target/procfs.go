package target

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// DefaultProcFS is where Linux mounts the process information pseudo-filesystem.
const DefaultProcFS ProcFS = "/proc"

// ProcFS is the root of a procfs mount.
type ProcFS string

func (p ProcFS) path(pid int, name string) string {
	return filepath.Join(string(p), strconv.Itoa(pid), name)
}

// CheckPid returns ErrProcessNotFound if pid has no procfs entry.
func (p ProcFS) CheckPid(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}
	_, err := os.Stat(p.path(pid, ""))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}
	return err
}

// Comm read /proc/pid/comm or /proc/pid/stat to load the name of process.
func (p ProcFS) Comm(pid int) (string, error) {
	comm, err := os.ReadFile(p.path(pid, "comm"))
	if err == nil {
		// removes newline character
		comm = bytes.TrimSuffix(comm, []byte("\n"))
	}

	if len(comm) == 0 {
		stat, err := os.ReadFile(p.path(pid, "stat"))
		if err != nil {
			return "", fmt.Errorf("could not read proc stat: %v", err)
		}
		expr := fmt.Sprintf("%d\\s*\\((.*)\\)", pid)
		rexp, err := regexp.Compile(expr)
		if err != nil {
			return "", fmt.Errorf("regexp compile error: %v", err)
		}
		match := rexp.FindSubmatch(stat)
		if match == nil {
			return "", fmt.Errorf("no match found using regexp '%s' in %s", expr, p.path(pid, "stat"))
		}
		comm = match[1]
	}
	return string(comm), nil
}

// Maps parses /proc/pid/maps and returns the stack and, if mapped, the heap.
func (p ProcFS) Maps(pid int) (Region, *Region, error) {
	f, err := os.Open(p.path(pid, "maps"))
	if err != nil {
		return Region{}, nil, &ParseError{Pid: pid, Reason: "open", Err: err}
	}
	defer f.Close()

	return ParseMaps(pid, f)
}
