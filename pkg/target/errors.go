package target

import (
	"errors"
	"fmt"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrNoStack         = errors.New("no [stack] entry")
	ErrNoCandidates    = errors.New("filter called with no candidates")

	// protocol errors, a correct caller never sees these
	ErrDoubleAttach = errors.New("already attached")
	ErrDoubleDetach = errors.New("already detached")
	ErrNotAttached  = errors.New("not attached")
)

// ParseError 解析 /proc/<pid>/maps 失败
type ParseError struct {
	Pid    int    // 目标进程
	Line   int    // 出错的行号，0 表示与具体行无关
	Reason string // 出错原因
	Err    error  // 底层错误
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("pid %d has a corrupted maps file", e.Pid)
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d: %s)", e.Line, e.Reason)
	} else if e.Reason != "" {
		msg += fmt.Sprintf(" (%s)", e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// TraceError is a failed ptrace primitive. Op names the primitive.
type TraceError struct {
	Op   string
	Pid  int
	Addr Address
	Err  error
}

func (e *TraceError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s pid %d at %#x: %v", e.Op, e.Pid, uintptr(e.Addr), e.Err)
	}
	return fmt.Sprintf("%s pid %d: %v", e.Op, e.Pid, e.Err)
}

func (e *TraceError) Unwrap() error { return e.Err }

// ScanError is a failed bulk read of a region.
type ScanError struct {
	Pid    int
	Region Region
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("process_vm_readv pid %d %s: %v", e.Pid, e.Region.Kind, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

const (
	opAttach = "PTRACE_ATTACH"
	opWait   = "waitpid"
	opPeek   = "PTRACE_PEEKDATA"
	opPoke   = "PTRACE_POKEDATA"
	opDetach = "PTRACE_DETACH"
)
