package target

import (
	"errors"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/hitzhangjie/memhack/pkg/logflags"
)

// Ptracer is the set of process-control primitives a Tracer needs.
//
// Every method operates on a single pid. Implementations must issue all
// requests for one tracee from the same OS thread.
type Ptracer interface {
	Attach(pid int) error
	Wait(pid int) error
	PeekWord(pid int, addr Address) (Word, error)
	PokeWord(pid int, addr Address, w Word) error
	Detach(pid int) error
}

// Tracer 管理对单个进程的 ptrace 会话, 处于 detached 状态
//
// Attach hands out an Attachment, the only handle able to peek and poke.
// At most one Attachment is live at a time.
type Tracer struct {
	pid      int
	ops      Ptracer
	live     *Attachment
	attaches *atomic.Uint64 // 成功 attach 的次数
	log      *logrus.Entry
}

// NewTracer returns a detached tracer for pid.
func NewTracer(pid int, ops Ptracer) *Tracer {
	return &Tracer{
		pid:      pid,
		ops:      ops,
		attaches: atomic.NewUint64(0),
		log:      logflags.TracerLogger().WithField("pid", pid),
	}
}

// Pid returns the traced process id.
func (t *Tracer) Pid() int {
	return t.pid
}

// Attached reports whether an Attachment is live.
func (t *Tracer) Attached() bool {
	return t.live != nil && t.live.attached
}

// Attaches returns how many times the tracee has been stopped by this tracer.
func (t *Tracer) Attaches() uint64 {
	return t.attaches.Load()
}

// Attach stops the tracee and returns a handle to its memory.
//
// Attaching twice is a caller bug: the live attachment is detached first
// and ErrDoubleAttach is returned. If the tracee does not report a stop it
// is detached before the error is returned.
func (t *Tracer) Attach() (*Attachment, error) {
	if t.Attached() {
		t.log.Warn("attach while attached, forcing detach")
		if err := t.live.Detach(); err != nil {
			return nil, errors.Join(ErrDoubleAttach, err)
		}
		return nil, ErrDoubleAttach
	}

	if err := t.ops.Attach(t.pid); err != nil {
		return nil, &TraceError{Op: opAttach, Pid: t.pid, Err: err}
	}
	a := &Attachment{tracer: t, attached: true}
	t.live = a

	if err := t.ops.Wait(t.pid); err != nil {
		return nil, a.abort(&TraceError{Op: opWait, Pid: t.pid, Err: err})
	}

	t.attaches.Inc()
	t.log.Debug("attached")
	return a, nil
}

// Do runs fn inside one attach/detach bracket. The tracee is detached on
// every path out of Do, including when fn fails.
func (t *Tracer) Do(fn func(a *Attachment) error) (err error) {
	a, err := t.Attach()
	if err != nil {
		return err
	}
	defer func() {
		if !a.attached {
			return
		}
		if derr := a.Detach(); derr != nil {
			err = errors.Join(err, derr)
		}
	}()
	return fn(a)
}

// Attachment is a live ptrace attachment. It is only usable until Detach.
type Attachment struct {
	tracer   *Tracer
	attached bool
}

// Peek reads one word at addr.
func (a *Attachment) Peek(addr Address) (Word, error) {
	if !a.attached {
		return 0, ErrNotAttached
	}
	w, err := a.tracer.ops.PeekWord(a.tracer.pid, addr)
	if err != nil {
		return 0, a.abort(&TraceError{Op: opPeek, Pid: a.tracer.pid, Addr: addr, Err: err})
	}
	return w, nil
}

// Poke writes one word at addr.
func (a *Attachment) Poke(addr Address, w Word) error {
	if !a.attached {
		return ErrNotAttached
	}
	if err := a.tracer.ops.PokeWord(a.tracer.pid, addr, w); err != nil {
		return a.abort(&TraceError{Op: opPoke, Pid: a.tracer.pid, Addr: addr, Err: err})
	}
	a.tracer.log.WithField("addr", addr).Debugf("poked %d", w)
	return nil
}

// Detach resumes the tracee. The attachment stays live if detaching fails.
func (a *Attachment) Detach() error {
	if !a.attached {
		return ErrDoubleDetach
	}
	t := a.tracer
	if err := t.ops.Detach(t.pid); err != nil {
		t.log.WithError(err).Warn("detach failed")
		return &TraceError{Op: opDetach, Pid: t.pid, Err: err}
	}
	a.attached = false
	if t.live == a {
		t.live = nil
	}
	t.log.Debug("detached")
	return nil
}

// abort detaches after a failed primitive so that the tracee is never left
// stopped behind a broken attachment.
func (a *Attachment) abort(cause error) error {
	if err := a.Detach(); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
