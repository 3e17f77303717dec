package target

import (
	"errors"
	"fmt"
)

var errFake = errors.New("injected")

// fakePtracer emulates a stopped tracee in memory and records every call.
type fakePtracer struct {
	mem      map[Address]Word
	attached bool
	calls    []string

	attachErr error
	waitErr   error
	detachErr error
	peekErr   map[Address]error
	pokeErr   error
}

func newFakePtracer() *fakePtracer {
	return &fakePtracer{mem: map[Address]Word{}, peekErr: map[Address]error{}}
}

func (f *fakePtracer) Attach(pid int) error {
	f.calls = append(f.calls, "attach")
	if f.attachErr != nil {
		return f.attachErr
	}
	if f.attached {
		return fmt.Errorf("os: pid %d attached twice", pid)
	}
	f.attached = true
	return nil
}

func (f *fakePtracer) Wait(pid int) error {
	f.calls = append(f.calls, "wait")
	return f.waitErr
}

func (f *fakePtracer) PeekWord(pid int, addr Address) (Word, error) {
	f.calls = append(f.calls, "peek")
	if !f.attached {
		return 0, errors.New("os: peek on running process")
	}
	if err := f.peekErr[addr]; err != nil {
		return 0, err
	}
	return f.mem[addr], nil
}

func (f *fakePtracer) PokeWord(pid int, addr Address, w Word) error {
	f.calls = append(f.calls, "poke")
	if !f.attached {
		return errors.New("os: poke on running process")
	}
	if f.pokeErr != nil {
		return f.pokeErr
	}
	f.mem[addr] = w
	return nil
}

func (f *fakePtracer) Detach(pid int) error {
	f.calls = append(f.calls, "detach")
	if f.detachErr != nil {
		return f.detachErr
	}
	if !f.attached {
		return errors.New("os: detach of running process")
	}
	f.attached = false
	return nil
}

// fakeMemory serves reads from a fixed buffer mapped at base.
type fakeMemory struct {
	base  Address
	buf   []byte
	err   error
	short int
	reads int
}

func (m *fakeMemory) ReadMemory(pid int, addr Address, buf []byte) (int, error) {
	m.reads++
	if m.err != nil {
		return 0, m.err
	}
	off := int(addr - m.base)
	n := copy(buf, m.buf[off:])
	if m.short > 0 && n > m.short {
		n = m.short
	}
	return n, nil
}
