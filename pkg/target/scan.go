package target

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hitzhangjie/memhack/pkg/logflags"
)

// MemoryReader reads memory of another process without stopping it.
type MemoryReader interface {
	ReadMemory(pid int, addr Address, buf []byte) (int, error)
}

// Engine 实现 scan-and-filter：先整块扫描区域，再逐个复查候选地址
type Engine struct {
	tracer *Tracer
	mem    MemoryReader
	log    *logrus.Entry
}

// NewEngine returns an engine scanning the process traced by tracer.
func NewEngine(tracer *Tracer, mem MemoryReader) *Engine {
	return &Engine{
		tracer: tracer,
		mem:    mem,
		log:    logflags.ScanLogger().WithField("pid", tracer.Pid()),
	}
}

// Tracer returns the tracer used for filter passes and writes.
func (e *Engine) Tracer() *Tracer {
	return e.tracer
}

// Scan reads the whole region in one go and returns every word-aligned
// address holding value, in ascending order.
func (e *Engine) Scan(value Word, region Region) ([]Address, error) {
	pid := e.tracer.Pid()
	buf := make([]byte, region.Size())

	begin := time.Now()
	n, err := e.mem.ReadMemory(pid, region.Start, buf)
	if err != nil {
		return nil, &ScanError{Pid: pid, Region: region, Err: err}
	}
	if n != len(buf) {
		return nil, &ScanError{Pid: pid, Region: region, Err: fmt.Errorf("read %d of %d bytes: %w", n, len(buf), io.ErrUnexpectedEOF)}
	}

	matches := Search(buf, region.Start, value)
	e.log.WithFields(logrus.Fields{
		"region":  region.Kind,
		"value":   value,
		"matches": len(matches),
		"cost":    time.Since(begin),
	}).Debug("scan")
	return matches, nil
}

// Filter re-reads every candidate inside a single attach/detach bracket and
// returns those still holding value, keeping their ascending order.
//
// On error cands is returned unchanged and the tracee is detached.
func (e *Engine) Filter(cands []Address, value Word) ([]Address, error) {
	if len(cands) == 0 {
		return cands, ErrNoCandidates
	}

	kept := make([]Address, 0, len(cands))
	err := e.tracer.Do(func(a *Attachment) error {
		for _, addr := range cands {
			w, err := a.Peek(addr)
			if err != nil {
				return err
			}
			if w == value {
				kept = append(kept, addr)
			}
		}
		return nil
	})
	if err != nil {
		return cands, err
	}

	e.log.WithFields(logrus.Fields{
		"value":  value,
		"before": len(cands),
		"after":  len(kept),
	}).Debug("filter")
	return kept, nil
}

// Write stores value at addr inside a single attach/detach bracket.
func (e *Engine) Write(addr Address, value Word) error {
	err := e.tracer.Do(func(a *Attachment) error {
		return a.Poke(addr, value)
	})
	if err != nil {
		return err
	}
	e.log.WithField("addr", addr).Debugf("wrote %d", value)
	return nil
}

// Search returns base+offset for every word-aligned offset of buf whose
// native-endian value equals value. A trailing partial word is ignored.
func Search(buf []byte, base Address, value Word) []Address {
	var matches []Address
	for off := 0; off+WordSize <= len(buf); off += WordSize {
		if decodeWord(buf[off:off+WordSize]) == value {
			matches = append(matches, base+Address(off))
		}
	}
	return matches
}

func decodeWord(b []byte) Word {
	if WordSize == 8 {
		return Word(binary.NativeEndian.Uint64(b))
	}
	return Word(binary.NativeEndian.Uint32(b))
}

func encodeWord(b []byte, w Word) {
	if WordSize == 8 {
		binary.NativeEndian.PutUint64(b, uint64(w))
		return
	}
	binary.NativeEndian.PutUint32(b, uint32(w))
}
