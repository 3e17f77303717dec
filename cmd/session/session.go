package session

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/hitzhangjie/memhack/pkg/logflags"
	"github.com/hitzhangjie/memhack/pkg/target"
)

const prefix = "> "

// ErrInterrupted is returned by Run when the user hits Ctrl-C at the prompt.
var ErrInterrupted = errors.New("interrupted")

// Engine scans and edits the target process.
type Engine interface {
	Scan(value target.Word, region target.Region) ([]target.Address, error)
	Filter(cands []target.Address, value target.Word) ([]target.Address, error)
	Write(addr target.Address, value target.Word) error
}

// LineReader reads one line of user input. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Config describes the process a Session works on.
type Config struct {
	Pid   int
	Name  string
	Stack target.Region
	Heap  *target.Region // nil if the process has no heap

	Engine Engine
	Input  LineReader
	Output io.Writer
	Color  bool       // emit ANSI escapes
	Rows   func() int // terminal height
}

// Session 交互式扫描会话
type Session struct {
	pid   int
	name  string
	stack target.Region
	heap  *target.Region

	active target.RegionKind // 下一次扫描的区域
	cands  []target.Address  // 候选地址，升序
	passes *atomic.Uint64    // scan/filter 次数
	engine Engine
	input  LineReader
	screen *screen
	done   bool
	log    *logrus.Entry
}

// New creates a session that starts on the stack with no candidates.
func New(cfg Config) *Session {
	rows := cfg.Rows
	if rows == nil {
		rows = func() int { return defaultRows }
	}
	return &Session{
		pid:    cfg.Pid,
		name:   cfg.Name,
		stack:  cfg.Stack,
		heap:   cfg.Heap,
		active: target.Stack,
		passes: atomic.NewUint64(0),
		engine: cfg.Engine,
		input:  cfg.Input,
		screen: &screen{out: cfg.Output, color: cfg.Color, rows: rows},
		log:    logflags.SessionLogger().WithField("pid", cfg.Pid),
	}
}

// Run draws the dashboard and handles input lines until the session exits.
func (s *Session) Run() error {
	s.redraw("", false)
	for !s.done {
		line, err := s.input.Prompt(prefix)
		if err != nil {
			return s.inputErr(err)
		}
		if err := s.Handle(line); err != nil {
			return err
		}
	}
	return nil
}

// Done reports whether the session reached its terminal state.
func (s *Session) Done() bool {
	return s.done
}

// Handle applies one input line to the session.
func (s *Session) Handle(line string) error {
	line = strings.TrimSpace(line)
	s.log.Debugf("cmd %q", line)

	switch line {
	case "", "e", "exit":
		s.done = true
	case "c", "clear":
		s.cands = nil
		s.redraw("", false)
	case "s", "stack":
		if s.active != target.Stack {
			s.switchTo(target.Stack)
		}
	case "h", "heap":
		if s.heap != nil && s.active == target.Stack {
			s.switchTo(target.Heap)
		}
	default:
		value, err := strconv.ParseUint(line, 10, strconv.IntSize)
		if err != nil {
			s.redraw(fmt.Sprintf("invalid input `%s`", line), true)
			return nil
		}
		return s.search(target.Word(value))
	}
	return nil
}

func (s *Session) switchTo(kind target.RegionKind) {
	s.cands = nil
	s.active = kind
	s.redraw("", false)
}

func (s *Session) region() target.Region {
	if s.active == target.Heap && s.heap != nil {
		return *s.heap
	}
	return s.stack
}

// search scans the active region when there are no candidates yet and
// filters the existing ones otherwise.
func (s *Session) search(value target.Word) error {
	var (
		cands []target.Address
		err   error
	)
	if len(s.cands) == 0 {
		cands, err = s.engine.Scan(value, s.region())
	} else {
		cands, err = s.engine.Filter(s.cands, value)
	}
	s.passes.Inc()
	if err != nil {
		s.log.WithError(err).Warn("search failed")
		s.redraw(err.Error(), true)
		return nil
	}
	s.cands = cands

	switch len(cands) {
	case 0:
		s.redraw("no matches, list cleared", false)
	case 1:
		return s.write(cands[0])
	default:
		s.redraw("", false)
	}
	return nil
}

// write asks for the replacement value and stores it at addr, ending the
// session. An empty answer ends the session without writing.
func (s *Session) write(addr target.Address) error {
	s.redraw(fmt.Sprintf("one match at %s", addr), false)

	for {
		line, err := s.input.Prompt(fmt.Sprintf("new value for %s: ", addr))
		if err != nil {
			return s.inputErr(err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			s.done = true
			s.screen.note("nothing written", false)
			return nil
		}

		value, err := target.ParseWord(line)
		if err != nil {
			s.screen.note(fmt.Sprintf("invalid value `%s`", line), true)
			continue
		}

		if err := s.engine.Write(addr, value); err != nil {
			return fmt.Errorf("write %s: %w", addr, err)
		}
		s.done = true
		s.screen.note(fmt.Sprintf("wrote %s at %s", line, addr), false)
		return nil
	}
}

func (s *Session) inputErr(err error) error {
	switch {
	case err == io.EOF:
		s.done = true
		return nil
	case errors.Is(err, liner.ErrPromptAborted):
		return ErrInterrupted
	}
	return err
}

func (s *Session) redraw(msg string, isErr bool) {
	s.screen.draw(view{
		name:    s.name,
		pid:     s.pid,
		region:  s.region(),
		hasHeap: s.heap != nil,
		passes:  s.passes.Load(),
		cands:   s.cands,
		msg:     msg,
		isErr:   isErr,
	})
}
