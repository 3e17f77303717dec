package session

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/memhack/pkg/target"
)

var (
	testStack = target.Region{Kind: target.Stack, Start: 0x7ffee0000000, End: 0x7ffee0021000}
	testHeap  = target.Region{Kind: target.Heap, Start: 0x55d0c4e5e000, End: 0x55d0c4e7f000}
)

// fakeEngine serves scans and filters from a map of address -> value.
type fakeEngine struct {
	mem     map[target.Address]target.Word
	scans   []target.Region
	filters int
	writes  map[target.Address]target.Word

	err      error
	writeErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{mem: map[target.Address]target.Word{}, writes: map[target.Address]target.Word{}}
}

func (e *fakeEngine) Scan(value target.Word, region target.Region) ([]target.Address, error) {
	e.scans = append(e.scans, region)
	if e.err != nil {
		return nil, e.err
	}
	var out []target.Address
	for a := region.Start; a < region.End; a += target.WordSize {
		if v, ok := e.mem[a]; ok && v == value {
			out = append(out, a)
		}
	}
	return out, nil
}

func (e *fakeEngine) Filter(cands []target.Address, value target.Word) ([]target.Address, error) {
	e.filters++
	if len(cands) == 0 {
		return cands, target.ErrNoCandidates
	}
	if e.err != nil {
		return cands, e.err
	}
	var out []target.Address
	for _, a := range cands {
		if e.mem[a] == value {
			out = append(out, a)
		}
	}
	return out, nil
}

func (e *fakeEngine) Write(addr target.Address, value target.Word) error {
	if e.writeErr != nil {
		return e.writeErr
	}
	e.writes[addr] = value
	return nil
}

// script feeds fixed lines and then io.EOF.
type script struct {
	lines   []string
	prompts []string
	err     error
}

func (s *script) Prompt(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func newTestSession(eng Engine, heap *target.Region, lines ...string) (*Session, *script, *bytes.Buffer) {
	in := &script{lines: lines}
	out := &bytes.Buffer{}
	s := New(Config{
		Pid:    1234,
		Name:   "counter",
		Stack:  testStack,
		Heap:   heap,
		Engine: eng,
		Input:  in,
		Output: out,
		Rows:   func() int { return 24 },
	})
	return s, in, out
}

func TestHandle_Exit(t *testing.T) {
	for _, line := range []string{"", "e", "exit", "  exit  "} {
		s, _, _ := newTestSession(newFakeEngine(), nil)
		require.NoError(t, s.Handle(line))
		assert.True(t, s.Done(), "line %q", line)
	}
}

func TestHandle_ScanThenFilterThenWrite(t *testing.T) {
	eng := newFakeEngine()
	eng.mem[0x7ffee0000010] = 42
	eng.mem[0x7ffee0000100] = 42

	s, in, out := newTestSession(eng, &testHeap, "1337")

	require.NoError(t, s.Handle("42"))
	assert.Equal(t, []target.Address{0x7ffee0000010, 0x7ffee0000100}, s.cands)
	assert.Contains(t, out.String(), "2 candidates")
	assert.Contains(t, out.String(), "0x7ffee0000100")
	assert.False(t, s.Done())

	// the target changed one of them
	eng.mem[0x7ffee0000100] = 43
	require.NoError(t, s.Handle("42"))

	assert.Equal(t, 1, eng.filters)
	assert.Equal(t, []target.Address{0x7ffee0000010}, s.cands)
	assert.Equal(t, target.Word(1337), eng.writes[0x7ffee0000010])
	assert.Equal(t, []string{"new value for 0x7ffee0000010: "}, in.prompts)
	assert.True(t, s.Done())
	assert.Contains(t, out.String(), "wrote 1337 at 0x7ffee0000010")
}

func TestHandle_SingleCandidateFilterStillPromptsWrite(t *testing.T) {
	eng := newFakeEngine()
	eng.mem[0x7ffee0000010] = 42
	s, in, _ := newTestSession(eng, nil, "7")
	s.cands = []target.Address{0x7ffee0000010}

	require.NoError(t, s.Handle("42"))
	assert.Equal(t, []target.Address{0x7ffee0000010}, s.cands)
	assert.Len(t, in.prompts, 1)
	assert.Equal(t, target.Word(7), eng.writes[0x7ffee0000010])
}

func TestHandle_NoMatches(t *testing.T) {
	eng := newFakeEngine()
	s, _, out := newTestSession(eng, nil)

	require.NoError(t, s.Handle("42"))
	assert.Empty(t, s.cands)
	assert.Contains(t, out.String(), "no matches, list cleared")

	// the next value scans again instead of filtering
	require.NoError(t, s.Handle("42"))
	assert.Len(t, eng.scans, 2)
	assert.Equal(t, 0, eng.filters)
}

func TestHandle_Clear(t *testing.T) {
	s, _, out := newTestSession(newFakeEngine(), nil)
	s.cands = []target.Address{1, 2, 3}

	require.NoError(t, s.Handle("c"))
	assert.Empty(t, s.cands)
	assert.Equal(t, target.Stack, s.active)
	assert.NotEmpty(t, out.String())

	s.cands = []target.Address{1, 2, 3}
	require.NoError(t, s.Handle("clear"))
	assert.Empty(t, s.cands)
}

func TestHandle_RegionSwitchClears(t *testing.T) {
	eng := newFakeEngine()
	s, _, _ := newTestSession(eng, &testHeap)
	s.cands = []target.Address{1, 2}

	require.NoError(t, s.Handle("h"))
	assert.Equal(t, target.Heap, s.active)
	assert.Empty(t, s.cands)

	require.NoError(t, s.Handle("5"))
	require.Len(t, eng.scans, 1)
	assert.Equal(t, testHeap, eng.scans[0])

	s.cands = []target.Address{1, 2}
	require.NoError(t, s.Handle("stack"))
	assert.Equal(t, target.Stack, s.active)
	assert.Empty(t, s.cands)
}

func TestHandle_SameRegionIsNoop(t *testing.T) {
	s, _, out := newTestSession(newFakeEngine(), &testHeap)
	s.cands = []target.Address{1, 2}

	require.NoError(t, s.Handle("s"))
	assert.Equal(t, target.Stack, s.active)
	assert.Equal(t, []target.Address{1, 2}, s.cands)
	assert.Empty(t, out.String())

	require.NoError(t, s.Handle("heap"))
	s.cands = []target.Address{3}
	out.Reset()
	require.NoError(t, s.Handle("h"))
	assert.Equal(t, target.Heap, s.active)
	assert.Equal(t, []target.Address{3}, s.cands)
	assert.Empty(t, out.String())
}

func TestHandle_HeapAbsent(t *testing.T) {
	s, _, out := newTestSession(newFakeEngine(), nil)
	s.cands = []target.Address{1, 2}

	require.NoError(t, s.Handle("h"))
	assert.Equal(t, target.Stack, s.active)
	assert.Equal(t, []target.Address{1, 2}, s.cands)
	assert.Empty(t, out.String())
}

func TestHandle_InvalidInput(t *testing.T) {
	for _, line := range []string{"-5", "abc", "+1", "1.5", "0x10", "stacks"} {
		eng := newFakeEngine()
		s, _, out := newTestSession(eng, nil)
		s.cands = []target.Address{1, 2}

		require.NoError(t, s.Handle(line))
		assert.Equal(t, []target.Address{1, 2}, s.cands)
		assert.Contains(t, out.String(), "invalid input")
		assert.Empty(t, eng.scans)
		assert.False(t, s.Done())
	}
}

func TestHandle_SearchErrorKeepsCandidates(t *testing.T) {
	eng := newFakeEngine()
	eng.err = errors.New("PTRACE_PEEKDATA: no such process")
	s, _, out := newTestSession(eng, nil)
	s.cands = []target.Address{1, 2}

	require.NoError(t, s.Handle("42"))
	assert.Equal(t, []target.Address{1, 2}, s.cands)
	assert.Contains(t, out.String(), "no such process")
	assert.False(t, s.Done())
}

func TestWrite_RepromptsOnInvalidValue(t *testing.T) {
	eng := newFakeEngine()
	eng.mem[0x7ffee0000010] = 42
	s, in, out := newTestSession(eng, nil, "x", "-1")

	require.NoError(t, s.Handle("42"))
	assert.Len(t, in.prompts, 2)
	assert.Contains(t, out.String(), "invalid value `x`")
	assert.Equal(t, ^target.Word(0), eng.writes[0x7ffee0000010])
}

func TestWrite_EmptyCancels(t *testing.T) {
	eng := newFakeEngine()
	eng.mem[0x7ffee0000010] = 42
	s, _, out := newTestSession(eng, nil, "")

	require.NoError(t, s.Handle("42"))
	assert.True(t, s.Done())
	assert.Empty(t, eng.writes)
	assert.Contains(t, out.String(), "nothing written")
}

func TestWrite_ErrorEndsSession(t *testing.T) {
	eng := newFakeEngine()
	eng.mem[0x7ffee0000010] = 42
	eng.writeErr = errors.New("PTRACE_POKEDATA: operation not permitted")
	s, _, _ := newTestSession(eng, nil, "1")

	err := s.Handle("42")
	assert.ErrorContains(t, err, "operation not permitted")
	assert.ErrorContains(t, err, "write 0x7ffee0000010")
	assert.Empty(t, eng.writes)
}

func TestRun(t *testing.T) {
	eng := newFakeEngine()
	eng.mem[0x7ffee0000010] = 42
	eng.mem[0x7ffee0000018] = 42

	s, _, out := newTestSession(eng, nil, "bogus", "42", "exit")
	require.NoError(t, s.Run())
	assert.True(t, s.Done())
	assert.Len(t, s.cands, 2)
	assert.True(t, strings.HasPrefix(out.String(), "process `counter` (pid 1234)"))
}

func TestRun_EOFExits(t *testing.T) {
	s, _, _ := newTestSession(newFakeEngine(), nil)
	require.NoError(t, s.Run())
	assert.True(t, s.Done())
}

func TestRun_CtrlC(t *testing.T) {
	s, in, _ := newTestSession(newFakeEngine(), nil)
	in.err = liner.ErrPromptAborted
	assert.ErrorIs(t, s.Run(), ErrInterrupted)
}
