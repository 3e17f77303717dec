package session

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/hitzhangjie/memhack/pkg/target"
)

const (
	defaultRows = 24

	ansiClear = "\x1b[2J\x1b[H"
	ansiReset = "\x1b[0m"
	ansiStack = "\x1b[44;37;1m"
	ansiHeap  = "\x1b[45;37;1m"
	ansiError = "\x1b[31;1m"
	ansiNote  = "\x1b[36;1m"

	// lines drawn around the address list: header, region, usage, message,
	// list title, prompt
	chromeRows = 6

	usage = "value: scan/filter  c: clear  s: stack  h: heap  e: exit"
)

// TerminalRows returns the height of the terminal on fd, or a fixed
// fallback when fd is not a terminal.
func TerminalRows(fd int) func() int {
	return func() int {
		_, height, err := term.GetSize(fd)
		if err != nil || height <= 0 {
			return defaultRows
		}
		return height
	}
}

// view is what one redraw shows.
type view struct {
	name    string
	pid     int
	region  target.Region
	hasHeap bool
	passes  uint64
	cands   []target.Address
	msg     string
	isErr   bool
}

// screen 负责输出，不持有任何会话状态
type screen struct {
	out   io.Writer
	color bool
	rows  func() int
}

func (sc *screen) paint(code, text string) string {
	if !sc.color {
		return text
	}
	return code + text + ansiReset
}

func (sc *screen) draw(v view) {
	var b strings.Builder

	if sc.color {
		b.WriteString(ansiClear)
	}
	fmt.Fprintf(&b, "process `%s` (pid %d)  pass #%d\n", v.name, v.pid, v.passes)

	badge := " " + strings.ToUpper(v.region.Kind.String()) + " "
	code := ansiStack
	if v.region.Kind == target.Heap {
		code = ansiHeap
	}
	fmt.Fprintf(&b, "%s %s\n", sc.paint(code, badge), v.region)

	if v.hasHeap {
		b.WriteString(usage + "\n")
	} else {
		b.WriteString(usage + " (no heap)\n")
	}

	if v.msg != "" {
		if v.isErr {
			b.WriteString(sc.paint(ansiError, v.msg) + "\n")
		} else {
			b.WriteString(sc.paint(ansiNote, v.msg) + "\n")
		}
	} else {
		b.WriteString("\n")
	}

	sc.list(&b, v.cands)
	io.WriteString(sc.out, b.String())
}

// list writes the candidate addresses, truncated to fit the terminal.
func (sc *screen) list(b *strings.Builder, cands []target.Address) {
	if len(cands) == 0 {
		b.WriteString("no candidates, enter a value to scan\n")
		return
	}
	fmt.Fprintf(b, "%d candidates:\n", len(cands))

	limit := sc.rows() - chromeRows
	if limit < 1 {
		limit = 1
	}
	if len(cands) > limit {
		// keep one row for the "more" line
		limit--
	}
	for i, addr := range cands {
		if i == limit {
			fmt.Fprintf(b, "  ... and %d more\n", len(cands)-limit)
			break
		}
		fmt.Fprintf(b, "  %s\n", addr)
	}
}

// note prints msg below the current screen without redrawing it.
func (sc *screen) note(msg string, isErr bool) {
	code := ansiNote
	if isErr {
		code = ansiError
	}
	io.WriteString(sc.out, sc.paint(code, msg)+"\n")
}
