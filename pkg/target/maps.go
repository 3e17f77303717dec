package target

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseMaps 从 maps 文件内容中找出 [stack] 和 [heap] 区域
//
// Only lines ending in `]` are inspected. The first whitespace delimited
// token of a matching line is the `start-end` range in hex. Parsing stops as
// soon as both regions are known. A missing heap is not an error and yields
// a nil heap, a missing stack is.
func ParseMaps(pid int, r io.Reader) (Region, *Region, error) {
	var (
		stack, heap *Region
		lineno      int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineno++
		line := scanner.Text()

		if len(line) == 0 {
			return Region{}, nil, &ParseError{Pid: pid, Line: lineno, Reason: "empty line"}
		}
		if line[len(line)-1] != ']' {
			continue
		}

		open := strings.LastIndexByte(line, '[')
		if open < 0 {
			return Region{}, nil, &ParseError{Pid: pid, Line: lineno, Reason: "no matching bracket"}
		}

		var kind RegionKind
		switch line[open:] {
		case Stack.tag():
			kind = Stack
		case Heap.tag():
			kind = Heap
		default:
			continue
		}

		region, err := parseRange(line, kind)
		if err != nil {
			return Region{}, nil, &ParseError{Pid: pid, Line: lineno, Reason: err.Error()}
		}

		if kind == Stack {
			stack = &region
		} else {
			heap = &region
		}
		if stack != nil && heap != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Region{}, nil, &ParseError{Pid: pid, Reason: "read", Err: err}
	}

	if stack == nil {
		return Region{}, nil, &ParseError{Pid: pid, Err: ErrNoStack}
	}
	return *stack, heap, nil
}

// parseRange parses the leading `start-end` token of a maps entry.
//
// Both halves have the same width, so the token is split at its midpoint.
func parseRange(line string, kind RegionKind) (Region, error) {
	space := strings.IndexByte(line, ' ')
	if space < 0 {
		return Region{}, fmt.Errorf("no space separator")
	}

	tok := line[:space]
	dash := (len(tok)-1)/2 + 1
	if len(tok) < 3 || tok[dash-1] != '-' {
		return Region{}, fmt.Errorf("malformed address range %q", tok)
	}

	start, err := strconv.ParseUint(tok[:dash-1], 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("bad start address: %v", err)
	}
	end, err := strconv.ParseUint(tok[dash:], 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("bad end address: %v", err)
	}
	if start >= end {
		return Region{}, fmt.Errorf("empty range %q", tok)
	}

	return Region{Kind: kind, Start: Address(start), End: Address(end)}, nil
}
