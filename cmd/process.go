package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hitzhangjie/memhack/pkg/target"
)

// process 待编辑进程的信息，启动时从 procfs 读取一次
type process struct {
	pid   int
	name  string
	stack target.Region
	heap  *target.Region // nil: 没有 [heap]
}

// parsePid validates a pid command line argument.
func parsePid(arg string) (int, error) {
	pid, err := strconv.Atoi(arg)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", arg)
	}
	return pid, nil
}

// openProcess checks that pid exists and reads its name and memory map.
func openProcess(procfs target.ProcFS, arg string) (*process, error) {
	pid, err := parsePid(arg)
	if err != nil {
		return nil, err
	}
	if err := procfs.CheckPid(pid); err != nil {
		return nil, err
	}

	name, err := procfs.Comm(pid)
	if err != nil {
		return nil, err
	}

	stack, heap, err := procfs.Maps(pid)
	if err != nil {
		return nil, err
	}

	return &process{pid: pid, name: name, stack: stack, heap: heap}, nil
}

// describe prints the process name and its regions.
func (p *process) describe(w io.Writer) {
	fmt.Fprintf(w, "process `%s`\n\n", p.name)
	fmt.Fprintln(w, p.stack)
	if p.heap != nil {
		fmt.Fprintln(w, *p.heap)
	} else {
		fmt.Fprintln(w, "no heap")
	}
}
