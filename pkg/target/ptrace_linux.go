//go:build linux

package target

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// PtraceOps 通过 ptrace 控制目标进程
type PtraceOps struct {
	once     *sync.Once
	reqCh    chan func() // ptrace请求统一发送到这里，由专门协程处理
	reqDone  chan int    // ptrace请求完成
	stopOnce *sync.Once
	stopCh   chan int // 通知需要停止
}

// NewPtracer returns the ptrace backed Ptracer.
func NewPtracer() *PtraceOps {
	return &PtraceOps{
		once:     &sync.Once{},
		reqCh:    make(chan func()),
		reqDone:  make(chan int),
		stopOnce: &sync.Once{},
		stopCh:   make(chan int),
	}
}

// exec runs fn on the dedicated tracer thread and waits for it.
func (p *PtraceOps) exec(fn func()) {
	p.once.Do(func() {
		go func() {
			// ensure all ptrace requests goes via the same tracer (thread)
			//
			// issue: https://github.com/golang/go/issues/7699
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			for {
				select {
				case reqFn := <-p.reqCh:
					reqFn()
					p.reqDone <- 1
				case <-p.stopCh:
					return
				}
			}
		}()
	})
	p.reqCh <- fn
	<-p.reqDone
}

// Close stops the tracer thread. Requests after Close block forever.
func (p *PtraceOps) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *PtraceOps) Attach(pid int) error {
	var err error
	p.exec(func() {
		err = unix.PtraceAttach(pid)
	})
	return err
}

// Wait blocks until pid reports a stop.
func (p *PtraceOps) Wait(pid int) error {
	var err error
	p.exec(func() {
		var ws unix.WaitStatus
		for {
			_, err = unix.Wait4(pid, &ws, unix.WALL, nil)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return
			}
			switch {
			case ws.Stopped():
				return
			case ws.Exited():
				err = fmt.Errorf("process exited with status %d", ws.ExitStatus())
				return
			case ws.Signaled():
				err = fmt.Errorf("process killed by %v", ws.Signal())
				return
			}
		}
	})
	return err
}

func (p *PtraceOps) PeekWord(pid int, addr Address) (Word, error) {
	var (
		buf = make([]byte, WordSize)
		n   int
		err error
	)
	p.exec(func() {
		n, err = unix.PtracePeekData(pid, uintptr(addr), buf)
	})
	if err != nil {
		return 0, err
	}
	if n != WordSize {
		return 0, io.ErrUnexpectedEOF
	}
	return decodeWord(buf), nil
}

func (p *PtraceOps) PokeWord(pid int, addr Address, w Word) error {
	var (
		buf = make([]byte, WordSize)
		n   int
		err error
	)
	encodeWord(buf, w)
	p.exec(func() {
		n, err = unix.PtracePokeData(pid, uintptr(addr), buf)
	})
	if err != nil {
		return err
	}
	if n != WordSize {
		return io.ErrShortWrite
	}
	return nil
}

func (p *PtraceOps) Detach(pid int) error {
	var err error
	p.exec(func() {
		err = unix.PtraceDetach(pid)
	})
	return err
}

// vmReader reads another process's memory with process_vm_readv.
type vmReader struct{}

// NewMemoryReader returns the process_vm_readv backed MemoryReader.
func NewMemoryReader() MemoryReader {
	return vmReader{}
}

func (vmReader) ReadMemory(pid int, addr Address, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	return unix.ProcessVMReadv(pid, local, remote, 0)
}
