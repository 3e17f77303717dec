package session

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

var clearSeq = []byte(ansiClear)

// InstallInterruptHandler clears the terminal and exits when SIGINT or
// SIGTERM arrives. Call the returned function to uninstall it.
//
// A tracee that is attached at that moment is resumed by the kernel when
// this process dies.
func InstallInterruptHandler() (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)

	go func() {
		select {
		case <-ch:
			Abort()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// Abort clears the terminal with a raw write on fd 1 and exits at once.
// Deferred functions do not run.
func Abort() {
	_, _ = unix.Write(unix.Stdout, clearSeq)
	os.Exit(130)
}
