//go:build darwin

package main

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// listenForKeyboard reads single keystrokes from a terminal until a shortcut
// asks to stop.
func listenForKeyboard(s shortcuts) {
	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TIOCGETA)
	if err != nil {
		// not a terminal
		return
	}

	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TIOCSETA, &newState); err != nil {
		return
	}
	defer unix.IoctlSetTermios(fd, unix.TIOCSETA, oldState)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if !s.handle(strings.ToLower(string(buf[0]))) {
			return
		}
	}
}
