//go:build windows

package main

import (
	"os"
	"strings"
)

// listenForKeyboard reads keys line by line; the console stays in cooked mode.
func listenForKeyboard(s shortcuts) {
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
