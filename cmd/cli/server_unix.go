//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr starts the server in its own session so closing the
// terminal does not stop it
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
