//go:build windows

package gladtex

import "syscall"

// texSysProcAttr is a no-op on Windows; process.KillProcessGroup uses
// taskkill /T for tree kills instead.
func texSysProcAttr() *syscall.SysProcAttr {
	return nil
}
