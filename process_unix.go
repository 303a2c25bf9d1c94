//go:build !windows

package gladtex

import "syscall"

// texSysProcAttr starts external tools in their own process group so that
// a timeout can kill latex together with any children it spawned.
func texSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
