//go:build linux || darwin

package fs

import (
	"os"
	"syscall"
	"time"
)

// statExtra pulls inode, ctime and atime out of a FileInfo's underlying
// syscall.Stat_t, falling back to mtime for ctime/atime (and inode 0) when
// Sys() isn't a *syscall.Stat_t.
func statExtra(info os.FileInfo) (ino uint64, ctime, atime time.Time) {
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, info.ModTime(), info.ModTime()
	}
	return uint64(sys.Ino), statCtime(sys), statAtime(sys)
}
