//go:build !linux && !darwin

package fs

import (
	"os"
	"time"
)

func statExtra(info os.FileInfo) (ino uint64, ctime, atime time.Time) {
	return 0, info.ModTime(), info.ModTime()
}
