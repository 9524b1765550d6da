//go:build unix

package filestore

import (
	"fmt"
	"io/fs"
	"syscall"
)

// fileKey identifies a file by device and inode; both survive a rename inside its folder.
func fileKey(info fs.FileInfo) (string, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%x-%x", uint64(st.Dev), uint64(st.Ino)), true
}
