//go:build !unix

package filestore

import "io/fs"

func fileKey(fs.FileInfo) (string, bool) { return "", false }
