//go:build windows

package storage

import (
	"os"
	"path/filepath"
)

// On windows, a data file placed at the root of a drive has the volume itself
// as its parent, and MkdirAll fails on "C:\". Only directories below the
// volume root are created.
func init() {
	osSpecificEnsureDir = func(o osOps, dir string, mode os.FileMode) error {
		if isVolumeRoot(dir) {
			return nil
		}
		return o.MkdirAll(dir, mode)
	}
}

func isVolumeRoot(dir string) bool {
	return dir == filepath.VolumeName(dir)+string(os.PathSeparator)
}
