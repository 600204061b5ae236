//go:build !linux && !darwin

package walker

import (
	"os"
	"time"
)

// statTimes is a no-op on platforms without the extended timestamps;
// callers fall back to mtime.
func statTimes(info os.FileInfo) (atime, ctime time.Time, ok bool) {
	return time.Time{}, time.Time{}, false
}
