//go:build !unix

package sysproc

import "errors"

// Without a uid model every process is treated as needing elevation.
func currentEUID() (int, error) {
	return -1, errors.New("effective uid unavailable on this platform")
}
