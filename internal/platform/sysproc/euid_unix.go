//go:build unix

package sysproc

import "golang.org/x/sys/unix"

func currentEUID() (int, error) {
	return unix.Geteuid(), nil
}
