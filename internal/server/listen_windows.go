//go:build windows

package server

import "syscall"

// setReuseAddr is a no-op on Windows; SO_REUSEADDR has different (and
// looser) semantics there and isn't needed for this simulator.
func setReuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
