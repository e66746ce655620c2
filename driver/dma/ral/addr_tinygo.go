//go:build tinygo

package ral

import "unsafe"

// BusAddress returns the address the DMA controller uses to reach the
// size bytes starting at p.
func BusAddress(p unsafe.Pointer, size uintptr) uint32 {
	return uint32(uintptr(p))
}
