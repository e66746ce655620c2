//go:build !tinygo

package ral

import (
	"math/bits"
	"sync"
	"unsafe"
)

// Host pointers are wider than the 32-bit DMA address bus, so memory handed
// to the controller is assigned a window of a synthetic bus address space.
// Windows are aligned to the next power of two of their size, so modulo
// (circular) addressing sees the same alignment it would on hardware. A
// window extended in place keeps the alignment it was created with.

const windowBase = 0x2000_0000

type window struct {
	bus  uint32
	size uintptr
	// p keeps the memory reachable while the controller may address it.
	p unsafe.Pointer
}

var (
	addrMu  sync.Mutex
	windows []window
	nextBus uint64 = windowBase
)

// BusAddress returns the address the DMA controller uses to reach the
// size bytes starting at p. Locations inside memory that was previously
// mapped keep their offset within that mapping, and a mapping that starts
// inside an earlier one extends it in place when the bus space after it is
// free.
//
// Mappings are never removed: mapped memory stays reachable, and its bus
// space stays allocated, for the life of the process. Callers that move
// data through many short-lived buffers should reuse a buffer instead.
func BusAddress(p unsafe.Pointer, size uintptr) uint32 {
	if p == nil {
		return 0
	}
	addrMu.Lock()
	defer addrMu.Unlock()
	host := uintptr(p)
	for i, w := range windows {
		base := uintptr(w.p)
		if host < base || host >= base+max(w.size, 1) {
			continue
		}
		if host+size <= base+w.size {
			return w.bus + uint32(host-base)
		}
		if grown := host + size - base; extend(&windows[i], grown) {
			return w.bus + uint32(host-base)
		}
	}
	align := alignment(size)
	bus := (nextBus + align - 1) &^ (align - 1)
	if bus+uint64(size) > 1<<32 {
		panic("ral: bus address space exhausted")
	}
	nextBus = bus + max(uint64(size), 4)
	windows = append(windows, window{bus: uint32(bus), size: size, p: p})
	return uint32(bus)
}

// extend grows w to size if w is the last window. The window keeps the
// alignment of its original size.
func extend(w *window, size uintptr) bool {
	if uint64(w.bus)+max(uint64(w.size), 4) != nextBus {
		return false
	}
	if uint64(w.bus)+uint64(size) > 1<<32 {
		return false
	}
	w.size = size
	nextBus = uint64(w.bus) + max(uint64(size), 4)
	return true
}

func alignment(size uintptr) uint64 {
	if size <= 4 {
		return 4
	}
	return 1 << bits.Len64(uint64(size)-1)
}

// Resolve returns the host memory behind n bytes at bus address addr, or
// false if the range is not entirely inside one mapping.
func Resolve(addr uint32, n uintptr) (unsafe.Pointer, bool) {
	addrMu.Lock()
	defer addrMu.Unlock()
	for _, w := range windows {
		if w.bus <= addr && uintptr(addr-w.bus)+n <= w.size {
			return unsafe.Add(w.p, addr-w.bus), true
		}
	}
	return nil, false
}
