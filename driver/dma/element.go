package dma

import (
	"unsafe"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// Element is a value the engine can move in one read or write.
type Element interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32
}

// SizeOf returns the size of E in bytes.
func SizeOf[E Element]() int {
	var e E
	return int(unsafe.Sizeof(e))
}

// TransferID returns the hardware encoding of the size of E.
func TransferID[E Element]() uint8 {
	switch SizeOf[E]() {
	case 1:
		return 0
	case 2:
		return 1
	default:
		return 2
	}
}

// AddressOf returns the bus address of the element at p, typically a
// peripheral data register.
func AddressOf[E Element](p *E) uint32 {
	return ral.BusAddress(unsafe.Pointer(p), uintptr(SizeOf[E]()))
}

// SliceAddress returns the bus address of the first element of buf. The
// address depends only on where buf starts: every slice of the same backing
// array maps to the same bus addresses.
func SliceAddress[E Element](buf []E) uint32 {
	return ral.BusAddress(unsafe.Pointer(unsafe.SliceData(buf)), uintptr(cap(buf)*SizeOf[E]()))
}
