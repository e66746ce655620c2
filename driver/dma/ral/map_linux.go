//go:build linux && !tinygo

package ral

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mapping is a window of physical memory mapped into the process.
type Mapping struct {
	data []byte
	off  uintptr
}

// Map maps size bytes of physical address space starting at base through
// the memory device at path, usually "/dev/mem". The register block at base
// is then reachable through Pointer.
func Map(path string, base uintptr, size int) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("ral: %w", err)
	}
	// The mapping outlives the descriptor.
	defer f.Close()
	page := uintptr(unix.Getpagesize())
	start := base &^ (page - 1)
	off := base - start
	length := int((off + uintptr(size) + page - 1) &^ (page - 1))
	data, err := unix.Mmap(int(f.Fd()), int64(start), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("ral: mmap %#x: %w", base, err)
	}
	return &Mapping{data: data, off: off}, nil
}

// Pointer returns the address of the first mapped byte.
func (m *Mapping) Pointer() unsafe.Pointer {
	return unsafe.Pointer(&m.data[m.off])
}

func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
