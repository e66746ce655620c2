//go:build !tinygo

package ral

import (
	"sync"
	"unsafe"
)

// bus serializes register accesses from every goroutine, the way a single
// bus serializes accesses from the CPU and the DMA engine.
var bus sync.Mutex

type word interface {
	~uint8 | ~uint16 | ~uint32
}

// reg is a memory-backed register with the layout of its hardware
// counterpart.
type reg[T word] struct {
	v T
}

type (
	Reg8  = reg[uint8]
	Reg16 = reg[uint16]
	Reg32 = reg[uint32]
)

func (r *reg[T]) Get() T {
	bus.Lock()
	v := r.v
	bus.Unlock()
	return v
}

func (r *reg[T]) Set(v T) {
	bus.Lock()
	r.v = v
	bus.Unlock()
	written(unsafe.Pointer(r))
}

func (r *reg[T]) SetBits(mask T) {
	bus.Lock()
	r.v |= mask
	bus.Unlock()
	written(unsafe.Pointer(r))
}

func (r *reg[T]) ClearBits(mask T) {
	bus.Lock()
	r.v &^= mask
	bus.Unlock()
	written(unsafe.Pointer(r))
}

func (r *reg[T]) HasBits(mask T) bool {
	return r.Get()&mask != 0
}

// Fence orders every earlier register and memory access before every
// later one.
func Fence() {
	bus.Lock()
	defer bus.Unlock()
}

type watcher struct {
	lo, hi uintptr
	fn     func(off uintptr)
}

var (
	watchMu  sync.Mutex
	watchers []*watcher
)

// Watch calls fn with the byte offset from base of every register write
// that lands in [base, base+size). fn runs on the writing goroutine after
// the write is visible. The returned function removes the watch.
func Watch(base unsafe.Pointer, size uintptr, fn func(off uintptr)) (cancel func()) {
	w := &watcher{
		lo: uintptr(base),
		hi: uintptr(base) + size,
		fn: fn,
	}
	watchMu.Lock()
	watchers = append(watchers, w)
	watchMu.Unlock()
	return func() {
		watchMu.Lock()
		defer watchMu.Unlock()
		for i, o := range watchers {
			if o == w {
				watchers = append(watchers[:i], watchers[i+1:]...)
				return
			}
		}
	}
}

func written(p unsafe.Pointer) {
	addr := uintptr(p)
	var hits [4]*watcher
	matched := hits[:0]
	watchMu.Lock()
	for _, w := range watchers {
		if w.lo <= addr && addr < w.hi {
			matched = append(matched, w)
		}
	}
	watchMu.Unlock()
	// Callbacks run unlocked, because they may write registers themselves.
	for _, w := range matched {
		w.fn(addr - w.lo)
	}
}
