//go:build tinygo && !cortexm

package ral

import "sync/atomic"

var barrier uint32

// Fence orders every earlier register and memory access before every
// later one.
func Fence() {
	atomic.AddUint32(&barrier, 1)
}
