//go:build tinygo

package dma

import "runtime/interrupt"

// critical runs fn with interrupts masked.
func critical(fn func()) {
	state := interrupt.Disable()
	fn()
	interrupt.Restore(state)
}
