//go:build !tinygo

package dma

import "sync"

// cs stands in for interrupt masking on hosted builds, where interrupt
// handlers are ordinary goroutines.
var cs sync.Mutex

func critical(fn func()) {
	cs.Lock()
	defer cs.Unlock()
	fn()
}
