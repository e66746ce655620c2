//go:build tinygo && cortexm

package ral

import "device/arm"

// Fence orders every earlier register and memory access before every
// later one.
func Fence() {
	arm.Asm("dmb 0xf")
}
