package dma

import (
	"fmt"
	"math/bits"
)

// SetSourceLinearBuffer configures the channel to read buf front to back.
// The source address is restored to the start of buf when the major loop
// completes.
func SetSourceLinearBuffer[E Element](c *Channel, buf []E) {
	size := SizeOf[E]()
	c.SetSourceAddress(SliceAddress(buf))
	c.SetSourceOffset(int16(size))
	SetSourceAttributes[E](c, 0)
	c.SetSourceLastAddressAdjustment(-int32(len(buf) * size))
}

// SetDestinationLinearBuffer configures the channel to write buf front to
// back, restoring the destination address when the major loop completes.
func SetDestinationLinearBuffer[E Element](c *Channel, buf []E) {
	size := SizeOf[E]()
	c.SetDestinationAddress(SliceAddress(buf))
	c.SetDestinationOffset(int16(size))
	SetDestinationAttributes[E](c, 0)
	c.SetDestinationLastAddressAdjustment(-int32(len(buf) * size))
}

// SetSourceHardware configures the channel to read the fixed location reg,
// usually a peripheral data register.
func SetSourceHardware[E Element](c *Channel, reg *E) {
	c.SetSourceAddress(AddressOf(reg))
	c.SetSourceOffset(0)
	SetSourceAttributes[E](c, 0)
	c.SetSourceLastAddressAdjustment(0)
}

// SetDestinationHardware configures the channel to write the fixed
// location reg.
func SetDestinationHardware[E Element](c *Channel, reg *E) {
	c.SetDestinationAddress(AddressOf(reg))
	c.SetDestinationOffset(0)
	SetDestinationAttributes[E](c, 0)
	c.SetDestinationLastAddressAdjustment(0)
}

// SetSourceCircularBuffer configures the channel to read buf as a ring: the
// source address wraps to the start of buf instead of leaving it. The
// length of buf must be a power of two and buf must be aligned to its size
// in bytes.
func SetSourceCircularBuffer[E Element](c *Channel, buf []E) {
	addr, modulo := circular(buf)
	c.SetSourceAddress(addr)
	c.SetSourceOffset(int16(SizeOf[E]()))
	SetSourceAttributes[E](c, modulo)
	c.SetSourceLastAddressAdjustment(0)
}

// SetDestinationCircularBuffer is the destination counterpart of
// SetSourceCircularBuffer.
func SetDestinationCircularBuffer[E Element](c *Channel, buf []E) {
	addr, modulo := circular(buf)
	c.SetDestinationAddress(addr)
	c.SetDestinationOffset(int16(SizeOf[E]()))
	SetDestinationAttributes[E](c, modulo)
	c.SetDestinationLastAddressAdjustment(0)
}

func circular[E Element](buf []E) (addr uint32, modulo uint8) {
	n := len(buf)
	if n == 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("dma: circular buffer length %d is not a power of two", n))
	}
	size := uint32(n * SizeOf[E]())
	addr = SliceAddress(buf)
	if addr%size != 0 {
		panic(fmt.Sprintf("dma: circular buffer at %#x is not aligned to %d bytes", addr, size))
	}
	return addr, uint8(bits.TrailingZeros32(size))
}

// iterations checks that a buffer of n elements fits one major loop.
func iterations(n int) uint16 {
	if n == 0 {
		panic("dma: empty buffer")
	}
	if n > MaxIterations {
		panic(fmt.Sprintf("dma: %d elements exceed the maximum of %d", n, MaxIterations))
	}
	return uint16(n)
}
