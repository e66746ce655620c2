// package dma implements a driver for the i.MX RT enhanced DMA
// controller (eDMA) and its request multiplexer (DMAMUX).
//
// A Dma owns the register blocks and the per-channel waker slots. Channels
// are allocated from it, configured through their transfer control
// descriptor, and driven to completion by a Transfer or one of the derived
// operations (Memcpy, Read, Write, FullDuplex). The interrupt handlers of
// the integrating platform call OnInterrupt and OnError.
package dma

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"unsafe"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// MaxChannels is the largest channel count of any supported chip.
const MaxChannels = ral.MaxChannels

var (
	ErrChannelInUse = errors.New("dma: channel in use")
	ErrNoChannel    = errors.New("dma: no available channel")
)

// Dma is a DMA controller: an eDMA register block, the DMAMUX that
// routes requests to it, and the wakers of in-flight transfers.
type Dma struct {
	regs  *ral.DMA
	mux   *ral.DMAMUX
	count int

	// wakers is only accessed inside critical.
	wakers [MaxChannels]Waker

	mu sync.Mutex
	// allocated tracks the bitset of channels handed out
	// and not yet released.
	allocated uint32
}

// New creates a controller for the eDMA block at dmaBase and the DMAMUX
// block at muxBase, with channels usable channels. It is meant to be called
// once per controller, typically from package initialization of the
// platform support.
func New(dmaBase, muxBase unsafe.Pointer, channels int) *Dma {
	if channels <= 0 || channels > MaxChannels {
		panic(fmt.Sprintf("dma: channel count %d out of range [1, %d]", channels, MaxChannels))
	}
	return &Dma{
		regs:  (*ral.DMA)(dmaBase),
		mux:   (*ral.DMAMUX)(muxBase),
		count: channels,
	}
}

// Count returns the number of channels of the controller.
func (d *Dma) Count() int {
	return d.count
}

// Channel allocates the channel at index. It panics if index is not in
// [0, Count()) and returns ErrChannelInUse if the channel was allocated and
// not released.
func (d *Dma) Channel(index int) (*Channel, error) {
	d.checkIndex(index)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.allocated&(0b1<<index) != 0 {
		return nil, ErrChannelInUse
	}
	d.allocated |= 0b1 << index
	return d.channel(index), nil
}

// Reserve allocates the lowest numbered free channel.
func (d *Dma) Reserve() (*Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	index := bits.TrailingZeros32(^d.allocated)
	if index >= d.count {
		return nil, ErrNoChannel
	}
	d.allocated |= 0b1 << index
	return d.channel(index), nil
}

func (d *Dma) release(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocated &^= 0b1 << index
}

func (d *Dma) checkIndex(index int) {
	if index < 0 || index >= d.count {
		panic(fmt.Sprintf("dma: channel %d out of range [0, %d)", index, d.count))
	}
}

// channel returns a handle to the channel at index without consulting the
// allocation bitset, for interrupt dispatch.
func (d *Dma) channel(index int) *Channel {
	d.checkIndex(index)
	return &Channel{
		index: index,
		dma:   d,
		tcd:   &d.regs.TCD[index],
	}
}

func (d *Dma) setWaker(index int, w Waker) {
	critical(func() {
		d.wakers[index] = w
	})
}

func (d *Dma) takeWaker(index int) Waker {
	var w Waker
	critical(func() {
		w = d.wakers[index]
		d.wakers[index] = nil
	})
	return w
}
