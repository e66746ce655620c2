package dma

import (
	"fmt"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// MaxIterations is the largest major loop count of a channel without
// channel linking.
const MaxIterations = ral.ITER_Msk

// periodicChannels is the number of channels with a periodic trigger.
const periodicChannels = 4

// Channel is an allocated DMA channel. Setters configure its transfer
// control descriptor (TCD) and DMAMUX route; they must not be called while
// a transfer on the channel is in progress.
type Channel struct {
	index int
	dma   *Dma
	tcd   *ral.TCD
}

// Index returns the channel number.
func (c *Channel) Index() int {
	return c.index
}

// Release returns the channel to its controller. The channel must not be
// used afterwards.
func (c *Channel) Release() {
	c.dma.release(c.index)
}

func (c *Channel) mask() uint32 {
	return 0b1 << c.index
}

// Reset disables the channel, clears its error and interrupt flags, and
// zeroes its transfer control descriptor.
func (c *Channel) Reset() {
	regs := c.dma.regs
	regs.CERQ.Set(uint8(c.index))
	regs.CERR.Set(uint8(c.index))
	regs.CINT.Set(uint8(c.index))
	c.tcd.Reset()
}

// SetSourceAddress sets the bus address of the first source element.
func (c *Channel) SetSourceAddress(addr uint32) {
	c.tcd.SADDR.Set(addr)
}

// SourceAddress returns the current source address.
func (c *Channel) SourceAddress() uint32 {
	return c.tcd.SADDR.Get()
}

// SetSourceOffset sets the signed byte offset applied to the source address
// after each read.
func (c *Channel) SetSourceOffset(offset int16) {
	c.tcd.SOFF.Set(uint16(offset))
}

// SetSourceLastAddressAdjustment sets the signed byte adjustment applied to
// the source address when the major loop completes.
func (c *Channel) SetSourceLastAddressAdjustment(adj int32) {
	c.tcd.SLAST.Set(uint32(adj))
}

// SetDestinationAddress sets the bus address of the first destination
// element.
func (c *Channel) SetDestinationAddress(addr uint32) {
	c.tcd.DADDR.Set(addr)
}

// DestinationAddress returns the current destination address.
func (c *Channel) DestinationAddress() uint32 {
	return c.tcd.DADDR.Get()
}

func (c *Channel) SetDestinationOffset(offset int16) {
	c.tcd.DOFF.Set(uint16(offset))
}

func (c *Channel) SetDestinationLastAddressAdjustment(adj int32) {
	c.tcd.DLASTSGA.Set(uint32(adj))
}

// SetSourceAttributes sets the element size of source reads and the
// modulo (circular buffer) field. A modulo of 0 disables address wrapping;
// a modulo of n keeps the upper address bits fixed and wraps the lower n.
func SetSourceAttributes[E Element](c *Channel, modulo uint8) {
	c.tcd.SATTR.Set(attributes[E](modulo))
}

// SetDestinationAttributes is the destination counterpart of
// SetSourceAttributes.
func SetDestinationAttributes[E Element](c *Channel, modulo uint8) {
	c.tcd.DATTR.Set(attributes[E](modulo))
}

func attributes[E Element](modulo uint8) uint8 {
	if modulo > ral.ATTR_MOD_Msk>>ral.ATTR_MOD_Pos {
		panic(fmt.Sprintf("dma: modulo %d out of range", modulo))
	}
	return modulo<<ral.ATTR_MOD_Pos | TransferID[E]()
}

// SetMinorLoopBytes sets the number of bytes moved per service request.
func (c *Channel) SetMinorLoopBytes(n uint32) {
	c.tcd.NBYTES.Set(n)
}

// SetTransferIterations sets both the current and the beginning major loop
// counts. It panics if n exceeds MaxIterations.
func (c *Channel) SetTransferIterations(n uint16) {
	if n > MaxIterations {
		panic(fmt.Sprintf("dma: %d iterations exceed the maximum of %d", n, MaxIterations))
	}
	c.tcd.CITER.Set(n)
	c.tcd.BITER.Set(n)
}

// TransferIterations returns the remaining major loop count.
func (c *Channel) TransferIterations() uint16 {
	return c.tcd.CITER.Get() & ral.ITER_Msk
}

// BandwidthControl throttles the engine after each read/write pair.
type BandwidthControl uint8

const (
	NoStall BandwidthControl = 0b00
	// Stall4 stalls the engine for 4 cycles.
	Stall4 BandwidthControl = 0b10
	// Stall8 stalls the engine for 8 cycles.
	Stall8 BandwidthControl = 0b11
)

func (c *Channel) SetBandwidthControl(bwc BandwidthControl) {
	csr := c.tcd.CSR.Get() &^ ral.CSR_BWC_Msk
	c.tcd.CSR.Set(csr | uint16(bwc)<<ral.CSR_BWC_Pos)
}

// SetDisableOnCompletion makes the hardware clear the channel's enable
// request when the major loop completes.
func (c *Channel) SetDisableOnCompletion(disable bool) {
	c.setCSR(ral.CSR_DREQ, disable)
}

// SetInterruptOnCompletion raises the channel interrupt when the major loop
// completes.
func (c *Channel) SetInterruptOnCompletion(intr bool) {
	c.setCSR(ral.CSR_INTMAJOR, intr)
}

// SetInterruptOnHalfComplete raises the channel interrupt when the major
// loop is half done.
func (c *Channel) SetInterruptOnHalfComplete(intr bool) {
	c.setCSR(ral.CSR_INTHALF, intr)
}

func (c *Channel) setCSR(mask uint16, set bool) {
	if set {
		c.tcd.CSR.SetBits(mask)
	} else {
		c.tcd.CSR.ClearBits(mask)
	}
}

// SetErrorInterrupt routes errors on the channel to the error interrupt.
func (c *Channel) SetErrorInterrupt(intr bool) {
	if intr {
		c.dma.regs.SEEI.Set(uint8(c.index))
	} else {
		c.dma.regs.CEEI.Set(uint8(c.index))
	}
}

// SetPriority sets the fixed arbitration priority of the channel. Channel
// priorities must be unique while fixed arbitration is in effect.
func (c *Channel) SetPriority(prio uint8) {
	r := &c.dma.regs.DCHPRI[c.index^3]
	r.Set(r.Get()&^ral.DCHPRI_CHPRI_Msk | prio&ral.DCHPRI_CHPRI_Msk)
}

// Configuration is a DMAMUX route for a channel: Off, Enable or AlwaysOn.
type Configuration interface {
	chcfg(index int) uint32
}

// Off disconnects the channel from every request source. Use it for
// software started transfers such as memory to memory copies.
type Off struct{}

// Enable routes the peripheral request Source to the channel. Periodic
// gates the request with the periodic interrupt timer and is only available
// on channels 0 through 3.
type Enable struct {
	Source   uint32
	Periodic bool
}

// AlwaysOn keeps the channel's request asserted.
type AlwaysOn struct{}

func (Off) chcfg(int) uint32 {
	return 0
}

func (e Enable) chcfg(index int) uint32 {
	if e.Source > ral.CHCFG_SOURCE_Msk {
		panic(fmt.Sprintf("dma: request source %d out of range", e.Source))
	}
	v := e.Source | ral.CHCFG_ENBL
	if e.Periodic {
		if index >= periodicChannels {
			panic(fmt.Sprintf("dma: channel %d has no periodic trigger", index))
		}
		v |= ral.CHCFG_TRIG
	}
	return v
}

func (AlwaysOn) chcfg(int) uint32 {
	return ral.CHCFG_ENBL | ral.CHCFG_A_ON
}

// SetChannelConfiguration sets the DMAMUX route of the channel with a
// single register write.
func (c *Channel) SetChannelConfiguration(cfg Configuration) {
	c.dma.mux.CHCFG[c.index].Set(cfg.chcfg(c.index))
}

// Enable lets the channel accept service requests. The caller must ensure
// the transfer control descriptor and buffers are valid for as long as the
// channel stays enabled.
func (c *Channel) Enable() {
	c.dma.regs.SERQ.Set(uint8(c.index))
}

// Start requests a software service of the channel. The caller must ensure
// the transfer control descriptor and buffers are valid for the duration of
// the transfer.
func (c *Channel) Start() {
	c.dma.regs.SSRT.Set(uint8(c.index))
}

// Disable stops the channel from accepting service requests. A minor loop
// already in progress completes.
func (c *Channel) Disable() {
	c.dma.regs.CERQ.Set(uint8(c.index))
}

func (c *Channel) IsEnabled() bool {
	return c.dma.regs.ERQ.HasBits(c.mask())
}

// IsActive reports whether the engine is servicing the channel.
func (c *Channel) IsActive() bool {
	return c.tcd.CSR.HasBits(ral.CSR_ACTIVE)
}

// IsComplete reports whether the major loop completed.
func (c *Channel) IsComplete() bool {
	return c.tcd.CSR.HasBits(ral.CSR_DONE)
}

func (c *Channel) ClearComplete() {
	c.dma.regs.CDNE.Set(uint8(c.index))
}

func (c *Channel) IsError() bool {
	return c.dma.regs.ERR.HasBits(c.mask())
}

// ErrorStatus returns a snapshot of the controller error status. It
// describes the most recent error of any channel.
func (c *Channel) ErrorStatus() ErrorStatus {
	return ErrorStatus(c.dma.regs.ES.Get())
}

func (c *Channel) ClearError() {
	c.dma.regs.CERR.Set(uint8(c.index))
}

func (c *Channel) IsInterrupt() bool {
	return c.dma.regs.INT.HasBits(c.mask())
}

func (c *Channel) ClearInterrupt() {
	c.dma.regs.CINT.Set(uint8(c.index))
}

// IsHardwareSignaling reports whether a peripheral is asserting a service
// request to the channel.
func (c *Channel) IsHardwareSignaling() bool {
	return c.dma.regs.HRS.HasBits(c.mask())
}
