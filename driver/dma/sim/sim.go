//go:build !tinygo

// Package sim is a software model of the eDMA controller and DMAMUX. It
// allocates both register blocks in ordinary memory, observes the command
// register writes of a driver, and moves data on its own goroutine the way
// the hardware engine would.
package sim

import (
	"io"
	"log"
	"sync"
	"unsafe"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// Engine is a simulated eDMA controller with its DMAMUX.
type Engine struct {
	regs *ral.DMA
	mux  *ral.DMAMUX
	log  *log.Logger

	kick      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	unwatch   []func()

	// hrsMu serializes recomputations of HRS.
	hrsMu sync.Mutex

	mu          sync.Mutex
	periphs     []*Peripheral
	onInterrupt func(ch int)
	onError     func()
	tracing     bool
	trace       []Record
	pending     [ral.MaxChannels]Record
}

type Option func(e *Engine)

// WithLogger logs engine errors and completions to l.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithTrace records every completed or failed major loop.
func WithTrace() Option {
	return func(e *Engine) {
		e.tracing = true
	}
}

// Offsets of the registers with side effects.
var (
	layout ral.DMA

	offCEEI = unsafe.Offsetof(layout.CEEI)
	offSEEI = unsafe.Offsetof(layout.SEEI)
	offCERQ = unsafe.Offsetof(layout.CERQ)
	offSERQ = unsafe.Offsetof(layout.SERQ)
	offCDNE = unsafe.Offsetof(layout.CDNE)
	offSSRT = unsafe.Offsetof(layout.SSRT)
	offCERR = unsafe.Offsetof(layout.CERR)
	offCINT = unsafe.Offsetof(layout.CINT)
)

// New starts a simulated controller. Close stops it.
func New(opts ...Option) *Engine {
	e := &Engine{
		regs: new(ral.DMA),
		mux:  new(ral.DMAMUX),
		log:  log.New(io.Discard, "", 0),
		kick: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	e.unwatch = append(e.unwatch,
		ral.Watch(unsafe.Pointer(e.regs), unsafe.Sizeof(*e.regs), e.dmaWritten),
		ral.Watch(unsafe.Pointer(e.mux), unsafe.Sizeof(*e.mux), e.muxWritten),
	)
	go e.run()
	return e
}

// Registers returns the eDMA register block.
func (e *Engine) Registers() *ral.DMA {
	return e.regs
}

// Mux returns the DMAMUX register block.
func (e *Engine) Mux() *ral.DMAMUX {
	return e.mux
}

// OnInterrupt installs the handler of the channel interrupts. Handlers run
// on the engine goroutine, which stands in for interrupt context.
func (e *Engine) OnInterrupt(h func(ch int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onInterrupt = h
}

// OnErrorInterrupt installs the handler of the error interrupt.
func (e *Engine) OnErrorInterrupt(h func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = h
}

// Close stops the engine.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		for _, u := range e.unwatch {
			u()
		}
		close(e.quit)
		<-e.done
	})
}

func (e *Engine) wake() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// dmaWritten applies the effect of a register write. It runs on the
// writing goroutine, so command effects are visible when the write
// returns.
func (e *Engine) dmaWritten(off uintptr) {
	r := e.regs
	switch off {
	case offSEEI:
		r.EEI.SetBits(command(&r.SEEI))
	case offCEEI:
		r.EEI.ClearBits(command(&r.CEEI))
	case offSERQ:
		r.ERQ.SetBits(command(&r.SERQ))
	case offCERQ:
		r.ERQ.ClearBits(command(&r.CERQ))
	case offCERR:
		r.ERR.ClearBits(command(&r.CERR))
	case offCINT:
		r.INT.ClearBits(command(&r.CINT))
	case offCDNE:
		e.forEach(command(&r.CDNE), func(tcd *ral.TCD) {
			tcd.CSR.ClearBits(ral.CSR_DONE)
		})
	case offSSRT:
		e.forEach(command(&r.SSRT), func(tcd *ral.TCD) {
			tcd.CSR.SetBits(ral.CSR_START)
		})
	default:
		// Descriptor and status writes only need a new look.
	}
	e.wake()
}

func (e *Engine) muxWritten(off uintptr) {
	e.refresh()
}

// command decodes a command register write into a channel mask.
func command(r *ral.Reg8) uint32 {
	v := r.Get()
	if v&ral.CommandAll != 0 {
		return ^uint32(0)
	}
	return 0b1 << (v & 0x1f)
}

func (e *Engine) forEach(mask uint32, fn func(tcd *ral.TCD)) {
	for ch := range ral.MaxChannels {
		if mask&(0b1<<ch) != 0 {
			fn(&e.regs.TCD[ch])
		}
	}
}

// refresh recomputes the hardware request status from the DMAMUX routes
// and the peripherals' request lines.
func (e *Engine) refresh() {
	e.hrsMu.Lock()
	defer e.hrsMu.Unlock()
	var hrs uint32
	for ch := range ral.MaxChannels {
		if e.requested(ch) {
			hrs |= 0b1 << ch
		}
	}
	// An unchanged HRS is not written, or the write would wake the engine
	// again.
	if e.regs.HRS.Get() != hrs {
		e.regs.HRS.Set(hrs)
	}
}

// requested reports whether a peripheral asserts the request routed to ch.
func (e *Engine) requested(ch int) bool {
	cfg := e.mux.CHCFG[ch].Get()
	if cfg&ral.CHCFG_ENBL == 0 || cfg&ral.CHCFG_A_ON != 0 {
		return false
	}
	src := cfg & ral.CHCFG_SOURCE_Msk
	for _, p := range e.peripherals() {
		if p.requesting(src) {
			return true
		}
	}
	return false
}

func (e *Engine) peripherals() []*Peripheral {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.periphs
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			return
		default:
		}
		e.refresh()
		if e.step() {
			continue
		}
		select {
		case <-e.kick:
		case <-e.quit:
			return
		}
	}
}

// step services one minor loop of every channel with a pending request
// and reports whether any channel was serviced.
func (e *Engine) step() bool {
	if e.regs.CR.HasBits(ral.CR_HALT) {
		return false
	}
	serviced := false
	for ch := range ral.MaxChannels {
		if e.pendingRequest(ch) {
			e.service(ch)
			serviced = true
		}
	}
	return serviced
}

func (e *Engine) pendingRequest(ch int) bool {
	mask := uint32(0b1) << ch
	if e.regs.ERR.HasBits(mask) {
		return false
	}
	if e.regs.TCD[ch].CSR.HasBits(ral.CSR_START) {
		return true
	}
	if !e.regs.ERQ.HasBits(mask) {
		return false
	}
	cfg := e.mux.CHCFG[ch].Get()
	if cfg&ral.CHCFG_ENBL == 0 {
		return false
	}
	return cfg&ral.CHCFG_A_ON != 0 || e.requested(ch)
}

func (e *Engine) interrupt(ch int) {
	e.regs.INT.SetBits(0b1 << ch)
	e.mu.Lock()
	h := e.onInterrupt
	e.mu.Unlock()
	if h != nil {
		h(ch)
	}
}

func (e *Engine) fail(ch int, cause uint32) {
	tcd := &e.regs.TCD[ch]
	tcd.CSR.ClearBits(ral.CSR_START | ral.CSR_ACTIVE)
	es := ral.ES_VLD | uint32(ch)<<ral.ES_ERRCHN_Pos | cause
	e.regs.ES.Set(es)
	e.regs.ERR.SetBits(0b1 << ch)
	e.regs.ERQ.ClearBits(0b1 << ch)
	e.log.Printf("sim: channel %d: error status %#08x", ch, es)
	e.record(ch, es)
	if !e.regs.EEI.HasBits(0b1 << ch) {
		return
	}
	e.mu.Lock()
	h := e.onError
	e.mu.Unlock()
	if h != nil {
		h()
	}
}
