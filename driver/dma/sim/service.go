//go:build !tinygo

package sim

import (
	"unsafe"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// service runs one minor loop of channel ch.
func (e *Engine) service(ch int) {
	tcd := &e.regs.TCD[ch]
	tcd.CSR.ClearBits(ral.CSR_START)
	tcd.CSR.SetBits(ral.CSR_ACTIVE)

	sattr, dattr := tcd.SATTR.Get(), tcd.DATTR.Get()
	ssize, ok := elementSize(sattr)
	if !ok {
		e.fail(ch, ral.ES_SAE)
		return
	}
	dsize, ok := elementSize(dattr)
	if !ok {
		e.fail(ch, ral.ES_DAE)
		return
	}
	soff, doff := int16(tcd.SOFF.Get()), int16(tcd.DOFF.Get())
	saddr, daddr := tcd.SADDR.Get(), tcd.DADDR.Get()
	nbytes := tcd.NBYTES.Get()
	citer := tcd.CITER.Get() & ral.ITER_Msk
	biter := tcd.BITER.Get() & ral.ITER_Msk
	switch {
	case int(soff)%ssize != 0:
		e.fail(ch, ral.ES_SOE)
		return
	case saddr%uint32(ssize) != 0:
		e.fail(ch, ral.ES_SAE)
		return
	case int(doff)%dsize != 0:
		e.fail(ch, ral.ES_DOE)
		return
	case daddr%uint32(dsize) != 0:
		e.fail(ch, ral.ES_DAE)
		return
	case nbytes == 0 || nbytes%uint32(ssize) != 0 || nbytes%uint32(dsize) != 0 || citer == 0:
		e.fail(ch, ral.ES_NCE)
		return
	}
	if citer == biter {
		e.begin(ch, saddr, daddr)
	}

	smod := modulo(sattr)
	dmod := modulo(dattr)
	buf := make([]byte, 0, nbytes)
	for range nbytes / uint32(ssize) {
		b, ok := e.load(saddr, ssize)
		if !ok {
			e.fail(ch, ral.ES_SBE)
			return
		}
		buf = append(buf, b...)
		saddr = advance(saddr, int32(soff), smod)
	}
	for len(buf) > 0 {
		if !e.store(daddr, buf[:dsize]) {
			e.fail(ch, ral.ES_DBE)
			return
		}
		buf = buf[dsize:]
		daddr = advance(daddr, int32(doff), dmod)
	}
	e.progress(ch, nbytes)

	citer--
	csr := tcd.CSR.Get()
	if citer > 0 {
		tcd.SADDR.Set(saddr)
		tcd.DADDR.Set(daddr)
		tcd.CITER.Set(citer)
		tcd.CSR.ClearBits(ral.CSR_ACTIVE)
		if csr&ral.CSR_INTHALF != 0 && citer == biter/2 {
			e.interrupt(ch)
		}
		return
	}
	tcd.SADDR.Set(saddr + tcd.SLAST.Get())
	tcd.DADDR.Set(daddr + tcd.DLASTSGA.Get())
	tcd.CITER.Set(biter)
	tcd.CSR.ClearBits(ral.CSR_ACTIVE)
	tcd.CSR.SetBits(ral.CSR_DONE)
	if csr&ral.CSR_DREQ != 0 {
		e.regs.ERQ.ClearBits(0b1 << ch)
	}
	e.record(ch, 0)
	if csr&ral.CSR_INTMAJOR != 0 {
		e.interrupt(ch)
	}
}

func elementSize(attr uint8) (int, bool) {
	switch attr & ral.ATTR_SIZE_Msk {
	case 0:
		return 1, true
	case 1:
		return 2, true
	case 2:
		return 4, true
	}
	return 0, false
}

func modulo(attr uint8) uint {
	return uint(attr&ral.ATTR_MOD_Msk) >> ral.ATTR_MOD_Pos
}

// advance adds off to addr, keeping the upper address bits fixed when mod
// is non-zero.
func advance(addr uint32, off int32, mod uint) uint32 {
	next := addr + uint32(off)
	if mod == 0 {
		return next
	}
	mask := uint32(0b1)<<mod - 1
	return addr&^mask | next&mask
}

// load reads n bytes at the bus address addr, popping a peripheral FIFO if
// addr is a peripheral data register.
func (e *Engine) load(addr uint32, n int) ([]byte, bool) {
	for _, p := range e.peripherals() {
		if p.rdrAddr == addr {
			return p.pop(n), true
		}
	}
	ptr, ok := ral.Resolve(addr, uintptr(n))
	if !ok {
		return nil, false
	}
	return append([]byte(nil), unsafe.Slice((*byte)(ptr), n)...), true
}

// store writes b at the bus address addr, pushing to a peripheral if addr
// is a peripheral data register.
func (e *Engine) store(addr uint32, b []byte) bool {
	for _, p := range e.peripherals() {
		if p.tdrAddr == addr {
			p.push(b)
			return true
		}
	}
	ptr, ok := ral.Resolve(addr, uintptr(len(b)))
	if !ok {
		return false
	}
	copy(unsafe.Slice((*byte)(ptr), len(b)), b)
	return true
}
