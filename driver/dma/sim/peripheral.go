//go:build !tinygo

package sim

import (
	"io"
	"sync"
	"unsafe"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// Mode selects where a Peripheral sends transmitted bytes.
type Mode int

const (
	// Loopback feeds transmitted bytes back into the receive FIFO, the
	// way a full-duplex SPI controller clocks in one byte per byte out.
	Loopback Mode = iota
	// Wire writes transmitted bytes to the configured output. Received
	// bytes come from Inject.
	Wire
)

// PeripheralConfig describes a simulated peripheral.
type PeripheralConfig struct {
	// RxSignal and TxSignal are the DMAMUX request sources of the receive
	// and transmit requests. They must differ.
	RxSignal uint32
	TxSignal uint32
	Mode     Mode
	// Output receives transmitted bytes in Wire mode.
	Output io.Writer
	// FIFODepth bounds the receive FIFO in Loopback mode. Zero means 4.
	FIFODepth int
}

// Peripheral is a simulated DMA capable serial device with a receive
// data register, a transmit data register and a request line for each.
type Peripheral struct {
	engine *Engine
	cfg    PeripheralConfig

	// rdr and tdr back the bus addresses of the data registers. The
	// engine intercepts accesses to them.
	rdr, tdr         uint8
	rdrAddr, tdrAddr uint32

	mu        sync.Mutex
	rx        []byte
	rxEnabled bool
	txEnabled bool
	overrun   int
}

// NewPeripheral attaches a peripheral to the engine.
func (e *Engine) NewPeripheral(cfg PeripheralConfig) *Peripheral {
	if cfg.FIFODepth == 0 {
		cfg.FIFODepth = 4
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	p := &Peripheral{
		engine: e,
		cfg:    cfg,
	}
	p.rdrAddr = ral.BusAddress(unsafe.Pointer(&p.rdr), unsafe.Sizeof(p.rdr))
	p.tdrAddr = ral.BusAddress(unsafe.Pointer(&p.tdr), unsafe.Sizeof(p.tdr))
	e.mu.Lock()
	e.periphs = append(e.periphs[:len(e.periphs):len(e.periphs)], p)
	e.mu.Unlock()
	return p
}

func (p *Peripheral) SourceSignal() uint32 {
	return p.cfg.RxSignal
}

// SourceAddress returns the receive data register.
func (p *Peripheral) SourceAddress() *uint8 {
	return &p.rdr
}

func (p *Peripheral) EnableSource() {
	p.setEnabled(&p.rxEnabled, true)
}

func (p *Peripheral) DisableSource() {
	p.setEnabled(&p.rxEnabled, false)
}

func (p *Peripheral) DestinationSignal() uint32 {
	return p.cfg.TxSignal
}

// DestinationAddress returns the transmit data register.
func (p *Peripheral) DestinationAddress() *uint8 {
	return &p.tdr
}

func (p *Peripheral) EnableDestination() {
	p.setEnabled(&p.txEnabled, true)
}

func (p *Peripheral) DisableDestination() {
	p.setEnabled(&p.txEnabled, false)
}

// setEnabled changes a request enable and updates the engine's view of the
// request lines before returning.
func (p *Peripheral) setEnabled(flag *bool, enabled bool) {
	p.mu.Lock()
	*flag = enabled
	p.mu.Unlock()
	p.changed()
}

func (p *Peripheral) changed() {
	p.engine.refresh()
	p.engine.wake()
}

// Inject appends data to the receive FIFO, as if it arrived on the wire.
func (p *Peripheral) Inject(data []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, data...)
	p.mu.Unlock()
	p.changed()
}

// Buffered returns the number of bytes waiting in the receive FIFO.
func (p *Peripheral) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx)
}

// Overruns returns the number of receive FIFO underflows and overflows.
func (p *Peripheral) Overruns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overrun
}

func (p *Peripheral) requesting(src uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch src {
	case p.cfg.RxSignal:
		return p.rxEnabled && len(p.rx) > 0
	case p.cfg.TxSignal:
		return p.txEnabled && (p.cfg.Mode == Wire || len(p.rx) < p.cfg.FIFODepth)
	}
	return false
}

// pop reads n bytes from the receive data register.
func (p *Peripheral) pop(n int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		if len(p.rx) == 0 {
			p.overrun++
			continue
		}
		b[i] = p.rx[0]
		p.rx = p.rx[1:]
	}
	return b
}

// push writes b to the transmit data register.
func (p *Peripheral) push(b []byte) {
	if p.cfg.Mode == Wire {
		if _, err := p.cfg.Output.Write(b); err != nil {
			p.engine.log.Printf("sim: peripheral: dropped %d bytes: %v", len(b), err)
		}
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range b {
		if len(p.rx) >= p.cfg.FIFODepth {
			p.overrun++
			continue
		}
		p.rx = append(p.rx, c)
	}
}
