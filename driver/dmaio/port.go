package dmaio

import (
	"context"
	"sync"

	"github.com/imxrt-rs/imxrt-dma/driver/dma"
)

// PortDevice is a serial peripheral with a DMA receive and transmit
// request.
type PortDevice interface {
	dma.Source[uint8]
	dma.Destination[uint8]
}

// Port is a serial port whose reads and writes run on two DMA channels.
// A read and a write may run concurrently. Transfers go through buffers
// owned by the port, so the caller's buffers never need a bus mapping.
type Port struct {
	rx, tx *dma.Channel
	dev    PortDevice
	opts   options

	rxMu  sync.Mutex
	rxBuf []byte
	txMu  sync.Mutex
	txBuf []byte
}

func NewPort(rx, tx *dma.Channel, dev PortDevice, opts ...Option) *Port {
	return &Port{
		rx:   rx,
		tx:   tx,
		dev:  dev,
		opts: newOptions(opts),
	}
}

// ReadContext fills b from the port. If ctx is done first, it returns the
// number of bytes received and the context error.
func (p *Port) ReadContext(ctx context.Context, b []byte) (int, error) {
	p.rxMu.Lock()
	defer p.rxMu.Unlock()
	n := 0
	for n < len(b) {
		buf := scratch(&p.rxBuf, min(len(b)-n, dma.MaxIterations))
		if err := p.opts.run(ctx, dma.Read(p.rx, p.dev, buf)); err != nil {
			n += copy(b[n:], buf[:moved(p.rx, len(buf))])
			return n, err
		}
		n += copy(b[n:], buf)
	}
	return n, nil
}

// WriteContext sends b to the port. If ctx is done first, it returns the
// number of bytes sent and the context error.
func (p *Port) WriteContext(ctx context.Context, b []byte) (int, error) {
	p.txMu.Lock()
	defer p.txMu.Unlock()
	n := 0
	for n < len(b) {
		buf := scratch(&p.txBuf, min(len(b)-n, dma.MaxIterations))
		copy(buf, b[n:])
		if err := p.opts.run(ctx, dma.Write(p.tx, buf, p.dev)); err != nil {
			return n + moved(p.tx, len(buf)), err
		}
		n += len(buf)
	}
	return n, nil
}

// Read fills b from the port.
func (p *Port) Read(b []byte) (int, error) {
	return p.ReadContext(context.Background(), b)
}

// Write sends b to the port.
func (p *Port) Write(b []byte) (int, error) {
	return p.WriteContext(context.Background(), b)
}

// moved returns the number of elements an interrupted transfer of n
// elements moved before it stopped. The remaining count is only stable
// once the channel finished its last minor loop.
func moved(ch *dma.Channel, n int) int {
	for ch.IsActive() {
	}
	return n - int(ch.TransferIterations())
}

// minScratch is the smallest transfer buffer a Port allocates.
const minScratch = 64

// scratch returns the first n bytes of *buf, growing it if needed.
func scratch(buf *[]byte, n int) []byte {
	if cap(*buf) < n {
		*buf = make([]byte, max(n, minScratch))
	}
	return (*buf)[:n]
}
