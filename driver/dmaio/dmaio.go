// package dmaio adapts DMA capable peripherals to standard I/O interfaces:
// serial ports to io.Reader and io.Writer, SPI controllers to periph.io's
// spi.Conn.
package dmaio

import (
	"context"
	"fmt"

	"github.com/imxrt-rs/imxrt-dma/driver/dma"
)

type options struct {
	busy bool
}

type Option func(o *options)

// WithBusyWait polls transfers to completion instead of waiting for DMA
// interrupts, for platforms that do not dispatch them.
func WithBusyWait() Option {
	return func(o *options) {
		o.busy = true
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) run(ctx context.Context, f dma.Future) error {
	var err error
	if o.busy {
		err = dma.Block(f)
	} else {
		err = dma.Await(ctx, f)
	}
	if err != nil {
		return fmt.Errorf("dmaio: %w", err)
	}
	return nil
}
