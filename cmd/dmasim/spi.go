package main

import (
	"bytes"
	"fmt"

	"github.com/imxrt-rs/imxrt-dma/driver/dma"
	"github.com/imxrt-rs/imxrt-dma/driver/dma/sim"
	"github.com/imxrt-rs/imxrt-dma/driver/dmaio"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

const (
	spiRxSignal = 4
	spiTxSignal = 5

	spiPortName = "DMASPI"
)

func newSPICommand(g *globals) *cobra.Command {
	var (
		rx, tx int
		length int
		freq   string
	)
	cmd := &cobra.Command{
		Use:   "spi",
		Short: "Run a full-duplex transfer through a looped back SPI controller.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			var f physic.Frequency
			if err := f.Set(freq); err != nil {
				return fmt.Errorf("spi: --freq: %w", err)
			}
			if length <= 0 || length > dma.MaxIterations {
				return fmt.Errorf("spi: length %d out of range [1, %d]", length, dma.MaxIterations)
			}
			p := g.open()
			defer func() {
				if cerr := p.close(); err == nil {
					err = cerr
				}
			}()
			rxCh, err := p.channel(rx)
			if err != nil {
				return fmt.Errorf("spi: %w", err)
			}
			txCh, err := p.channel(tx)
			if err != nil {
				return fmt.Errorf("spi: %w", err)
			}
			dev := p.engine.NewPeripheral(sim.PeripheralConfig{
				RxSignal: spiRxSignal,
				TxSignal: spiTxSignal,
				Mode:     sim.Loopback,
			})
			opener := func() (spi.PortCloser, error) {
				return dmaio.NewSPI(rxCh, txCh, dev, f, p.ioOptions()...), nil
			}
			if err := spireg.Register(spiPortName, nil, -1, opener); err != nil {
				return fmt.Errorf("spi: %w", err)
			}
			defer spireg.Unregister(spiPortName)

			port, err := spireg.Open(spiPortName)
			if err != nil {
				return fmt.Errorf("spi: %w", err)
			}
			defer port.Close()
			c, err := port.Connect(f, spi.Mode0, 8)
			if err != nil {
				return fmt.Errorf("spi: %w", err)
			}
			w := make([]byte, length)
			for i := range w {
				w[i] = byte(i)
			}
			r := make([]byte, length)
			if err := c.Tx(w, r); err != nil {
				return fmt.Errorf("spi: %w", err)
			}
			if !bytes.Equal(w, r) {
				return fmt.Errorf("spi: received % x, sent % x", r, w)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "spi: %s at %s: % x\n", c, f, r)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&rx, "rx", 2, "receive DMA channel")
	flags.IntVar(&tx, "tx", 3, "transmit DMA channel")
	flags.IntVar(&length, "len", 16, "transfer length in bytes")
	flags.StringVar(&freq, "freq", "10MHz", "clock frequency")
	return cmd
}
