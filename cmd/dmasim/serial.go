package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/sim"
	"github.com/imxrt-rs/imxrt-dma/driver/dmaio"
	"github.com/spf13/cobra"
	"github.com/tarm/serial"
)

// Request sources of the simulated serial peripheral.
const (
	serialRxSignal = 2
	serialTxSignal = 3
)

func newSerialCommand(g *globals) *cobra.Command {
	var (
		rx, tx int
		count  int
		device string
		baud   int
		input  string
	)
	cmd := &cobra.Command{
		Use:   "serial",
		Short: "Echo bytes through a DMA driven serial port.",
		Long: `serial reads bytes from a simulated serial peripheral one at a ` +
			`time and writes each back. With --device, the peripheral's wire ` +
			`is bridged to a real serial port; otherwise --input is received ` +
			`and the echo is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if count <= 0 {
				return fmt.Errorf("serial: count %d must be positive", count)
			}
			p := g.open()
			defer func() {
				if cerr := p.close(); err == nil {
					err = cerr
				}
			}()
			rxCh, err := p.channel(rx)
			if err != nil {
				return fmt.Errorf("serial: %w", err)
			}
			txCh, err := p.channel(tx)
			if err != nil {
				return fmt.Errorf("serial: %w", err)
			}
			cfg := sim.PeripheralConfig{
				RxSignal: serialRxSignal,
				TxSignal: serialTxSignal,
				Mode:     sim.Wire,
				Output:   cmd.OutOrStdout(),
			}
			var dev *sim.Peripheral
			if device != "" {
				s, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
				if err != nil {
					return fmt.Errorf("serial: %w", err)
				}
				defer s.Close()
				cfg.Output = s
				dev = p.engine.NewPeripheral(cfg)
				go bridge(s, dev)
			} else {
				dev = p.engine.NewPeripheral(cfg)
				count = min(count, len(input))
				dev.Inject([]byte(input[:count]))
			}
			port := dmaio.NewPort(rxCh, txCh, dev, p.ioOptions()...)
			ctx, cancel := p.context()
			defer cancel()
			var b [1]byte
			for i := range count {
				if _, err := port.ReadContext(ctx, b[:]); err != nil {
					return fmt.Errorf("serial: byte %d: %w", i, err)
				}
				if _, err := port.WriteContext(ctx, b[:]); err != nil {
					return fmt.Errorf("serial: byte %d: %w", i, err)
				}
			}
			if device == "" {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			log.Printf("serial: echoed %d bytes", count)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&rx, "rx", 0, "receive DMA channel")
	flags.IntVar(&tx, "tx", 1, "transmit DMA channel")
	flags.IntVar(&count, "count", 32, "number of bytes to echo")
	flags.StringVar(&device, "device", "", "bridge to serial `device`")
	flags.IntVar(&baud, "baud", 115200, "baud rate of the serial device")
	flags.StringVar(&input, "input", "hello from the DMA engine", "bytes to receive without a device")
	return cmd
}

// bridge forwards bytes read from the serial device to the receive FIFO of
// dev until the device is closed.
func bridge(r io.Reader, dev *sim.Peripheral) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			dev.Inject(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Printf("serial: bridge: %v", err)
			}
			return
		}
	}
}
