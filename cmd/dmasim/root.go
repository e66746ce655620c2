package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"
	"unsafe"

	"github.com/imxrt-rs/imxrt-dma/driver/dma"
	"github.com/imxrt-rs/imxrt-dma/driver/dma/sim"
	"github.com/imxrt-rs/imxrt-dma/driver/dmaio"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// globals are the flags shared by every command.
type globals struct {
	trace   string
	busy    bool
	timeout time.Duration
	verbose bool
}

func newRootCommand() *cobra.Command {
	g := new(globals)
	root := &cobra.Command{
		Use:   "dmasim",
		Short: "Run DMA transfers against a simulated i.MX RT eDMA controller.",
		Long: `dmasim drives the DMA driver against a software model of the ` +
			`eDMA controller and its request multiplexer. Each command runs ` +
			`one transfer scenario and reports the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.loadEnv(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&g.trace, "trace", "", "write a CBOR transfer trace to `file`")
	flags.BoolVar(&g.busy, "busy", false, "poll transfers instead of waiting for interrupts")
	flags.DurationVar(&g.timeout, "timeout", 5*time.Second, "abandon transfers after `duration`")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log engine activity")
	root.AddCommand(
		newMemcpyCommand(g),
		newSerialCommand(g),
		newSPICommand(g),
	)
	return root
}

// loadEnv applies defaults from the environment and an optional .env file
// to the flags not given on the command line.
func (g *globals) loadEnv(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env: %w", err)
	}
	flags := cmd.Flags()
	if v := os.Getenv("DMASIM_TRACE"); v != "" && !flags.Changed("trace") {
		g.trace = v
	}
	if v := os.Getenv("DMASIM_TIMEOUT"); v != "" && !flags.Changed("timeout") {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DMASIM_TIMEOUT: %w", err)
		}
		g.timeout = d
	}
	return nil
}

// platform is a DMA controller wired to a simulated engine, the way
// platform support wires the controller to the interrupt vectors.
type platform struct {
	g      *globals
	engine *sim.Engine
	dma    *dma.Dma
}

func (g *globals) open() *platform {
	var opts []sim.Option
	if g.trace != "" {
		opts = append(opts, sim.WithTrace())
	}
	if g.verbose {
		opts = append(opts, sim.WithLogger(log.Default()))
	}
	e := sim.New(opts...)
	d := dma.New(unsafe.Pointer(e.Registers()), unsafe.Pointer(e.Mux()), dma.MaxChannels)
	e.OnInterrupt(d.OnInterrupt)
	e.OnErrorInterrupt(func() {
		d.OnError(dma.MaxChannels)
	})
	return &platform{g: g, engine: e, dma: d}
}

// channel allocates and resets a channel.
func (p *platform) channel(index int) (*dma.Channel, error) {
	if index < 0 || index >= p.dma.Count() {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", index, p.dma.Count())
	}
	ch, err := p.dma.Channel(index)
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", index, err)
	}
	ch.Reset()
	return ch, nil
}

func (p *platform) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.g.timeout)
}

// run drives f to completion the way the flags ask for.
func (p *platform) run(f dma.Future) error {
	if p.g.busy {
		return dma.Block(f)
	}
	ctx, cancel := p.context()
	defer cancel()
	return dma.Await(ctx, f)
}

func (p *platform) ioOptions() []dmaio.Option {
	if p.g.busy {
		return []dmaio.Option{dmaio.WithBusyWait()}
	}
	return nil
}

// close stops the engine and writes the trace, if requested.
func (p *platform) close() error {
	p.engine.Close()
	if p.g.trace == "" {
		return nil
	}
	f, err := os.Create(p.g.trace)
	if err != nil {
		return err
	}
	if err := p.engine.WriteTrace(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("trace: wrote %d records to %s", len(p.engine.Trace()), p.g.trace)
	return nil
}
