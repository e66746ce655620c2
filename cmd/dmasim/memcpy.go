package main

import (
	"fmt"
	"slices"

	"github.com/imxrt-rs/imxrt-dma/driver/dma"
	"github.com/spf13/cobra"
)

func newMemcpyCommand(g *globals) *cobra.Command {
	var (
		channel int
		count   int
		value   uint32
	)
	cmd := &cobra.Command{
		Use:   "memcpy",
		Short: "Copy a buffer of 32-bit words with a software started transfer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if count <= 0 || count > dma.MaxIterations {
				return fmt.Errorf("memcpy: count %d out of range [1, %d]", count, dma.MaxIterations)
			}
			p := g.open()
			defer func() {
				if cerr := p.close(); err == nil {
					err = cerr
				}
			}()
			ch, err := p.channel(channel)
			if err != nil {
				return fmt.Errorf("memcpy: %w", err)
			}
			src := make([]uint32, count)
			for i := range src {
				src[i] = value
			}
			dst := make([]uint32, count)
			if err := p.run(dma.Memcpy(ch, src, dst)); err != nil {
				return fmt.Errorf("memcpy: %w", err)
			}
			if !slices.Equal(src, dst) {
				return fmt.Errorf("memcpy: destination differs from source")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "memcpy: channel %d copied %d words of %#x\n", channel, count, value)
			return nil
		},
	}
	cmd.Flags().IntVar(&channel, "channel", 7, "DMA channel")
	cmd.Flags().IntVar(&count, "count", 256, "number of words")
	cmd.Flags().Uint32Var(&value, "value", 42, "word value")
	return cmd
}
