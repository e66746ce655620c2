//go:build !tinygo

package sim

import (
	"bytes"
	"errors"
	"log"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
)

type brokenWire struct{}

func (brokenWire) Write([]byte) (int, error) {
	return 0, errors.New("device gone")
}

var _ = Describe("Peripheral", func() {
	const (
		rxSignal = 10
		txSignal = 11
	)

	var (
		e    *Engine
		regs *ral.DMA
		mux  *ral.DMAMUX
	)

	BeforeEach(func() {
		e = New()
		regs = e.Registers()
		mux = e.Mux()
	})

	AfterEach(func() {
		e.Close()
	})

	// receive programs ch to move n bytes from the receive data register
	// of p into dst.
	receive := func(ch int, p *Peripheral, dst []byte) {
		tcd := &regs.TCD[ch]
		tcd.Reset()
		tcd.SADDR.Set(p.rdrAddr)
		tcd.DADDR.Set(busAddress(dst))
		tcd.DOFF.Set(1)
		tcd.NBYTES.Set(1)
		tcd.CITER.Set(uint16(len(dst)))
		tcd.BITER.Set(uint16(len(dst)))
		tcd.CSR.Set(ral.CSR_DREQ)
		mux.CHCFG[ch].Set(ral.CHCFG_ENBL | rxSignal)
		regs.SERQ.Set(uint8(ch))
	}

	transmit := func(ch int, p *Peripheral, src []byte) {
		tcd := &regs.TCD[ch]
		tcd.Reset()
		tcd.SADDR.Set(busAddress(src))
		tcd.SOFF.Set(1)
		tcd.DADDR.Set(p.tdrAddr)
		tcd.NBYTES.Set(1)
		tcd.CITER.Set(uint16(len(src)))
		tcd.BITER.Set(uint16(len(src)))
		tcd.CSR.Set(ral.CSR_DREQ)
		mux.CHCFG[ch].Set(ral.CHCFG_ENBL | txSignal)
		regs.SERQ.Set(uint8(ch))
	}

	done := func(ch int) func() bool {
		return func() bool {
			return regs.TCD[ch].CSR.HasBits(ral.CSR_DONE)
		}
	}

	It("should reflect its request lines in HRS", func() {
		p := e.NewPeripheral(PeripheralConfig{RxSignal: rxSignal, TxSignal: txSignal})
		mux.CHCFG[4].Set(ral.CHCFG_ENBL | rxSignal)
		Expect(regs.HRS.HasBits(1 << 4)).To(BeFalse())

		p.Inject([]byte{1})
		Expect(regs.HRS.HasBits(1 << 4)).To(BeFalse())

		p.EnableSource()
		Expect(regs.HRS.HasBits(1 << 4)).To(BeTrue())

		p.DisableSource()
		Expect(regs.HRS.HasBits(1 << 4)).To(BeFalse())
		Expect(p.Buffered()).To(Equal(1))
	})

	It("should loop transmitted bytes back", func() {
		p := e.NewPeripheral(PeripheralConfig{RxSignal: rxSignal, TxSignal: txSignal})
		src := []byte("loopback through a shallow fifo")
		dst := make([]byte, len(src))
		receive(0, p, dst)
		transmit(1, p, src)

		p.EnableSource()
		p.EnableDestination()

		Eventually(done(0)).Should(BeTrue())
		Eventually(done(1)).Should(BeTrue())
		Expect(dst).To(Equal(src))
		Expect(p.Overruns()).To(BeZero())
	})

	It("should drain to the wire and receive injected bytes", func() {
		var wire bytes.Buffer
		p := e.NewPeripheral(PeripheralConfig{
			RxSignal: rxSignal,
			TxSignal: txSignal,
			Mode:     Wire,
			Output:   &wire,
		})
		src := []byte("out")
		transmit(3, p, src)
		p.EnableDestination()
		Eventually(done(3)).Should(BeTrue())
		Expect(wire.String()).To(Equal("out"))

		dst := make([]byte, 2)
		receive(5, p, dst)
		p.EnableSource()
		Consistently(done(5)).Should(BeFalse())
		p.Inject([]byte("in"))
		Eventually(done(5)).Should(BeTrue())
		Expect(string(dst)).To(Equal("in"))
	})

	It("should log bytes the wire failed to take", func() {
		logs := gbytes.NewBuffer()
		e.Close()
		e = New(WithLogger(log.New(logs, "", 0)))
		regs, mux = e.Registers(), e.Mux()
		p := e.NewPeripheral(PeripheralConfig{
			RxSignal: rxSignal,
			TxSignal: txSignal,
			Mode:     Wire,
			Output:   brokenWire{},
		})
		transmit(2, p, []byte("lost"))
		p.EnableDestination()
		Eventually(done(2)).Should(BeTrue())
		Eventually(logs).Should(gbytes.Say("dropped 1 bytes: device gone"))
	})
})
