//go:build !tinygo

package sim

import (
	"bytes"
	"sync/atomic"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine", func() {
	var (
		e    *Engine
		regs *ral.DMA
		mux  *ral.DMAMUX
	)

	BeforeEach(func() {
		e = New(WithTrace())
		regs = e.Registers()
		mux = e.Mux()
	})

	AfterEach(func() {
		e.Close()
	})

	done := func(ch int) func() bool {
		return func() bool {
			return regs.TCD[ch].CSR.HasBits(ral.CSR_DONE)
		}
	}

	It("should apply enable requests before the write returns", func() {
		regs.SERQ.Set(5)
		Expect(regs.ERQ.Get()).To(Equal(uint32(1 << 5)))

		regs.SERQ.Set(ral.CommandAll)
		Expect(regs.ERQ.Get()).To(Equal(^uint32(0)))

		regs.CERQ.Set(5)
		Expect(regs.ERQ.HasBits(1 << 5)).To(BeFalse())
		Expect(regs.ERQ.HasBits(1 << 4)).To(BeTrue())
	})

	It("should copy memory on a software start", func() {
		src := []byte("0123456789abcdef")
		dst := make([]byte, len(src))
		tcd := &regs.TCD[3]
		program(tcd, src, dst, uint32(len(src)), 1)
		tcd.CSR.SetBits(ral.CSR_DREQ)

		regs.SSRT.Set(3)

		Eventually(done(3)).Should(BeTrue())
		Expect(dst).To(Equal(src))
		Expect(tcd.SADDR.Get()).To(Equal(busAddress(src) + uint32(len(src))))
		Expect(tcd.CSR.HasBits(ral.CSR_START | ral.CSR_ACTIVE)).To(BeFalse())
	})

	It("should run every iteration of an always-on channel", func() {
		src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		dst := make([]byte, len(src))
		tcd := &regs.TCD[1]
		program(tcd, src, dst, 2, 4)
		tcd.SLAST.Set(uint32(-int32(len(src))))
		tcd.CSR.SetBits(ral.CSR_DREQ)
		mux.CHCFG[1].Set(ral.CHCFG_ENBL | ral.CHCFG_A_ON)

		regs.SERQ.Set(1)

		Eventually(done(1)).Should(BeTrue())
		Expect(dst).To(Equal(src))
		Expect(tcd.SADDR.Get()).To(Equal(busAddress(src)))
		Expect(tcd.CITER.Get()).To(Equal(uint16(4)))
		Expect(regs.ERQ.HasBits(1 << 1)).To(BeFalse())
	})

	It("should wrap a circular destination", func() {
		src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		ring := make([]byte, 4)
		tcd := &regs.TCD[2]
		program(tcd, src, ring, 1, uint16(len(src)))
		tcd.DATTR.Set(2 << ral.ATTR_MOD_Pos)
		tcd.CSR.SetBits(ral.CSR_DREQ)
		mux.CHCFG[2].Set(ral.CHCFG_ENBL | ral.CHCFG_A_ON)

		regs.SERQ.Set(2)

		Eventually(done(2)).Should(BeTrue())
		Expect(ring).To(Equal([]byte{5, 6, 7, 8}))
		Expect(tcd.DADDR.Get()).To(Equal(busAddress(ring)))
	})

	It("should raise the half and major interrupts", func() {
		irqs := make(chan int, 4)
		e.OnInterrupt(func(ch int) {
			irqs <- ch
		})
		src := make([]byte, 4)
		dst := make([]byte, 4)
		tcd := &regs.TCD[6]
		program(tcd, src, dst, 1, 4)
		tcd.CSR.SetBits(ral.CSR_DREQ | ral.CSR_INTHALF | ral.CSR_INTMAJOR)
		mux.CHCFG[6].Set(ral.CHCFG_ENBL | ral.CHCFG_A_ON)

		regs.SERQ.Set(6)

		Eventually(irqs).Should(Receive(Equal(6)))
		Eventually(irqs).Should(Receive(Equal(6)))
		Expect(regs.INT.HasBits(1 << 6)).To(BeTrue())
		regs.CINT.Set(6)
		Expect(regs.INT.HasBits(1 << 6)).To(BeFalse())
	})

	It("should report a misaligned source", func() {
		var errIRQs atomic.Int32
		e.OnErrorInterrupt(func() {
			errIRQs.Add(1)
		})
		src := make([]byte, 8)
		dst := make([]byte, 8)
		tcd := &regs.TCD[9]
		program(tcd, src, dst, 2, 1)
		tcd.SADDR.Set(busAddress(src) + 1)
		tcd.SATTR.Set(1)
		tcd.SOFF.Set(2)
		regs.SEEI.Set(9)

		regs.SSRT.Set(9)

		Eventually(func() bool {
			return regs.ERR.HasBits(1 << 9)
		}).Should(BeTrue())
		Expect(regs.ES.Get()).To(Equal(uint32(ral.ES_VLD | 9<<ral.ES_ERRCHN_Pos | ral.ES_SAE)))
		Eventually(errIRQs.Load).Should(Equal(int32(1)))
		Expect(tcd.CSR.HasBits(ral.CSR_DONE)).To(BeFalse())

		regs.CERR.Set(9)
		Expect(regs.ERR.HasBits(1 << 9)).To(BeFalse())
	})

	It("should not raise the error interrupt unless enabled", func() {
		var errIRQs atomic.Int32
		e.OnErrorInterrupt(func() {
			errIRQs.Add(1)
		})
		src := make([]byte, 8)
		dst := make([]byte, 8)
		tcd := &regs.TCD[0]
		program(tcd, src, dst, 0, 1)

		regs.SSRT.Set(0)

		Eventually(func() bool {
			return regs.ERR.HasBits(1 << 0)
		}).Should(BeTrue())
		Expect(regs.ES.Get() & ral.ES_NCE).NotTo(BeZero())
		Consistently(errIRQs.Load).Should(BeZero())
	})

	It("should record the trace as a CBOR sequence", func() {
		for ch := range 2 {
			src := []byte{byte(ch), 1, 2, 3}
			dst := make([]byte, 4)
			program(&regs.TCD[ch], src, dst, 4, 1)
			regs.SSRT.Set(uint8(ch))
			Eventually(done(ch)).Should(BeTrue())
		}
		trace := e.Trace()
		Expect(trace).To(HaveLen(2))
		Expect(trace[0].Bytes).To(Equal(uint32(4)))
		Expect(trace[0].ID).NotTo(Equal(trace[1].ID))

		var buf bytes.Buffer
		Expect(e.WriteTrace(&buf)).To(Succeed())
		decoded, err := ReadTrace(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(trace))
	})
})
