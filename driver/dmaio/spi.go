package dmaio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imxrt-rs/imxrt-dma/driver/dma"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// SPI is a full-duplex SPI controller whose transfers run on a receive and
// a transmit DMA channel. It is both the spi.PortCloser and the spi.Conn
// it connects.
type SPI struct {
	rx, tx *dma.Channel
	dev    dma.Bidirectional[uint8]
	opts   options

	mu      sync.Mutex
	maxFreq physic.Frequency
	freq    physic.Frequency
	mode    spi.Mode
	scratch []byte
	closed  bool
}

var (
	_ spi.PortCloser = (*SPI)(nil)
	_ spi.Conn       = (*SPI)(nil)
	_ conn.Limits    = (*SPI)(nil)
)

// NewSPI returns a controller clocked at up to maxFreq.
func NewSPI(rx, tx *dma.Channel, dev dma.Bidirectional[uint8], maxFreq physic.Frequency, opts ...Option) *SPI {
	return &SPI{
		rx:      rx,
		tx:      tx,
		dev:     dev,
		opts:    newOptions(opts),
		maxFreq: maxFreq,
		freq:    maxFreq,
	}
}

func (s *SPI) String() string {
	return fmt.Sprintf("dma-spi(rx=%d,tx=%d)", s.rx.Index(), s.tx.Index())
}

// Connect configures the controller. Only 8 bit words are supported.
func (s *SPI) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("dmaio: spi: closed")
	}
	if bits != 8 {
		return nil, fmt.Errorf("dmaio: spi: unsupported %d bits per word", bits)
	}
	if f < 0 || f > s.maxFreq {
		return nil, fmt.Errorf("dmaio: spi: frequency %s exceeds %s", f, s.maxFreq)
	}
	if f != 0 {
		s.freq = f
	}
	s.mode = mode
	return s, nil
}

// LimitSpeed lowers the maximum clock frequency.
func (s *SPI) LimitSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("dmaio: spi: invalid frequency %s", f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxFreq = min(s.maxFreq, f)
	s.freq = min(s.freq, s.maxFreq)
	return nil
}

// Frequency returns the clock frequency of the connection.
func (s *SPI) Frequency() physic.Frequency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freq
}

func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SPI) Duplex() conn.Duplex {
	return conn.Full
}

// MaxTxSize is the longest transfer of a single major loop.
func (s *SPI) MaxTxSize() int {
	return dma.MaxIterations
}

// Tx clocks out w while clocking in r. Either may be nil, otherwise they
// must have the same length.
func (s *SPI) Tx(w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfer(w, r)
}

// TxPackets runs the packets back to back.
func (s *SPI) TxPackets(pkts []spi.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pkts {
		if p.BitsPerWord != 0 && p.BitsPerWord != 8 {
			return fmt.Errorf("dmaio: spi: unsupported %d bits per word", p.BitsPerWord)
		}
		if err := s.transfer(p.W, p.R); err != nil {
			return err
		}
	}
	return nil
}

func (s *SPI) transfer(w, r []byte) error {
	if s.closed {
		return errors.New("dmaio: spi: closed")
	}
	n := max(len(w), len(r))
	switch {
	case n == 0:
		return nil
	case len(w) != 0 && len(r) != 0 && len(w) != len(r):
		return fmt.Errorf("dmaio: spi: write length %d differs from read length %d", len(w), len(r))
	case n > dma.MaxIterations:
		return fmt.Errorf("dmaio: spi: transfer of %d bytes exceeds %d", n, dma.MaxIterations)
	}
	if cap(s.scratch) < n {
		s.scratch = make([]byte, n)
	}
	buf := s.scratch[:n]
	clear(buf)
	copy(buf, w)
	if err := s.opts.run(context.Background(), dma.FullDuplex(s.rx, s.tx, s.dev, buf)); err != nil {
		return err
	}
	copy(r, buf)
	return nil
}
