//go:build !tinygo

package dmaio

import (
	"bytes"
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/imxrt-rs/imxrt-dma/driver/dma"
	"github.com/imxrt-rs/imxrt-dma/driver/dma/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func setup(t *testing.T) (*dma.Dma, *sim.Engine) {
	t.Helper()
	e := sim.New()
	t.Cleanup(e.Close)
	d := dma.New(unsafe.Pointer(e.Registers()), unsafe.Pointer(e.Mux()), dma.MaxChannels)
	e.OnInterrupt(d.OnInterrupt)
	e.OnErrorInterrupt(func() {
		d.OnError(dma.MaxChannels)
	})
	return d, e
}

func channels(t *testing.T, d *dma.Dma) (rx, tx *dma.Channel) {
	t.Helper()
	rx, err := d.Reserve()
	require.NoError(t, err)
	tx, err = d.Reserve()
	require.NoError(t, err)
	rx.Reset()
	tx.Reset()
	return rx, tx
}

func TestPortRoundTrip(t *testing.T) {
	d, e := setup(t)
	rx, tx := channels(t, d)
	var wire bytes.Buffer
	dev := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 2, TxSignal: 3, Mode: sim.Wire, Output: &wire})
	port := NewPort(rx, tx, dev)

	n, err := port.Write([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "ping", wire.String())

	dev.Inject([]byte("pong"))
	buf := make([]byte, 4)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "pong", string(buf))
}

func TestPortBusyWait(t *testing.T) {
	d, e := setup(t)
	rx, tx := channels(t, d)
	dev := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 2, TxSignal: 3, Mode: sim.Wire})
	port := NewPort(rx, tx, dev, WithBusyWait())

	dev.Inject([]byte{0x55})
	buf := make([]byte, 1)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0x55), buf[0])
}

func TestPortReadDeadline(t *testing.T) {
	d, e := setup(t)
	rx, tx := channels(t, d)
	dev := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 2, TxSignal: 3, Mode: sim.Wire})
	port := NewPort(rx, tx, dev)

	dev.Inject([]byte("ab"))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	buf := make([]byte, 4)
	n, err := port.ReadContext(ctx, buf)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "dmaio:")
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab", string(buf[:n]))
	assert.False(t, rx.IsEnabled())
}

func TestPortReadCompletedAtDeadline(t *testing.T) {
	// Channel interrupts are not dispatched, so only the deadline ends the
	// wait, after the engine already finished the read.
	e := sim.New()
	t.Cleanup(e.Close)
	d := dma.New(unsafe.Pointer(e.Registers()), unsafe.Pointer(e.Mux()), dma.MaxChannels)
	rx, tx := channels(t, d)
	dev := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 2, TxSignal: 3, Mode: sim.Wire})
	port := NewPort(rx, tx, dev)

	dev.Inject([]byte("abcd"))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	buf := make([]byte, 4)
	n, err := port.ReadContext(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(buf))
	assert.Zero(t, dev.Buffered())
}

func TestPortReusesBuffers(t *testing.T) {
	d, e := setup(t)
	rx, tx := channels(t, d)
	dev := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 2, TxSignal: 3, Mode: sim.Wire})
	port := NewPort(rx, tx, dev)

	dev.Inject([]byte("abcd"))
	first, second := make([]byte, 2), make([]byte, 2)
	_, err := port.Read(first)
	require.NoError(t, err)
	addr := rx.DestinationAddress()
	_, err = port.Read(second)
	require.NoError(t, err)
	assert.Equal(t, addr, rx.DestinationAddress())
	assert.Equal(t, "ab", string(first))
	assert.Equal(t, "cd", string(second))

	_, err = port.Write([]byte("x"))
	require.NoError(t, err)
	addr = tx.SourceAddress()
	_, err = port.Write([]byte("yz"))
	require.NoError(t, err)
	assert.Equal(t, addr, tx.SourceAddress())
}

func TestSPILoopback(t *testing.T) {
	d, e := setup(t)
	rx, tx := channels(t, d)
	dev := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 4, TxSignal: 5})
	port := NewSPI(rx, tx, dev, 20*physic.MegaHertz)
	c, err := port.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	require.NoError(t, err)
	assert.Equal(t, conn.Full, c.Duplex())
	assert.Equal(t, 10*physic.MegaHertz, port.Frequency())
	if lim, ok := c.(conn.Limits); assert.True(t, ok) {
		assert.Equal(t, dma.MaxIterations, lim.MaxTxSize())
	}
	assert.Equal(t, "dma-spi(rx=0,tx=1)", c.String())

	w := []byte{0xde, 0xad, 0xbe, 0xef}
	r := make([]byte, len(w))
	require.NoError(t, c.Tx(w, r))
	assert.Equal(t, w, r)

	// Write only.
	require.NoError(t, c.Tx([]byte{1, 2}, nil))

	pkts := []spi.Packet{
		{W: []byte{1}, R: make([]byte, 1)},
		{W: []byte{2, 3}, R: make([]byte, 2), BitsPerWord: 8},
	}
	require.NoError(t, c.TxPackets(pkts))
	assert.Equal(t, []byte{1}, pkts[0].R)
	assert.Equal(t, []byte{2, 3}, pkts[1].R)
	assert.Zero(t, dev.Overruns())
}

func TestSPIErrors(t *testing.T) {
	d, e := setup(t)
	rx, tx := channels(t, d)
	dev := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 4, TxSignal: 5})
	port := NewSPI(rx, tx, dev, physic.MegaHertz)

	_, err := port.Connect(physic.MegaHertz, spi.Mode3, 16)
	assert.Error(t, err)
	_, err = port.Connect(2*physic.MegaHertz, spi.Mode0, 8)
	assert.Error(t, err)

	require.NoError(t, port.LimitSpeed(500*physic.KiloHertz))
	assert.Equal(t, 500*physic.KiloHertz, port.Frequency())

	assert.Error(t, port.Tx(make([]byte, 2), make([]byte, 3)))
	assert.Error(t, port.Tx(make([]byte, dma.MaxIterations+1), nil))
	assert.Error(t, port.TxPackets([]spi.Packet{{W: []byte{1}, BitsPerWord: 9}}))

	require.NoError(t, port.Close())
	assert.Error(t, port.Tx([]byte{1}, nil))
}
