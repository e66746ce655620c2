//go:build !tinygo

package dma

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/sim"
)

func await(t *testing.T, f Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return Await(ctx, f)
}

func TestMemcpy(t *testing.T) {
	d, _ := newController(t)
	ch := allocate(t, d, 7)
	src := make([]uint32, 256)
	for i := range src {
		src[i] = 42
	}
	dst := make([]uint32, 256)
	if err := await(t, Memcpy(ch, src, dst)); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(dst, src) {
		t.Errorf("destination differs from source: %v", dst)
	}
	if ch.IsError() {
		t.Error("channel reports an error")
	}
	if ch.SourceAddress() != SliceAddress(src) || ch.DestinationAddress() != SliceAddress(dst) {
		t.Error("addresses not restored after the major loop")
	}
}

func TestMemcpyBlock(t *testing.T) {
	d, _ := newEngine(t)
	ch := allocate(t, d, 0)
	src := []byte("truncated copy")
	dst := make([]byte, 9)
	if err := Block(Memcpy(ch, src, dst)); err != nil {
		t.Fatal(err)
	}
	if string(dst) != "truncated" {
		t.Errorf("copied %q", dst)
	}
	if ch.SourceAddress() != SliceAddress(src) {
		t.Error("source address not restored")
	}
	mustPanic(t, "empty memcpy", func() { Memcpy(ch, src, nil) })
}

func TestTransferPoll(t *testing.T) {
	d, _ := newEngine(t)
	ch := allocate(t, d, 5)
	tr := NewTransfer(ch)
	ready, err := tr.Poll(nil)
	if ready || err != nil {
		t.Fatalf("Poll = %v, %v on an idle channel", ready, err)
	}
	if !ch.IsEnabled() {
		t.Error("first poll did not enable the channel")
	}
	tr.Close()
	if ch.IsEnabled() || ch.IsComplete() || ch.IsError() {
		t.Error("channel not idle after close")
	}
	tr.Close()
	mustPanic(t, "Poll after Close", func() { tr.Poll(nil) })
}

func TestTransferCloseUnarmed(t *testing.T) {
	d, _ := newEngine(t)
	ch := allocate(t, d, 6)
	NewTransfer(ch).Close()
	if ch.IsEnabled() || ch.IsComplete() || ch.IsError() {
		t.Error("channel not idle after close")
	}
}

func TestTransferReadyIsTerminal(t *testing.T) {
	d, _ := newEngine(t)
	ch := allocate(t, d, 2)
	src := []uint16{1, 2, 3}
	dst := make([]uint16, 3)
	m := Memcpy(ch, src, dst)
	defer m.Close()
	waitFor(t, func() bool {
		ready, err := m.Poll(nil)
		if err != nil {
			t.Fatal(err)
		}
		return ready
	})
	for range 3 {
		if ready, err := m.Poll(nil); !ready || err != nil {
			t.Fatalf("Poll after completion = %v, %v", ready, err)
		}
	}
	if ch.IsEnabled() {
		t.Error("completed transfer enabled the channel again")
	}
}

func TestTransferError(t *testing.T) {
	d, _ := newController(t)
	ch := allocate(t, d, 11)
	src := make([]uint16, 4)
	dst := make([]uint16, 4)
	m := Memcpy(ch, src, dst)
	ch.SetSourceAddress(SliceAddress(src) + 1)
	err := await(t, m)
	var es ErrorStatus
	if !errors.As(err, &es) {
		t.Fatalf("got %v, want an ErrorStatus", err)
	}
	if !es.SourceAddress() || es.Channel() != 11 {
		t.Errorf("unexpected status %v", es)
	}
	if ch.IsError() || ch.IsEnabled() {
		t.Error("error not cleared or channel enabled after the transfer")
	}
}

func TestAwaitCancel(t *testing.T) {
	d, e := newController(t)
	ch := allocate(t, d, 8)
	p := e.NewPeripheral(sim.PeripheralConfig{RxSignal: 20, TxSignal: 21, Mode: sim.Wire})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	buf := make([]byte, 4)
	if err := Await(ctx, Read(ch, p, buf)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want %v", err, context.DeadlineExceeded)
	}
	if ch.IsEnabled() || ch.IsHardwareSignaling() {
		t.Error("channel still enabled after cancellation")
	}
	p.Inject([]byte{1})
	if p.Buffered() != 1 {
		t.Error("cancelled read consumed data")
	}
}
