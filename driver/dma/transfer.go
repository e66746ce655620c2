package dma

import (
	"context"
	"runtime"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// Waker is notified when a transfer may have made progress.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to a Waker.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }

// Signal is a Waker that coalesces wakes into a single pending
// notification.
type Signal chan struct{}

func NewSignal() Signal {
	return make(Signal, 1)
}

// Wake never blocks, so it is safe to call from interrupt handlers.
func (s Signal) Wake() {
	select {
	case s <- struct{}{}:
	default:
	}
}

// Future is an operation that completes asynchronously.
type Future interface {
	// Poll registers w to be woken on progress and reports whether the
	// operation completed, and if so its result. w may be nil.
	Poll(w Waker) (ready bool, err error)
	// Close cancels the operation if it is in progress and releases the
	// hardware. Close is safe to call more than once.
	Close()
}

// noCopy may be embedded into structs which must not be copied
// after first use. See go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Transfer drives one major loop of a configured channel.
type Transfer struct {
	_ noCopy

	ch     *Channel
	done   bool
	err    error
	closed bool
}

// NewTransfer returns a transfer for ch. The caller must have configured
// the channel's descriptor, and the memory it references must stay valid
// until the transfer is closed.
func NewTransfer(ch *Channel) *Transfer {
	return &Transfer{ch: ch}
}

// Poll enables the channel if needed and reports whether the major loop
// completed. An error completion returns the ErrorStatus observed.
func (t *Transfer) Poll(w Waker) (bool, error) {
	if t.closed {
		panic("dma: poll of closed transfer")
	}
	if t.done {
		return true, t.err
	}
	ch := t.ch
	ch.dma.setWaker(ch.index, w)
	for {
		switch {
		case ch.IsError():
			es := ch.ErrorStatus()
			ch.ClearError()
			t.done, t.err = true, es
			return true, es
		case ch.IsComplete():
			ch.ClearComplete()
			t.done = true
			return true, nil
		case ch.IsEnabled():
			return false, nil
		default:
			// Descriptor and buffer writes must land before the
			// channel can run.
			ral.Fence()
			ch.Enable()
		}
	}
}

// Close disables the channel, clears its completion and error flags and
// forgets the registered waker.
func (t *Transfer) Close() {
	ch := t.ch
	ch.Disable()
	ch.ClearComplete()
	ch.ClearError()
	ch.dma.setWaker(ch.index, nil)
	t.closed = true
}

// Await polls f until it completes or ctx is done, waking on the
// controller interrupts. A transfer that completed by the time ctx is done
// reports its own result rather than the context error. f is closed before
// Await returns.
func Await(ctx context.Context, f Future) error {
	defer f.Close()
	sig := NewSignal()
	for {
		if ready, err := f.Poll(sig); ready {
			return err
		}
		select {
		case <-sig:
		case <-ctx.Done():
			if ready, err := f.Poll(nil); ready {
				return err
			}
			return ctx.Err()
		}
	}
}

// Block polls f until it completes, without relying on interrupts. f is
// closed before Block returns.
func Block(f Future) error {
	defer f.Close()
	for {
		if ready, err := f.Poll(nil); ready {
			return err
		}
		runtime.Gosched()
	}
}
