package dma

// Source is a peripheral the DMA engine can read from.
//
// EnableSource is called while the transfer being built has exclusive use
// of the peripheral. DisableSource may be called from teardown while the
// engine is still servicing the peripheral and must be atomic with respect
// to the peripheral's own state.
type Source[E Element] interface {
	// SourceSignal returns the DMAMUX request source of the peripheral.
	SourceSignal() uint32
	// SourceAddress returns the register the engine reads.
	SourceAddress() *E
	// EnableSource makes the peripheral assert its receive request.
	EnableSource()
	// DisableSource stops the peripheral's receive request.
	DisableSource()
}

// Destination is a peripheral the DMA engine can write to. The enable and
// disable hooks follow the rules of Source.
type Destination[E Element] interface {
	DestinationSignal() uint32
	DestinationAddress() *E
	EnableDestination()
	DisableDestination()
}

// Bidirectional is a peripheral that is both a Source and a Destination,
// such as a full-duplex SPI controller.
type Bidirectional[E Element] interface {
	Source[E]
	Destination[E]
}

// Rx is a peripheral to memory transfer.
type Rx[E Element, S Source[E]] struct {
	ch       *Channel
	src      S
	transfer *Transfer
	closed   bool
}

// Read receives len(buf) elements from src into buf on ch. buf must stay
// valid until the returned future is closed.
func Read[E Element, S Source[E]](ch *Channel, src S, buf []E) *Rx[E, S] {
	n := iterations(len(buf))
	prepare(ch)
	ch.SetChannelConfiguration(Enable{Source: src.SourceSignal()})
	SetSourceHardware(ch, src.SourceAddress())
	SetDestinationLinearBuffer(ch, buf)
	ch.SetMinorLoopBytes(uint32(SizeOf[E]()))
	ch.SetTransferIterations(n)
	src.EnableSource()
	return &Rx[E, S]{
		ch:       ch,
		src:      src,
		transfer: NewTransfer(ch),
	}
}

func (r *Rx[E, S]) Poll(w Waker) (bool, error) {
	return r.transfer.Poll(w)
}

// Close stops the peripheral's request, waits for the engine to observe
// it, and closes the transfer.
func (r *Rx[E, S]) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.src.DisableSource()
	for r.ch.IsHardwareSignaling() {
	}
	r.transfer.Close()
}

// Tx is a memory to peripheral transfer.
type Tx[E Element, D Destination[E]] struct {
	ch       *Channel
	dst      D
	transfer *Transfer
	closed   bool
}

// Write sends the elements of buf to dst on ch. buf must stay valid until
// the returned future is closed.
func Write[E Element, D Destination[E]](ch *Channel, buf []E, dst D) *Tx[E, D] {
	n := iterations(len(buf))
	prepare(ch)
	ch.SetChannelConfiguration(Enable{Source: dst.DestinationSignal()})
	SetSourceLinearBuffer(ch, buf)
	SetDestinationHardware(ch, dst.DestinationAddress())
	ch.SetMinorLoopBytes(uint32(SizeOf[E]()))
	ch.SetTransferIterations(n)
	dst.EnableDestination()
	return &Tx[E, D]{
		ch:       ch,
		dst:      dst,
		transfer: NewTransfer(ch),
	}
}

func (t *Tx[E, D]) Poll(w Waker) (bool, error) {
	return t.transfer.Poll(w)
}

func (t *Tx[E, D]) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.dst.DisableDestination()
	for t.ch.IsHardwareSignaling() {
	}
	t.transfer.Close()
}

// Duplex is a simultaneous receive and transmit over one buffer.
type Duplex[E Element, P Bidirectional[E]] struct {
	rx, tx         *Channel
	p              P
	rxXfer, txXfer *Transfer
	rxDone, txDone bool
	err            error
	closed         bool
}

// FullDuplex transmits buf to p on tx while receiving from p into buf on
// rx. Each received element overwrites the transmitted element at the same
// index. The transfer is ready once both directions complete; the first
// error of either direction is its result.
func FullDuplex[E Element, P Bidirectional[E]](rx, tx *Channel, p P, buf []E) *Duplex[E, P] {
	n := iterations(len(buf))
	size := uint32(SizeOf[E]())

	prepare(rx)
	rx.SetChannelConfiguration(Enable{Source: p.SourceSignal()})
	SetSourceHardware(rx, p.SourceAddress())
	SetDestinationLinearBuffer(rx, buf)
	rx.SetMinorLoopBytes(size)
	rx.SetTransferIterations(n)

	prepare(tx)
	tx.SetChannelConfiguration(Enable{Source: p.DestinationSignal()})
	SetSourceLinearBuffer(tx, buf)
	SetDestinationHardware(tx, p.DestinationAddress())
	tx.SetMinorLoopBytes(size)
	tx.SetTransferIterations(n)

	p.EnableSource()
	p.EnableDestination()
	return &Duplex[E, P]{
		rx:     rx,
		tx:     tx,
		p:      p,
		rxXfer: NewTransfer(rx),
		txXfer: NewTransfer(tx),
	}
}

func (d *Duplex[E, P]) Poll(w Waker) (bool, error) {
	if d.err != nil {
		return true, d.err
	}
	if !d.rxDone {
		ready, err := d.rxXfer.Poll(w)
		if err != nil {
			d.err = err
			return true, err
		}
		d.rxDone = ready
	}
	if !d.txDone {
		ready, err := d.txXfer.Poll(w)
		if err != nil {
			d.err = err
			return true, err
		}
		d.txDone = ready
	}
	return d.rxDone && d.txDone, nil
}

func (d *Duplex[E, P]) Close() {
	if d.closed {
		return
	}
	d.closed = true
	d.p.DisableSource()
	d.p.DisableDestination()
	for d.rx.IsHardwareSignaling() || d.tx.IsHardwareSignaling() {
	}
	d.rxXfer.Close()
	d.txXfer.Close()
}

// prepare disables ch and makes it stop, interrupt and wake its transfer
// at the end of the major loop or on error.
func prepare(ch *Channel) {
	ch.Disable()
	ch.SetDisableOnCompletion(true)
	ch.SetInterruptOnCompletion(true)
	ch.SetErrorInterrupt(true)
}
