package dma

// MemcpyTransfer is a software started memory to memory copy.
type MemcpyTransfer struct {
	ch       *Channel
	transfer *Transfer
	started  bool
}

// Memcpy copies min(len(src), len(dst)) elements from src to dst on ch.
// Both slices must stay valid until the returned future is closed. Empty
// slices panic.
func Memcpy[E Element](ch *Channel, src, dst []E) *MemcpyTransfer {
	n := min(len(src), len(dst))
	if n == 0 {
		panic("dma: empty memcpy")
	}
	prepare(ch)
	SetSourceLinearBuffer(ch, src[:n])
	SetDestinationLinearBuffer(ch, dst[:n])
	ch.SetChannelConfiguration(Off{})
	ch.SetMinorLoopBytes(uint32(n * SizeOf[E]()))
	ch.SetTransferIterations(1)
	return &MemcpyTransfer{
		ch:       ch,
		transfer: NewTransfer(ch),
	}
}

// Poll enables the channel and issues the software start request the first
// time the copy is pending.
func (m *MemcpyTransfer) Poll(w Waker) (bool, error) {
	ready, err := m.transfer.Poll(w)
	if ready {
		return true, err
	}
	if !m.started && !m.ch.IsActive() {
		m.ch.Start()
		m.started = true
	}
	return false, nil
}

func (m *MemcpyTransfer) Close() {
	m.transfer.Close()
}
