package dma

// OnInterrupt handles the interrupt of a channel. Call it from the
// interrupt handler registered for channel. It acknowledges the interrupt
// and wakes the transfer waiting on the channel, if any.
func (d *Dma) OnInterrupt(channel int) {
	ch := d.channel(channel)
	if ch.IsInterrupt() {
		ch.ClearInterrupt()
	}
	if ch.IsComplete() || ch.IsError() {
		if w := d.takeWaker(channel); w != nil {
			w.Wake()
		}
	}
}

// OnError handles the error interrupt by waking the transfers of the
// channels in [0, maxChannel) that have an error. The error flags are left
// for the transfers to observe and clear.
func (d *Dma) OnError(maxChannel int) {
	for i := range min(maxChannel, d.count) {
		if !d.channel(i).IsError() {
			continue
		}
		if w := d.takeWaker(i); w != nil {
			w.Wake()
		}
	}
}
