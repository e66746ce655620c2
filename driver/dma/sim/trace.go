//go:build !tinygo

package sim

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/xid"
)

// Record describes one major loop of a channel.
type Record struct {
	ID          string `cbor:"id"`
	Channel     int    `cbor:"channel"`
	Source      uint32 `cbor:"saddr"`
	Destination uint32 `cbor:"daddr"`
	Bytes       uint32 `cbor:"bytes"`
	// Status is the error status of a failed loop, 0 otherwise.
	Status uint32 `cbor:"es"`
}

func (e *Engine) begin(ch int, saddr, daddr uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[ch] = Record{
		Channel:     ch,
		Source:      saddr,
		Destination: daddr,
	}
}

func (e *Engine) progress(ch int, n uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[ch].Bytes += n
}

func (e *Engine) record(ch int, status uint32) {
	e.mu.Lock()
	r := e.pending[ch]
	e.pending[ch] = Record{}
	if !e.tracing {
		e.mu.Unlock()
		return
	}
	r.ID = xid.New().String()
	r.Channel = ch
	r.Status = status
	e.trace = append(e.trace, r)
	e.mu.Unlock()
	if status == 0 {
		e.log.Printf("sim: channel %d: %d bytes %#08x -> %#08x", ch, r.Bytes, r.Source, r.Destination)
	}
}

// Trace returns the records collected so far. It is empty unless the
// engine was created WithTrace.
func (e *Engine) Trace() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Record(nil), e.trace...)
}

// WriteTrace encodes the collected records to w as a CBOR sequence in
// deterministic core encoding.
func (e *Engine) WriteTrace(w io.Writer) error {
	return EncodeTrace(w, e.Trace())
}

// EncodeTrace encodes records to w the way WriteTrace does.
func EncodeTrace(w io.Writer, records []Record) error {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return fmt.Errorf("sim: trace: %w", err)
	}
	enc := mode.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("sim: trace: %w", err)
		}
	}
	return nil
}

// ReadTrace decodes a CBOR sequence written by WriteTrace.
func ReadTrace(r io.Reader) ([]Record, error) {
	mode, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("sim: trace: %w", err)
	}
	dec := mode.NewDecoder(r)
	var recs []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("sim: trace: %w", err)
		}
		recs = append(recs, rec)
	}
}
