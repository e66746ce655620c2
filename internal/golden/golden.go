// Package golden compares simulator traces with golden files.
package golden

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/sim"
)

// CompareTrace compares trace with the gzip compressed trace at path, or
// replaces the file with trace if update is set. Record IDs and bus
// addresses vary between runs and are not compared.
func CompareTrace(path string, update bool, trace []sim.Record) error {
	trace = normalize(trace)
	if update {
		buf := new(bytes.Buffer)
		w, err := gzip.NewWriterLevel(buf, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := sim.EncodeTrace(w, trace); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return os.WriteFile(path, buf.Bytes(), 0o640)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	golden, err := sim.ReadTrace(r)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	golden = normalize(golden)
	mismatches := 0
	for i := range min(len(trace), len(golden)) {
		if trace[i] != golden[i] {
			mismatches++
		}
	}
	if mismatches > 0 || len(trace) != len(golden) {
		return fmt.Errorf("trace lengths %d, %d, with %d/%d record mismatches", len(trace), len(golden), mismatches, len(golden))
	}
	return nil
}

func normalize(trace []sim.Record) []sim.Record {
	out := make([]sim.Record, len(trace))
	for i, r := range trace {
		r.ID = ""
		r.Source, r.Destination = 0, 0
		out[i] = r
	}
	return out
}
