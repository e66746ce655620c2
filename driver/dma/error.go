package dma

import (
	"fmt"

	"github.com/imxrt-rs/imxrt-dma/driver/dma/ral"
)

// ErrorStatus is a snapshot of the controller's error status register. The
// register describes the last recorded error of any channel, so it is only
// a diagnostic for the transfer that observed it.
type ErrorStatus uint32

// Raw returns the register value.
func (e ErrorStatus) Raw() uint32 {
	return uint32(e)
}

func (e ErrorStatus) has(mask uint32) bool {
	return uint32(e)&mask != 0
}

// Valid reports whether any error has been recorded.
func (e ErrorStatus) Valid() bool { return e.has(ral.ES_VLD) }

// Cancelled reports whether a transfer was cancelled with an error.
func (e ErrorStatus) Cancelled() bool { return e.has(ral.ES_ECX) }

func (e ErrorStatus) GroupPriority() bool { return e.has(ral.ES_GPE) }

func (e ErrorStatus) ChannelPriority() bool { return e.has(ral.ES_CPE) }

// Channel returns the channel of the last recorded error.
func (e ErrorStatus) Channel() int {
	return int(uint32(e) & ral.ES_ERRCHN_Msk >> ral.ES_ERRCHN_Pos)
}

func (e ErrorStatus) SourceAddress() bool { return e.has(ral.ES_SAE) }

func (e ErrorStatus) SourceOffset() bool { return e.has(ral.ES_SOE) }

func (e ErrorStatus) DestinationAddress() bool { return e.has(ral.ES_DAE) }

func (e ErrorStatus) DestinationOffset() bool { return e.has(ral.ES_DOE) }

// MinorLoopConfiguration reports an NBYTES or CITER configuration error.
func (e ErrorStatus) MinorLoopConfiguration() bool { return e.has(ral.ES_NCE) }

func (e ErrorStatus) ScatterGather() bool { return e.has(ral.ES_SGE) }

func (e ErrorStatus) SourceBus() bool { return e.has(ral.ES_SBE) }

func (e ErrorStatus) DestinationBus() bool { return e.has(ral.ES_DBE) }

func (e ErrorStatus) Error() string {
	return e.String()
}

func (e ErrorStatus) String() string {
	return fmt.Sprintf("DMA_ES: VLD %d ECX %d GPE %d CPE %d ERRCHN %d SAE %d SOE %d DAE %d DOE %d NCE %d SGE %d SBE %d DBE %d",
		bit(e.Valid()), bit(e.Cancelled()), bit(e.GroupPriority()), bit(e.ChannelPriority()),
		e.Channel(),
		bit(e.SourceAddress()), bit(e.SourceOffset()), bit(e.DestinationAddress()), bit(e.DestinationOffset()),
		bit(e.MinorLoopConfiguration()), bit(e.ScatterGather()), bit(e.SourceBus()), bit(e.DestinationBus()))
}

func (e ErrorStatus) GoString() string {
	return fmt.Sprintf("DMA_ES(0x%08X)", uint32(e))
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
