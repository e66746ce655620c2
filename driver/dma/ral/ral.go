// Package ral describes the register blocks of the i.MX RT enhanced DMA
// controller (eDMA) and its request multiplexer (DMAMUX).
//
// The block layouts are bit-exact: a pointer to the peripheral base
// address can be converted to a *DMA or *DMAMUX. Under TinyGo the register
// types are volatile MMIO registers. On a hosted Go build they are ordinary
// memory serialized by a bus lock, and writes are reported to any watcher
// installed with Watch, which lets a software model stand in for the
// hardware.
package ral

// MaxChannels is the number of channel slots in the register layout. Chips
// with fewer channels leave the upper slots unused.
const MaxChannels = 32

// DMA is the eDMA register block.
type DMA struct {
	CR   Reg32 // 0x00
	ES   Reg32 // 0x04
	_    [4]byte
	ERQ  Reg32 // 0x0C
	_    [4]byte
	EEI  Reg32 // 0x14
	CEEI Reg8  // 0x18
	SEEI Reg8  // 0x19
	CERQ Reg8  // 0x1A
	SERQ Reg8  // 0x1B
	CDNE Reg8  // 0x1C
	SSRT Reg8  // 0x1D
	CERR Reg8  // 0x1E
	CINT Reg8  // 0x1F
	_    [4]byte
	INT  Reg32 // 0x24
	_    [4]byte
	ERR  Reg32 // 0x2C
	_    [4]byte
	HRS  Reg32 // 0x34
	_    [12]byte
	EARS Reg32 // 0x44
	_    [0x100 - 0x48]byte
	// DCHPRI is indexed by register, not by channel: the priority
	// register of channel n sits at DCHPRI[n^3].
	DCHPRI [MaxChannels]Reg8 // 0x100
	_      [0x1000 - 0x120]byte
	TCD    [MaxChannels]TCD // 0x1000
}

// TCD is a transfer control descriptor.
type TCD struct {
	SADDR    Reg32 // 0x00
	SOFF     Reg16 // 0x04
	DATTR    Reg8  // 0x06
	SATTR    Reg8  // 0x07
	NBYTES   Reg32 // 0x08
	SLAST    Reg32 // 0x0C
	DADDR    Reg32 // 0x10
	DOFF     Reg16 // 0x14
	CITER    Reg16 // 0x16
	DLASTSGA Reg32 // 0x18
	CSR      Reg16 // 0x1C
	BITER    Reg16 // 0x1E
}

// Reset zeroes every descriptor field.
func (t *TCD) Reset() {
	t.SADDR.Set(0)
	t.SOFF.Set(0)
	t.DATTR.Set(0)
	t.SATTR.Set(0)
	t.NBYTES.Set(0)
	t.SLAST.Set(0)
	t.DADDR.Set(0)
	t.DOFF.Set(0)
	t.CITER.Set(0)
	t.DLASTSGA.Set(0)
	t.CSR.Set(0)
	t.BITER.Set(0)
}

// DMAMUX is the request multiplexer register block.
type DMAMUX struct {
	CHCFG [MaxChannels]Reg32
}

// Command register values.
const (
	// CommandAll, or'ed into a command register write, applies the
	// command to every channel.
	CommandAll = 0x40
)

// CR fields.
const (
	CR_EDBG = 0b1 << 1
	CR_ERCA = 0b1 << 2
	CR_HOE  = 0b1 << 4
	CR_HALT = 0b1 << 5
	CR_CLM  = 0b1 << 6
	CR_EMLM = 0b1 << 7
	CR_ECX  = 0b1 << 16
	CR_CX   = 0b1 << 17
)

// ES fields.
const (
	ES_DBE        = 0b1 << 0
	ES_SBE        = 0b1 << 1
	ES_SGE        = 0b1 << 2
	ES_NCE        = 0b1 << 3
	ES_DOE        = 0b1 << 4
	ES_DAE        = 0b1 << 5
	ES_SOE        = 0b1 << 6
	ES_SAE        = 0b1 << 7
	ES_ERRCHN_Pos = 8
	ES_ERRCHN_Msk = 0b11111 << ES_ERRCHN_Pos
	ES_CPE        = 0b1 << 14
	ES_GPE        = 0b1 << 15
	ES_ECX        = 0b1 << 16
	ES_VLD        = 0b1 << 31
)

// TCD attribute fields, for SATTR and DATTR.
const (
	ATTR_SIZE_Pos = 0
	ATTR_SIZE_Msk = 0b111 << ATTR_SIZE_Pos
	ATTR_MOD_Pos  = 3
	ATTR_MOD_Msk  = 0b11111 << ATTR_MOD_Pos
)

// TCD CSR fields.
const (
	CSR_START           = 0b1 << 0
	CSR_INTMAJOR        = 0b1 << 1
	CSR_INTHALF         = 0b1 << 2
	CSR_DREQ            = 0b1 << 3
	CSR_ESG             = 0b1 << 4
	CSR_MAJORELINK      = 0b1 << 5
	CSR_ACTIVE          = 0b1 << 6
	CSR_DONE            = 0b1 << 7
	CSR_MAJORLINKCH_Pos = 8
	CSR_MAJORLINKCH_Msk = 0b11111 << CSR_MAJORLINKCH_Pos
	CSR_BWC_Pos         = 14
	CSR_BWC_Msk         = 0b11 << CSR_BWC_Pos
)

// CITER and BITER without channel linking.
const (
	ITER_Msk   = 0x7fff
	ITER_ELINK = 0b1 << 15
)

// DCHPRI fields.
const (
	DCHPRI_CHPRI_Msk = 0b1111
	DCHPRI_DPA       = 0b1 << 6
	DCHPRI_ECP       = 0b1 << 7
)

// DMAMUX CHCFG fields.
const (
	CHCFG_SOURCE_Msk = 0x7f
	CHCFG_A_ON       = 0b1 << 29
	CHCFG_TRIG       = 0b1 << 30
	CHCFG_ENBL       = 0b1 << 31
)
