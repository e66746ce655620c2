//go:build tinygo

package ral

import "runtime/volatile"

type (
	Reg8  = volatile.Register8
	Reg16 = volatile.Register16
	Reg32 = volatile.Register32
)
