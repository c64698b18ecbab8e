package account

import (
	"fmt"
	"strconv"
)

// TinybarsPerHbar is the number of tinybars in one hbar.
const TinybarsPerHbar = 100_000_000

// Hbar is an amount of the ledger's currency in tinybars.
type Hbar uint64

func (h Hbar) Tinybars() uint64 {
	return uint64(h)
}

// String formats h in hbars, dropping trailing zeros of the fraction.
func (h Hbar) String() string {
	whole, frac := uint64(h)/TinybarsPerHbar, uint64(h)%TinybarsPerHbar
	if frac == 0 {
		return strconv.FormatUint(whole, 10) + " ℏ"
	}
	s := fmt.Sprintf("%d.%08d", whole, frac)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s + " ℏ"
}
