package mailbox

import "github.com/nasa-jpl/pmoddac/ad5628"

// SplitSlot returns the two 12-bit samples packed in a waveform slot, the one
// played first in high
func SplitSlot(slot uint32) (high, low uint16) {
	return uint16(slot>>12) & ad5628.MaxDN, uint16(slot) & ad5628.MaxDN
}

// PackSlot is the inverse of SplitSlot.  Bits above 12 in either sample are
// dropped.
func PackSlot(high, low uint16) uint32 {
	return uint32(high&ad5628.MaxDN)<<12 | uint32(low&ad5628.MaxDN)
}
