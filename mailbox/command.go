/*Package mailbox implements the shared-memory command interface of the Pmod DAC
controller: the bit layout of the 32-bit command word, the memory layout of the
mailbox, regions backed by process memory or /dev/mem, and the host-side
writer.

Passed parameters in the command word:
 bits 31:20 => delay in microseconds if triangle mode is selected
 bits 31:20 => 12-bit value to output if fixed mode is selected
 bits 19:16 => channel selector
 bits 15:8  => number of triangle cycles, 0 means forever;
               number of waveform slots in arbitrary mode
 bit 3      => arbitrary waveform playback from the data area
 bit 2      => triangle waveform
 bit 1      => fixed value
 bit 0      => 1 command issued, 0 command completed
*/
package mailbox

import (
	"fmt"

	"github.com/nasa-jpl/pmoddac/ad5628"
)

// Command is the raw 32-bit command word
type Command uint32

// Mode is the operating mode selected by a command
type Mode int

const (
	// ModeNone is a command with no mode flag; it is cleared and does nothing
	ModeNone Mode = iota

	// ModeFixed outputs one value and completes
	ModeFixed

	// ModeTriangle sweeps 0~4095~0 for a number of cycles
	ModeTriangle

	// ModeArbitrary streams samples from the data area forever
	ModeArbitrary
)

const (
	busyBit      = 0
	fixedBit     = 1
	triangleBit  = 2
	arbitraryBit = 3

	cyclesShift  = 8
	channelShift = 16
	valueShift   = 20

	// DefaultDelay is the triangle step delay in microseconds used when
	// the value field is zero
	DefaultDelay = 1000
)

// Request is a decoded command
type Request struct {
	Mode    Mode
	Channel ad5628.Channel

	// Value is the 12-bit output for fixed mode
	Value uint16

	// Delay is the per-sample delay in microseconds for triangle mode
	Delay uint16

	// Cycles is the triangle cycle count, or the slot count for
	// arbitrary mode.  Zero means forever for triangles.
	Cycles uint8
}

func (c Command) bit(i uint) bool {
	return (c>>i)&1 == 1
}

// Busy returns true if the command has been issued and not completed
func (c Command) Busy() bool {
	return c.bit(busyBit)
}

// Mode returns the operating mode; the flags are tested fixed, triangle,
// arbitrary and the first one set wins
func (c Command) Mode() Mode {
	switch {
	case c.bit(fixedBit):
		return ModeFixed
	case c.bit(triangleBit):
		return ModeTriangle
	case c.bit(arbitraryBit):
		return ModeArbitrary
	default:
		return ModeNone
	}
}

// Channel returns the channel selector field
func (c Command) Channel() ad5628.Channel {
	return ad5628.Channel((c >> channelShift) & 0x0F)
}

// Value returns bits 31:20
func (c Command) Value() uint16 {
	return uint16((c >> valueShift) & 0x0FFF)
}

// Delay returns bits 31:20 as a triangle delay, substituting DefaultDelay for zero
func (c Command) Delay() uint16 {
	if v := c.Value(); v != 0 {
		return v
	}
	return DefaultDelay
}

// Cycles returns bits 15:8
func (c Command) Cycles() uint8 {
	return uint8(c >> cyclesShift)
}

// Decode splits the command into its fields
func (c Command) Decode() Request {
	return Request{
		Mode:    c.Mode(),
		Channel: c.Channel(),
		Value:   c.Value(),
		Delay:   c.Delay(),
		Cycles:  c.Cycles(),
	}
}

func (c Command) String() string {
	r := c.Decode()
	return fmt.Sprintf("cmd 0x%08X busy=%t mode=%s ch=%s value=%d cycles=%d",
		uint32(c), c.Busy(), r.Mode, r.Channel, r.Value, r.Cycles)
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeFixed:
		return "fixed"
	case ModeTriangle:
		return "triangle"
	case ModeArbitrary:
		return "arbitrary"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func issue(mode uint, ch ad5628.Channel, value uint16, cycles uint8) Command {
	return Command(value&0x0FFF)<<valueShift |
		Command(ch&0x0F)<<channelShift |
		Command(cycles)<<cyclesShift |
		1<<mode | 1<<busyBit
}

// FixedCommand builds an issued fixed value command
func FixedCommand(ch ad5628.Channel, dn uint16) Command {
	return issue(fixedBit, ch, dn, 0)
}

// TriangleCommand builds an issued triangle command.  delay is truncated to
// 12 bits; a delay of zero is run at DefaultDelay
func TriangleCommand(ch ad5628.Channel, cycles uint8, delay uint16) Command {
	return issue(triangleBit, ch, delay, cycles)
}

// ArbitraryCommand builds an issued arbitrary waveform command that plays
// the first slots words of the data area
func ArbitraryCommand(ch ad5628.Channel, slots uint8) Command {
	return issue(arbitraryBit, ch, 0, slots)
}
