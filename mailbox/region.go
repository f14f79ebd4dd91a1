package mailbox

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	// DefaultSize is the size of the microblaze mailbox window in bytes
	DefaultSize = 0x1000

	// DefaultDataOffset is where the waveform slots begin
	DefaultDataOffset = 0xF00

	// DefaultCommandOffset is the location of the command register
	DefaultCommandOffset = 0xFFC
)

var (
	// ErrMisaligned is generated when a region offset is not 4 byte aligned
	ErrMisaligned = errors.New("mailbox: offset is not 32-bit aligned")

	// ErrLayout is generated when the data area and command register overlap
	// or fall outside the region
	ErrLayout = errors.New("mailbox: data area and command register do not fit the region")
)

// Region is a window of 32-bit words.  Implementations must make each access
// a single aligned load or store.
type Region interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
	Size() uint32
}

// Memory is a Region in process memory, for a controller and host that share
// an address space, or for tests
type Memory struct {
	words []uint32
}

// NewMemory allocates a zeroed region of size bytes
func NewMemory(size uint32) *Memory {
	return &Memory{words: make([]uint32, size/4)}
}

// Read32 atomically loads the word at byte offset off.  Reads past the end
// of the region return 0 like an unmapped bus address.
func (m *Memory) Read32(off uint32) uint32 {
	i := off / 4
	if i >= uint32(len(m.words)) {
		return 0
	}
	return atomic.LoadUint32(&m.words[i])
}

// Write32 atomically stores the word at byte offset off.  Writes past the
// end of the region are dropped.
func (m *Memory) Write32(off uint32, v uint32) {
	i := off / 4
	if i >= uint32(len(m.words)) {
		return
	}
	atomic.StoreUint32(&m.words[i], v)
}

// Size returns the size of the region in bytes
func (m *Memory) Size() uint32 {
	return uint32(len(m.words) * 4)
}

// Layout locates the data area and command register in a region
type Layout struct {
	DataOffset    uint32
	CommandOffset uint32
}

// DefaultLayout is the layout used by the Pmod microblaze firmware
var DefaultLayout = Layout{DataOffset: DefaultDataOffset, CommandOffset: DefaultCommandOffset}

// Mailbox is a region with a layout applied.  It is both the command register
// and the waveform buffer.
type Mailbox struct {
	r      Region
	layout Layout
}

// New checks the layout against the region and returns a Mailbox
func New(r Region, l Layout) (*Mailbox, error) {
	if l.DataOffset%4 != 0 || l.CommandOffset%4 != 0 {
		return nil, ErrMisaligned
	}
	if l.CommandOffset+4 > r.Size() || l.DataOffset > r.Size() {
		return nil, ErrLayout
	}
	if l.DataOffset <= l.CommandOffset && l.CommandOffset-l.DataOffset < 4 {
		return nil, ErrLayout
	}
	return &Mailbox{r: r, layout: l}, nil
}

// Command loads the command register
func (m *Mailbox) Command() Command {
	return Command(m.r.Read32(m.layout.CommandOffset))
}

// SetCommand stores the command register
func (m *Mailbox) SetCommand(c Command) {
	m.r.Write32(m.layout.CommandOffset, uint32(c))
}

// Clear zeros the command register, signaling completion
func (m *Mailbox) Clear() {
	m.SetCommand(0)
}

// Slot reads waveform slot i.  The index is not bounds checked against
// the data area, as on the firmware.
func (m *Mailbox) Slot(i int) uint32 {
	return m.r.Read32(m.layout.DataOffset + uint32(i)*4)
}

// SetSlot writes waveform slot i
func (m *Mailbox) SetSlot(i int, v uint32) {
	m.r.Write32(m.layout.DataOffset+uint32(i)*4, v)
}

// Capacity is the number of slots between the data offset and the command
// register, or the end of the region if the register comes first
func (m *Mailbox) Capacity() int {
	end := m.r.Size()
	if m.layout.CommandOffset >= m.layout.DataOffset {
		end = m.layout.CommandOffset
	}
	return int((end - m.layout.DataOffset) / 4)
}
