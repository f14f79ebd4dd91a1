package mailbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/nasa-jpl/pmoddac/ad5628"
)

func newTestMailbox(t *testing.T) *Mailbox {
	t.Helper()
	mb, err := New(NewMemory(DefaultSize), DefaultLayout)
	if err != nil {
		t.Fatal(err)
	}
	return mb
}

func ExampleTriangleCommand() {
	cmd := TriangleCommand(ad5628.ChannelB, 3, 250)
	fmt.Printf("0x%08X\n", uint32(cmd))
	// Output: 0x0FA10305
}

func TestDecodeFixedValueZero(t *testing.T) {
	r := Command(1<<1 | 1).Decode()
	if r.Mode != ModeFixed {
		t.Errorf("expected fixed mode, got %s", r.Mode)
	}
	if r.Value != 0 {
		t.Errorf("expected value 0, got %d", r.Value)
	}
}

func TestDecodeTriangleDefaultDelay(t *testing.T) {
	r := Command(1<<2 | 1).Decode()
	if r.Mode != ModeTriangle {
		t.Errorf("expected triangle mode, got %s", r.Mode)
	}
	if r.Delay != DefaultDelay {
		t.Errorf("expected default delay %d, got %d", DefaultDelay, r.Delay)
	}
}

func TestDecodeModePriority(t *testing.T) {
	cases := []struct {
		cmd  Command
		mode Mode
	}{
		{0x0E, ModeFixed},
		{0x0C, ModeTriangle},
		{0x08, ModeArbitrary},
		{0x01, ModeNone},
		{0xF0, ModeNone},
	}
	for _, c := range cases {
		if m := c.cmd.Mode(); m != c.mode {
			t.Errorf("0x%X: expected %s got %s", uint32(c.cmd), c.mode, m)
		}
	}
}

func TestDecodeFields(t *testing.T) {
	cmd := Command(0xABC<<20 | 0x6<<16 | 0x2A<<8 | 1<<1 | 1)
	r := cmd.Decode()
	if r.Value != 0xABC || r.Delay != 0xABC {
		t.Errorf("value/delay: %x %x", r.Value, r.Delay)
	}
	if r.Channel != ad5628.ChannelG {
		t.Errorf("channel: %v", r.Channel)
	}
	if r.Cycles != 0x2A {
		t.Errorf("cycles: %d", r.Cycles)
	}
	if !cmd.Busy() {
		t.Error("expected busy")
	}
}

func TestValueFieldOneWhenBit20Set(t *testing.T) {
	r := Command(0x00100002).Decode()
	if r.Mode != ModeFixed || r.Value != 1 || r.Channel != ad5628.ChannelA {
		t.Errorf("unexpected decode %+v", r)
	}
	if Command(0x00100002).Busy() {
		t.Error("busy bit is not set in 0x00100002")
	}
}

func TestBuildersRoundTrip(t *testing.T) {
	if r := FixedCommand(ad5628.ChannelAll, 4095).Decode(); r.Mode != ModeFixed || r.Value != 4095 || r.Channel != ad5628.ChannelAll {
		t.Errorf("fixed: %+v", r)
	}
	if r := TriangleCommand(ad5628.ChannelC, 0, 0).Decode(); r.Mode != ModeTriangle || r.Delay != DefaultDelay || r.Cycles != 0 {
		t.Errorf("triangle: %+v", r)
	}
	if r := ArbitraryCommand(ad5628.ChannelD, 63).Decode(); r.Mode != ModeArbitrary || r.Cycles != 63 {
		t.Errorf("arbitrary: %+v", r)
	}
}

func TestLayoutRejected(t *testing.T) {
	if _, err := New(NewMemory(DefaultSize), Layout{DataOffset: 2, CommandOffset: 0xFFC}); err != ErrMisaligned {
		t.Errorf("expected ErrMisaligned, got %v", err)
	}
	if _, err := New(NewMemory(DefaultSize), Layout{DataOffset: 0, CommandOffset: 0x1000}); err != ErrLayout {
		t.Errorf("expected ErrLayout, got %v", err)
	}
	if _, err := New(NewMemory(DefaultSize), Layout{DataOffset: 0x10, CommandOffset: 0x10}); err != ErrLayout {
		t.Errorf("expected overlapping layout to be rejected, got %v", err)
	}
}

func TestCapacityAndSlots(t *testing.T) {
	mb := newTestMailbox(t)
	if mb.Capacity() != 63 {
		t.Errorf("expected 63 slots, got %d", mb.Capacity())
	}
	mb.SetSlot(5, 0x123456)
	if mb.Slot(5) != 0x123456 {
		t.Errorf("slot 5 = %x", mb.Slot(5))
	}
	if mb.Slot(10000) != 0 {
		t.Error("expected reads past the region to return 0")
	}
}

func TestClientRejectsWhileBusy(t *testing.T) {
	mb := newTestMailbox(t)
	c := NewClient(mb)
	if err := c.Submit(FixedCommand(ad5628.ChannelA, 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit(FixedCommand(ad5628.ChannelA, 2)); err != ErrBusy {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if err := c.WriteSlots([]uint32{1}); err != ErrBusy {
		t.Errorf("expected ErrBusy writing slots, got %v", err)
	}
}

func TestClientWriteSlotsTooLong(t *testing.T) {
	c := NewClient(newTestMailbox(t))
	err := c.WriteSlots(make([]uint32, 64))
	if errors.Cause(err) != ErrTooLong {
		t.Errorf("expected ErrTooLong, got %v", err)
	}
}

func TestClientWaitIdleSeesClear(t *testing.T) {
	mb := newTestMailbox(t)
	c := NewClient(mb)
	go func() {
		time.Sleep(5 * time.Millisecond)
		mb.Clear()
	}()
	err := c.SubmitAndWait(context.Background(), FixedCommand(ad5628.ChannelA, 1), time.Second)
	if err != nil {
		t.Fatal(err)
	}
}

func TestClientWaitIdleTimesOut(t *testing.T) {
	c := NewClient(newTestMailbox(t))
	err := c.SubmitAndWait(context.Background(), FixedCommand(ad5628.ChannelA, 1), 20*time.Millisecond)
	if err != ErrTimeout {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClientWaitIdleHonorsContext(t *testing.T) {
	c := NewClient(newTestMailbox(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.SubmitAndWait(ctx, FixedCommand(ad5628.ChannelA, 1), 0)
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
