package comm_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/nasa-jpl/pmoddac/comm"
)

// fakeBridge answers telegrams the way the bridge firmware does: configure is
// acked, writes are recorded, exchanges come back bit inverted
func fakeBridge(t *testing.T, c net.Conn, writes chan<- []byte) {
	rd := bufio.NewReader(c)
	for {
		if _, err := rd.ReadBytes(0x0D); err != nil {
			return
		}
		rest, err := rd.ReadBytes(0x0A)
		if err != nil {
			return
		}
		typ, payload, err := comm.ParseTelegram(append([]byte{0x0D}, rest...))
		if err != nil {
			t.Errorf("bridge got a bad telegram: %v", err)
			return
		}
		switch typ {
		case comm.TelConfigure:
			c.Write(comm.MakeTelegram(comm.TelAck, nil))
		case comm.TelWrite:
			writes <- payload
		case comm.TelExchange:
			out := make([]byte, len(payload))
			for i, b := range payload {
				out[i] = ^b
			}
			c.Write(comm.MakeTelegram(comm.TelExchange, out))
		}
	}
}

func TestTelegramRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x03, 0x00, 0x00, 0x55},
		{0x0D, 0x0A, 0x5E, 0x00},
		{},
	}
	for _, p := range payloads {
		tel := comm.MakeTelegram(comm.TelWrite, p)
		for _, b := range tel[1 : len(tel)-1] {
			if b == 0x0D || b == 0x0A {
				t.Fatalf("delimiter inside telegram body % X", tel)
			}
		}
		typ, got, err := comm.ParseTelegram(tel)
		if err != nil {
			t.Fatal(err)
		}
		if typ != comm.TelWrite {
			t.Errorf("type %c", typ)
		}
		if diff := cmp.Diff(p, got); diff != "" {
			t.Errorf("payload mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestTelegramBadCRC(t *testing.T) {
	tel := comm.MakeTelegram(comm.TelWrite, []byte{1, 2, 3, 4})
	tel[2] ^= 0x01
	if _, _, err := comm.ParseTelegram(tel); err != comm.ErrBadCRC {
		t.Errorf("expected ErrBadCRC, got %v", err)
	}
}

func TestTelegramFraming(t *testing.T) {
	if _, _, err := comm.ParseTelegram([]byte{0x0D, 'W', 0x0A}); err != comm.ErrFraming {
		t.Errorf("expected ErrFraming for a short body, got %v", err)
	}
	if _, _, err := comm.ParseTelegram([]byte{'W', 1, 2}); err != comm.ErrFraming {
		t.Errorf("expected ErrFraming without delimiters, got %v", err)
	}
}

func TestBridgeWriteAndExchange(t *testing.T) {
	host, dev := net.Pipe()
	writes := make(chan []byte, 4)
	go fakeBridge(t, dev, writes)
	b := comm.NewBridge(host, "pipe")
	defer b.Close()

	if err := b.Configure(10*physic.MegaHertz, spi.Mode1, 8); err != nil {
		t.Fatal(err)
	}
	frame := []byte{0x03, 0x2A, 0xBC, 0x55}
	if err := b.Tx(frame, nil); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-writes:
		if diff := cmp.Diff(frame, got); diff != "" {
			t.Errorf("written frame mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(time.Second):
		t.Fatal("bridge never saw the write")
	}

	r := make([]byte, 2)
	if err := b.Tx([]byte{0x00, 0xF0}, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0xFF, 0x0F}, r); diff != "" {
		t.Errorf("exchange mismatch (-want +got):\n%s", diff)
	}
	if err := b.Tx([]byte{1, 2, 3}, make([]byte, 2)); err == nil {
		t.Error("expected a short read buffer to be rejected")
	}
}

func TestBridgeClosed(t *testing.T) {
	host, dev := net.Pipe()
	dev.Close()
	b := comm.NewBridge(host, "pipe")
	b.Close()
	if err := b.Tx([]byte{1}, nil); err != comm.ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestDiscardCounts(t *testing.T) {
	c, err := comm.Open(comm.Config{Type: "discard"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		c.Tx([]byte{1, 2, 3, 4}, nil)
	}
	d := c.(*comm.Discard)
	if d.Transfers() != 3 || d.Bytes() != 12 {
		t.Errorf("expected 3 transfers / 12 bytes, got %d / %d", d.Transfers(), d.Bytes())
	}
}

func TestOpenUnknownType(t *testing.T) {
	if _, err := comm.Open(comm.Config{Type: "carrier-pigeon"}); err == nil {
		t.Error("expected an error for an unknown bus type")
	}
}
