package comm

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

// bridge telegrams are encoded as [SOT][BODY][EOT].
// the body is
// [TYPE] [0..255 payload bytes] [CRC hi] [CRC lo]
// with the CRC (XMODEM) computed over TYPE and payload, and every special
// byte in the body escaped so SOT and EOT only appear as delimiters.

const (
	// telStart is the start of telegram byte
	telStart = 0x0D

	// telEnd is the end of telegram byte
	telEnd = 0x0A

	// escape is the first byte of an escaped special character
	escape = 0x5E

	// escapeShift is added to an escaped special character
	escapeShift = 0x40
)

// telegram types
const (
	// TelConfigure carries clock (uint32 LE, Hz), mode, and bits per word
	TelConfigure byte = 'C'

	// TelWrite carries bytes to shift out, with nothing read back
	TelWrite byte = 'W'

	// TelExchange carries bytes to shift out; the bridge answers with a
	// TelExchange of the same length holding the bytes shifted in
	TelExchange byte = 'X'

	// TelAck is the bridge's answer to a TelConfigure
	TelAck byte = 'A'
)

var (
	specialChars = []byte{telEnd, telStart, escape}

	crcTable = crc.NewTable(crc.XMODEM)

	// ErrFraming is generated when a telegram is missing its delimiters or body
	ErrFraming = errors.New("comm: malformed bridge telegram")

	// ErrBadCRC is generated when a telegram fails its checksum
	ErrBadCRC = errors.New("comm: bridge telegram CRC mismatch")
)

// crcHelper computes the two-byte CRC of buf
func crcHelper(buf []byte) []byte {
	crcUint := crcTable.InitCrc()
	crcUint = crcTable.UpdateCrc(crcUint, buf)
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, crcTable.CRC16(crcUint))
	return out
}

func stuff(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	for _, b := range data {
		if bytes.IndexByte(specialChars, b) >= 0 {
			out = append(out, escape, b+escapeShift)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func unstuff(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == escape {
			i++
			if i == len(data) {
				return nil, ErrFraming
			}
			b = data[i] - escapeShift
		}
		out = append(out, b)
	}
	return out, nil
}

// MakeTelegram frames a payload of the given type
func MakeTelegram(typ byte, payload []byte) []byte {
	body := make([]byte, 0, len(payload)+3)
	body = append(body, typ)
	body = append(body, payload...)
	body = append(body, crcHelper(body)...)
	out := make([]byte, 0, len(body)+8)
	out = append(out, telStart)
	out = append(out, stuff(body)...)
	return append(out, telEnd)
}

// ParseTelegram checks the delimiters and CRC of a telegram and returns its
// type and payload
func ParseTelegram(tel []byte) (byte, []byte, error) {
	if len(tel) < 2 || tel[0] != telStart || tel[len(tel)-1] != telEnd {
		return 0, nil, ErrFraming
	}
	body, err := unstuff(tel[1 : len(tel)-1])
	if err != nil {
		return 0, nil, err
	}
	if len(body) < 3 {
		return 0, nil, ErrFraming
	}
	n := len(body) - 2
	if !bytes.Equal(crcHelper(body[:n]), body[n:]) {
		return 0, nil, ErrBadCRC
	}
	return body[0], body[1:n], nil
}
