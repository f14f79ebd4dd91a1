// Package waveform converts between volts and DAC counts, reads and writes
// waveforms as CSV and FITS, and packs them into mailbox slots.
package waveform

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nasa-jpl/pmoddac/ad5628"
	"github.com/nasa-jpl/pmoddac/mailbox"
	"github.com/nasa-jpl/pmoddac/util"
)

const (
	// FullScale is the output voltage at full scale with the internal reference
	FullScale = 2.5

	// LSB is the volts per count used for fixed outputs
	LSB = 0.0006105
)

// ErrVoltageOutOfRange is generated when a voltage is outside [0, FullScale]
var ErrVoltageOutOfRange = errors.New("waveform: voltage not in range [0.00, 2.50]")

// FixedDN converts a fixed output voltage to counts
func FixedDN(v float64) (uint16, error) {
	if !(v >= 0 && v <= FullScale) {
		return 0, errors.Wrapf(ErrVoltageOutOfRange, "%f", v)
	}
	return uint16(util.ClampInt(int(v/LSB), 0, ad5628.MaxDN)), nil
}

// ArbitraryDN converts one sample of an arbitrary waveform to counts.  The
// scale is Steps/FullScale, so full scale clamps to MaxDN.
func ArbitraryDN(v float64) (uint16, error) {
	if !(v >= 0 && v <= FullScale) {
		return 0, errors.Wrapf(ErrVoltageOutOfRange, "%f", v)
	}
	return uint16(util.ClampInt(int(v*ad5628.Steps/FullScale), 0, ad5628.MaxDN)), nil
}

// ArbitraryDNs converts a waveform, failing on the first bad sample
func ArbitraryDNs(volts []float64) ([]uint16, error) {
	out := make([]uint16, len(volts))
	for i, v := range volts {
		dn, err := ArbitraryDN(v)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		out[i] = dn
	}
	return out, nil
}

// Volts converts counts to volts on the arbitrary scale
func Volts(dn uint16) float64 {
	return float64(dn) * FullScale / ad5628.Steps
}

// Pack packs samples two to a slot, in play order.  An odd final sample is
// paired with zero.
func Pack(dn []uint16) []uint32 {
	out := make([]uint32, (len(dn)+1)/2)
	for i := range out {
		hi := dn[2*i]
		var lo uint16
		if 2*i+1 < len(dn) {
			lo = dn[2*i+1]
		}
		out[i] = mailbox.PackSlot(hi, lo)
	}
	return out
}

// Unpack is the inverse of Pack; it always returns an even number of samples
func Unpack(slots []uint32) []uint16 {
	out := make([]uint16, 0, 2*len(slots))
	for _, s := range slots {
		hi, lo := mailbox.SplitSlot(s)
		out = append(out, hi, lo)
	}
	return out
}

// ReadCSV reads the first column of a CSV file as volts.  A first row that
// does not parse as a number is taken as a header and skipped.
func ReadCSV(r io.Reader) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	var out []float64
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if len(record) == 0 {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			if first {
				first = false
				continue
			}
			return out, errors.Wrapf(err, "waveform: row %d", len(out)+1)
		}
		first = false
		out = append(out, f)
	}
	return out, nil
}

// WriteCSV writes one value per row
func WriteCSV(w io.Writer, volts []float64) error {
	cw := csv.NewWriter(w)
	for _, v := range volts {
		if err := cw.Write([]string{strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
