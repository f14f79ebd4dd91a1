package waveform

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func ExampleFixedDN() {
	dn, _ := FixedDN(1.25)
	fmt.Println(dn)
	// Output: 2047
}

func TestFixedDNRange(t *testing.T) {
	for _, v := range []float64{-0.01, 2.51, math.NaN()} {
		if _, err := FixedDN(v); errors.Cause(err) != ErrVoltageOutOfRange {
			t.Errorf("%f: expected ErrVoltageOutOfRange, got %v", v, err)
		}
	}
	dn, err := FixedDN(FullScale)
	if err != nil {
		t.Fatal(err)
	}
	if dn != 4095 {
		t.Errorf("expected full scale to be 4095, got %d", dn)
	}
}

func TestArbitraryDNClampsFullScale(t *testing.T) {
	dn, err := ArbitraryDN(FullScale)
	if err != nil {
		t.Fatal(err)
	}
	if dn != 4095 {
		t.Errorf("expected 4095, got %d", dn)
	}
	dn, _ = ArbitraryDN(1.25)
	if dn != 2048 {
		t.Errorf("expected mid scale 2048, got %d", dn)
	}
}

func TestArbitraryDNsReportsSample(t *testing.T) {
	_, err := ArbitraryDNs([]float64{0, 1, 3})
	if errors.Cause(err) != ErrVoltageOutOfRange {
		t.Fatalf("expected ErrVoltageOutOfRange, got %v", err)
	}
	if !strings.Contains(err.Error(), "sample 2") {
		t.Errorf("expected the error to name sample 2, got %q", err)
	}
}

func TestPackPairsAndPads(t *testing.T) {
	got := Pack([]uint16{0x123, 0x456, 0xFFF})
	want := []uint32{0x123456, 0xFFF000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pack mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{0x123, 0x456, 0xFFF, 0}, Unpack(got)); diff != "" {
		t.Errorf("unpack mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVSkipsHeader(t *testing.T) {
	in := "volts,comment\n0.5,a\n1.0\n 2.25 \n"
	got, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0.5, 1.0, 2.25}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVBadRow(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("1\nfoo\n")); err == nil {
		t.Error("expected an error for a non numeric row after the first")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	volts := []float64{0, 0.1, 2.5}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, volts); err != nil {
		t.Fatal(err)
	}
	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(volts, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBypassCapacitorConstantInput(t *testing.T) {
	vin := []float64{2, 2, 2, 2, 2}
	for i, v := range BypassCapacitor(vin, 1, 4) {
		if math.Abs(v-2) > 1e-12 {
			t.Errorf("sample %d: expected a constant input to pass through, got %f", i, v)
		}
	}
}

func TestBypassCapacitorStepResponse(t *testing.T) {
	// vin jumps from 0 to 1 between t=0 and t=1 then holds; after the ramp
	// the output is an exponential approach to 1
	vin := make([]float64, 10)
	for i := 1; i < len(vin); i++ {
		vin[i] = 1
	}
	out := BypassCapacitor(vin, 1, 50)
	for i := 1; i < len(out); i++ {
		if out[i] <= out[i-1] {
			t.Fatalf("expected monotonic rise, sample %d %f <= %f", i, out[i], out[i-1])
		}
	}
	// ramp 0->1 over [0,1] with v(0)=0 gives v(1) = 1/e
	if math.Abs(out[1]-math.Exp(-1)) > 1e-6 {
		t.Errorf("expected v(1) = 1/e, got %f", out[1])
	}
	want := 1 - (1-math.Exp(-1))*math.Exp(-8)
	if math.Abs(out[9]-want) > 1e-6 {
		t.Errorf("expected v(9) = %f, got %f", want, out[9])
	}
}

func TestBypassCapacitorSmooths(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vin := NoisyDC(rng, 250, 2.0, 0.025)
	out := BypassCapacitor(vin, 1, 10)
	if spread(out[50:]) >= spread(vin[50:]) {
		t.Errorf("expected the output to be smoother than the input")
	}
	for i, v := range vin {
		if v < 1.975 || v >= 2.025 {
			t.Fatalf("noisy DC sample %d = %f outside 2.00 +/- 0.025", i, v)
		}
	}
}

func spread(x []float64) float64 {
	lo, hi := x[0], x[0]
	for _, v := range x {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

func TestFITSRoundTrip(t *testing.T) {
	dn := []uint16{0, 1, 2048, 4095}
	var buf bytes.Buffer
	md := []fitsio.Card{{Name: "CHANNEL", Value: "A", Comment: "DAC output"}}
	if err := WriteFITS(&buf, md, dn); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFITS(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(dn, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
