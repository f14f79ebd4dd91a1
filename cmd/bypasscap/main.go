// bypasscap models a bypass capacitor cleaning up a noisy DC level and writes
// the filtered voltage as a CSV that dacctl arbitrary can play.
//
// Usage:
//
//	bypasscap [out.csv] [seed]
//
// The input is 250 samples of 2.00 V with +/- 25 mV of uniform noise, through
// an RC of one sample period.  250 samples is more than the default mailbox
// data area holds; serve it with Mailbox.DataOffset: 0xE00 (254 samples).
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/nasa-jpl/pmoddac/mathx"
	"github.com/nasa-jpl/pmoddac/waveform"
)

const (
	samples = 250
	level   = 2.00
	noise   = 0.025
	rc      = 1.0
)

func main() {
	out := "bypass-capacitor.csv"
	seed := time.Now().UnixNano()
	if len(os.Args) > 1 {
		out = os.Args[1]
	}
	if len(os.Args) > 2 {
		s, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			log.Fatal(err)
		}
		seed = s
	}
	vin := waveform.NoisyDC(rand.New(rand.NewSource(seed)), samples, level, noise)
	vout := waveform.BypassCapacitor(vin, rc, 20)
	for i := range vout {
		// nothing finer than a count survives the DAC
		vout[i] = mathx.Round(vout[i], 0.0001)
	}
	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := waveform.WriteCSV(f, vout); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %d samples to %s (seed %d)\n", len(vout), out, seed)
}
