// dacctl is a command line client for the pmoddac server
package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/pmoddac/generichttp/dac"
	"github.com/nasa-jpl/pmoddac/util"
)

var k = koanf.New(".")

func setupconfig() {
	k.Load(confmap.Provider(map[string]interface{}{
		"url":     "http://localhost:8000/pmoddac",
		"timeout": 15.,
	}, "."), nil)
	// DACCTL_URL, DACCTL_TIMEOUT (seconds)
	k.Load(env.Provider("DACCTL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "DACCTL_"))
	}), nil)
}

func usage() {
	str := `dacctl sends commands to a pmoddac server.

Usage:
	dacctl fixed <channel> <volts>
	dacctl fixed-dn <channel> <counts>
	dacctl triangle <channel> <cycles> [delay us]
	dacctl arbitrary <channel> <file.csv>
	dacctl status
	dacctl lock | unlock

channel is A~G or all.  The server is DACCTL_URL, default
http://localhost:8000/pmoddac, and DACCTL_TIMEOUT bounds each request in
seconds.`
	fmt.Println(str)
}

// spin runs fcn behind a spinner
func spin(msg string, fcn func() error) error {
	cfg := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + msg,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	}
	s, err := yacspin.New(cfg)
	if err != nil {
		// no terminal, run without the spinner
		return fcn()
	}
	s.Start()
	err = fcn()
	if err != nil {
		s.StopFailMessage(err.Error())
		s.StopFail()
		return err
	}
	s.Stop()
	return nil
}

func need(args []string, n int) {
	if len(args) < n {
		usage()
		os.Exit(2)
	}
}

func status(c *dac.Client) error {
	busy, err := c.Busy()
	if err != nil {
		return err
	}
	if busy {
		color.Yellow("busy: a command is pending or a waveform is playing")
	} else {
		color.Green("idle")
	}
	n, err := c.Capacity()
	if err != nil {
		return err
	}
	fmt.Printf("arbitrary capacity: %d samples\n", n)
	st, err := c.Stats()
	if err != nil {
		// host only servers have no counters
		return nil
	}
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]int, len(keys))
	for i, k := range keys {
		if f, ok := st[k].(float64); ok {
			vals[i] = int(f)
		}
	}
	fmt.Println(strings.Join(keys, ","))
	fmt.Println(util.IntSliceToCSV(vals))
	return nil
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}
	setupconfig()
	c := dac.NewClient(k.String("url"), util.SecsToDuration(k.Float64("timeout")))

	var err error
	switch strings.ToLower(args[0]) {
	case "fixed":
		need(args, 3)
		v, perr := strconv.ParseFloat(args[2], 64)
		if perr != nil {
			log.Fatal(perr)
		}
		err = spin(fmt.Sprintf("setting %s to %.4f V", args[1], v), func() error {
			return c.Fixed(args[1], v)
		})
	case "fixed-dn":
		need(args, 3)
		dn, perr := strconv.ParseUint(args[2], 10, 16)
		if perr != nil {
			log.Fatal(perr)
		}
		err = spin(fmt.Sprintf("setting %s to %d counts", args[1], dn), func() error {
			return c.FixedDN(args[1], uint16(dn))
		})
	case "triangle":
		need(args, 3)
		cycles, perr := strconv.ParseUint(args[2], 10, 8)
		if perr != nil {
			log.Fatal(perr)
		}
		var delay uint64
		if len(args) > 3 {
			delay, perr = strconv.ParseUint(args[3], 10, 16)
			if perr != nil {
				log.Fatal(perr)
			}
		}
		if cycles == 0 {
			color.Yellow("0 cycles runs until the controller is restarted")
		}
		err = spin(fmt.Sprintf("triangle on %s, %d cycles", args[1], cycles), func() error {
			return c.Triangle(args[1], uint8(cycles), uint16(delay))
		})
	case "arbitrary":
		need(args, 3)
		f, ferr := os.Open(args[2])
		if ferr != nil {
			log.Fatal(ferr)
		}
		defer f.Close()
		color.Yellow("arbitrary waveforms play until the controller is restarted")
		err = c.Arbitrary(args[1], f)
	case "status":
		err = status(c)
	case "lock":
		err = c.Lock(true)
	case "unlock":
		err = c.Lock(false)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}
