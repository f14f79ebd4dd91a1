package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "pmoddac.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `pmoddac drives a Pmod DA4 (AD5628) eight channel DAC from a mailbox
command register, and exposes the mailbox over HTTP.

Usage:
	pmoddac <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `pmoddac is amenable to configuration via its .yaml file, pmoddac.yml in the
working directory.  mkconf writes one with the defaults.  For a primer on YAML,
see https://yaml.org/start.html

Bus.Type selects how the DAC is reached:
- "spidev": the kernel SPI driver, Bus.Addr is /dev/spidev0.0 or SPI0.0
- "serial": an SPI bridge microcontroller on Bus.Addr at Bus.Baud
- "tcp": the same bridge behind a terminal server, Bus.Addr is host:port
- "usb": the same bridge by Bus.VID and Bus.PID
- "discard": no hardware, transfers are counted and dropped

Mailbox.Type is "memory" for a mailbox private to this process, or "devmem"
to map Mailbox.Size bytes at Mailbox.Base of Mailbox.Path, shared with
another processor.  Set Dispatch: false when that processor runs the
controller.

Triangle waves with 0 cycles and all arbitrary waveforms never finish.  The
controller services no further commands until it is restarted, unless
GracefulStop is set, in which case SIGINT or SIGTERM stops the waveform and
shuts the server down.

The DAC routes are served under Endpoint, see GET <Endpoint>/endpoints.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("pmoddac version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	d, err := Setup(c)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()
	if !c.Dispatch && strings.ToLower(c.Mailbox.Type) != "devmem" {
		log.Println("Dispatch is off and the mailbox is private to this process, nothing will service commands")
	}
	mux := BuildMux(c, d)
	srv := &http.Server{Addr: c.Addr, Handler: mux}

	if !c.GracefulStop {
		go func() {
			log.Fatal(d.Run(context.Background()))
		}()
		log.Println("now listening for requests at ", c.Addr)
		log.Fatal(srv.ListenAndServe())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	log.Println("now listening for requests at ", c.Addr)
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	select {
	case err := <-errs:
		log.Println(err)
	case <-ctx.Done():
		log.Println("stopping")
	}
	stop()
	shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shctx)
	// the bus is closed on return; the controller must be off it first
	<-done
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
