/*Package dac exposes a Pmod DAC host driver over HTTP.

Routes, relative to wherever the table is bound:

	POST /fixed                    {"channel": "A", "volts": 1.25}
	POST /fixed-dn                 {"channel": "A", "dn": 2048}
	POST /triangle                 {"channel": "A", "cycles": 3, "delay": 250}
	POST /arbitrary/upload/float/csv?channel=A   CSV body, first column volts
	GET  /arbitrary/snapshot.fits  the loaded waveform, in counts
	GET  /busy                     {"bool": true}
	GET  /capacity                 {"int": 126}
	GET  /stats                    controller counters

A write while the controller is busy is answered with 409.
*/
package dac

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/astrogo/fitsio"
	"github.com/pkg/errors"

	"github.com/nasa-jpl/pmoddac/ad5628"
	"github.com/nasa-jpl/pmoddac/generichttp"
	"github.com/nasa-jpl/pmoddac/mailbox"
	"github.com/nasa-jpl/pmoddac/waveform"
)

// Controller is the host side of the DAC
type Controller interface {
	Busy() bool
	Capacity() int
	WriteFixedValue(ctx context.Context, ch ad5628.Channel, v float64) error
	WriteFixedDN(ctx context.Context, ch ad5628.Channel, dn uint16) error
	WriteTriangle(ctx context.Context, ch ad5628.Channel, cycles uint8, delay uint16) error
	WriteArbitrary(ch ad5628.Channel, volts []float64) error
	Waveform(n int) []uint16
}

// FixedRequest is the body of POST /fixed and /fixed-dn
type FixedRequest struct {
	Channel string  `json:"channel"`
	Volts   float64 `json:"volts,omitempty"`
	DN      uint16  `json:"dn,omitempty"`
}

// TriangleRequest is the body of POST /triangle
type TriangleRequest struct {
	Channel string `json:"channel"`
	Cycles  uint8  `json:"cycles"`
	Delay   uint16 `json:"delay"`
}

// HTTPDAC wraps a Controller in a route table.  Handlers are serialized, the
// mailbox admits a single writer.
type HTTPDAC struct {
	mu  sync.Mutex
	ctl Controller

	// loaded is the waveform last uploaded
	loaded struct {
		ch ad5628.Channel
		n  int
	}

	RouteTable generichttp.RouteTable
}

// NewHTTPDAC returns a new HTTP wrapper.  stats may be nil, in which case
// GET /stats is not bound.
func NewHTTPDAC(ctl Controller, stats func() interface{}) *HTTPDAC {
	h := &HTTPDAC{ctl: ctl}
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/fixed"}] = h.fixed
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/fixed-dn"}] = h.fixedDN
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/triangle"}] = h.triangle
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/arbitrary/upload/float/csv"}] = h.arbitrary
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/arbitrary/snapshot.fits"}] = h.snapshot
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/busy"}] = generichttp.GetBool(func() (bool, error) {
		return ctl.Busy(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/capacity"}] = generichttp.GetInt(func() (int, error) {
		return ctl.Capacity(), nil
	})
	if stats != nil {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/stats"}] = generichttp.GetJSON(func() (interface{}, error) {
			return stats(), nil
		})
	}
	h.RouteTable = rt
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h *HTTPDAC) RT() generichttp.RouteTable {
	return h.RouteTable
}

// status maps an error from the controller to an HTTP status code
func status(err error) int {
	switch errors.Cause(err) {
	case mailbox.ErrBusy:
		return http.StatusConflict
	case mailbox.ErrTooLong, waveform.ErrVoltageOutOfRange:
		return http.StatusBadRequest
	case mailbox.ErrTimeout, context.DeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func reply(w http.ResponseWriter, err error) {
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPDAC) fixed(w http.ResponseWriter, r *http.Request) {
	req := FixedRequest{}
	if !generichttp.DecodeBody(w, r, &req) {
		return
	}
	ch, err := ad5628.ParseChannel(req.Channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	reply(w, h.ctl.WriteFixedValue(r.Context(), ch, req.Volts))
}

func (h *HTTPDAC) fixedDN(w http.ResponseWriter, r *http.Request) {
	req := FixedRequest{}
	if !generichttp.DecodeBody(w, r, &req) {
		return
	}
	ch, err := ad5628.ParseChannel(req.Channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DN > ad5628.MaxDN {
		http.Error(w, fmt.Sprintf("dn %d above full scale %d", req.DN, ad5628.MaxDN), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	reply(w, h.ctl.WriteFixedDN(r.Context(), ch, req.DN))
}

func (h *HTTPDAC) triangle(w http.ResponseWriter, r *http.Request) {
	req := TriangleRequest{}
	if !generichttp.DecodeBody(w, r, &req) {
		return
	}
	ch, err := ad5628.ParseChannel(req.Channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Delay > ad5628.MaxDN {
		http.Error(w, fmt.Sprintf("delay %d us does not fit in 12 bits", req.Delay), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	reply(w, h.ctl.WriteTriangle(r.Context(), ch, req.Cycles, req.Delay))
}

func (h *HTTPDAC) arbitrary(w http.ResponseWriter, r *http.Request) {
	ch, err := ad5628.ParseChannel(r.URL.Query().Get("channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	volts, err := waveform.ReadCSV(r.Body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	err = h.ctl.WriteArbitrary(ch, volts)
	if err == nil {
		h.loaded.ch = ch
		h.loaded.n = len(volts)
	}
	reply(w, err)
}

func (h *HTTPDAC) snapshot(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	ch, n := h.loaded.ch, h.loaded.n
	dn := h.ctl.Waveform((n + 1) / 2)
	h.mu.Unlock()
	if n == 0 {
		http.Error(w, "no waveform has been uploaded", http.StatusNotFound)
		return
	}
	dn = dn[:n]
	md := []fitsio.Card{
		{Name: "CHANNEL", Value: ch.String(), Comment: "DAC output"},
		{Name: "NSAMP", Value: n, Comment: "samples per period"},
		{Name: "FULLSCL", Value: waveform.FullScale, Comment: "volts at 4096 counts"},
	}
	w.Header().Set("Content-Type", "image/fits")
	w.Header().Set("Content-Disposition", "attachment; filename=snapshot-"+strconv.Itoa(n)+".fits")
	err := waveform.WriteFITS(w, md, dn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
