package dac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nasa-jpl/pmoddac/generichttp"
	"github.com/nasa-jpl/pmoddac/pmoddac"
)

// Client talks to an HTTPDAC
type Client struct {
	// URL is the root of the DAC routes, e.g. http://pynq:8000/pmoddac
	URL string

	HTTP *http.Client
}

// NewClient returns a client for the DAC routes at root
func NewClient(root string, timeout time.Duration) *Client {
	return &Client{URL: strings.TrimSuffix(root, "/"), HTTP: &http.Client{Timeout: timeout}}
}

// StatusError is returned when the server replies with anything but 200
type StatusError struct {
	Code int
	Msg  string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("dac: server replied %d %s: %s", e.Code, http.StatusText(e.Code), e.Msg)
}

func check(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	b, _ := ioutil.ReadAll(resp.Body)
	return StatusError{Code: resp.StatusCode, Msg: strings.TrimSpace(string(b))}
}

func (c *Client) post(path, contentType string, body io.Reader) error {
	resp, err := c.HTTP.Post(c.URL+path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return check(resp)
}

func (c *Client) postJSON(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.post(path, "application/json", bytes.NewReader(b))
}

func (c *Client) get(path string, v interface{}) error {
	resp, err := c.HTTP.Get(c.URL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := check(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Fixed sets a channel to a voltage
func (c *Client) Fixed(ch string, volts float64) error {
	return c.postJSON("/fixed", FixedRequest{Channel: ch, Volts: volts})
}

// FixedDN sets a channel to a number of counts
func (c *Client) FixedDN(ch string, dn uint16) error {
	return c.postJSON("/fixed-dn", FixedRequest{Channel: ch, DN: dn})
}

// Triangle starts a triangle wave.  The server replies when the last cycle
// is done, so the HTTP timeout is extended by the time the wave takes.
func (c *Client) Triangle(ch string, cycles uint8, delay uint16) error {
	b, err := json.Marshal(TriangleRequest{Channel: ch, Cycles: cycles, Delay: delay})
	if err != nil {
		return err
	}
	hc := c.HTTP
	if hc.Timeout > 0 && cycles > 0 {
		ext := *hc
		ext.Timeout += time.Duration(cycles) * pmoddac.TrianglePeriod(delay)
		hc = &ext
	}
	resp, err := hc.Post(c.URL+"/triangle", "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return check(resp)
}

// Arbitrary uploads a CSV waveform and starts it
func (c *Client) Arbitrary(ch string, csv io.Reader) error {
	return c.post("/arbitrary/upload/float/csv?channel="+url.QueryEscape(ch), "text/csv", csv)
}

// Busy returns true if the controller has a command pending
func (c *Client) Busy() (bool, error) {
	b := generichttp.BoolT{}
	err := c.get("/busy", &b)
	return b.Bool, err
}

// Capacity returns the maximum length of an arbitrary waveform
func (c *Client) Capacity() (int, error) {
	i := generichttp.IntT{}
	err := c.get("/capacity", &i)
	return i.Int, err
}

// Stats returns the controller counters as a generic map
func (c *Client) Stats() (map[string]interface{}, error) {
	m := map[string]interface{}{}
	err := c.get("/stats", &m)
	return m, err
}

// Lock locks or unlocks the server
func (c *Client) Lock(locked bool) error {
	return c.postJSON("/lock", generichttp.BoolT{Bool: locked})
}
