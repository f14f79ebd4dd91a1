package dac_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"

	"github.com/nasa-jpl/pmoddac/ad5628"
	"github.com/nasa-jpl/pmoddac/comm"
	"github.com/nasa-jpl/pmoddac/generichttp/dac"
	"github.com/nasa-jpl/pmoddac/mailbox"
	"github.com/nasa-jpl/pmoddac/pmoddac"
	"github.com/nasa-jpl/pmoddac/server/middleware/locker"
	"github.com/nasa-jpl/pmoddac/timer"
	"github.com/nasa-jpl/pmoddac/waveform"
)

// bench is a controller and host sharing an in-memory mailbox, behind an
// httptest server
type bench struct {
	mb   *mailbox.Mailbox
	bus  *comm.Discard
	dev  *pmoddac.Device
	srv  *httptest.Server
	cli  *dac.Client
	stop func()
}

func newBench(t *testing.T) *bench {
	t.Helper()
	mb, err := mailbox.New(mailbox.NewMemory(mailbox.DefaultSize), mailbox.DefaultLayout)
	if err != nil {
		t.Fatal(err)
	}
	bus := &comm.Discard{}
	dev := pmoddac.NewDevice(bus, timer.Yield{}, mb)
	disp := pmoddac.NewDispatcher(dev, mb, 0)
	disp.Verbose = false
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		disp.Run(ctx)
		close(done)
	}()

	host := pmoddac.NewHost(mailbox.NewClient(mb))
	host.Timeout = 5 * time.Second
	h := dac.NewHTTPDAC(host, func() interface{} { return dev.Stats() })
	lock := locker.New()
	locker.Inject(h, lock)
	r := chi.NewRouter()
	r.Use(lock.Check)
	h.RT().Bind(r)
	root := chi.NewRouter()
	root.Mount("/pmoddac", r)
	srv := httptest.NewServer(root)

	b := &bench{mb: mb, bus: bus, dev: dev, srv: srv, cli: dac.NewClient(srv.URL+"/pmoddac", 5*time.Second)}
	b.stop = func() {
		srv.Close()
		cancel()
		<-done
	}
	return b
}

func TestFixedOverHTTP(t *testing.T) {
	b := newBench(t)
	defer b.stop()
	if err := b.cli.Fixed("A", 1.0); err != nil {
		t.Fatal(err)
	}
	if b.bus.Transfers() != 1 {
		t.Errorf("expected one transfer, got %d", b.bus.Transfers())
	}
	busy, err := b.cli.Busy()
	if err != nil {
		t.Fatal(err)
	}
	if busy {
		t.Error("expected the controller to be idle after a fixed write")
	}
	st, err := b.cli.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st["completed"].(float64) != 1 {
		t.Errorf("expected one completed command, got %v", st["completed"])
	}
}

func TestFixedRejectsBadInput(t *testing.T) {
	b := newBench(t)
	defer b.stop()
	err := b.cli.Fixed("A", 2.6)
	if se, ok := err.(dac.StatusError); !ok || se.Code != http.StatusBadRequest {
		t.Errorf("expected a 400 for 2.6 V, got %v", err)
	}
	err = b.cli.Fixed("Q", 1)
	if se, ok := err.(dac.StatusError); !ok || se.Code != http.StatusBadRequest {
		t.Errorf("expected a 400 for channel Q, got %v", err)
	}
	err = b.cli.FixedDN("A", 4096)
	if se, ok := err.(dac.StatusError); !ok || se.Code != http.StatusBadRequest {
		t.Errorf("expected a 400 for 4096 counts, got %v", err)
	}
}

func TestTriangleOverHTTP(t *testing.T) {
	b := newBench(t)
	defer b.stop()
	if err := b.cli.Triangle("B", 1, 1); err != nil {
		t.Fatal(err)
	}
	if b.bus.Transfers() != 8192 {
		t.Errorf("expected 8192 transfers, got %d", b.bus.Transfers())
	}
}

func TestArbitraryThenBusy(t *testing.T) {
	b := newBench(t)
	defer b.stop()
	if err := b.cli.Arbitrary("C", strings.NewReader("volts\n0\n1.25\n2.5\n")); err != nil {
		t.Fatal(err)
	}
	busy, err := b.cli.Busy()
	if err != nil {
		t.Fatal(err)
	}
	if !busy {
		t.Error("expected the controller to stay busy playing the waveform")
	}
	err = b.cli.Fixed("A", 1)
	if se, ok := err.(dac.StatusError); !ok || se.Code != http.StatusConflict {
		t.Errorf("expected a 409 while the waveform plays, got %v", err)
	}

	resp, err := http.Get(b.srv.URL + "/pmoddac/arbitrary/snapshot.fits")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot: status %d", resp.StatusCode)
	}
	dn, err := waveform.ReadFITS(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint16{0, 2048, 4095}, dn); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotBeforeUpload(t *testing.T) {
	b := newBench(t)
	defer b.stop()
	resp, err := http.Get(b.srv.URL + "/pmoddac/arbitrary/snapshot.fits")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestLocked(t *testing.T) {
	b := newBench(t)
	defer b.stop()
	if err := b.cli.Lock(true); err != nil {
		t.Fatal(err)
	}
	err := b.cli.Fixed("A", 1)
	if se, ok := err.(dac.StatusError); !ok || se.Code != http.StatusLocked {
		t.Errorf("expected a 423 while locked, got %v", err)
	}
	if _, err := b.cli.Busy(); err != nil {
		t.Errorf("expected reads to work while locked, got %v", err)
	}
	if err := b.cli.Lock(false); err != nil {
		t.Fatal(err)
	}
	if err := b.cli.Fixed("A", 1); err != nil {
		t.Errorf("expected writes to work after unlocking, got %v", err)
	}
}

func TestCapacityAndEndpoints(t *testing.T) {
	b := newBench(t)
	defer b.stop()
	n, err := b.cli.Capacity()
	if err != nil {
		t.Fatal(err)
	}
	if n != 126 {
		t.Errorf("expected 126, got %d", n)
	}
	resp, err := http.Get(b.srv.URL + "/pmoddac/endpoints")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	for _, want := range []string{"POST /fixed", "GET /busy", "GET /lock", "GET /stats"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in the endpoint list %s", want, buf.String())
		}
	}
}

// stuck is a Controller whose blocking writes always time out
type stuck struct{ *pmoddac.Host }

func (stuck) WriteFixedValue(ctx context.Context, ch ad5628.Channel, v float64) error {
	return mailbox.ErrTimeout
}

func TestTimeoutIsGatewayTimeout(t *testing.T) {
	mb, _ := mailbox.New(mailbox.NewMemory(mailbox.DefaultSize), mailbox.DefaultLayout)
	h := dac.NewHTTPDAC(stuck{pmoddac.NewHost(mailbox.NewClient(mb))}, nil)
	r := chi.NewRouter()
	h.RT().Bind(r)
	req := httptest.NewRequest(http.MethodPost, "/fixed", strings.NewReader(`{"channel":"A","volts":1}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", w.Code)
	}
}
