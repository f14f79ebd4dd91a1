package timer

import (
	"testing"
	"time"
)

func TestDelayersWaitAtLeastTheRequest(t *testing.T) {
	for _, name := range []string{"busy", "sleep", "yield"} {
		d, err := Parse(name)
		if err != nil {
			t.Fatal(err)
		}
		start := time.Now()
		d.Delay(500)
		if el := time.Since(start); el < 500*time.Microsecond {
			t.Errorf("%s: returned after %v, expected at least 500us", name, el)
		}
	}
}

func TestZeroDelayReturnsImmediately(t *testing.T) {
	start := time.Now()
	BusyWait{}.Delay(0)
	Sleep{}.Delay(0)
	if el := time.Since(start); el > 10*time.Millisecond {
		t.Errorf("zero delay took %v", el)
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("coffee"); err == nil {
		t.Error("expected an error for an unknown delay kind")
	}
}
