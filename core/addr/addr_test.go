package addr_test

import (
	"testing"

	"github.com/momentics/hioload-link/core/addr"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		host string
		port int
		ok   bool
	}{
		{"socket://127.0.0.1:50091", "127.0.0.1", 50091, true},
		{"socket://node-7.cluster.local:2049", "node-7.cluster.local", 2049, true},
		{"socket://0.0.0.0:0", "0.0.0.0", 0, true},
		{"tcp://127.0.0.1:50091", "", 0, false},
		{"socket://127.0.0.1", "", 0, false},
		{"socket://:50091", "", 0, false},
		{"socket://127.0.0.1:", "", 0, false},
		{"socket://127.0.0.1:port", "", 0, false},
		{"socket://127.0.0.1:70000", "", 0, false},
		{"socket://127.0.0.1:-1", "", 0, false},
		{"127.0.0.1:50091", "", 0, false},
		{"", "", 0, false},
	}
	for _, c := range cases {
		host, port, err := addr.Parse(c.in)
		if c.ok != (err == nil) {
			t.Fatalf("Parse(%q): err = %v, want ok=%v", c.in, err, c.ok)
		}
		if !c.ok {
			continue
		}
		if host != c.host || port != c.port {
			t.Errorf("Parse(%q) = %q,%d want %q,%d", c.in, host, port, c.host, c.port)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	in := "socket://10.0.0.3:40123"
	host, port, err := addr.Parse(in)
	if err != nil {
		t.Fatal(err)
	}
	if got := addr.Format(host, port); got != in {
		t.Errorf("Format = %q want %q", got, in)
	}
}
