package cli

import (
	"testing"

	"github.com/vectorlink/bulkxfer/internal/constants"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", constants.DefaultPartSize},
		{"64MB", 64 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"5242880", 5242880},
	}
	for _, c := range cases {
		got, err := parseSize(c.in, constants.DefaultPartSize)
		if err != nil {
			t.Fatalf("parseSize(%q) failed: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := parseSize("not-a-size", 0); err == nil {
		t.Fatalf("expected an error for garbage input")
	}
}
