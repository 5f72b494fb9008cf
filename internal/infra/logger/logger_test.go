package logger

import (
	"strings"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"jane.doe@example.com", "jan***@example.com"},
		{"ab@example.com", "ab***@example.com"},
		{"not-an-email", "***"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.1.100"); got != "192.168.*.*" {
		t.Errorf("MaskIP ipv4 = %q", got)
	}
	if got := MaskIP(""); got != "" {
		t.Errorf("MaskIP empty = %q", got)
	}
}

func TestTokenDigest(t *testing.T) {
	digest := TokenDigest("raw-refresh-token-value")

	if len(digest) != 12 {
		t.Fatalf("expected 12-char digest, got %d chars", len(digest))
	}
	if strings.Contains("raw-refresh-token-value", digest) {
		t.Fatal("digest must not be a substring of the input")
	}
	if TokenDigest("raw-refresh-token-value") != digest {
		t.Fatal("digest must be deterministic")
	}
	if TokenDigest("") != "" {
		t.Fatal("empty input yields empty digest")
	}
}
