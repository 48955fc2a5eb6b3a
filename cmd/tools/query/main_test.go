package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestFlagName(t *testing.T) {
	tests := map[string]string{"naics": "naics", "setAside": "set-aside", "keywords": "keywords"}
	for in, want := range tests {
		if got := flagName(in); got != want {
			t.Errorf("flagName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRun(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"--naics", "541512", "--sort", "fitScore", "--dir", "desc", "--now", "2026-10-16"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	text := out.String()
	first := strings.Index(text, "Cloud Migration Support Services")
	second := strings.Index(text, "Help Desk Modernization")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("unexpected table:\n%s", text)
	}
	if !strings.Contains(text, "$4,500,000") || !strings.Contains(text, "address: ?naics=541512") {
		t.Fatalf("missing formatted columns:\n%s", text)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"--period", "soon"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2 for bad period, got %d", code)
	}
	errOut.Reset()
	if code := run([]string{"--ceiling", "900_100", "--validate"}, &out, &errOut); code != 3 {
		t.Fatalf("expected exit 3 for invalid draft, got %d", code)
	}
	if !strings.Contains(errOut.String(), "Min cannot exceed Max.") {
		t.Fatalf("missing issue text: %s", errOut.String())
	}
}
