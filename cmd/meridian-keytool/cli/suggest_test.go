// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"keygen", "keygen", 0},
		{"rotaet", "rotate", 2},
		{"exprot", "export", 2},
		{"a", "", 1},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "keygen"},
		{Name: "register"},
		{Name: "rotate"},
		{Name: "migrate"},
	}

	if got := suggestCommand("rotaet", commands); got != "rotate" {
		t.Errorf("suggestCommand(rotaet) = %q, want rotate", got)
	}
	if got := suggestCommand("migrat", commands); got != "migrate" {
		t.Errorf("suggestCommand(migrat) = %q, want migrate", got)
	}
	// Too far from anything: no suggestion.
	if got := suggestCommand("frobnicate", commands); got != "" {
		t.Errorf("suggestCommand(frobnicate) = %q, want empty", got)
	}
}

func TestSuggestFlag(t *testing.T) {
	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flagSet.String("store", "", "store path")
		flagSet.String("passphrase-file", "", "passphrase file")
		return flagSet
	}

	if got := suggestFlag([]string{"--stoer", "x"}, flags()); got != "--store" {
		t.Errorf("suggestFlag(--stoer) = %q, want --store", got)
	}
	if got := suggestFlag([]string{"--passphrase-fil=x"}, flags()); got != "--passphrase-file" {
		t.Errorf("suggestFlag(--passphrase-fil) = %q, want --passphrase-file", got)
	}
	// Defined flags produce no suggestion.
	if got := suggestFlag([]string{"--store", "x"}, flags()); got != "" {
		t.Errorf("suggestFlag(--store) = %q, want empty", got)
	}
}
