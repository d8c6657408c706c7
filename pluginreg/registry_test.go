package pluginreg_test

import (
	"context"
	"errors"
	"testing"

	"github.com/wippy-systems/relay/pluginreg"
)

func TestRegistry_Load_RejectsPrefixCollision(t *testing.T) {
	tests := []struct {
		name    string
		entries []pluginreg.Descriptor
		wantErr error
	}{
		{
			name: "one prefix of another",
			entries: []pluginreg.Descriptor{
				{Prefix: "s"},
				{Prefix: "session_"},
			},
			wantErr: pluginreg.ErrPrefixCollision,
		},
		{
			name: "exact duplicate",
			entries: []pluginreg.Descriptor{
				{Prefix: "ops_"},
				{Prefix: "ops_"},
			},
			wantErr: pluginreg.ErrPrefixCollision,
		},
		{
			name: "empty prefix",
			entries: []pluginreg.Descriptor{
				{Prefix: ""},
			},
			wantErr: pluginreg.ErrEmptyPrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pluginreg.NewRegistry()
			err := r.Load(tt.entries)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Load_AcceptsDisjointPrefixes(t *testing.T) {
	r := pluginreg.NewRegistry()
	err := r.Load([]pluginreg.Descriptor{
		{Prefix: "ops_"},
		{Prefix: "billing_"},
		{Prefix: "session_"},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestRegistry_Match_LongestPrefixWins(t *testing.T) {
	r := pluginreg.NewRegistry()
	if err := r.Load([]pluginreg.Descriptor{
		{Prefix: "s_", ProcessID: "short"},
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Reload with a larger, still-disjoint set. Load rejects any prefix
	// that is a prefix of another, so at most one prefix can match; "op_"
	// is a near miss that must not be picked for "ops_restart".
	if err := r.Load([]pluginreg.Descriptor{
		{Prefix: "op_", ProcessID: "short"},
		{Prefix: "ops_", ProcessID: "long"},
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	d, ok := r.Match("ops_restart")
	if !ok {
		t.Fatal("Match() found nothing, want a match")
	}
	if d.ProcessID != "long" {
		t.Errorf("Match() picked %q, want the longest prefix match %q", d.ProcessID, "long")
	}
}

func TestRegistry_Match_NoMatch(t *testing.T) {
	r := pluginreg.NewRegistry()
	if err := r.Load([]pluginreg.Descriptor{{Prefix: "ops_"}}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, ok := r.Match("billing_charge"); ok {
		t.Fatal("Match() found a match, want none")
	}
}

func TestRegistry_AutoStart(t *testing.T) {
	r := pluginreg.NewRegistry()
	if err := r.Load([]pluginreg.Descriptor{
		{Prefix: "ops_", AutoStart: true},
		{Prefix: "billing_", AutoStart: false},
		{Prefix: "session_", AutoStart: true},
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := r.AutoStart()
	if len(got) != 2 {
		t.Fatalf("AutoStart() returned %d entries, want 2", len(got))
	}
	if got[0].Prefix != "ops_" || got[1].Prefix != "session_" {
		t.Errorf("AutoStart() = %+v, want ops_ then session_ (sorted)", got)
	}
}

func TestStaticDiscoverer(t *testing.T) {
	d := pluginreg.Static{Descriptors: []pluginreg.Descriptor{{Prefix: "ops_"}}}
	got, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 1 || got[0].Prefix != "ops_" {
		t.Errorf("Discover() = %+v, want one ops_ descriptor", got)
	}

	// Mutating the returned slice must not affect the discoverer's own copy.
	got[0].Prefix = "mutated_"
	got2, _ := d.Discover(context.Background())
	if got2[0].Prefix != "ops_" {
		t.Error("Discover() should return a defensive copy")
	}
}
