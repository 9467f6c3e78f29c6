package plugin

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestKindString verifies the stable identifier for every kind
func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindReverb, "reverb"},
		{KindDelay, "delay"},
		{KindCompressor, "compressor"},
		{KindUnknown, "unknown"},
		{Kind(200), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

// TestParseKindRoundTrip verifies that every real kind parses back from its identifier
func TestParseKindRoundTrip(t *testing.T) {
	for _, kind := range Kinds() {
		parsed, err := ParseKind(kind.String())
		if err != nil {
			t.Fatalf("ParseKind(%q) returned error: %v", kind.String(), err)
		}
		if parsed != kind {
			t.Errorf("ParseKind(%q) = %v, want %v", kind.String(), parsed, kind)
		}
	}
}

// TestParseKindUnknown verifies rejection of identifiers outside the fixed set
func TestParseKindUnknown(t *testing.T) {
	_, err := ParseKind("flanger")
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(\"flanger\") error = %v, want ErrUnknownKind", err)
	}
}

// TestKindValid verifies the validity range of the enum
func TestKindValid(t *testing.T) {
	if KindUnknown.Valid() {
		t.Error("KindUnknown.Valid() = true, want false")
	}
	for _, kind := range Kinds() {
		if !kind.Valid() {
			t.Errorf("%v.Valid() = false, want true", kind)
		}
	}
}

// TestSupportsSidechainTarget verifies only the compressor accepts incoming links
func TestSupportsSidechainTarget(t *testing.T) {
	if !KindCompressor.SupportsSidechainTarget() {
		t.Error("KindCompressor must support being a sidechain target")
	}
	if KindReverb.SupportsSidechainTarget() {
		t.Error("KindReverb must not support being a sidechain target")
	}
	if KindDelay.SupportsSidechainTarget() {
		t.Error("KindDelay must not support being a sidechain target")
	}
}

// TestKindJSONRoundTrip verifies kinds serialize as stable identifiers in JSON maps
func TestKindJSONRoundTrip(t *testing.T) {
	original := map[Kind]int{KindReverb: 1, KindCompressor: 2}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var restored map[Kind]int
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(restored) != len(original) {
		t.Fatalf("restored %d entries, want %d", len(restored), len(original))
	}
	for kind, value := range original {
		if restored[kind] != value {
			t.Errorf("restored[%v] = %d, want %d", kind, restored[kind], value)
		}
	}
}
