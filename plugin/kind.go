// Package plugin defines the fixed set of plugin kinds a rack can host.
//
// Every panel in the rack is identified by its Kind. The kind selects the
// settings schema, the visualizer bridge implementation, and the sidechain
// capabilities of the panel.
//
// Example:
//
//	kind, err := plugin.ParseKind("reverb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(kind.DisplayName(), kind.SupportsSidechainTarget())
package plugin

import (
	"errors"
	"fmt"
)

// ErrUnknownKind indicates a plugin kind name that is not part of the fixed set.
var ErrUnknownKind = errors.New("unknown plugin kind")

// Kind identifies one of the fixed plugin kinds in the rack.
type Kind uint8

const (
	// KindUnknown is the zero value and never names a real panel.
	KindUnknown Kind = iota
	// KindReverb is the particle-field reverb panel.
	KindReverb
	// KindDelay is the echo-pip delay panel.
	KindDelay
	// KindCompressor is the gain-pulse compressor panel.
	KindCompressor
)

// Kinds returns all real plugin kinds in rack order.
func Kinds() []Kind {
	return []Kind{KindReverb, KindDelay, KindCompressor}
}

// String returns the stable lowercase identifier for the kind.
// This form is used in savedata, presets, and the HTTP surface.
func (k Kind) String() string {
	switch k {
	case KindReverb:
		return "reverb"
	case KindDelay:
		return "delay"
	case KindCompressor:
		return "compressor"
	default:
		return "unknown"
	}
}

// DisplayName returns the human-readable panel title.
func (k Kind) DisplayName() string {
	switch k {
	case KindReverb:
		return "Space Reverb"
	case KindDelay:
		return "Tape Delay"
	case KindCompressor:
		return "Bus Compressor"
	default:
		return "Unknown"
	}
}

// Valid reports whether the kind names a real panel.
func (k Kind) Valid() bool {
	return k > KindUnknown && k <= KindCompressor
}

// SupportsSidechainTarget reports whether panels of this kind can be
// triggered by an incoming sidechain link. Only such kinds carry the
// sidechain-active settings flag.
func (k Kind) SupportsSidechainTarget() bool {
	return k == KindCompressor
}

// ParseKind resolves a stable identifier back to its Kind.
// Returns ErrUnknownKind for identifiers outside the fixed set.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "reverb":
		return KindReverb, nil
	case "delay":
		return KindDelay, nil
	case "compressor":
		return KindCompressor, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as their
// stable identifiers inside savedata and presets.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
