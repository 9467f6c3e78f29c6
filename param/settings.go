package param

// Settings holds one plugin's named parameter values.
//
// Settings maps are treated as immutable once published by the store: every
// update installs a freshly built map, so a reader holding a previous map
// sees a stable snapshot and detects changes by reference inequality.
type Settings map[string]Value

// Clone returns an independent copy of the settings map.
func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	clone := make(Settings, len(s))
	for name, value := range s {
		clone[name] = value
	}
	return clone
}

// Merge returns a new map holding s overlaid with partial. Neither input is
// modified. Keys absent from partial keep their previous values.
func (s Settings) Merge(partial Settings) Settings {
	merged := s.Clone()
	for name, value := range partial {
		merged[name] = value
	}
	return merged
}

// Equal reports whether both maps hold the same names and values.
func (s Settings) Equal(other Settings) bool {
	if len(s) != len(other) {
		return false
	}
	for name, value := range s {
		if !other[name].Equal(value) {
			return false
		}
	}
	return true
}

// Float returns the named numeric value, or 0 when absent or non-numeric.
func (s Settings) Float(name string) float64 {
	return s[name].Float()
}

// FloatOr returns the named numeric value, or fallback when the name is
// absent or the value is not a number.
func (s Settings) FloatOr(name string, fallback float64) float64 {
	value, ok := s[name]
	if !ok || value.Kind() != ValueNumber {
		return fallback
	}
	return value.Float()
}

// TextOr returns the named text value, or fallback when the name is absent
// or the value is not text.
func (s Settings) TextOr(name, fallback string) string {
	value, ok := s[name]
	if !ok || value.Kind() != ValueText {
		return fallback
	}
	return value.Text()
}

// Bool returns the named flag value, or false when absent or not a flag.
func (s Settings) Bool(name string) bool {
	return s[name].Bool()
}
