package visual

// Particle is one mote of a diffusion field. Depth is the particle's age
// measured in simulation units; a particle dies once its depth passes its
// lifetime or its opacity fades below visibility.
type Particle struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Depth    float64 `json:"depth"`
	Lifetime float64 `json:"lifetime"`
	Hue      float64 `json:"hue"`
	Size     float64 `json:"size"`
	Opacity  float64 `json:"opacity"`

	// peak is the birth opacity the fade is measured against.
	peak float64
}

// moodHues maps the reverb mood parameter onto a base hue in degrees.
var moodHues = map[string]float64{
	"Warm":      40,
	"Bright":    190,
	"Dark":      270,
	"Energetic": 320,
	"Neutral":   195,
}

// defaultHue is used for unrecognized moods.
const defaultHue = 195

func hueForMood(mood string) float64 {
	if hue, ok := moodHues[mood]; ok {
		return hue
	}
	return defaultHue
}
