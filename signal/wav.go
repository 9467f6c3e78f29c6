package signal

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/limits"
)

// ErrUnsupportedClip is returned when a clip payload cannot be decoded.
var ErrUnsupportedClip = errors.New("unsupported clip format")

// wavHopSeconds sets the envelope resolution for WAV analysis.
const wavHopSeconds = 0.05

// AnalyzeWAV decodes a RIFF/WAV stream and reduces it to an envelope Clip:
// one RMS level per 50ms window, onsets marked where the level jumps above
// the recent average. Raw samples are discarded after analysis.
func AnalyzeWAV(r io.ReadSeeker, name string) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a RIFF/WAV stream", ErrUnsupportedClip)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seeking PCM chunk: %w", err)
	}

	format := decoder.Format()
	if format == nil || format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: missing format chunk", ErrUnsupportedClip)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))

	hopFrames := int(float64(format.SampleRate) * wavHopSeconds)
	if hopFrames < 1 {
		hopFrames = 1
	}

	buf := &audio.IntBuffer{
		Format: format,
		Data:   make([]int, hopFrames*format.NumChannels),
	}

	var envelope []float64
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("decoding PCM: %w", err)
		}
		if n == 0 {
			break
		}
		var sum float64
		for i := 0; i < n; i++ {
			sample := float64(buf.Data[i]) / scale
			sum += sample * sample
		}
		envelope = append(envelope, math.Sqrt(sum/float64(n)))
	}
	if len(envelope) == 0 {
		return nil, fmt.Errorf("%w: clip has no samples", limits.ErrEmptyInput)
	}

	normalizeEnvelope(envelope)
	clip, err := NewClip(name, wavHopSeconds, envelope, detectOnsets(envelope))
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "AnalyzeWAV",
		"clip":        name,
		"sample_rate": format.SampleRate,
		"channels":    format.NumChannels,
		"windows":     clip.Slots(),
		"duration":    clip.Duration(),
	}).Info("WAV clip analyzed")
	return clip, nil
}
