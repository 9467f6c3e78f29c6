package signal

import (
	"bytes"

	"github.com/opd-ai/rackcore/limits"
)

// riffMagic opens every WAV container.
var riffMagic = []byte("RIFF")

// AnalyzeClip reduces an encoded audio payload to an envelope Clip, sniffing
// the container: RIFF payloads go through the WAV decoder, everything else
// is treated as a length-prefixed opus frame stream.
func AnalyzeClip(payload []byte, name string) (*Clip, error) {
	if err := limits.ValidateClip(payload); err != nil {
		return nil, err
	}
	if bytes.HasPrefix(payload, riffMagic) {
		return AnalyzeWAV(bytes.NewReader(payload), name)
	}
	return AnalyzeOpusStream(payload, name)
}
