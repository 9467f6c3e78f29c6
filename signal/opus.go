package signal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/limits"
)

// ErrTruncatedStream is returned when a packet stream's framing is cut off.
var ErrTruncatedStream = errors.New("truncated opus stream")

// opusFrameSeconds is the envelope resolution for opus analysis, matching
// the 20ms frames the generation service produces.
const opusFrameSeconds = 0.02

// opusOutputSize holds the largest decoded frame: 60ms at 48kHz in stereo.
const opusOutputSize = 2880 * 2 * 2

// PacketDecoder wraps a pion opus decoder reused across packets.
type PacketDecoder struct {
	decoder opus.Decoder
	output  []byte
}

// NewPacketDecoder creates a decoder with a reusable output buffer.
func NewPacketDecoder() *PacketDecoder {
	return &PacketDecoder{
		decoder: opus.NewDecoder(),
		output:  make([]byte, opusOutputSize),
	}
}

// DecodeLevel decodes one opus packet and returns the RMS level of its PCM
// content in [0, 1].
func (p *PacketDecoder) DecodeLevel(packet []byte) (float64, error) {
	if len(packet) == 0 {
		return 0, fmt.Errorf("%w: empty packet", limits.ErrEmptyInput)
	}

	for i := range p.output {
		p.output[i] = 0
	}
	_, isStereo, err := p.decoder.Decode(packet, p.output)
	if err != nil {
		return 0, fmt.Errorf("opus decode failed: %w", err)
	}

	sampleCount := len(p.output) / 2
	if isStereo {
		sampleCount /= 2
	}

	var sum float64
	for i := 0; i < sampleCount; i++ {
		// Little-endian int16 PCM.
		sample := float64(int16(p.output[i*2])|int16(p.output[i*2+1])<<8) / 32768.0
		sum += sample * sample
	}
	level := 0.0
	if sampleCount > 0 {
		level = math.Min(1, math.Sqrt(sum/float64(sampleCount)))
	}
	return level, nil
}

// AnalyzeOpusStream walks a stream of length-prefixed opus packets (2-byte
// big-endian length before each packet) and reduces it to an envelope Clip,
// one level per frame.
func AnalyzeOpusStream(payload []byte, name string) (*Clip, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", limits.ErrEmptyInput)
	}

	decoder := NewPacketDecoder()
	var envelope []float64
	offset := 0
	for offset < len(payload) {
		if offset+2 > len(payload) {
			return nil, fmt.Errorf("%w: length prefix cut off at byte %d", ErrTruncatedStream, offset)
		}
		size := int(binary.BigEndian.Uint16(payload[offset : offset+2]))
		offset += 2
		if size == 0 || offset+size > len(payload) {
			return nil, fmt.Errorf("%w: packet of %d bytes at byte %d", ErrTruncatedStream, size, offset)
		}

		level, err := decoder.DecodeLevel(payload[offset : offset+size])
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", len(envelope), err)
		}
		envelope = append(envelope, level)
		offset += size
	}

	normalizeEnvelope(envelope)
	clip, err := NewClip(name, opusFrameSeconds, envelope, detectOnsets(envelope))
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "AnalyzeOpusStream",
		"clip":     name,
		"packets":  clip.Slots(),
		"duration": clip.Duration(),
	}).Info("Opus clip analyzed")
	return clip, nil
}
