package inspector

import (
	"fmt"
	"math"

	"github.com/pion/rtp"

	"github.com/cwsl/sdranalyzer/internal/source"
)

// AudioResult is the payload an AudioInspector emits on Feed: RTP
// packets ready to hand to the analyzer's output MQ as an INSPECTOR
// message (module N, SPEC_FULL.md).
type AudioResult struct {
	Packets []*rtp.Packet
	Codec   string // "opus" or "pcm16"
}

// AudioInspector demodulates a narrowband complex stream to audio and
// packetizes the result as RTP. The demodulation itself (envelope/FM
// discriminator) is an opaque placeholder per spec.md's Out of scope
// clause; what matters here is the egress path: PCM by default, Opus
// when built with -tags opus (mirroring opus_support.go's build-tag
// convention), always RTP-packetized with pion/rtp.
type AudioInspector struct {
	mode       DemodMode
	sampleRate int
	ssrc       uint32
	seq        uint16
	timestamp  uint32
	encoder    audioEncoder
	prevPhase  float64
}

// DemodMode selects the opaque placeholder demodulation algorithm.
type DemodMode int

const (
	DemodAM DemodMode = iota
	DemodFM
)

// NewAudioInspector constructs an AudioInspector. sampleRate is the
// channel's baseband sample rate after tuner extraction; ssrc
// identifies this inspector's RTP stream.
func NewAudioInspector(mode DemodMode, sampleRate int, ssrc uint32) *AudioInspector {
	return &AudioInspector{
		mode:       mode,
		sampleRate: sampleRate,
		ssrc:       ssrc,
		encoder:    newAudioEncoder(sampleRate),
	}
}

// Feed demodulates data to PCM, encodes it (Opus if available, else
// raw PCM), and packetizes the result as RTP.
func (a *AudioInspector) Feed(data []source.Sample) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	pcm := a.demodulate(data)
	encoded, codec, err := a.encoder.Encode(pcm)
	if err != nil {
		return nil, fmt.Errorf("inspector: audio encode: %w", err)
	}

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    dynamicPayloadType(codec),
			SequenceNumber: a.seq,
			Timestamp:      a.timestamp,
			SSRC:           a.ssrc,
		},
		Payload: encoded,
	}
	a.seq++
	a.timestamp += uint32(len(pcm))

	return AudioResult{Packets: []*rtp.Packet{pkt}, Codec: codec}, nil
}

func dynamicPayloadType(codec string) uint8 {
	if codec == "opus" {
		return 111
	}
	return 96
}

// demodulate is the opaque DSP placeholder: AM does envelope detection
// (magnitude), FM does a discrete-phase discriminator.
func (a *AudioInspector) demodulate(data []source.Sample) []int16 {
	pcm := make([]int16, len(data))

	switch a.mode {
	case DemodAM:
		for i, s := range data {
			mag := math.Hypot(real(s), imag(s))
			pcm[i] = clampInt16(mag * 16384)
		}
	case DemodFM:
		for i, s := range data {
			phase := math.Atan2(imag(s), real(s))
			delta := phase - a.prevPhase
			if delta > math.Pi {
				delta -= 2 * math.Pi
			} else if delta < -math.Pi {
				delta += 2 * math.Pi
			}
			a.prevPhase = phase
			pcm[i] = clampInt16(delta / math.Pi * 32767)
		}
	}

	return pcm
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SetConfig is a no-op for the placeholder demodulator: there is no
// tunable DSP parameter beyond frequency/bandwidth, which the tuner
// already owns.
func (a *AudioInspector) SetConfig(cfg Config) error { return nil }

// Close releases the encoder.
func (a *AudioInspector) Close() error {
	return a.encoder.Close()
}
