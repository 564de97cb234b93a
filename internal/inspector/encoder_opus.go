//go:build opus

package inspector

import (
	"fmt"
	"log"

	opus "gopkg.in/hraban/opus.v2"
)

// opusEncoder wraps gopkg.in/hraban/opus.v2, mirroring opus_support.go's
// OpusEncoderWrapper: falls back to PCM if the encoder cannot be
// constructed (e.g. libopus not present on the build host), rather than
// failing the inspector.
type opusEncoder struct {
	enc     *opus.Encoder
	enabled bool
}

func newAudioEncoder(sampleRate int) audioEncoder {
	enc, err := opus.NewEncoder(sampleRate, 1, opus.Application(2049)) // OPUS_APPLICATION_VOIP
	if err != nil {
		log.Printf("inspector: opus encoder init failed, falling back to PCM: %v", err)
		return pcmEncoder{}
	}
	return &opusEncoder{enc: enc, enabled: true}
}

func (o *opusEncoder) Encode(pcm []int16) ([]byte, string, error) {
	out := make([]byte, 4000)
	n, err := o.enc.Encode(pcm, out)
	if err != nil {
		return nil, "", fmt.Errorf("inspector: opus encode: %w", err)
	}
	return out[:n], "opus", nil
}

func (o *opusEncoder) Close() error { return nil }
