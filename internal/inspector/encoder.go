package inspector

import "encoding/binary"

// audioEncoder turns PCM16 samples into an RTP payload and a codec tag.
type audioEncoder interface {
	Encode(pcm []int16) (payload []byte, codec string, err error)
	Close() error
}

// pcmEncoder is the encoder used when this binary is built without the
// opus tag, or when Opus initialization fails: big-endian PCM16, the
// same wire format opus_support.go falls back to.
type pcmEncoder struct{}

func (pcmEncoder) Encode(pcm []int16) ([]byte, string, error) {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.BigEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf, "pcm16", nil
}

func (pcmEncoder) Close() error { return nil }
