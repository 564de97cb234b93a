//go:build !opus

package inspector

// newAudioEncoder returns the PCM fallback when built without -tags
// opus, mirroring the teacher's opus_stub.go convention of a no-op
// encoder that always reports PCM.
func newAudioEncoder(sampleRate int) audioEncoder {
	return pcmEncoder{}
}
