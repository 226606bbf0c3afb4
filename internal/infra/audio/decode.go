// Package audio provides the speaker-backed playback output and audio probing.
package audio

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedFormat is returned for audio the decoders cannot read.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

type decoderFunc func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

func decodeWAV(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return wav.Decode(rc)
}

var decoders = map[string]decoderFunc{
	"audio/mpeg": mp3.Decode,
	"audio/wav":  decodeWAV,
	"audio/ogg":  vorbis.Decode,
}

// memoryFile exposes in-memory audio as a seekable ReadCloser.
// The mp3 and vorbis decoders can only report length and seek when the
// reader implements io.Seeker.
type memoryFile struct {
	*bytes.Reader
}

func (memoryFile) Close() error { return nil }

// DetectFormat returns the sniffed MIME type of data and whether it can be decoded.
func DetectFormat(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for mime := range decoders {
			if m.Is(mime) {
				return mime, true
			}
		}
	}
	return detected.String(), false
}

// Decode decodes an in-memory audio file. The returned streamer is seekable.
func Decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	mime, ok := DetectFormat(data)
	if !ok {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "detected %s", mime)
	}

	streamer, format, err := decoders[mime](memoryFile{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", mime)
	}
	return streamer, format, nil
}

// ProbeDuration returns the length of the audio data in seconds.
func ProbeDuration(data []byte) (float64, error) {
	streamer, format, err := Decode(data)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	if format.SampleRate <= 0 {
		return 0, errors.New("invalid sample rate")
	}
	return format.SampleRate.D(streamer.Len()).Seconds(), nil
}
