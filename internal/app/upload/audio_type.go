package upload

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	zlog "github.com/rs/zerolog/log"
)

// AudioTypeCheck accepts files whose content sniffs as audio. A declared
// audio/* type is trusted only when the content is unrecognized.
type AudioTypeCheck struct{}

func (AudioTypeCheck) Name() string {
	return "audio_type_check"
}

func (AudioTypeCheck) Check(ctx context.Context, c *Candidate) Result {
	mt := mimetype.Detect(c.Request.Data)
	for m := mt; m != nil; m = m.Parent() {
		if isAudio(m.String()) {
			c.ContentType = mt.String()
			return Accept()
		}
	}

	declared := strings.ToLower(strings.TrimSpace(c.Request.ContentType))
	if mt.Is("application/octet-stream") && isAudio(declared) {
		zlog.Debug().Msgf("upload: unrecognized content, trusting declared type %s", declared)
		c.ContentType = declared
		return Accept()
	}

	zlog.Debug().Msgf("upload: rejected %s, detected %s", c.Request.FileName, mt.String())
	return Reject(CodeNotAudio)
}

func isAudio(contentType string) bool {
	return strings.HasPrefix(contentType, "audio/")
}
