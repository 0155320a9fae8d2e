// Package tts renders a validated script to a single audio stream.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
)

// WordsPerMinute is the nominal speaking rate used for duration estimates.
const WordsPerMinute = 150

// Renderer turns one piece of text into an encoded audio buffer in the given voice.
// Buffers must be self-contained frames (MP3) so they can be concatenated.
type Renderer interface {
	Render(ctx context.Context, text, voice string) ([]byte, error)
}

// VoiceMap assigns a fixed voice to each speaker role.
type VoiceMap map[models.Speaker]string

// DefaultVoices is the static voice assignment.
var DefaultVoices = VoiceMap{
	models.SpeakerA: "onyx",
	models.SpeakerB: "shimmer",
}

// Result is the concatenated audio and its estimated length.
type Result struct {
	Audio           []byte
	DurationSeconds int
}

// Synthesizer renders scripts one segment at a time.
type Synthesizer struct {
	renderer Renderer
	voices   VoiceMap
}

// NewSynthesizer creates a Synthesizer. voices must cover both speaker roles
// with distinct voices; a nil map uses DefaultVoices.
func NewSynthesizer(renderer Renderer, voices VoiceMap) (*Synthesizer, error) {
	if voices == nil {
		voices = DefaultVoices
	}
	a, b := voices[models.SpeakerA], voices[models.SpeakerB]
	if a == "" || b == "" {
		return nil, fmt.Errorf("voice map must define voices for speakers A and B")
	}
	if a == b {
		return nil, fmt.Errorf("speakers A and B must use different voices, both are %q", a)
	}
	return &Synthesizer{renderer: renderer, voices: voices}, nil
}

// Synthesize renders every segment in script order, strictly sequentially,
// and concatenates the buffers in that same order. The first failing segment
// aborts the whole run; no partial audio is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, segments []models.Segment) (Result, error) {
	if len(segments) == 0 {
		return Result{}, fmt.Errorf("%w: script is empty", apperr.ErrSynthesis)
	}

	var out bytes.Buffer
	for i, seg := range segments {
		voice, ok := s.voices[seg.Speaker]
		if !ok {
			return Result{}, fmt.Errorf("%w: segment %d has unknown speaker %q", apperr.ErrSynthesis, i, seg.Speaker)
		}
		if err := apperr.Check(ctx); err != nil {
			return Result{}, err
		}

		audio, err := s.renderer.Render(ctx, seg.Text, voice)
		if err != nil {
			if cerr := apperr.Canceled(ctx, err); cerr != err {
				return Result{}, cerr
			}
			return Result{}, fmt.Errorf("%w: segment %d of %d: %v", apperr.ErrSynthesis, i+1, len(segments), err)
		}
		out.Write(audio)

		log.WithFields(log.Fields{"segment": i + 1, "total": len(segments), "bytes": len(audio)}).Debug("Rendered segment")
	}

	return Result{Audio: out.Bytes(), DurationSeconds: EstimateDuration(segments)}, nil
}

// EstimateDuration is round(totalWords / 150 * 60) seconds, counting
// whitespace-separated words per segment.
func EstimateDuration(segments []models.Segment) int {
	total := 0
	for _, seg := range segments {
		total += len(strings.Fields(seg.Text))
	}
	return int(math.Round(float64(total) / WordsPerMinute * 60))
}
