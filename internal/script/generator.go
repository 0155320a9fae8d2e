// Package script asks a language model for a two-host dialogue and validates
// the result before it is allowed anywhere near synthesis.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
)

// DefaultMaxChars is the ceiling on the user prompt sent to the model.
const DefaultMaxChars = 150000

// Completer sends one system+user exchange to a language model and returns
// the text of the reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Generator produces scripts.
type Generator struct {
	model    Completer
	maxChars int
}

// NewGenerator creates a Generator. maxChars <= 0 uses DefaultMaxChars.
func NewGenerator(model Completer, maxChars int) *Generator {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Generator{model: model, maxChars: maxChars}
}

// Generate makes exactly one model call for content.
func (g *Generator) Generate(ctx context.Context, content models.ExtractedContent) ([]models.Segment, error) {
	prompt, truncated := Truncate(BuildUserPrompt(content), g.maxChars)
	if truncated {
		log.WithField("title", content.Title).Printf("Article truncated to %d characters for script generation", g.maxChars)
	}

	if err := apperr.Check(ctx); err != nil {
		return nil, err
	}
	reply, err := g.model.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		if cerr := apperr.Canceled(ctx, err); cerr != err {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrGeneration, err)
	}

	return Parse(reply)
}

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// Parse extracts the JSON array from a model reply and validates every
// segment. Any invalid segment rejects the whole script.
func Parse(reply string) ([]models.Segment, error) {
	raw := jsonArray.FindString(reply)
	if raw == "" {
		return nil, fmt.Errorf("%w: failed to parse script from model response", apperr.ErrGeneration)
	}

	var segments []models.Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return nil, fmt.Errorf("%w: script is not valid JSON: %v", apperr.ErrGeneration, err)
	}
	if err := Validate(segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// Validate checks that the script is non-empty and every segment has a
// recognized speaker and non-empty text.
func Validate(segments []models.Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: script is empty", apperr.ErrGeneration)
	}
	for i, seg := range segments {
		if seg.Speaker == "" || seg.Text == "" {
			return fmt.Errorf("%w: invalid script segment %d: missing speaker or text", apperr.ErrGeneration, i)
		}
		if !seg.Speaker.Valid() {
			return fmt.Errorf("%w: invalid speaker %q in segment %d, must be \"A\" or \"B\"", apperr.ErrGeneration, seg.Speaker, i)
		}
	}
	return nil
}
