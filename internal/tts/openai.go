package tts

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRenderer implements Renderer with the OpenAI speech endpoint, MP3 output.
type OpenAIRenderer struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAIRenderer creates a renderer using the tts-1 model.
func NewOpenAIRenderer(apiKey string) *OpenAIRenderer {
	return &OpenAIRenderer{
		client: openai.NewClient(apiKey),
		model:  openai.TTSModel1,
	}
}

func (r *OpenAIRenderer) Render(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := r.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          r.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	return io.ReadAll(resp)
}
