package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider adapts the Google GenAI client to the Provider boundary.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiProvider builds a provider for the given model. An empty API key
// is a configuration error the caller surfaces as fatal for the chat feature.
func NewGeminiProvider(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, logger: logger}, nil
}

func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *GeminiProvider) StartSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	model := p.client.GenerativeModel(p.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(cfg.SystemInstruction)},
	}
	model.SetTemperature(cfg.Temperature)
	model.SetTopK(cfg.TopK)
	model.SetTopP(cfg.TopP)
	model.SetMaxOutputTokens(cfg.MaxOutputTokens)

	return &geminiSession{chat: model.StartChat(), logger: p.logger}, nil
}

type geminiSession struct {
	chat   *genai.ChatSession
	logger *zap.Logger
}

func (s *geminiSession) SendStream(ctx context.Context, text string) (Stream, error) {
	iter := s.chat.SendMessageStream(ctx, genai.Text(text))
	return &geminiStream{iter: iter, logger: s.logger}, nil
}

type geminiStream struct {
	iter   *genai.GenerateContentResponseIterator
	logger *zap.Logger
}

// Next returns the text of the next response chunk. Non-text parts are
// skipped; a chunk that carries no text at all comes back as "".
func (s *geminiStream) Next() (string, error) {
	resp, err := s.iter.Next()
	if err == iterator.Done {
		return "", io.EOF
	}
	if err != nil {
		return "", fmt.Errorf("gemini stream failed: %w", err)
	}

	var text string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text += string(txt)
			} else {
				s.logger.Debug("gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
			}
		}
	}
	return text, nil
}
