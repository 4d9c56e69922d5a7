package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/kdduha/bgremover/internal/config"
	"github.com/kdduha/bgremover/internal/encoder"
	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiRemover asks a Gemini image model to cut out the foreground.
type GeminiRemover struct {
	models    contentGenerator
	modelName string
}

func NewGeminiRemover(ctx context.Context, cfg config.GeminiConfig) (*GeminiRemover, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiRemover(client.Models, cfg.Model), nil
}

func newGeminiRemover(models contentGenerator, modelName string) *GeminiRemover {
	return &GeminiRemover{
		models:    models,
		modelName: modelName,
	}
}

func (g *GeminiRemover) RemoveBackground(ctx context.Context, base64Image, mimeType string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 image: %v", encoder.ErrEncoding, err)
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, buildGeminiContents(data, mimeType), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", ErrTransport, err)
	}

	return extractGeminiImage(resp)
}

func buildGeminiContents(data []byte, mimeType string) []*genai.Content {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		genai.NewPartFromText(removeBackgroundInstruction),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// extractGeminiImage returns the first inline image of the first candidate.
func extractGeminiImage(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoImageInResponse
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
	}
	return "", ErrNoImageInResponse
}
