package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/kdduha/bgremover/internal/config"
	"github.com/kdduha/bgremover/internal/encoder"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type imageEditor interface {
	Edit(ctx context.Context, body openai.ImageEditParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// OpenAIRemover uses the image edit endpoint of an OpenAI-compatible API.
type OpenAIRemover struct {
	images    imageEditor
	modelName string
}

func NewOpenAIRemover(cfg config.OpenAIConfig) *OpenAIRemover {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)
	return newOpenAIRemover(&client.Images, cfg.Model)
}

func newOpenAIRemover(images imageEditor, modelName string) *OpenAIRemover {
	return &OpenAIRemover{
		images:    images,
		modelName: modelName,
	}
}

func (o *OpenAIRemover) RemoveBackground(ctx context.Context, base64Image, mimeType string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 image: %v", encoder.ErrEncoding, err)
	}

	resp, err := o.images.Edit(ctx, o.buildEditParams(data, mimeType))
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", ErrTransport, err)
	}

	if resp == nil {
		return "", ErrNoImageInResponse
	}
	for _, img := range resp.Data {
		if img.B64JSON != "" {
			return img.B64JSON, nil
		}
	}
	return "", ErrNoImageInResponse
}

func (o *OpenAIRemover) buildEditParams(data []byte, mimeType string) openai.ImageEditParams {
	filename := "image." + strings.TrimPrefix(mimeType, "image/")
	return openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(data), filename, mimeType),
		},
		Prompt:       removeBackgroundInstruction,
		Model:        openai.ImageModel(o.modelName),
		Background:   openai.ImageEditParamsBackgroundTransparent,
		OutputFormat: openai.ImageEditParamsOutputFormatPNG,
	}
}
