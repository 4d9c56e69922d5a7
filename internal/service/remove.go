package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kdduha/bgremover/internal/config"
	"github.com/kdduha/bgremover/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrNoImageInResponse means the model answered without any image part.
	ErrNoImageInResponse = errors.New("inference error: no-image-in-response")
	// ErrTransport wraps every failure of the remote call itself.
	ErrTransport = errors.New("inference transport fault")
)

// Remover strips the background of a base64 image and returns the base64 result.
type Remover interface {
	RemoveBackground(ctx context.Context, base64Image, mimeType string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// NewRemover builds the provider selected by cfg.Provider. The returned name
// identifies provider and model in cache keys and metrics.
func NewRemover(ctx context.Context, cfg *config.Config) (Remover, string, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		r, err := NewGeminiRemover(ctx, cfg.Gemini)
		if err != nil {
			return nil, "", err
		}
		return r, config.ProviderGemini + "/" + cfg.Gemini.Model, nil
	case config.ProviderOpenAI:
		return NewOpenAIRemover(cfg.OpenAI), config.ProviderOpenAI + "/" + cfg.OpenAI.Model, nil
	case config.ProviderStub:
		return NewStubRemover(), config.ProviderStub, nil
	default:
		return nil, "", fmt.Errorf("unsupported provider {%s}", cfg.Provider)
	}
}

// BackgroundService issues exactly one provider call per request, optionally
// short-circuited by the result cache.
type BackgroundService struct {
	logger   *zap.Logger
	remover  Remover
	provider string
	cache    Cache
}

func NewBackgroundService(logger *zap.Logger, remover Remover, provider string) *BackgroundService {
	return &BackgroundService{
		logger:   logger,
		remover:  remover,
		provider: provider,
	}
}

func (s *BackgroundService) SetCacheClient(cache Cache) {
	s.cache = cache
}

func (s *BackgroundService) RemoveBackground(ctx context.Context, base64Image, mimeType string) (string, error) {
	key := s.cacheKey(base64Image, mimeType)

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache get error", zap.Error(err))
		}
		if found {
			s.logger.Debug("served from cache", zap.String("key", key))
			metrics.BackgroundRemovalTotal(statusCacheHit, s.provider)
			return cached, nil
		}
	}

	start := time.Now()
	result, err := s.remover.RemoveBackground(ctx, base64Image, mimeType)
	status := statusOK
	if err != nil {
		status = statusError
	}
	metrics.BackgroundRemovalTotal(status, s.provider)
	metrics.BackgroundRemovalDuration(status, s.provider, time.Since(start))
	if err != nil {
		return "", err
	}

	s.logger.Info("background removed",
		zap.String("provider", s.provider),
		zap.String("mime_type", mimeType),
		zap.Int("input_size", len(base64Image)),
		zap.Int("output_size", len(result)),
		zap.Duration("cost", time.Since(start)))

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.logger.Warn("failed to set cache", zap.Error(err))
		}
	}
	return result, nil
}

func (s *BackgroundService) cacheKey(base64Image, mimeType string) string {
	data := []string{
		s.provider,
		mimeType,
		base64Image,
	}
	hash := sha256.Sum256([]byte(strings.Join(data, "-")))
	return cacheKeyPrefix + hex.EncodeToString(hash[:])
}
