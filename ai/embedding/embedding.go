// Package embedding generates semantic vectors for article and event text
// through any OpenAI-compatible embedding API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyText is returned when the input is empty or whitespace-only.
// Callers must not silently substitute a zero vector.
var ErrEmptyText = errors.New("embedding: empty input text")

// Service is the vector embedding service interface.
type Service interface {
	// Embed generates a vector for a single text. The input is truncated to
	// the configured maximum length before the API call.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// Config represents embedding service configuration.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int // default: 768
	MaxChars   int // default: 8000
}

type service struct {
	client     *openai.Client
	model      string
	dimensions int
	maxChars   int
}

// NewService creates a new embedding Service.
func NewService(cfg *Config) (Service, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 768
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 8000
	}

	return &service{
		client:     client,
		model:      cfg.Model,
		dimensions: dimensions,
		maxChars:   maxChars,
	}, nil
}

func (s *service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, ErrEmptyText
		}
		inputs[i] = truncate(trimmed, s.maxChars)
	}

	req := openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding response count mismatch: got %d, want %d", len(resp.Data), len(inputs))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if err := Validate(data.Embedding, s.dimensions); err != nil {
			return nil, err
		}
		vectors[i] = data.Embedding
	}

	slog.Debug("embedding batch generated", "count", len(vectors), "model", s.model)

	return vectors, nil
}

func (s *service) Dimensions() int {
	return s.dimensions
}

// Validate checks that a vector has the expected dimension and contains no
// NaN or infinite components.
func Validate(vector []float32, dimensions int) error {
	if len(vector) != dimensions {
		return fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vector), dimensions)
	}
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("embedding contains non-finite component")
		}
	}
	return nil
}

// truncate shortens text to at most max runes, preserving UTF-8 boundaries.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
