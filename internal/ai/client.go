// Package ai wires the embedding and generation services through Genkit's
// Ollama provider. Both are opaque collaborators: embed(text) -> vector and
// generate(prompt) -> text, synchronous, no streaming.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/log"
)

// Client exposes the embedding and generation operations the pipeline and
// ingestion depend on. Construct once per process and share.
type Client struct {
	g        *genkit.Genkit
	model    ai.Model
	embedder ai.Embedder
	logger   log.Logger
}

// New initializes Genkit with the Ollama provider and registers the
// configured chat model and embedder.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
	g := genkit.Init(ctx, genkit.WithPlugins(plugin))
	if g == nil {
		return nil, errors.New("initializing genkit with ollama provider")
	}

	// Ollama requires explicit model registration (no auto-discovery).
	model := plugin.DefineModel(g, ollama.ModelDefinition{
		Name: cfg.ModelName,
		Type: "chat",
	}, nil)
	plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)

	logger.Info("initialized ollama provider",
		"model", cfg.ModelName, "embedder", cfg.EmbedderModel, "host", cfg.OllamaHost)

	return &Client{
		g:        g,
		model:    model,
		embedder: ollama.Embedder(g, cfg.OllamaHost),
		logger:   logger,
	}, nil
}

// Embed returns the fixed-dimension embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// Generate returns a single completion for the given prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModel(c.model),
		ai.WithMessages(ai.NewUserMessage(ai.NewTextPart(prompt))),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Text(), nil
}
