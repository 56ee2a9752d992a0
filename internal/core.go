package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/ingest"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/toolreg"
	"github.com/starford/ansuz/internal/tools"
	"github.com/starford/ansuz/internal/vecstore"
)

// core bundles the wired components shared by the serve, ask, and sync
// commands.
type core struct {
	vault    storage.Provider
	store    *graph.Store
	vectors  *vecstore.Index
	ingester *ingest.Ingester
	registry *toolreg.Registry
	executor *agent.Executor
}

// buildCore opens the stores and wires the retrieval stack: embedder,
// vector index, graph store with delegated title search, ingester, tool
// registry, and agent executor.
func buildCore(cfg *Config, completer agent.Completer, onEvent func(agent.Event), logger *slog.Logger) (*core, error) {
	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	embedder := embedding.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.EmbeddingModel, 30*time.Second)

	vectors, err := vecstore.Open(cfg.SQLite.VectorPath, embedder)
	if err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}

	store, err := graph.Open(cfg.SQLite.GraphPath, vecstore.NewTitleIndex(vectors))
	if err != nil {
		vectors.Close()
		return nil, fmt.Errorf("init graph store: %w", err)
	}

	ingester := ingest.New(store, vectors, logger)

	registry := toolreg.New(cfg.Agent.ToolTimeout())
	tools.Register(registry, store, vectors)

	if completer == nil {
		completer = llm.New(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	}
	executor := agent.New(completer, registry, agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		LLMTimeout:    cfg.Agent.LLMTimeout(),
		OnEvent:       onEvent,
		Logger:        logger,
	})

	return &core{
		vault:    vault,
		store:    store,
		vectors:  vectors,
		ingester: ingester,
		registry: registry,
		executor: executor,
	}, nil
}

func (c *core) Close() {
	c.store.Close()
	c.vectors.Close()
}
