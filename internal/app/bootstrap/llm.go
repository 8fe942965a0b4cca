package bootstrap

import (
	"context"
	"errors"
	"strings"

	appconfig "github.com/wolfman30/dealer-ai-platform/internal/config"
	"github.com/wolfman30/dealer-ai-platform/internal/llm"
	"github.com/wolfman30/dealer-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const (
	providerGemini  = "gemini"
	providerBedrock = "bedrock"
)

// LLMStack is the failover client and the providers it was assembled from.
type LLMStack struct {
	Client    llm.Client
	Providers []string
	Close     func() error
}

// BuildLLMClient chains Gemini (primary) and Bedrock (secondary) behind the
// failover client. Either may be absent; at least one is required. converse
// may be nil when AWS is not configured.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, converse llm.ConverseAPI, engineMetrics *metrics.EngineMetrics, logger *logging.Logger) (LLMStack, error) {
	if cfg == nil {
		return LLMStack{}, errors.New("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		providers []llm.Provider
		closers   []func() error
	)
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return LLMStack{}, err
		}
		providers = append(providers, llm.Provider{Name: providerGemini, Client: gemini})
		closers = append(closers, gemini.Close)
	}
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		if converse == nil {
			logger.Warn("bedrock model configured without AWS runtime client; skipping", "model", cfg.BedrockModelID)
		} else {
			providers = append(providers, llm.Provider{Name: providerBedrock, Client: llm.NewBedrockClient(converse, cfg.BedrockModelID)})
		}
	}
	if len(providers) == 0 {
		return LLMStack{}, errors.New("bootstrap: no LLM provider configured")
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name)
	}
	opts := []llm.FailoverOption{llm.WithLogger(logger)}
	if cfg.LLMTimeout > 0 {
		opts = append(opts, llm.WithCallTimeout(cfg.LLMTimeout))
	}
	if cfg.LLMRetryBackoff > 0 {
		opts = append(opts, llm.WithBackoff(cfg.LLMRetryBackoff))
	}
	if engineMetrics != nil {
		opts = append(opts, llm.WithAttemptObserver(engineMetrics.ObserveLLMAttempt))
	}
	logger.Info("llm providers configured", "chain", strings.Join(names, " -> "))

	return LLMStack{
		Client:    llm.NewFailoverClient(providers, opts...),
		Providers: names,
		Close: func() error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c())
			}
			return errors.Join(errs...)
		},
	}, nil
}
