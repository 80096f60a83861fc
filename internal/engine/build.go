package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/agents"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/cache"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/config"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/fetch"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/geo"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/llm"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/negotiator"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/providers"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/store"
)

// Build assembles the full engine from settings: checkpoint store, two-tier
// response cache (Redis when configured, SQLite otherwise), outbound HTTP
// client, LLM, geocoder, provider adapters, and the negotiator. The caller
// owns the returned store and closes it on shutdown.
func Build(cfg *config.Settings, logger *zap.Logger) (*Engine, *store.Store, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	var kv cache.KV
	if cfg.RedisAddr != "" {
		kv = cache.NewRedisKV(cfg.RedisAddr)
	} else {
		kv = cache.NewStoreKV(st)
	}
	responses := cache.New(512, kv)
	httpc := fetch.New(cfg.HTTPTimeout, responses, cfg.TTLFor, logger)

	llmClient := llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.HTTPTimeout,
	}, logger)

	resolver, err := geo.NewResolver(httpc, cfg.NominatimUserAgent, logger)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to load gazetteer: %w", err)
	}

	p := cfg.Providers
	deps := agents.Deps{
		LLM:        llmClient,
		Geo:        resolver,
		Flights:    providers.NewAmadeusClient(p.AmadeusClientID, p.AmadeusClientSecret, httpc, logger),
		Hotels:     providers.NewLiteAPIClient(p.LiteAPIKey, httpc, logger),
		Places:     providers.NewPlacesClient(p.GooglePlacesKey, httpc, logger),
		Weather:    providers.NewWeatherClient(httpc, logger),
		Web:        providers.NewTavilyClient(p.TavilyAPIKey, httpc, logger),
		Reddit:     providers.NewRedditClient(p.RedditClientID, p.RedditClientSecret, cfg.NominatimUserAgent, httpc, logger),
		Negotiator: negotiator.New(logger),
		Logger:     logger,
	}

	eng, err := New(agents.New(deps), st, cfg, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return eng, st, nil
}
