package daemon

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/allaspectsdev/storepulse/internal/aggregate"
	"github.com/allaspectsdev/storepulse/internal/config"
	"github.com/allaspectsdev/storepulse/internal/gateway"
	"github.com/allaspectsdev/storepulse/internal/metrics"
	"github.com/allaspectsdev/storepulse/internal/pipeline"
	"github.com/allaspectsdev/storepulse/internal/store"
)

// SecretResolver turns a secret reference into its value.
type SecretResolver interface {
	ResolveRef(ref string) (string, error)
}

// NewGatewayClient builds the portal client from config, resolving the
// password and HMAC key through secrets. It returns nil, nil when no
// gateway is configured.
func NewGatewayClient(cfg *config.Config, secrets SecretResolver) (*gateway.Client, error) {
	g := cfg.Gateway
	if g.BaseURL == "" {
		return nil, nil
	}

	password, err := secrets.ResolveRef(g.PasswordRef)
	if err != nil {
		return nil, fmt.Errorf("resolving gateway password: %w", err)
	}
	hmacKey, err := secrets.ResolveRef(g.HMACKeyRef)
	if err != nil {
		return nil, fmt.Errorf("resolving gateway hmac key: %w", err)
	}

	r := cfg.Resilience
	return gateway.New(gateway.Config{
		BaseURL:  g.BaseURL,
		Username: g.Username,
		Password: password,
		AppID:    g.AppID,
		HMACKey:  hmacKey,
		StoreID:  g.StoreID,
		Timeout:  g.TimeoutDuration(),
		Retry: gateway.RetryConfig{
			MaxAttempts: r.RetryMaxAttempts,
			BaseDelay:   time.Duration(r.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(r.RetryMaxDelayMs) * time.Millisecond,
		},
	}), nil
}

// NewRunner wires the pipeline to the store, collector and (optionally) the
// gateway. A gateway that cannot be built is logged and left out, so local
// archive imports keep working.
func NewRunner(cfg *config.Config, st *store.Store, collector *metrics.Collector, secrets SecretResolver) *pipeline.Runner {
	var fetcher pipeline.Fetcher
	client, err := NewGatewayClient(cfg, secrets)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("gateway unavailable; only archive imports will succeed")
	case client != nil:
		fetcher = client
	}

	return pipeline.New(fetcher, st, st, collector, pipeline.Options{
		WorkDir:       cfg.Pipeline.WorkDir,
		FeedBatchSize: cfg.Pipeline.FeedBatchSize,
		Aggregate: aggregate.Options{
			ChannelBatchSize: cfg.Pipeline.ChannelBatchSize,
			LateFeeGrace:     cfg.Pipeline.LateFeeGrace(),
			LateFeeRate:      decimal.NewFromFloat(cfg.Pipeline.LateFeeRate),
		},
	})
}
