package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/assafrot/api-keys-app/src/logging"
)

// HashID returns a hex-encoded SHA-256 hash for use as a PostHog distinct ID
func HashID(id string) string {
	h := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", h)
}

// AnalyticsService forwards key lifecycle and validation events to PostHog.
// A nil or disabled service accepts every call and does nothing.
type AnalyticsService struct {
	client  posthog.Client
	enabled bool
}

// posthogCallback reports batch delivery results through zerolog
type posthogCallback struct {
	logger zerolog.Logger
}

func (cb posthogCallback) Success(m posthog.APIMessage) {
	cb.logger.Debug().Str("type", fmt.Sprintf("%T", m)).Msg("event delivered")
}

func (cb posthogCallback) Failure(m posthog.APIMessage, err error) {
	cb.logger.Error().Err(err).Str("type", fmt.Sprintf("%T", m)).Msg("event delivery failed")
}

// AnalyticsConfig holds analytics configuration. Zero FlushInterval and
// BatchSize fall back to 30s and 100.
type AnalyticsConfig struct {
	PostHogAPIKey string
	PostHogHost   string
	Enabled       bool
	FlushInterval time.Duration
	BatchSize     int
}

// NewAnalyticsService returns a disabled service unless analytics is both
// enabled and given an API key
func NewAnalyticsService(cfg AnalyticsConfig) (*AnalyticsService, error) {
	if !cfg.Enabled || cfg.PostHogAPIKey == "" {
		return &AnalyticsService{}, nil
	}

	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	client, err := posthog.NewWithConfig(cfg.PostHogAPIKey, posthog.Config{
		Endpoint:  cfg.PostHogHost,
		Interval:  interval,
		BatchSize: batch,
		Callback:  posthogCallback{logger: logging.NewLogger("analytics")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &AnalyticsService{client: client, enabled: true}, nil
}

// Enabled reports whether events are sent anywhere
func (s *AnalyticsService) Enabled() bool {
	return s != nil && s.enabled
}

// Close flushes pending events and closes client
func (s *AnalyticsService) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Close()
}

// getEnvironment returns current environment (production, staging, development)
func getEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "production"
	}
	return env
}

// TrackEvent captures a generic event
func (s *AnalyticsService) TrackEvent(ctx context.Context, distinctID, event string, properties map[string]interface{}) {
	if !s.Enabled() {
		return
	}

	if properties == nil {
		properties = make(map[string]interface{})
	}
	properties["timestamp"] = time.Now().Unix()
	properties["environment"] = getEnvironment()

	if err := s.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		log.Error().Err(err).Str("event", event).Msg("PostHog enqueue failed")
	}
}

// TrackKeyCreated records a key issued by an owner
func (s *AnalyticsService) TrackKeyCreated(ctx context.Context, ownerID, keyID string, monthlyLimit int) {
	s.TrackEvent(ctx, "owner_"+HashID(ownerID), "api_key_created", map[string]interface{}{
		"key":           HashID(keyID),
		"monthly_limit": monthlyLimit,
	})
}

// TrackKeyDeleted records a key removed by an owner
func (s *AnalyticsService) TrackKeyDeleted(ctx context.Context, ownerID, keyID string) {
	s.TrackEvent(ctx, "owner_"+HashID(ownerID), "api_key_deleted", map[string]interface{}{
		"key": HashID(keyID),
	})
}

// TrackKeyValidated records the outcome of a validation. Verdicts without a
// record are attributed to an anonymous id.
func (s *AnalyticsService) TrackKeyValidated(ctx context.Context, keyID, outcome string) {
	distinctID := "anonymous"
	if keyID != "" {
		distinctID = "key_" + HashID(keyID)
	}
	s.TrackEvent(ctx, distinctID, "api_key_validated", map[string]interface{}{
		"outcome": outcome,
	})
}
