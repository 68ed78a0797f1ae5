package process

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/hrygo/newstide/store"
)

const (
	defaultSimilarityThreshold = 0.3
	defaultClusterThreshold    = 0.7
)

// Settings is the cycle-scoped configuration, re-read from the database at
// the start of every cycle so threshold and prompt changes apply without a
// restart.
type Settings struct {
	// SimilarityThreshold is the article-topic matching cutoff.
	SimilarityThreshold float64
	// ClusterThreshold is the numeric clustering cutoff, tuned independently.
	ClusterThreshold float64
	// SummaryPrompt is the summary generation template. Empty disables
	// summary creation.
	SummaryPrompt string
	// ClusterPrompt is the cluster detection template. Empty aborts the
	// clustering pass.
	ClusterPrompt string
}

// loadSettings reads the cycle settings. Missing or malformed values fall
// back to defaults; prompts have no defaults.
func loadSettings(ctx context.Context, s *store.Store) *Settings {
	settings := &Settings{
		SimilarityThreshold: parseThreshold(
			s.GetSettingValue(ctx, store.SettingSimilarityThreshold, ""),
			defaultSimilarityThreshold,
			store.SettingSimilarityThreshold,
		),
		ClusterThreshold: parseThreshold(
			s.GetSettingValue(ctx, store.SettingClusterThreshold, ""),
			defaultClusterThreshold,
			store.SettingClusterThreshold,
		),
		SummaryPrompt: s.GetSettingValue(ctx, store.SettingPromptSummaryCreation, ""),
		ClusterPrompt: s.GetSettingValue(ctx, store.SettingPromptClusterDetection, ""),
	}

	slog.Debug("cycle settings loaded",
		slog.Float64("similarity_threshold", settings.SimilarityThreshold),
		slog.Float64("cluster_threshold", settings.ClusterThreshold),
		slog.Bool("summary_prompt", settings.SummaryPrompt != ""),
		slog.Bool("cluster_prompt", settings.ClusterPrompt != ""))

	return settings
}

func parseThreshold(value string, fallback float64, name string) float64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		slog.Warn("invalid threshold setting, using default",
			slog.String("setting", name),
			slog.String("value", value),
			slog.Float64("default", fallback))
		return fallback
	}
	return parsed
}
