package store

import (
	"context"
)

// Setting is a named runtime setting stored in the database.
// Settings are hot-reloadable: the processor re-reads them at the start of
// every cycle without a process restart.
type Setting struct {
	Name  string
	Value string
}

// Well-known setting names.
const (
	// SettingSimilarityThreshold is the article-topic matching threshold.
	SettingSimilarityThreshold = "similarity_threshold"
	// SettingClusterThreshold is the article-event numeric clustering threshold,
	// tuned independently from the topic threshold.
	SettingClusterThreshold = "cluster_threshold"
	// SettingPromptSummaryCreation is the summary generation prompt template.
	SettingPromptSummaryCreation = "prompt_summary_creation"
	// SettingPromptClusterDetection is the cluster detection prompt template.
	// There is deliberately no default: a missing template aborts the
	// clustering pass rather than degrading output quality.
	SettingPromptClusterDetection = "prompt_cluster_detection"
)

// FindSetting is the find condition for settings.
type FindSetting struct {
	Name *string
}

// GetSetting gets a setting by name. Returns nil if not set.
func (s *Store) GetSetting(ctx context.Context, name string) (*Setting, error) {
	list, err := s.driver.ListSettings(ctx, &FindSetting{Name: &name})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// GetSettingValue gets a setting value by name, falling back to defaultValue
// when the setting is missing or the lookup fails transiently.
func (s *Store) GetSettingValue(ctx context.Context, name, defaultValue string) string {
	setting, err := s.GetSetting(ctx, name)
	if err != nil || setting == nil || setting.Value == "" {
		return defaultValue
	}
	return setting.Value
}

// UpsertSetting creates or replaces a setting.
func (s *Store) UpsertSetting(ctx context.Context, upsert *Setting) (*Setting, error) {
	return s.driver.UpsertSetting(ctx, upsert)
}

// ListSettings lists settings matching the find condition.
func (s *Store) ListSettings(ctx context.Context, find *FindSetting) ([]*Setting, error) {
	return s.driver.ListSettings(ctx, find)
}
