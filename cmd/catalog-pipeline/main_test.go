package main

import (
	"context"
	"testing"

	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/orchestrator"
	"github.com/stretchr/testify/assert"
)

func namedStages(names ...string) []orchestrator.Stage {
	stages := make([]orchestrator.Stage, len(names))
	for i, n := range names {
		stages[i] = orchestrator.Stage{
			StageConfig: config.StageConfig{Name: n},
			Fn:          func(ctx context.Context, p string) error { return nil },
		}
	}
	return stages
}

func TestFilterStagesByScriptsKeepsOnlyNamed(t *testing.T) {
	stages := namedStages("extract", "license", "modality", "fuse", "sync")
	filtered := filterStages(stages, []string{"extract", "sync"}, [2]string{})
	names := make([]string, len(filtered))
	for i, s := range filtered {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"extract", "sync"}, names)
}

func TestFilterStagesByRangeIsInclusiveAndContiguous(t *testing.T) {
	stages := namedStages("extract", "license", "modality", "fuse", "sync", "mapping", "compare")
	filtered := filterStages(stages, nil, [2]string{"modality", "sync"})
	names := make([]string, len(filtered))
	for i, s := range filtered {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"modality", "fuse", "sync"}, names)
}

func TestFilterStagesWithNoSelectionReturnsAllUnchanged(t *testing.T) {
	stages := namedStages("extract", "fuse")
	filtered := filterStages(stages, nil, [2]string{})
	assert.Len(t, filtered, 2)
}

func TestStageConfigFallsBackToOptionalWhenNameAbsent(t *testing.T) {
	oc := config.OrchestratorConfig{Stages: []config.StageConfig{{Name: "extract", Required: true}}}
	sc := stageConfig(oc, "promote")
	assert.Equal(t, "promote", sc.Name)
	assert.False(t, sc.Required)
}

func TestStageConfigReturnsConfiguredRequiredFlag(t *testing.T) {
	oc := config.OrchestratorConfig{Stages: []config.StageConfig{{Name: "sync", Required: true}}}
	sc := stageConfig(oc, "sync")
	assert.True(t, sc.Required)
}

func TestStageListSetAccumulatesAcrossRepeatedFlags(t *testing.T) {
	var s stageList
	assert.NoError(t, s.Set("extract fuse"))
	assert.NoError(t, s.Set("sync"))
	assert.Equal(t, []string{"extract", "fuse", "sync"}, []string(s))
}

func TestRangeFlagSetRejectsWrongArgCount(t *testing.T) {
	var r rangeFlag
	assert.Error(t, r.Set("extract"))
	assert.NoError(t, r.Set("extract fuse"))
	assert.Equal(t, [2]string{"extract", "fuse"}, [2]string(r))
}

func TestEnabledProvidersRespectsPerProviderFlag(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Groq.Enabled = false
	providers := enabledProviders(cfg)
	assert.Len(t, providers, 2)
	for _, p := range providers {
		assert.NotEqual(t, "Groq", string(p))
	}
}

func TestOperatorRemoveForReturnsPerProviderList(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Google.OperatorRemove = []string{"gemini-legacy"}
	assert.Equal(t, []string{"gemini-legacy"}, operatorRemoveFor(cfg, "Google"))
	assert.Nil(t, operatorRemoveFor(cfg, "Unknown"))
}
