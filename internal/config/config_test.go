package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscargo/nexuscargo/platform/internal/config"
)

func TestValidateRuntimeConstraintsDefaultsPass(t *testing.T) {
	cfg := config.Load()
	assert.NoError(t, cfg.ValidateRuntimeConstraints())
}

func TestValidateRuntimeConstraintsRequiresGCPProjectForPubsub(t *testing.T) {
	cfg := config.Load()
	cfg.EventBus.Backend = "pubsub"
	cfg.AI.GCPProjectID = ""

	err := cfg.ValidateRuntimeConstraints()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcp_project_id")
}

func TestValidateRuntimeConstraintsRequiresGCPFieldsForAIBackend(t *testing.T) {
	cfg := config.Load()
	cfg.AI.Backend = "gcp"
	cfg.AI.GCPProjectID = ""
	cfg.AI.DocumentAIProcessor = ""

	err := cfg.ValidateRuntimeConstraints()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documentai_processor_id")
}
