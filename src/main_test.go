package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cmsd/src/settings"
)

func TestNewLoggerLevels(t *testing.T) {
	logger, err := newLogger(&settings.Arguments{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = newLogger(&settings.Arguments{Verbose: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = newLogger(&settings.Arguments{Debug: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestValidateArguments(t *testing.T) {
	valid := &settings.Arguments{
		Clusters:            map[string]string{"main": "mongodb://localhost:27017"},
		ModelCluster:        "main",
		SecretEncryptionKey: "changeme",
		FindLimit:           1000,
	}
	assert.NoError(t, validateArguments(valid))

	missingKey := *valid
	missingKey.SecretEncryptionKey = ""
	assert.Error(t, validateArguments(&missingKey))

	wrongCluster := *valid
	wrongCluster.ModelCluster = "other"
	assert.Error(t, validateArguments(&wrongCluster))

	noClusters := *valid
	noClusters.Clusters = nil
	assert.Error(t, validateArguments(&noClusters))

	badLimit := *valid
	badLimit.FindLimit = 0
	assert.Error(t, validateArguments(&badLimit))
}
