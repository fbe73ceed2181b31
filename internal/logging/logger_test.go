package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBuildsBothModes(t *testing.T) {
	t.Parallel()

	for _, development := range []bool{true, false} {
		logger, err := New("crawlerd", development)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Debug("configured")
	}
}

func TestNewWithoutServiceName(t *testing.T) {
	t.Parallel()

	logger, err := New("", false)
	require.NoError(t, err)
	require.NotNil(t, logger)
}
