package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ers/config"
	coremon "github.com/kilianp07/ers/core/monitoring"
)

func TestEmptyDSNIsNop(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestInvalidDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestCaptureNilIsIgnored(t *testing.T) {
	m := &sentryMonitor{}
	assert.NotPanics(t, func() {
		m.CaptureException(nil, map[string]string{"component": "dispatch"})
		m.CaptureException(errors.New("unsent"), nil)
	})
}
