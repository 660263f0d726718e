package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ashwinyue/persona-chat/internal/config"
)

func TestNew(t *testing.T) {
	l, err := New(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestSetNilFallsBackToNop(t *testing.T) {
	Set(nil)
	assert.NotNil(t, L())

	l := zap.NewExample()
	Set(l)
	assert.Same(t, l, L())
	Set(nil)
}
