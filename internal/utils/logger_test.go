package utils

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	l := NewLogger("debug", "json")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	l = NewLogger("nonsense", "text")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}

func TestLoggerFromContext(t *testing.T) {
	entry := DiscardLogger().WithField("request_id", "abc")
	ctx := WithLogger(context.Background(), entry)
	assert.Same(t, entry, LoggerFromContext(ctx))

	fallback := LoggerFromContext(context.Background())
	assert.NotNil(t, fallback)
}
