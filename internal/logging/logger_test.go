package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chatty")
}

func TestNewBuildsConfiguredLogger(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Level: "debug", OutputPath: "stderr", Encoding: "json"},
		{Level: "warn", OutputPath: "stderr", Encoding: "console", DevMode: true},
	} {
		l, err := New(cfg)
		require.NoError(t, err, "%+v", cfg)
		require.NotNil(t, l)

		l.WithField("conversation_id", "c1").
			WithError(errors.New("boom")).
			Debugw("logger wiring works", "step", "test")
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := NewNop()
	assert.Same(t, l, OrNop(l))
}
