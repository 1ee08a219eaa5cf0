package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	l := build(config.Config{AppEnv: "prod"}, &buf)
	l.Debug().Msg("hidden")
	l.Info().Int64("sprint", 7).Msg("visible")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "visible", line["message"])
	assert.Equal(t, "sprint-pulse", line["svc"])
	assert.Equal(t, "prod", line["env"])
	assert.EqualValues(t, 7, line["sprint"])
}

func TestBuild_ExplicitLevel(t *testing.T) {
	var buf bytes.Buffer
	l := build(config.Config{AppEnv: "prod", LogLevel: "warn"}, &buf)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
