package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The helpers are chained directly at call sites, so they must return a
// value whose level methods are callable without an intermediate variable.
func TestHelpersChainDirectly(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithComponent("ingest").Info().Msg("component")
	WithDataset("events").Debug().Msg("dataset")
	WithManager("owner@example.com").Warn().Msg("manager")
	WithMessageID("msg-1").Error().Msg("message")

	out := buf.String()
	assert.Contains(t, out, `"component":"ingest"`)
	assert.Contains(t, out, `"dataset":"events"`)
	assert.Contains(t, out, `"manager_email":"owner@example.com"`)
	assert.Contains(t, out, `"message_id":"msg-1"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Info("suppressed")
	Warn("emitted")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "emitted")
}
