package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", &buf)
	l.WithField("session_id", "s-1").Debug("turn finished")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "turn finished", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "s-1", line["session_id"])
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, logrus.WarnLevel, New(" warning ", &buf).GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("", &buf).GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("loud", &buf).GetLevel())
}
