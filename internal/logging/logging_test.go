package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "debug", "json")
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("symbol", "CHONK9K").Debug("fetched")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "fetched", line["msg"])
	require.Equal(t, "CHONK9K", line["symbol"])
}

func TestNewWithWriter_DefaultsToInfoText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "", "")
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, log.GetLevel())

	log.Debug("hidden")
	require.Empty(t, buf.String())
	log.Info("shown")
	require.Contains(t, buf.String(), "msg=shown")
}

func TestNewWithWriter_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewWithWriter(&bytes.Buffer{}, "loud", "text")
	require.Error(t, err)

	_, err = NewWithWriter(&bytes.Buffer{}, "info", "xml")
	require.Error(t, err)
}
