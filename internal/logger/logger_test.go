package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New("production", &buf)

	l.Debug("hidden")
	l.Info("started", "addr", ":8080")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "started", record["msg"])
	require.Equal(t, ":8080", record["addr"])
	require.NotContains(t, buf.String(), "hidden")
}

func TestNewDevelopmentWritesTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	New("development", &buf).Debug("visible", "k", "v")

	require.Contains(t, buf.String(), "msg=visible")
	require.Contains(t, buf.String(), "k=v")
}

func TestErrorErrAddsErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })
	SetDefault(New("production", &buf))

	ErrorErr(errors.New("pool exhausted"), "query failed", "table", "accounts")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "ERROR", record["level"])
	require.Equal(t, "pool exhausted", record["error"])
	require.Equal(t, "accounts", record["table"])
}

func TestSetDefaultIgnoresNil(t *testing.T) {
	prev := Default()
	SetDefault(nil)
	require.Same(t, prev, Default())
}
