package debug

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/relcheck/optimizer"
)

func TestManagerWritesTrace(t *testing.T) {
	dir := t.TempDir()
	dm := NewDebugManager(true, dir, "train", "genetic", nil)
	cb := dm.Callback()
	cb(1, optimizer.PromptCandidate{Template: "a {text}", F1: 0.4})
	cb(2, optimizer.PromptCandidate{Template: "b {text}", F1: 0.6})
	require.Len(t, dm.Steps(), 2)

	path, err := dm.Finish(optimizer.PromptCandidate{Template: "b {text}", F1: 0.6}, nil)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var trace Trace
	require.NoError(t, json.Unmarshal(data, &trace))
	assert.Equal(t, "train", trace.Run)
	assert.Equal(t, "genetic", trace.Strategy)
	assert.Len(t, trace.Steps, 2)
	require.NotNil(t, trace.Result)
	assert.Equal(t, "b {text}", trace.Result.Template)
	assert.Empty(t, trace.Error)
}

func TestManagerRecordsError(t *testing.T) {
	dm := NewDebugManager(true, t.TempDir(), "train", "iterative", nil)
	path, err := dm.Finish(optimizer.PromptCandidate{}, errors.New("model offline"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "model offline")
	assert.NotContains(t, string(data), `"result"`)
}

func TestDisabledManager(t *testing.T) {
	dir := t.TempDir()
	dm := NewDebugManager(false, dir, "train", "genetic", nil)
	dm.Callback()(1, optimizer.PromptCandidate{Template: "a {text}"})
	assert.Empty(t, dm.Steps())

	path, err := dm.Finish(optimizer.PromptCandidate{}, nil)
	require.NoError(t, err)
	assert.Empty(t, path)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
