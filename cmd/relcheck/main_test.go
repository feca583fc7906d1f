package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/relcheck/dataset"
)

const labeledCSV = `text,label
Fake news about the vaccine spreads false claims and propaganda,1
The government hoax is a conspiracy theory pushed by bots,1
This politician is corrupt and spreads misinformation,1
The local bakery opened a new shop on Main Street,0
Our team won the football match on Sunday,0
Today is a nice day for a walk in the park,0
`

const modelConfigYAML = `prompt_template: "Is this text about disinformation? {text}"
performance:
  accuracy: 0.8
  precision: 0.75
  recall: 0.7
  f1: 0.72
`

type cli struct {
	t       *testing.T
	dataDir string
	workDir string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, dataDir: t.TempDir(), workDir: t.TempDir()}
}

func (c *cli) file(name, content string) string {
	c.t.Helper()
	path := filepath.Join(c.workDir, name)
	require.NoError(c.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (c *cli) exec(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--data-dir", c.dataDir, "--provider", "mock", "--log-level", "off"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustExec(args ...string) string {
	c.t.Helper()
	out, err := c.exec(args...)
	require.NoError(c.t, err, "relcheck %v", args)
	return out
}

func TestRootCmd_Definition(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"config", "log-level", "store", "data-dir", "provider"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
	for _, name := range []string{"version", "classify", "validate", "optimize", "models", "abtest", "monitor", "data"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestVersionCmd(t *testing.T) {
	out := newCLI(t).mustExec("version")
	assert.Equal(t, "relcheck version "+version+"\n", out)
}

func TestClassifyCmd(t *testing.T) {
	c := newCLI(t)
	in := c.file("input.csv", "text,source\nThis politician is corrupt,news\nToday is a nice day,blog\n")
	outPath := filepath.Join(c.workDir, "output.csv")

	out := c.mustExec("classify", in, outPath)
	assert.Contains(t, out, "Classified 2 rows")

	records, err := dataset.ReadCSV(outPath)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Contains(t, r, "classification")
		assert.Contains(t, r, "confidence")
		assert.Contains(t, r, "source")
	}
}

func TestClassifyCmdRejectsBadInput(t *testing.T) {
	c := newCLI(t)
	in := c.file("input.csv", "body\nno text column here\n")
	_, err := c.exec("classify", in, filepath.Join(c.workDir, "out.csv"))
	assert.ErrorIs(t, err, dataset.ErrMissingColumn)

	_, err = c.exec("classify", in)
	assert.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	c := newCLI(t)
	labeled := c.file("labeled.csv", labeledCSV)
	out := c.mustExec("validate", labeled)
	assert.Contains(t, out, "Evaluation results (6 examples)")
	for _, metric := range []string{"Accuracy", "Precision", "Recall", "F1"} {
		assert.Contains(t, out, metric)
	}
}

func TestOptimizeAndModels(t *testing.T) {
	c := newCLI(t)
	labeled := c.file("labeled.csv", labeledCSV)

	out := c.mustExec("optimize", labeled, "--strategy", "iterative", "--iterations", "2", "--register", "relevance:1.0.0", "--trace")
	assert.Contains(t, out, "Optimization completed")
	assert.Contains(t, out, "Best prompt:")
	assert.Contains(t, out, "Model relevance:1.0.0 registered successfully")
	traces, err := os.ReadDir(filepath.Join(c.dataDir, "traces"))
	require.NoError(t, err)
	assert.Len(t, traces, 1)

	modelCfg := c.file("model.yaml", modelConfigYAML)
	out = c.mustExec("models", "register", "relevance", "1.1.0", "--model-config", modelCfg, "--description", "hand tuned", "--tags", "manual,baseline")
	assert.Contains(t, out, "registered successfully")

	out = c.mustExec("models", "list")
	assert.Contains(t, out, "Registered models:")
	assert.Contains(t, out, "relevance:1.0.0")
	assert.Contains(t, out, "relevance:1.1.0")

	out = c.mustExec("models", "latest", "relevance")
	assert.Contains(t, out, "relevance:1.1.0")

	out = c.mustExec("models", "show", "relevance", "1.1.0")
	assert.Contains(t, out, `"prompt_template": "Is this text about disinformation? {text}"`)

	out = c.mustExec("models", "search", "hand")
	assert.Contains(t, out, "relevance:1.1.0")
	assert.NotContains(t, out, "relevance:1.0.0")

	c.mustExec("models", "tags", "relevance", "1.0.0", "production")
	out = c.mustExec("models", "search", "production")
	assert.Contains(t, out, "relevance:1.0.0")

	out = c.mustExec("validate", labeled, "--model", "relevance:1.1.0")
	assert.Contains(t, out, "Evaluation results")

	_, err = c.exec("models", "register", "relevance", "1.1.0", "--model-config", modelCfg)
	assert.Error(t, err)

	c.mustExec("models", "delete", "relevance", "1.0.0")
	_, err = c.exec("models", "show", "relevance", "1.0.0")
	assert.Error(t, err)
}

func TestOptimizeBatch(t *testing.T) {
	c := newCLI(t)
	first := c.file("first.csv", labeledCSV)
	second := c.file("second.csv", labeledCSV)
	out := c.mustExec("optimize", first, second, "--strategy", "iterative", "--iterations", "1")
	assert.Contains(t, out, first+": optimization completed")
	assert.Contains(t, out, second+": optimization completed")

	_, err := c.exec("optimize", first, second, "--register", "relevance:1.0.0")
	assert.Error(t, err)
}

func TestModelsSchema(t *testing.T) {
	out := newCLI(t).mustExec("models", "schema")
	assert.Contains(t, out, "prompt_template")
	assert.Contains(t, out, "performance")
}

func TestABTestLifecycle(t *testing.T) {
	c := newCLI(t)
	labeled := c.file("labeled.csv", labeledCSV)
	modelCfg := c.file("model.yaml", modelConfigYAML)
	c.mustExec("models", "register", "relevance", "1.0.0", "--model-config", modelCfg)
	c.mustExec("models", "register", "relevance", "1.1.0", "--model-config", modelCfg)

	out := c.mustExec("abtest", "setup", "minor", "--model-a", "relevance:1.0.0", "--model-b", "relevance:1.1.0", "--data", labeled)
	assert.Contains(t, out, "A/B test 'minor' configured")

	_, err := c.exec("abtest", "setup", "broken", "--model-a", "relevance:1.0.0", "--model-b", "relevance:9.0.0")
	assert.Error(t, err)

	out = c.mustExec("abtest", "active")
	assert.Contains(t, out, "minor")

	out = c.mustExec("abtest", "run", "minor")
	assert.Contains(t, out, "A/B Test Summary: minor")

	out = c.mustExec("abtest", "result", "minor")
	assert.Contains(t, out, "A/B Test Summary: minor")

	out = c.mustExec("abtest", "list")
	assert.Contains(t, out, "status=completed")

	out = c.mustExec("abtest", "stop", "minor")
	assert.Contains(t, out, "stopped")
	out = c.mustExec("abtest", "active")
	assert.Contains(t, out, "Active A/B tests: none")

	_, err = c.exec("abtest", "result", "missing")
	assert.Error(t, err)
}

func TestMonitorCmds(t *testing.T) {
	c := newCLI(t)
	labeled := c.file("labeled.csv", labeledCSV)
	modelCfg := c.file("model.yaml", modelConfigYAML)
	c.mustExec("models", "register", "relevance", "1.0.0", "--model-config", modelCfg)

	out := c.mustExec("monitor", "health", "relevance")
	assert.Contains(t, out, "unknown")

	out = c.mustExec("monitor", "rule", "relevance", "--metric", "accuracy", "--condition", "<", "--threshold", "2", "--severity", "critical", "--description", "Accuracy too low")
	assert.Contains(t, out, "Alert rule")

	_, err := c.exec("monitor", "rule", "relevance", "--metric", "speed", "--threshold", "1")
	assert.Error(t, err)

	out = c.mustExec("monitor", "collect", "relevance", "1.0.0", labeled)
	assert.Contains(t, out, "Recorded performance of relevance:1.0.0 (6 samples)")
	assert.Contains(t, out, "Triggered alerts")
	assert.Contains(t, out, "Accuracy too low")

	out = c.mustExec("monitor", "health", "relevance")
	assert.Contains(t, out, "critical")

	out = c.mustExec("monitor", "summary", "relevance", "--range", "all")
	assert.Contains(t, out, "Performance Summary for relevance (all)")
	assert.Contains(t, out, "Sample count: 1")

	out = c.mustExec("monitor", "latency", "relevance", "1.0.0", "100", "300")
	assert.Contains(t, out, "mean 200.00 ms")

	_, err = c.exec("monitor", "ack", "no-such-alert")
	assert.Error(t, err)
}

func TestDataCmds(t *testing.T) {
	c := newCLI(t)
	labeled := c.file("labeled.csv", labeledCSV)

	out := c.mustExec("data", "check", labeled)
	assert.Contains(t, out, "6 examples")
	assert.Contains(t, out, "label 1: 3")
	assert.Contains(t, out, "label 0: 3")

	outDir := filepath.Join(c.workDir, "split")
	c.mustExec("data", "split", labeled, "--out", outDir, "--train", "0.5", "--validation", "0.5", "--test", "0")
	total := 0
	for _, name := range []string{"train.csv", "validation.csv", "test.csv"} {
		records, err := dataset.ReadCSV(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		total += len(records)
	}
	assert.Equal(t, 6, total)

	foldDir := filepath.Join(c.workDir, "folds")
	out = c.mustExec("data", "split", labeled, "--out", foldDir, "--folds", "3")
	assert.Contains(t, out, "fold_3.csv")
}
