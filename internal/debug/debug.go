// Package debug writes optimization traces for offline inspection.
package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/optimizer"
)

// Step is the best candidate after one optimizer iteration.
type Step struct {
	Iteration int                       `json:"iteration"`
	At        time.Time                 `json:"at"`
	Best      optimizer.PromptCandidate `json:"best"`
}

// Trace is the file written for one optimization run.
type Trace struct {
	Run      string                     `json:"run"`
	Strategy string                     `json:"strategy"`
	Started  time.Time                  `json:"started"`
	Steps    []Step                     `json:"steps"`
	Result   *optimizer.PromptCandidate `json:"result,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// Manager collects iteration steps and writes them as JSON under OutputDir.
// A disabled manager records nothing.
type Manager struct {
	OutputDir string
	Enabled   bool

	logger logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	trace Trace
}

// NewDebugManager creates a manager for the run named run.
func NewDebugManager(enabled bool, outputDir, run, strategy string, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	dm := &Manager{
		OutputDir: outputDir,
		Enabled:   enabled,
		logger:    logger,
		now:       time.Now,
	}
	dm.trace = Trace{Run: run, Strategy: strategy, Started: dm.now().UTC()}
	return dm
}

// Callback returns an iteration callback that records each step.
func (dm *Manager) Callback() optimizer.IterationCallback {
	return func(iteration int, best optimizer.PromptCandidate) {
		if !dm.Enabled {
			return
		}
		dm.mu.Lock()
		defer dm.mu.Unlock()
		dm.trace.Steps = append(dm.trace.Steps, Step{Iteration: iteration, At: dm.now().UTC(), Best: best})
	}
}

// Steps returns the recorded steps.
func (dm *Manager) Steps() []Step {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return append([]Step(nil), dm.trace.Steps...)
}

// Finish records the outcome and writes the trace. It returns the written
// path, or "" when the manager is disabled.
func (dm *Manager) Finish(result optimizer.PromptCandidate, runErr error) (string, error) {
	if !dm.Enabled {
		return "", nil
	}
	dm.mu.Lock()
	trace := dm.trace
	dm.mu.Unlock()
	if runErr != nil {
		trace.Error = runErr.Error()
	} else {
		trace.Result = &result
	}

	if err := os.MkdirAll(dm.OutputDir, 0o750); err != nil {
		return "", fmt.Errorf("creating trace dir: %w", err)
	}
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding trace: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", trace.Run, trace.Started.Format("20060102_150405"))
	path := filepath.Join(dm.OutputDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing trace: %w", err)
	}
	dm.logger.Info("Optimization trace written", "file", path, "steps", len(trace.Steps))
	return path, nil
}
