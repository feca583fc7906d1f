package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teilomillet/relcheck/abtest"
	"github.com/teilomillet/relcheck/monitor"
	"github.com/teilomillet/relcheck/registry"
)

// FileStore keeps one JSON document per record:
//
//	models/<name>/<version>.json
//	ab_tests/configs/<test>.json
//	ab_tests/results/<test>.json
//	monitoring/records/<model>/<unixnano>-<id>.json
//	monitoring/rules/<id>.json
//	monitoring/alerts/<id>.json
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store needs a directory")
	}
	for _, sub := range []string{"models", "ab_tests/configs", "ab_tests/results", "monitoring/records", "monitoring/rules", "monitoring/alerts"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(elem ...string) string {
	return filepath.Join(append([]string{s.dir}, elem...)...)
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &v, nil
}

// readDir decodes every .json file in dir in file-name order. A missing
// directory is empty.
func readDir[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		v, err := readJSON[T](filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *FileStore) SaveModel(_ context.Context, m registry.ModelMetadata) error {
	if err := checkKey("model name", m.Name); err != nil {
		return err
	}
	if err := checkKey("model version", m.Version); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("models", m.Name, m.Version+".json"), m)
}

func (s *FileStore) GetModel(_ context.Context, name, version string) (*registry.ModelMetadata, error) {
	if checkKey("model name", name) != nil || checkKey("model version", version) != nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON[registry.ModelMetadata](s.path("models", name, version+".json"))
}

func (s *FileStore) ListModels(_ context.Context) ([]registry.ModelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.path("models"))
	if err != nil {
		return nil, err
	}
	var out []registry.ModelMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		models, err := readDir[registry.ModelMetadata](s.path("models", e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, models...)
	}
	return out, nil
}

func (s *FileStore) ModelVersions(_ context.Context, name string) ([]registry.ModelMetadata, error) {
	if checkKey("model name", name) != nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readDir[registry.ModelMetadata](s.path("models", name))
}

func (s *FileStore) DeleteModel(_ context.Context, name, version string) (bool, error) {
	if checkKey("model name", name) != nil || checkKey("model version", version) != nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path("models", name, version+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Drop the model directory once its last version is gone.
	_ = os.Remove(s.path("models", name))
	return true, nil
}

func (s *FileStore) SaveTestConfig(_ context.Context, cfg abtest.Config) error {
	if err := checkKey("test name", cfg.TestName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("ab_tests", "configs", cfg.TestName+".json"), cfg)
}

func (s *FileStore) GetTestConfig(_ context.Context, name string) (*abtest.Config, error) {
	if checkKey("test name", name) != nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON[abtest.Config](s.path("ab_tests", "configs", name+".json"))
}

func (s *FileStore) ListTestConfigs(_ context.Context) ([]abtest.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readDir[abtest.Config](s.path("ab_tests", "configs"))
}

func (s *FileStore) SaveTestResult(_ context.Context, r abtest.Result) error {
	if err := checkKey("test name", r.TestName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("ab_tests", "results", r.TestName+".json"), r)
}

func (s *FileStore) GetTestResult(_ context.Context, name string) (*abtest.Result, error) {
	if checkKey("test name", name) != nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON[abtest.Result](s.path("ab_tests", "results", name+".json"))
}

func (s *FileStore) SaveRecord(_ context.Context, r monitor.Record) error {
	if err := checkKey("model name", r.ModelName); err != nil {
		return err
	}
	name := fmt.Sprintf("%020d-%s.json", r.Timestamp.UnixNano(), uuid.NewString()[:8])
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("monitoring", "records", r.ModelName, name), r)
}

func (s *FileStore) Records(_ context.Context, model string, since time.Time) ([]monitor.Record, error) {
	if checkKey("model name", model) != nil {
		return nil, nil
	}
	s.mu.RLock()
	all, err := readDir[monitor.Record](s.path("monitoring", "records", model))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var out []monitor.Record
	for _, r := range all {
		if since.IsZero() || !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b monitor.Record) int { return a.Timestamp.Compare(b.Timestamp) })
	return out, nil
}

func (s *FileStore) LatestRecord(ctx context.Context, model string) (*monitor.Record, error) {
	records, err := s.Records(ctx, model, time.Time{})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[len(records)-1], nil
}

func (s *FileStore) SaveRule(_ context.Context, r monitor.Rule) error {
	if err := checkKey("rule id", r.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("monitoring", "rules", r.ID+".json"), r)
}

func (s *FileStore) Rules(_ context.Context, model string) ([]monitor.Rule, error) {
	s.mu.RLock()
	all, err := readDir[monitor.Rule](s.path("monitoring", "rules"))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var out []monitor.Rule
	for _, r := range all {
		if r.ModelName == model {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FileStore) SaveAlert(_ context.Context, a monitor.Alert) error {
	if err := checkKey("alert id", a.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("monitoring", "alerts", a.ID+".json"), a)
}

func (s *FileStore) GetAlert(_ context.Context, id string) (*monitor.Alert, error) {
	if checkKey("alert id", id) != nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON[monitor.Alert](s.path("monitoring", "alerts", id+".json"))
}

func (s *FileStore) ActiveAlerts(_ context.Context, model string) ([]monitor.Alert, error) {
	s.mu.RLock()
	all, err := readDir[monitor.Alert](s.path("monitoring", "alerts"))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var out []monitor.Alert
	for _, a := range all {
		if a.ModelName == model && !a.Acknowledged {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b monitor.Alert) int { return a.TriggeredAt.Compare(b.TriggeredAt) })
	return out, nil
}
