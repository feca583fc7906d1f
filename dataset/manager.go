package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teilomillet/relcheck/internal/logging"
)

// ErrQualityIssues is returned when loaded data fails the quality checks.
var ErrQualityIssues = errors.New("data quality issues found")

// Manager loads labeled files, checks them and splits them.
type Manager struct {
	splitter  *Splitter
	validator *Validator
	logger    logging.Logger
}

type ManagerOption func(*Manager)

func WithSplitter(s *Splitter) ManagerOption {
	return func(m *Manager) {
		m.splitter = s
	}
}

func WithValidator(v *Validator) ManagerOption {
	return func(m *Manager) {
		m.validator = v
	}
}

func WithLogger(l logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		splitter:  NewSplitter(42),
		validator: NewValidator(),
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) load(path string) ([]Example, error) {
	data, err := ReadExamples(path)
	if err != nil {
		return nil, err
	}
	if issues := m.validator.QualityIssues(data); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrQualityIssues, strings.Join(issues, ", "))
	}
	m.logger.Debug("Loaded labeled data", "path", path, "examples", len(data))
	return data, nil
}

// LoadAndSplit reads path, rejects low-quality data and splits it.
func (m *Manager) LoadAndSplit(path string, r Ratios, stratified bool) (Split, error) {
	data, err := m.load(path)
	if err != nil {
		return Split{}, err
	}
	if stratified {
		return m.splitter.StratifiedSplit(data, r)
	}
	return m.splitter.RandomSplit(data, r)
}

// PrepareFolds reads path, rejects low-quality data and returns k folds.
func (m *Manager) PrepareFolds(path string, k int) ([][]Example, error) {
	data, err := m.load(path)
	if err != nil {
		return nil, err
	}
	return m.splitter.KFold(data, k)
}
