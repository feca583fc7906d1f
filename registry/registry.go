// Package registry keeps versioned prompt-template models and their
// measured performance.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/teilomillet/relcheck/internal/logging"
)

var (
	// ErrModelExists is returned when registering a name:version twice.
	ErrModelExists = errors.New("model already exists")
	// ErrModelNotFound is returned when a required model is not registered.
	ErrModelNotFound = errors.New("model not found")
)

// Storage persists model metadata. Lookups of a missing model return
// (nil, nil).
type Storage interface {
	SaveModel(ctx context.Context, m ModelMetadata) error
	GetModel(ctx context.Context, name, version string) (*ModelMetadata, error)
	ListModels(ctx context.Context) ([]ModelMetadata, error)
	ModelVersions(ctx context.Context, name string) ([]ModelMetadata, error)
	DeleteModel(ctx context.Context, name, version string) (bool, error)
}

type Registry struct {
	storage Storage
	logger  logging.Logger
}

type Option func(*Registry)

func WithLogger(l logging.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

func New(storage Storage, opts ...Option) *Registry {
	r := &Registry{storage: storage, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates and stores m. An existing name:version is rejected.
func (r *Registry) Register(ctx context.Context, m ModelMetadata) error {
	if err := m.Validate(); err != nil {
		return err
	}
	existing, err := r.storage.GetModel(ctx, m.Name, m.Version)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrModelExists, m.Ref())
	}
	if err := r.storage.SaveModel(ctx, m); err != nil {
		return fmt.Errorf("saving model %s: %w", m.Ref(), err)
	}
	r.logger.Info("Registered model", "model", m.Ref(), "f1", m.Performance.F1)
	return nil
}

// Get returns the model or nil when it is not registered.
func (r *Registry) Get(ctx context.Context, name, version string) (*ModelMetadata, error) {
	return r.storage.GetModel(ctx, name, version)
}

// MustGet is Get with a missing model reported as ErrModelNotFound.
func (r *Registry) MustGet(ctx context.Context, name, version string) (ModelMetadata, error) {
	m, err := r.Get(ctx, name, version)
	if err != nil {
		return ModelMetadata{}, err
	}
	if m == nil {
		return ModelMetadata{}, fmt.Errorf("%w: %s:%s", ErrModelNotFound, name, version)
	}
	return *m, nil
}

func (r *Registry) List(ctx context.Context) ([]ModelMetadata, error) {
	return r.storage.ListModels(ctx)
}

// Versions returns every version of name in ascending semantic order.
// Unparseable versions sort first.
func (r *Registry) Versions(ctx context.Context, name string) ([]ModelMetadata, error) {
	versions, err := r.storage.ModelVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(versions, func(a, b ModelMetadata) int {
		va, errA := ParseVersion(a.Version)
		vb, errB := ParseVersion(b.Version)
		switch {
		case errA != nil && errB != nil:
			return strings.Compare(a.Version, b.Version)
		case errA != nil:
			return -1
		case errB != nil:
			return 1
		}
		return va.Compare(vb)
	})
	return versions, nil
}

// Latest returns the highest version of name, or nil if none exist.
func (r *Registry) Latest(ctx context.Context, name string) (*ModelMetadata, error) {
	versions, err := r.Versions(ctx, name)
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	return &versions[len(versions)-1], nil
}

// Delete removes name:version and reports whether it existed.
func (r *Registry) Delete(ctx context.Context, name, version string) (bool, error) {
	deleted, err := r.storage.DeleteModel(ctx, name, version)
	if err == nil && deleted {
		r.logger.Info("Deleted model", "model", name+":"+version)
	}
	return deleted, err
}

// UpdateTags replaces the tags of name:version and reports whether the
// model exists.
func (r *Registry) UpdateTags(ctx context.Context, name, version string, tags []string) (bool, error) {
	m, err := r.Get(ctx, name, version)
	if err != nil || m == nil {
		return false, err
	}
	if err := r.storage.SaveModel(ctx, m.WithTags(tags)); err != nil {
		return false, err
	}
	return true, nil
}

// Search returns models whose name, description or any tag contains
// query, ignoring case.
func (r *Registry) Search(ctx context.Context, query string) ([]ModelMetadata, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []ModelMetadata
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.Description), q) ||
			slices.ContainsFunc(m.Tags, func(t string) bool { return strings.Contains(strings.ToLower(t), q) }) {
			out = append(out, m)
		}
	}
	return out, nil
}

// BestPerforming returns the version of name with the highest F1; the
// lowest version wins ties. Nil when no versions exist.
func (r *Registry) BestPerforming(ctx context.Context, name string) (*ModelMetadata, error) {
	versions, err := r.Versions(ctx, name)
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	best := 0
	for i := range versions {
		if versions[i].Performance.F1 > versions[best].Performance.F1 {
			best = i
		}
	}
	return &versions[best], nil
}

// PromptTemplate resolves name:version to its prompt template.
func (r *Registry) PromptTemplate(ctx context.Context, name, version string) (string, error) {
	m, err := r.MustGet(ctx, name, version)
	if err != nil {
		return "", err
	}
	return m.PromptTemplate, nil
}
