// Package component tracks CI/CD component dependencies: which components
// exist, who consumes them, and where they are included from.
//
// The registry is a YAML file guarded by a file lock so concurrent pipeline
// jobs can update it safely.
package component

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/verdantci/evergreen/internal/logger"
)

const registryVersion = "1.0.0"

// ErrComponentNotFound is returned when a component is not in the registry.
var ErrComponentNotFound = errors.New("component not found in registry")

// Component is a registered CI/CD component.
type Component struct {
	Name           string         `yaml:"name" json:"name"`
	Project        string         `yaml:"project" json:"project"`
	Path           string         `yaml:"path" json:"path"`
	CurrentVersion string         `yaml:"current_version" json:"current_version"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Maintainer     string         `yaml:"maintainer,omitempty" json:"maintainer,omitempty"`
	CreatedAt      time.Time      `yaml:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `yaml:"updated_at" json:"updated_at"`
	Versions       []VersionEntry `yaml:"versions" json:"versions"`
	Consumers      []Consumer     `yaml:"consumers" json:"consumers"`
}

// VersionEntry records one released version of a component.
type VersionEntry struct {
	Version         string    `yaml:"version" json:"version"`
	ReleasedAt      time.Time `yaml:"released_at" json:"released_at"`
	Changes         string    `yaml:"changes,omitempty" json:"changes,omitempty"`
	BreakingChanges bool      `yaml:"breaking_changes" json:"breaking_changes"`
}

// Consumer is a project that includes a component.
type Consumer struct {
	ProjectPath   string    `yaml:"project_path" json:"project_path"`
	Contact       string    `yaml:"contact,omitempty" json:"contact,omitempty"`
	VersionUsed   string    `yaml:"version_used,omitempty" json:"version_used,omitempty"`
	IncludeMethod string    `yaml:"include_method" json:"include_method"`
	RegisteredAt  time.Time `yaml:"registered_at" json:"registered_at"`
	LastSeen      time.Time `yaml:"last_seen" json:"last_seen"`
}

type registryFile struct {
	Version    string                `yaml:"version"`
	CreatedAt  time.Time             `yaml:"created_at"`
	UpdatedAt  time.Time             `yaml:"updated_at"`
	Components map[string]*Component `yaml:"components"`
}

// Store persists the component registry to a YAML file. All mutating
// operations take an exclusive file lock for the duration of the
// read-modify-write cycle.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store for the registry file at path. The file is
// created on first write.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the registry file location.
func (s *Store) Path() string { return s.path }

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("locking registry: %w", err)
	}
	if !locked {
		return fmt.Errorf("locking registry: lock not acquired")
	}
	defer s.lock.Unlock()
	return fn()
}

func (s *Store) load() (*registryFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &registryFile{
				Version:    registryVersion,
				CreatedAt:  time.Now().UTC(),
				Components: make(map[string]*Component),
			}, nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	if reg.Components == nil {
		reg.Components = make(map[string]*Component)
	}
	return &reg, nil
}

// save writes atomically via a temp file in the same directory.
func (s *Store) save(reg *registryFile) error {
	reg.UpdatedAt = time.Now().UTC()
	if reg.Version == "" {
		reg.Version = registryVersion
	}

	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp registry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing registry: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}

// Register adds a component, or records a new version of an existing one.
func (s *Store) Register(ctx context.Context, c Component) error {
	return s.withLock(ctx, func() error {
		reg, err := s.load()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		existing, ok := reg.Components[c.Name]
		if !ok {
			c.CreatedAt = now
			c.UpdatedAt = now
			c.Versions = []VersionEntry{{
				Version:    c.CurrentVersion,
				ReleasedAt: now,
				Changes:    "Initial registration",
			}}
			reg.Components[c.Name] = &c
			logger.Info().Str("component", c.Name).Str("version", c.CurrentVersion).Msg("component registered")
			return s.save(reg)
		}

		existing.Project = c.Project
		existing.Path = c.Path
		existing.Description = c.Description
		existing.Maintainer = c.Maintainer
		existing.UpdatedAt = now
		if c.CurrentVersion != "" && c.CurrentVersion != existing.CurrentVersion {
			existing.CurrentVersion = c.CurrentVersion
			existing.Versions = append(existing.Versions, VersionEntry{
				Version:    c.CurrentVersion,
				ReleasedAt: now,
			})
		}
		logger.Info().Str("component", c.Name).Str("version", existing.CurrentVersion).Msg("component updated")
		return s.save(reg)
	})
}

// AddConsumer upserts a consumer of a component, keyed by project path.
func (s *Store) AddConsumer(ctx context.Context, component string, consumer Consumer) error {
	return s.withLock(ctx, func() error {
		reg, err := s.load()
		if err != nil {
			return err
		}

		c, ok := reg.Components[component]
		if !ok {
			return fmt.Errorf("%w: %s", ErrComponentNotFound, component)
		}

		now := time.Now().UTC()
		consumer.LastSeen = now
		for i := range c.Consumers {
			if c.Consumers[i].ProjectPath == consumer.ProjectPath {
				consumer.RegisteredAt = c.Consumers[i].RegisteredAt
				c.Consumers[i] = consumer
				c.UpdatedAt = now
				return s.save(reg)
			}
		}
		consumer.RegisteredAt = now
		c.Consumers = append(c.Consumers, consumer)
		c.UpdatedAt = now
		return s.save(reg)
	})
}

// Get returns a registered component.
func (s *Store) Get(ctx context.Context, name string) (*Component, error) {
	var result *Component
	err := s.withLock(ctx, func() error {
		reg, err := s.load()
		if err != nil {
			return err
		}
		c, ok := reg.Components[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrComponentNotFound, name)
		}
		result = c
		return nil
	})
	return result, err
}

// Consumers lists the consumers of a component.
func (s *Store) Consumers(ctx context.Context, component string) ([]Consumer, error) {
	c, err := s.Get(ctx, component)
	if err != nil {
		return nil, err
	}
	return c.Consumers, nil
}

// List returns every registered component.
func (s *Store) List(ctx context.Context) ([]*Component, error) {
	var result []*Component
	err := s.withLock(ctx, func() error {
		reg, err := s.load()
		if err != nil {
			return err
		}
		for _, c := range reg.Components {
			result = append(result, c)
		}
		return nil
	})
	return result, err
}
