package timeseries

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrPolicyNotFound is returned when no policy exists for a series.
var ErrPolicyNotFound = errors.New("backfill policy not found")

// BackfillPolicy binds a series name to its perturbation bounds.
// Policies are loaded at startup from YAML files and fingerprinted so an
// operator can tell which policy version produced a given backfill run.
type BackfillPolicy struct {
	Series      string
	Bounds      Bounds
	Fingerprint string // SHA-256 of the raw YAML file; computed at load time
}

// rawPolicy is the on-disk YAML shape.
type rawPolicy struct {
	Series  string              `yaml:"series"`
	Metrics map[string]rawBound `yaml:"metrics"`
	Default *rawBound           `yaml:"default"`
}

type rawBound struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// PolicyRepository defines the interface for loading backfill policies.
type PolicyRepository interface {
	// Get returns the policy for the given series, or an error if not found.
	Get(ctx context.Context, series string) (*BackfillPolicy, error)

	// Policies returns all loaded policies (for batch processing).
	Policies() []BackfillPolicy
}

// FileSystemPolicyRepository loads backfill policies from *.yaml files in a
// directory. Each file contains exactly one policy at the top level. Policies
// are loaded once at startup and cached in memory; no hot reload.
type FileSystemPolicyRepository struct {
	dir      string
	policies map[string]BackfillPolicy // keyed by Series
}

// NewFileSystemPolicyRepository creates a new repository and eagerly loads all
// policies from dir. Returns an error if any policy file is malformed or
// carries an inverted bound.
func NewFileSystemPolicyRepository(dir string) (*FileSystemPolicyRepository, error) {
	repo := &FileSystemPolicyRepository{
		dir:      dir,
		policies: make(map[string]BackfillPolicy),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemPolicyRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no policy directory; valid (zero series configured)
	}
	if err != nil {
		return fmt.Errorf("backfill policy dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("backfill policy path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading backfill policy dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading policy file %s: %w", path, err)
		}

		var raw rawPolicy
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing policy file %s: %w", path, err)
		}
		if raw.Series == "" {
			continue // skip empty / comment-only files
		}
		if len(raw.Metrics) == 0 && raw.Default == nil {
			return fmt.Errorf("policy %q: at least one metric bound or a default is required", raw.Series)
		}

		bounds := Bounds{Metrics: make(map[string]Bound, len(raw.Metrics))}
		for metric, rb := range raw.Metrics {
			if rb.Min > rb.Max {
				return fmt.Errorf("policy %q: %w", raw.Series,
					&InvalidRangeError{Metric: metric, Min: rb.Min, Max: rb.Max})
			}
			bounds.Metrics[metric] = Bound{Min: rb.Min, Max: rb.Max}
		}
		if raw.Default != nil {
			if raw.Default.Min > raw.Default.Max {
				return fmt.Errorf("policy %q: %w", raw.Series,
					&InvalidRangeError{Metric: "(default)", Min: raw.Default.Min, Max: raw.Default.Max})
			}
			bounds.Default = &Bound{Min: raw.Default.Min, Max: raw.Default.Max}
		}

		if _, exists := r.policies[raw.Series]; exists {
			return fmt.Errorf("policy %q: duplicate series name (check multiple YAML files)", raw.Series)
		}

		r.policies[raw.Series] = BackfillPolicy{
			Series:      raw.Series,
			Bounds:      bounds,
			Fingerprint: fmt.Sprintf("%x", sha256.Sum256(data)),
		}
	}
	return nil
}

// Get returns the policy for the given series, or an error if not found.
func (r *FileSystemPolicyRepository) Get(_ context.Context, series string) (*BackfillPolicy, error) {
	policy, ok := r.policies[series]
	if !ok {
		return nil, fmt.Errorf("series %q: %w", series, ErrPolicyNotFound)
	}
	return &policy, nil
}

// Policies returns all loaded policies as a slice (for batch processing).
func (r *FileSystemPolicyRepository) Policies() []BackfillPolicy {
	policies := make([]BackfillPolicy, 0, len(r.policies))
	for _, policy := range r.policies {
		policies = append(policies, policy)
	}
	return policies
}
