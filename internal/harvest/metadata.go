// Package harvest turns exposure metadata and astrometric match results
// into SDQA ratings.
package harvest

import (
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

// Metric names contain dots, so nested YAML keys are joined with a slash.
const keyDelim = "/"

// Metadata is a flat view of an exposure's header values.
type Metadata struct {
	k *koanf.Koanf
}

// LoadMetadata reads a YAML metadata file.
func LoadMetadata(path string) (*Metadata, error) {
	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read metadata %s", path)
	}
	return &Metadata{k: k}, nil
}

// NewMetadata builds metadata from in-memory values.
func NewMetadata(values map[string]any) *Metadata {
	k := koanf.New(keyDelim)
	for key, v := range values {
		_ = k.Set(key, v)
	}
	return &Metadata{k: k}
}

// Keys lists every metadata key.
func (m *Metadata) Keys() []string { return m.k.Keys() }

// Float64 returns the numeric value stored under key.
func (m *Metadata) Float64(key string) (float64, error) {
	if !m.k.Exists(key) {
		return 0, domain.Runtime("metadata has no key %q", key)
	}
	switch v := m.k.Get(key).(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, domain.Runtime("metadata key %q is not numeric: %q", key, v)
		}
		return f, nil
	default:
		return 0, domain.Runtime("metadata key %q has type %T", key, v)
	}
}

// Int64 returns the integer value stored under key.
func (m *Metadata) Int64(key string) (int64, error) {
	if !m.k.Exists(key) {
		return 0, domain.Runtime("metadata has no key %q", key)
	}
	switch v := m.k.Get(key).(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, domain.Runtime("metadata key %q is not integral: %v", key, v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, domain.Runtime("metadata key %q is not an integer: %q", key, v)
		}
		return n, nil
	default:
		return 0, domain.Runtime("metadata key %q has type %T", key, v)
	}
}

// Lookup reads name, falling back to its upper-case spelling as written
// by FITS headers.
func (m *Metadata) Lookup(name string) (float64, error) {
	v, err := m.Float64(name)
	if err == nil {
		return v, nil
	}
	upper := strings.ToUpper(name)
	if upper == name || !m.k.Exists(upper) {
		return 0, err
	}
	return m.Float64(upper)
}

// Config selects which metadata values become ratings.
type Config struct {
	Scope       string   `koanf:"scope"`
	MetricNames []string `koanf:"metric_names"`
}

// LoadConfig reads a harvest configuration from YAML.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Config{}, errors.Wrapf(err, "read harvest config %s", path)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, errors.Wrap(err, "decode harvest config")
	}
	return cfg, nil
}

// FromMetadata builds one rating per configured metric name. Values carry
// no uncertainty, so the error is zero.
func FromMetadata(md *Metadata, cfg Config) (domain.RatingSet, error) {
	if md == nil {
		return nil, domain.InvalidArgument("no metadata provided")
	}
	scope, err := domain.ParseScope(cfg.Scope)
	if err != nil {
		return nil, err
	}
	if len(cfg.MetricNames) == 0 {
		return nil, domain.InvalidArgument("no metric names configured")
	}

	set := make(domain.RatingSet, 0, len(cfg.MetricNames))
	for _, name := range cfg.MetricNames {
		v, err := md.Lookup(name)
		if err != nil {
			return nil, err
		}
		r, err := domain.NewRating(name, v, 0, scope)
		if err != nil {
			return nil, err
		}
		set = append(set, r)
	}
	return set, nil
}
