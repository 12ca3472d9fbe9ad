package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/pattern"
	"github.com/ayusman/kinetic/internal/resolver"
	"github.com/ayusman/kinetic/internal/store"
)

// IntentSpec is one intent in a declarative intent-set file. Omitted
// temporal fields fall back to the 100/200 ms defaults; an explicit zero
// means no hold gate / no gap tolerance.
type IntentSpec struct {
	ID               string             `yaml:"id"`
	Pattern          pattern.Expression `yaml:"pattern"`
	MinDurationMs    *int64             `yaml:"min_duration_ms"`
	MaxGapMs         *int64             `yaml:"max_gap_ms"`
	Group            string             `yaml:"group"`
	Priority         int                `yaml:"priority"`
	ConcurrencyScope string             `yaml:"concurrency_scope"`
}

// GroupSpec caps one group's concurrently active instances.
type GroupSpec struct {
	Max int `yaml:"max" json:"max"`
}

// ResolutionSpec is the serialized conflict-resolution configuration.
type ResolutionSpec struct {
	MaxConcurrentIntents int                  `yaml:"max_concurrent_intents" json:"max_concurrent_intents"`
	Groups               map[string]GroupSpec `yaml:"groups" json:"groups"`
}

// ConfigFile is a declarative intent-set file.
type ConfigFile struct {
	Intents    []IntentSpec    `yaml:"intents"`
	Resolution *ResolutionSpec `yaml:"resolution"`
}

// LoadConfigFile parses a YAML intent-set file and validates every
// pattern.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read config: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ingest: parse config: %w", err)
	}

	for i := range cfg.Intents {
		spec := &cfg.Intents[i]
		if spec.ID == "" {
			return nil, fmt.Errorf("ingest: intent %d has no id", i)
		}
		if err := spec.Pattern.Validate(); err != nil {
			return nil, fmt.Errorf("ingest: intent %q: %w", spec.ID, err)
		}
	}

	return &cfg, nil
}

// Definition converts the spec to an engine intent definition.
func (s IntentSpec) Definition() intent.Definition {
	minDuration := int64(intent.DefaultMinDurationMs)
	if s.MinDurationMs != nil {
		minDuration = *s.MinDurationMs
	}
	maxGap := int64(intent.DefaultMaxGapMs)
	if s.MaxGapMs != nil {
		maxGap = *s.MaxGapMs
	}

	return intent.Definition{
		ID:      s.ID,
		Pattern: s.Pattern,
		Temporal: intent.Temporal{
			MinDurationMs: minDuration,
			MaxGapMs:      maxGap,
		},
		Resolution: intent.Resolution{
			Group:            s.Group,
			Priority:         s.Priority,
			ConcurrencyScope: intent.ConcurrencyScope(s.ConcurrencyScope),
		},
	}.WithDefaults()
}

// Record converts the spec to a store row, serializing the pattern.
func (s IntentSpec) Record() (*store.Intent, error) {
	patternJSON, err := json.Marshal(s.Pattern)
	if err != nil {
		return nil, fmt.Errorf("ingest: marshal pattern for %q: %w", s.ID, err)
	}

	def := s.Definition()
	return &store.Intent{
		ID:               def.ID,
		Pattern:          patternJSON,
		MinDurationMs:    def.Temporal.MinDurationMs,
		MaxGapMs:         def.Temporal.MaxGapMs,
		Group:            def.Resolution.Group,
		Priority:         def.Resolution.Priority,
		ConcurrencyScope: store.ConcurrencyScope(def.Resolution.ConcurrencyScope),
		Enabled:          true,
	}, nil
}

// Definitions converts every intent in the file.
func (f *ConfigFile) Definitions() []intent.Definition {
	defs := make([]intent.Definition, 0, len(f.Intents))
	for _, spec := range f.Intents {
		defs = append(defs, spec.Definition())
	}
	return defs
}

// ResolverConfig converts the file's resolution section, or nil when the
// file has none.
func (f *ConfigFile) ResolverConfig() *resolver.Config {
	if f.Resolution == nil {
		return nil
	}
	cfg := f.Resolution.Config()
	return &cfg
}

// Config converts the spec to a resolver configuration.
func (r *ResolutionSpec) Config() resolver.Config {
	cfg := resolver.Config{
		MaxConcurrentIntents: r.MaxConcurrentIntents,
		GroupLimits:          map[string]resolver.GroupLimit{},
	}
	for g, spec := range r.Groups {
		cfg.GroupLimits[g] = resolver.GroupLimit{Max: spec.Max, Strategy: resolver.TopK}
	}
	return cfg
}

// FromRecord converts a stored intent row back into an engine definition,
// decoding and validating the serialized pattern.
func FromRecord(in *store.Intent) (intent.Definition, error) {
	var expr pattern.Expression
	if err := json.Unmarshal(in.Pattern, &expr); err != nil {
		return intent.Definition{}, fmt.Errorf("ingest: intent %q pattern: %w", in.ID, err)
	}
	if err := expr.Validate(); err != nil {
		return intent.Definition{}, fmt.Errorf("ingest: intent %q: %w", in.ID, err)
	}

	return intent.Definition{
		ID:      in.ID,
		Pattern: expr,
		Temporal: intent.Temporal{
			MinDurationMs: in.MinDurationMs,
			MaxGapMs:      in.MaxGapMs,
		},
		Resolution: intent.Resolution{
			Group:            in.Group,
			Priority:         in.Priority,
			ConcurrencyScope: intent.ConcurrencyScope(in.ConcurrencyScope),
		},
	}.WithDefaults(), nil
}

// FromRecords converts a slice of stored rows, skipping nothing: one bad
// pattern fails the whole load so a configure call stays atomic.
func FromRecords(records []*store.Intent) ([]intent.Definition, error) {
	defs := make([]intent.Definition, 0, len(records))
	for _, rec := range records {
		def, err := FromRecord(rec)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// DecodeResolution parses a serialized resolution configuration, as stored
// in the settings table.
func DecodeResolution(data []byte) (resolver.Config, error) {
	var spec ResolutionSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return resolver.Config{}, fmt.Errorf("ingest: decode resolution: %w", err)
	}
	return spec.Config(), nil
}

// EncodeResolution serializes a resolver configuration for the settings
// table.
func EncodeResolution(cfg resolver.Config) ([]byte, error) {
	spec := ResolutionSpec{
		MaxConcurrentIntents: cfg.MaxConcurrentIntents,
		Groups:               map[string]GroupSpec{},
	}
	for g, limit := range cfg.GroupLimits {
		spec.Groups[g] = GroupSpec{Max: limit.Max}
	}
	return json.Marshal(spec)
}
