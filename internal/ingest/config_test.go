package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/pattern"
	"github.com/ayusman/kinetic/internal/resolver"
	"github.com/ayusman/kinetic/internal/store"
)

const sampleConfig = `
intents:
  - id: victory-hold
    pattern:
      type: gesture
      gesture: Victory
      hand: any
      min_confidence: 0.7
  - id: pinch-spawn
    pattern:
      type: pinch
      finger: index
    min_duration_ms: 150
    max_gap_ms: 300
    group: spawn
    priority: 10
  - id: two-hand-cast
    pattern:
      type: bidirectional
      a:
        type: pinch
        finger: index
      b:
        type: gesture
        gesture: Victory
        min_confidence: 0.6
resolution:
  max_concurrent_intents: 4
  groups:
    spawn:
      max: 1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intents.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := LoadConfigFile(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}

	defs := cfg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("len(defs) = %d, want 3", len(defs))
	}

	// Defaults applied to the first intent.
	if defs[0].Temporal.MinDurationMs != intent.DefaultMinDurationMs {
		t.Errorf("MinDurationMs = %d, want default", defs[0].Temporal.MinDurationMs)
	}
	if defs[0].Resolution.Group != intent.DefaultGroup {
		t.Errorf("Group = %q, want default", defs[0].Resolution.Group)
	}

	// Explicit settings on the second.
	if defs[1].Temporal.MinDurationMs != 150 || defs[1].Temporal.MaxGapMs != 300 {
		t.Errorf("temporal = %+v", defs[1].Temporal)
	}
	if defs[1].Resolution.Group != "spawn" || defs[1].Resolution.Priority != 10 {
		t.Errorf("resolution = %+v", defs[1].Resolution)
	}

	// Bidirectional desugars into its AnyOf children.
	if defs[2].Pattern.Kind != pattern.KindBidirectional {
		t.Errorf("Kind = %d, want bidirectional", defs[2].Pattern.Kind)
	}
	if len(defs[2].Pattern.Children) != 2 {
		t.Errorf("bidirectional children = %d, want 2", len(defs[2].Pattern.Children))
	}

	rc := cfg.ResolverConfig()
	if rc == nil {
		t.Fatal("ResolverConfig() = nil")
	}
	if rc.MaxConcurrentIntents != 4 {
		t.Errorf("MaxConcurrentIntents = %d, want 4", rc.MaxConcurrentIntents)
	}
	if limit := rc.GroupLimits["spawn"]; limit.Max != 1 || limit.Strategy != resolver.TopK {
		t.Errorf("spawn limit = %+v", limit)
	}
}

func TestLoadConfigFile_RejectsInvalidPattern(t *testing.T) {
	bad := `
intents:
  - id: broken
    pattern:
      type: gesture
`
	if _, err := LoadConfigFile(writeConfig(t, bad)); err == nil {
		t.Fatal("expected validation error for gesture with no label")
	}
}

func TestLoadConfigFile_RejectsMissingID(t *testing.T) {
	bad := `
intents:
  - pattern:
      type: gesture
      gesture: Victory
`
	if _, err := LoadConfigFile(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for intent with no id")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	spec := IntentSpec{
		ID:      "pinch-spawn",
		Pattern: pattern.Pinch(pattern.Index, pattern.AnyHand, 0),
		Group:   "spawn",
	}

	rec, err := spec.Record()
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.Group != "spawn" || rec.MinDurationMs != intent.DefaultMinDurationMs {
		t.Errorf("record = %+v", rec)
	}

	def, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}
	if def.ID != "pinch-spawn" {
		t.Errorf("ID = %q", def.ID)
	}
	if def.Pattern.Kind != pattern.KindPinch || def.Pattern.Finger != pattern.Index {
		t.Errorf("pattern = %+v", def.Pattern)
	}
}

func TestFromRecords_FailsAtomically(t *testing.T) {
	good := &store.Intent{
		ID:      "good",
		Pattern: json.RawMessage(`{"type": "gesture", "gesture": "Victory"}`),
	}
	bad := &store.Intent{
		ID:      "bad",
		Pattern: json.RawMessage(`{"type": "nope"}`),
	}

	if _, err := FromRecords([]*store.Intent{good, bad}); err == nil {
		t.Fatal("one bad pattern must fail the whole load")
	}
}

func TestResolutionCodec_RoundTrip(t *testing.T) {
	cfg := resolver.Config{
		MaxConcurrentIntents: 2,
		GroupLimits: map[string]resolver.GroupLimit{
			"spawn": {Max: 1, Strategy: resolver.TopK},
		},
	}

	data, err := EncodeResolution(cfg)
	if err != nil {
		t.Fatalf("EncodeResolution() error = %v", err)
	}

	decoded, err := DecodeResolution(data)
	if err != nil {
		t.Fatalf("DecodeResolution() error = %v", err)
	}
	if decoded.MaxConcurrentIntents != 2 {
		t.Errorf("MaxConcurrentIntents = %d", decoded.MaxConcurrentIntents)
	}
	if limit := decoded.GroupLimits["spawn"]; limit.Max != 1 || limit.Strategy != resolver.TopK {
		t.Errorf("spawn limit = %+v", limit)
	}
}
