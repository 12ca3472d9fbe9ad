package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ayusman/kinetic/internal/engine"
	"github.com/ayusman/kinetic/internal/frame"
	"github.com/ayusman/kinetic/internal/ingest"
	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/plugin"
	"github.com/ayusman/kinetic/internal/recorder"
	"github.com/ayusman/kinetic/internal/server"
	"github.com/ayusman/kinetic/internal/store"
	"github.com/ayusman/kinetic/testdata"
)

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping shell-script plugin test on Windows")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	eng := engine.New(engine.DefaultConfig())

	// Wire the recorder and a script plugin exactly as the daemon does.
	rec := recorder.New(s.Events())
	eng.Subscribe("", "", rec.HandleEvent)

	pluginDir := filepath.Join(tmpDir, "plugins", "marker")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	script := `#!/bin/sh
cat > request.json
echo '{"success":true}'
`
	if err := os.WriteFile(filepath.Join(pluginDir, "marker.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	manifest, _ := json.Marshal(plugin.Manifest{Name: "marker", Version: "1.0.0", Executable: "marker.sh", Actions: []string{"mark"}})
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	manager := plugin.NewManager(filepath.Join(tmpDir, "plugins"))
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	dispatcher := plugin.NewDispatcher(manager, plugin.NewExecutor(5000), s.Bindings())
	eng.Subscribe("", "", dispatcher.HandleEvent)

	srv := server.New(server.Config{Store: s, Engine: eng})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("CreateIntent", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/intents",
			"application/json",
			strings.NewReader(`{"id": "victory-hold", "pattern": {"type": "gesture", "gesture": "Victory", "hand": "any", "min_confidence": 0.5}}`),
		)
		if err != nil {
			t.Fatalf("create intent error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	t.Run("BindPlugin", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/bindings",
			"application/json",
			strings.NewReader(`{"intent_id": "victory-hold", "phase": "start", "plugin_name": "marker", "action_name": "mark"}`),
		)
		if err != nil {
			t.Fatalf("create binding error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	t.Run("DetectIntent", func(t *testing.T) {
		for frameTs := int64(0); frameTs <= 300; frameTs += 100 {
			eng.OnFrame(testdata.FrameAt(frameTs, testdata.VictoryHand(0, "right", 0.9, testdata.Center)))
		}

		resp, _ := client.Get(ts.URL + "/api/active")
		var snapshot struct {
			Active []struct {
				IntentID string `json:"intent_id"`
				Hand     string `json:"hand"`
			} `json:"active"`
		}
		json.NewDecoder(resp.Body).Decode(&snapshot)
		resp.Body.Close()

		if len(snapshot.Active) != 1 {
			t.Fatalf("expected 1 active instance, got %d", len(snapshot.Active))
		}
		if snapshot.Active[0].Hand != "right" {
			t.Errorf("hand = %q, want right", snapshot.Active[0].Hand)
		}
	})

	t.Run("PluginFired", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(pluginDir, "request.json"))
		if err != nil {
			t.Fatalf("bound plugin did not run: %v", err)
		}

		var req plugin.Request
		if err := json.Unmarshal(data, &req); err != nil {
			t.Fatalf("plugin request malformed: %v", err)
		}
		if req.IntentID != "victory-hold" || req.Phase != "start" || req.Action != "mark" {
			t.Errorf("plugin request = %+v", req)
		}
	})

	t.Run("EventsLogged", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/intents/victory-hold/events")
		if err != nil {
			t.Fatalf("list events error = %v", err)
		}
		defer resp.Body.Close()

		var listed struct {
			Events []struct {
				Phase string `json:"phase"`
			} `json:"events"`
		}
		json.NewDecoder(resp.Body).Decode(&listed)

		starts, updates := 0, 0
		for _, e := range listed.Events {
			switch e.Phase {
			case "start":
				starts++
			case "update":
				updates++
			}
		}
		if starts != 1 {
			t.Errorf("logged starts = %d, want 1", starts)
		}
		if updates == 0 {
			t.Error("expected logged updates")
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, _ := client.Get(ts.URL + "/api/health")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after engine activity")
		}
		resp.Body.Close()
	})
}

func TestE2E_ReplayThroughYAMLConfig(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()

	// A recorded session: a right-hand Victory held through 400 ms, a
	// 500 ms dropout, then one last match.
	var lines []string
	for _, frameTs := range []int64{0, 100, 200, 300, 400, 900} {
		data, err := ingest.EncodeFrame(testdata.FrameAt(frameTs, testdata.VictoryHand(0, "right", 0.9, testdata.Center)))
		if err != nil {
			t.Fatal(err)
		}
		lines = append(lines, string(data))
	}
	replayPath := filepath.Join(tmpDir, "session.jsonl")
	if err := os.WriteFile(replayPath, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(tmpDir, "intents.yaml")
	configYAML := `
intents:
  - id: victory-hold
    pattern:
      type: gesture
      gesture: Victory
      hand: any
      min_confidence: 0.5
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ingest.LoadConfigFile(configPath)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}

	eng := engine.New(engine.DefaultConfig())
	if err := eng.Configure(cfg.Definitions(), cfg.ResolverConfig()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	var phases []intent.Phase
	var endReasons []intent.EndReason
	eng.Subscribe("victory-hold", "", func(ev intent.Event) error {
		phases = append(phases, ev.Phase)
		if ev.Phase == intent.PhaseEnd {
			endReasons = append(endReasons, ev.Reason)
		}
		return nil
	})

	src, err := ingest.OpenReplay(replayPath)
	if err != nil {
		t.Fatalf("OpenReplay() error = %v", err)
	}
	defer src.Close()

	frames := 0
	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		eng.OnFrame(f)
		frames++
	}
	if frames != 6 {
		t.Fatalf("replayed %d frames, want 6", frames)
	}

	// One start once the hold gate passes, updates through 400 ms, then a
	// gap_exceeded end when the dropout outlives the 200 ms tolerance.
	if len(phases) == 0 || phases[0] != intent.PhaseStart {
		t.Fatalf("phases = %v, want start first", phases)
	}
	if len(endReasons) != 1 || endReasons[0] != intent.ReasonGapExceeded {
		t.Errorf("end reasons = %v, want one gap_exceeded", endReasons)
	}
}

func TestE2E_ConflictAcrossRESTConfiguration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	eng := engine.New(engine.DefaultConfig())
	srv := server.New(server.Config{Store: s, Engine: eng})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// Two intents competing in the spawn group: a plain pinch and a
	// higher-priority pinch+fist combination.
	post := func(path, body string) {
		t.Helper()
		resp, err := client.Post(ts.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("POST %s status = %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	post("/api/intents", `{"id": "simple", "pattern": {"type": "pinch", "finger": "index", "hand": "left"}, "group": "spawn"}`)
	post("/api/intents", `{"id": "modified", "pattern": {"type": "all_of", "children": [{"type": "pinch", "finger": "index", "hand": "left", "primary": true}, {"type": "gesture", "gesture": "Closed_Fist", "hand": "right"}]}, "group": "spawn", "priority": 10}`)

	// Cap the spawn group at one instance.
	put, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/config", strings.NewReader(`{"groups": {"spawn": {"max": 1}}}`))
	resp, err := client.Do(put)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT /api/config status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	var events []intent.Event
	eng.Subscribe("", "", func(ev intent.Event) error {
		events = append(events, ev)
		return nil
	})

	leftPinch := func(ts int64) {
		eng.OnFrame(testdata.FrameAt(ts, testdata.PinchHand(0, "left", frame.IndexTip, testdata.Center)))
	}
	// Only the simple pinch matches at first.
	for frameTs := int64(0); frameTs <= 400; frameTs += 100 {
		leftPinch(frameTs)
	}

	// Now a right fist appears alongside: modified becomes eligible and,
	// with higher priority, supersedes simple in the same frame.
	for frameTs := int64(500); frameTs <= 700; frameTs += 100 {
		eng.OnFrame(testdata.FrameAt(frameTs,
			testdata.PinchHand(0, "left", frame.IndexTip, testdata.Center),
			testdata.GestureHand(1, "right", "Closed_Fist", 0.9, testdata.Center),
		))
	}

	var sawSimpleStart, sawSuperseded, sawModifiedStart bool
	for _, ev := range events {
		switch {
		case ev.IntentID == "simple" && ev.Phase == intent.PhaseStart:
			sawSimpleStart = true
		case ev.IntentID == "simple" && ev.Phase == intent.PhaseEnd && ev.Reason == intent.ReasonSuperseded:
			sawSuperseded = true
		case ev.IntentID == "modified" && ev.Phase == intent.PhaseStart:
			if !sawSuperseded {
				t.Error("modified started before simple's superseded end was delivered")
			}
			sawModifiedStart = true
		}
	}
	if !sawSimpleStart || !sawSuperseded || !sawModifiedStart {
		t.Errorf("missing lifecycle steps: simpleStart=%v superseded=%v modifiedStart=%v",
			sawSimpleStart, sawSuperseded, sawModifiedStart)
	}
}
