package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, pluginDir string, manifest Manifest) {
	t.Helper()

	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}

	manifestPath := filepath.Join(pluginDir, "plugin.json")
	if err := os.WriteFile(manifestPath, manifestBytes, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()

	pluginDir := filepath.Join(tmpDir, "test-plugin")
	writeManifest(t, pluginDir, Manifest{
		Name:        "test-plugin",
		Version:     "1.0.0",
		Description: "A test plugin",
		Executable:  "test-plugin",
		Actions:     []string{"action1", "action2"},
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "test-plugin" {
		t.Errorf("expected plugin name 'test-plugin', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", plugin.Manifest.Version)
	}
	if len(plugin.Manifest.Actions) != 2 {
		t.Errorf("expected 2 actions, got %d", len(plugin.Manifest.Actions))
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "test-plugin") {
		t.Errorf("unexpected executable path %q", plugin.Executable)
	}
}

func TestManager_Discover_MultiplePlugins(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		writeManifest(t, filepath.Join(tmpDir, name), Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name,
			Actions:    []string{"run"},
		})
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if got := len(manager.List()); got != 3 {
		t.Fatalf("expected 3 plugins, got %d", got)
	}

	for _, name := range []string{"alpha", "beta", "gamma"} {
		if _, err := manager.Get(name); err != nil {
			t.Errorf("Get(%q) error = %v", name, err)
		}
	}
}

func TestManager_Discover_SkipsInvalidManifests(t *testing.T) {
	tmpDir := t.TempDir()

	// A valid plugin
	writeManifest(t, filepath.Join(tmpDir, "good"), Manifest{
		Name:       "good",
		Executable: "good",
	})

	// A directory with a malformed manifest
	badDir := filepath.Join(tmpDir, "bad")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "plugin.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	// A directory with no manifest at all
	if err := os.MkdirAll(filepath.Join(tmpDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	// A stray file
	if err := os.WriteFile(filepath.Join(tmpDir, "stray.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if got := len(manager.List()); got != 1 {
		t.Errorf("expected only the valid plugin, got %d", got)
	}
}

func TestManager_Discover_MissingDirectory(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() on a missing directory should succeed, got %v", err)
	}
	if got := len(manager.List()); got != 0 {
		t.Errorf("expected no plugins, got %d", got)
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := NewManager(t.TempDir())
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}

	if _, err := manager.Get("missing"); err != ErrPluginNotFound {
		t.Errorf("Get() error = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	tmpDir := t.TempDir()

	writeManifest(t, filepath.Join(tmpDir, "first"), Manifest{Name: "first", Executable: "first"})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if len(manager.List()) != 1 {
		t.Fatalf("expected 1 plugin after first scan")
	}

	// Remove the plugin and rescan: the stale entry must disappear.
	if err := os.RemoveAll(filepath.Join(tmpDir, "first")); err != nil {
		t.Fatal(err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if len(manager.List()) != 0 {
		t.Error("rescan should drop removed plugins")
	}
}
