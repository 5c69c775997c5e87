package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root, dir string, m Manifest) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	pluginDir := writeManifest(t, root, "chime", Manifest{
		Name:        "chime",
		Version:     "1.0.0",
		Description: "Plays a sound",
		Executable:  "chime",
		Events:      []string{EventDrink, EventGoal},
	})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	p := plugins[0]
	if p.Manifest.Name != "chime" {
		t.Errorf("expected plugin name 'chime', got %q", p.Manifest.Name)
	}
	if p.Manifest.Description != "Plays a sound" {
		t.Errorf("expected description 'Plays a sound', got %q", p.Manifest.Description)
	}
	if p.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, p.Path)
	}
	if p.Executable != filepath.Join(pluginDir, "chime") {
		t.Errorf("unexpected executable %q", p.Executable)
	}
	if !p.Manifest.Handles(EventGoal) || p.Manifest.Handles(EventUndo) {
		t.Errorf("unexpected event subscriptions: %v", p.Manifest.Events)
	}
}

func TestManager_Subscribers(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "b", Manifest{Name: "notify", Executable: "n", Events: []string{EventDrink, EventUndo, EventReminder}})
	writeManifest(t, root, "a", Manifest{Name: "chime", Executable: "c", Events: []string{EventDrink}})
	writeManifest(t, root, "c", Manifest{Name: "quiet", Executable: "q"})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	tests := []struct {
		event string
		want  []string
	}{
		{EventDrink, []string{"chime", "notify"}},
		{EventUndo, []string{"notify"}},
		{EventGoal, nil},
		{EventReminder, []string{"notify"}},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			got := manager.Subscribers(tt.event)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d subscribers, got %d", len(tt.want), len(got))
			}
			for i, name := range tt.want {
				if got[i].Manifest.Name != name {
					t.Errorf("subscriber %d = %q, want %q", i, got[i].Manifest.Name, name)
				}
			}
		})
	}

	if n := len(manager.List()); n != 3 {
		t.Errorf("expected 3 plugins, got %d", n)
	}
}

func TestManager_SetDisabled(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "chime", Manifest{Name: "chime", Executable: "c", Events: []string{EventDrink}})
	writeManifest(t, root, "notify", Manifest{Name: "notify", Executable: "n", Events: []string{EventDrink}})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	manager.SetDisabled("chime", true)
	got := manager.Subscribers(EventDrink)
	if len(got) != 1 || got[0].Manifest.Name != "notify" {
		t.Fatalf("muted plugin should not subscribe, got %d subscribers", len(got))
	}
	if len(manager.List()) != 2 {
		t.Error("muted plugin should still be listed")
	}

	manager.SetDisabled("chime", false)
	if len(manager.Subscribers(EventDrink)) != 2 {
		t.Error("unmuted plugin should subscribe again")
	}
}

func TestManager_Discover_SkipsBroken(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "good", Manifest{Name: "good", Executable: "good"})
	writeManifest(t, root, "nameless", Manifest{Executable: "x"})

	badDir := filepath.Join(root, "bad")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "plugin.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		t.Errorf("expected only the good plugin, got %d plugins", len(plugins))
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	root := t.TempDir()
	dir := writeManifest(t, root, "chime", Manifest{Name: "chime", Executable: "chime"})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("failed to remove plugin: %v", err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("chime"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("removed plugin should be forgotten, got %v", err)
	}
}

func TestManager_Get(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "chime", Manifest{Name: "chime", Executable: "chime"})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	p, err := manager.Get("chime")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if p.Manifest.Name != "chime" {
		t.Errorf("expected 'chime', got %q", p.Manifest.Name)
	}

	if _, err := manager.Get("nonexistent"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "missing"), nil)

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() should not fail for a missing directory: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Error("expected no plugins")
	}
	if manager.PluginDir() == "" {
		t.Error("PluginDir should be kept")
	}
}
