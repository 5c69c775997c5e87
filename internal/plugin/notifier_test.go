package plugin

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// recordingPlugin installs a plugin that appends each request to log.
func recordingPlugin(t *testing.T, root, name string, events ...string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	out := filepath.Join(t.TempDir(), name+".log")
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	script := "#!/bin/sh\ncat >> " + out + "\necho >> " + out + "\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	writeManifest(t, root, name, Manifest{Name: name, Executable: "run.sh", Events: events})
	return out
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return strings.Fields(strings.TrimSpace(string(data)))
}

func TestNotifier_DispatchesToSubscribers(t *testing.T) {
	root := t.TempDir()
	chimeLog := recordingPlugin(t, root, "chime", EventDrink)
	notifyLog := recordingPlugin(t, root, "notify", EventDrink, EventUndo)

	mgr := NewManager(root, nil)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	n := NewNotifier(mgr, NewExecutor(5*time.Second), nil, 8)

	if !n.Notify(*drinkRequest()) {
		t.Fatal("drink event should be queued")
	}
	if !n.Notify(Request{Event: EventUndo}) {
		t.Fatal("undo event should be queued")
	}
	n.Close()

	if got := readLines(t, chimeLog); len(got) != 1 {
		t.Errorf("chime should run once, ran %d times", len(got))
	}
	got := readLines(t, notifyLog)
	if len(got) != 2 {
		t.Fatalf("notify should run twice, ran %d times", len(got))
	}
	if !strings.Contains(got[0], `"event":"drink"`) || !strings.Contains(got[1], `"event":"undo"`) {
		t.Errorf("events out of order: %v", got)
	}
}

func TestNotifier_ClosedDropsEvents(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	n := NewNotifier(mgr, NewExecutor(time.Second), nil, 1)
	n.Close()
	n.Close()

	if n.Notify(Request{Event: EventDrink}) {
		t.Error("Notify after Close should report false")
	}
}

func TestNotifier_Abort(t *testing.T) {
	root := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	dir := filepath.Join(root, "slow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\nsleep 10\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	writeManifest(t, root, "slow", Manifest{Name: "slow", Executable: "run.sh", Events: []string{EventDrink}})

	mgr := NewManager(root, nil)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	n := NewNotifier(mgr, NewExecutor(30*time.Second), nil, 4)
	n.Notify(Request{Event: EventDrink})
	n.Notify(Request{Event: EventDrink})

	start := time.Now()
	n.Abort()
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Abort should not wait for plugins to finish, took %v", elapsed)
	}
}
