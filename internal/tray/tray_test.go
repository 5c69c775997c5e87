package tray

import (
	"testing"

	"github.com/ayusman/gulpwatch/internal/store"
)

func TestProgressTitle(t *testing.T) {
	tests := []struct {
		name string
		p    store.Progress
		want string
	}{
		{"no goal", store.Progress{ML: 300}, "💧 300 ml"},
		{"under goal", store.Progress{ML: 500, GoalML: 3000}, "💧 500 / 3000 ml"},
		{"goal reached", store.Progress{ML: 3100, GoalML: 3000}, "💧 3100 / 3000 ml ✓"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := progressTitle(tt.p); got != tt.want {
				t.Errorf("progressTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTray_StateBeforeRun(t *testing.T) {
	tr := New(false)
	if tr.IsEnabled() {
		t.Fatal("tray should start disabled")
	}

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })
	tr.handleToggle()
	tr.handleToggle()
	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("toggle callbacks = %v, want [true false]", got)
	}

	tr.SetEnabled(true)
	tr.SetLast("09:30 cached")
	tr.SetProgress(store.Progress{ML: 100, GoalML: 3000})
	if !tr.IsEnabled() {
		t.Error("SetEnabled(true) not applied")
	}

	added := false
	tr.OnAdd(func() { added = true })
	tr.call(func() func() { return tr.onAdd })
	if !added {
		t.Error("add callback not run")
	}
	tr.call(func() func() { return tr.onUndo })
}

func TestTitles(t *testing.T) {
	if toggleTitle(true) == toggleTitle(false) {
		t.Error("toggle titles should differ")
	}
	if lastTitle("") != "Last: none" || lastTitle("x") != "Last: x" {
		t.Error("unexpected last titles")
	}
}
