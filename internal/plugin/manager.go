package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// manifestName is the manifest file expected in each plugin directory.
const manifestName = "plugin.json"

// Manager discovers plugins and looks them up by name or event.
type Manager struct {
	pluginDir string
	log       *zap.Logger
	plugins   map[string]*Plugin
	disabled  map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a Manager for pluginDir. A nil logger discards output.
func NewManager(pluginDir string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		pluginDir: pluginDir,
		log:       log,
		plugins:   make(map[string]*Plugin),
		disabled:  make(map[string]bool),
	}
}

// SetDisabled mutes or unmutes the named plugin. A muted plugin is still
// listed but receives no events.
func (m *Manager) SetDisabled(name string, disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if disabled {
		m.disabled[name] = true
	} else {
		delete(m.disabled, name)
	}
}

// Discover rescans the plugin directory. Each subdirectory holding a valid
// plugin.json is a plugin; broken ones are skipped with a warning. A missing
// plugin directory simply means no plugins.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		data, err := os.ReadFile(filepath.Join(pluginPath, manifestName))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			m.log.Warn("skipping plugin", zap.String("dir", pluginPath), zap.Error(err))
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			m.log.Warn("skipping plugin with invalid manifest", zap.String("dir", pluginPath), zap.Error(err))
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			m.log.Warn("skipping plugin without name or executable", zap.String("dir", pluginPath))
			continue
		}

		found[manifest.Name] = &Plugin{
			Manifest:   manifest,
			Path:       pluginPath,
			Executable: filepath.Join(pluginPath, manifest.Executable),
		}
		m.log.Debug("discovered plugin", zap.String("name", manifest.Name), zap.Strings("events", manifest.Events))
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()
	return nil
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}

	return plugin, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	return m.filter(func(*Plugin) bool { return true })
}

// Subscribers returns the plugins handling event, sorted by name.
func (m *Manager) Subscribers(event string) []*Plugin {
	return m.filter(func(p *Plugin) bool {
		return !m.disabled[p.Manifest.Name] && p.Manifest.Handles(event)
	})
}

func (m *Manager) filter(keep func(*Plugin) bool) []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		if keep(p) {
			plugins = append(plugins, p)
		}
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
