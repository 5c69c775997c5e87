// Package sequences embeds recorded observation sequences. Each sequence is a
// JSON lines file of detector observations captured 300ms apart.
package sequences

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/ayusman/gulpwatch/internal/detector"
)

//go:embed data/*.jsonl
var sequencesFS embed.FS

const ext = ".jsonl"

// Names lists the embedded sequences in sorted order.
func Names() []string {
	entries, err := fs.ReadDir(sequencesFS, "data")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(names)
	return names
}

// Load decodes a sequence by name.
func Load(name string) ([]detector.Observation, error) {
	f, err := sequencesFS.Open("data/" + name + ext)
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}
	defer f.Close()

	obs, err := detector.ReadObservations(f)
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}
	return obs, nil
}
