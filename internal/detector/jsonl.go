package detector

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize bounds one encoded observation.
const maxLineSize = 1 << 20

// ReadObservations decodes one JSON observation per line. Blank lines are
// skipped. A hand without exactly NumLandmarks points fails with
// ErrMalformedObservation; everything else is left to Validate.
func ReadObservations(r io.Reader) ([]Observation, error) {
	var out []Observation

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var obs Observation
		if err := json.Unmarshal(b, &obs); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, obs)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return out, nil
}

// WriteObservations encodes observations as JSON lines.
func WriteObservations(w io.Writer, obs []Observation) error {
	enc := json.NewEncoder(w)
	for i := range obs {
		if err := enc.Encode(&obs[i]); err != nil {
			return fmt.Errorf("write observation %d: %w", i, err)
		}
	}
	return nil
}
