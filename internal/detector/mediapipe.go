package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// perceptionScript is the Python MediaPipe service spoken to over stdio.
const perceptionScript = "perception_service.py"

// idleShutdown stops the Python process after this long without frames.
const idleShutdown = 30 * time.Second

// mouthDepth is how far down the face box the mouth sits when the service
// only reports a face box and no mouth landmarks.
const mouthDepth = 0.75

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess
// running the hand landmarker, face detector and object detector.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findScript(perceptionScript)
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", perceptionScript)
	}

	return &MediaPipeDetector{
		config: config,
		script: scriptPath,
	}, nil
}

// Detect sends the frame to the perception service and decodes its answer.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, ts time.Time) (*Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Length (4 bytes big-endian) + JPEG payload
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp serviceResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("perception service: %s", resp.Error)
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	obs, err := resp.toObservation(ts)
	if err != nil {
		return nil, fmt.Errorf("perception service: %w", err)
	}
	return obs, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findScript("venv/bin/python")
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-hand-confidence", strconv.FormatFloat(d.config.MinHandConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
		"--min-face-confidence", strconv.FormatFloat(d.config.MinFaceConfidence, 'f', -1, 64),
		"--object-score-threshold", strconv.FormatFloat(d.config.ObjectScoreThreshold, 'f', -1, 64),
		"--max-objects", strconv.Itoa(d.config.MaxObjects),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start perception service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// findScript resolves a path relative to the working directory, the
// executable's directory, or ~/.gulpwatch.
func findScript(rel string) string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", rel),
		filepath.Join("..", "scripts", rel),
		rel,
		filepath.Join("..", rel),
		filepath.Join(execDir, "scripts", rel),
		filepath.Join(execDir, rel),
		filepath.Join(os.Getenv("HOME"), ".gulpwatch", "scripts", rel),
		filepath.Join(os.Getenv("HOME"), ".gulpwatch", rel),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// serviceResponse is the JSON line written by the perception service.
type serviceResponse struct {
	Hands   []jsonHand   `json:"hands"`
	Face    *jsonFace    `json:"face"`
	Objects []jsonObject `json:"objects"`
	Error   string       `json:"error,omitempty"`
}

type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonFace struct {
	Box   Box         `json:"box"`
	Mouth []jsonPoint `json:"mouth"`
	Score float64     `json:"score"`
}

type jsonObject struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   Box     `json:"box"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (r serviceResponse) toObservation(ts time.Time) (*Observation, error) {
	obs := &Observation{Timestamp: ts}

	for i, h := range r.Hands {
		lm, err := h.toHandLandmarks()
		if err != nil {
			return nil, fmt.Errorf("hand %d: %w", i, err)
		}
		obs.Hands = append(obs.Hands, lm)
	}

	if r.Face != nil {
		if len(r.Face.Mouth) > 0 {
			for _, p := range r.Face.Mouth {
				obs.Mouth = append(obs.Mouth, Point3D{X: p.X, Y: p.Y, Z: p.Z})
			}
		} else {
			b := r.Face.Box
			obs.Mouth = []Point3D{{X: b.X + b.W/2, Y: b.Y + b.H*mouthDepth}}
		}
	}

	for _, o := range r.Objects {
		obs.Objects = append(obs.Objects, Object{Label: o.Label, Score: o.Score, Box: o.Box})
	}

	return obs, nil
}

func (h jsonHand) toHandLandmarks() (HandLandmarks, error) {
	if len(h.Points) != NumLandmarks {
		return HandLandmarks{}, fmt.Errorf("%w: hand has %d landmarks, want %d",
			ErrMalformedObservation, len(h.Points), NumLandmarks)
	}

	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i, p := range h.Points {
		lm.Points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z}
	}
	return lm, nil
}
