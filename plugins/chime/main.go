// Package main provides a sound plugin. It plays a short clip when a drink
// is recorded, a longer one when the daily goal is reached and a nudge when
// it is time to drink again.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config selects the clips. Relative paths resolve against the plugin dir.
type Config struct {
	SoundsDir        string `json:"sounds_dir"`
	GulpSound        string `json:"gulp_sound"`
	CelebrationSound string `json:"celebration_sound"`
	ReminderSound    string `json:"reminder_sound"`
	DryRun           bool   `json:"dry_run"`
}

func defaultConfig() Config {
	return Config{
		SoundsDir:        "sounds",
		GulpSound:        "gulp.wav",
		CelebrationSound: "celebration.wav",
		ReminderSound:    "reminder.wav",
	}
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := defaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	var clip string
	switch req.Event {
	case "drink":
		clip = cfg.GulpSound
	case "goal":
		clip = cfg.CelebrationSound
	case "reminder":
		clip = cfg.ReminderSound
	default:
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	path := filepath.Join(cfg.SoundsDir, clip)
	data, _ := json.Marshal(map[string]string{"sound": path})
	if cfg.DryRun {
		writeSuccessResponse(data)
		return
	}

	if _, err := os.Stat(path); err != nil {
		writeErrorResponse(fmt.Sprintf("sound file not found: %s", path))
		return
	}
	if err := play(path); err != nil {
		writeErrorResponse(fmt.Sprintf("could not play sound: %v", err))
		return
	}
	writeSuccessResponse(data)
}

// play runs the platform's command line audio player.
func play(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("afplay", path)
	case "windows":
		cmd = exec.Command("powershell", "-NoProfile", "-Command",
			fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", path))
	default:
		player, err := exec.LookPath("paplay")
		if err != nil {
			player = "aplay"
		}
		cmd = exec.Command(player, path)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
