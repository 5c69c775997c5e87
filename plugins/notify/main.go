// Package main provides a desktop notification plugin that reports drinking
// progress.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event       string   `json:"event"`
	Drink       Drink    `json:"drink"`
	Progress    Progress `json:"progress"`
	IdleMinutes int      `json:"idle_minutes"`
}

// Drink is the recorded or retracted gulp.
type Drink struct {
	Source string `json:"source"`
	Manual bool   `json:"manual"`
	ML     int    `json:"ml"`
}

// Progress is today's total at the time of the event.
type Progress struct {
	Count   int     `json:"count"`
	ML      int     `json:"ml"`
	GoalML  int     `json:"goal_ml"`
	Percent float64 `json:"percent"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	title, body, err := message(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := show(title, body); err != nil {
		writeErrorResponse(fmt.Sprintf("notification failed: %v", err))
		return
	}
	writeSuccessResponse()
}

// message builds the notification text for an event.
func message(req Request) (string, string, error) {
	p := req.Progress
	total := fmt.Sprintf("%d / %d ml (%.0f%%)", p.ML, p.GoalML, p.Percent)
	switch req.Event {
	case "drink":
		how := "Gulp detected"
		if req.Drink.Manual {
			how = "Gulp added"
		}
		return how, fmt.Sprintf("+%d ml, %s", req.Drink.ML, total), nil
	case "undo":
		return "Gulp removed", total, nil
	case "goal":
		return "Daily goal reached", fmt.Sprintf("%d gulps, %s", p.Count, total), nil
	case "reminder":
		return "Time for a drink", fmt.Sprintf("No gulp for %d min, %s", req.IdleMinutes, total), nil
	default:
		return "", "", fmt.Errorf("unknown event: %s", req.Event)
	}
}

// show displays a notification using the platform's native tool.
func show(title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		cmd = exec.Command("osascript", "-e", script)
	case "windows":
		ps := fmt.Sprintf(`[reflection.assembly]::loadwithpartialname('System.Windows.Forms') | Out-Null;`+
			`$n = New-Object System.Windows.Forms.NotifyIcon; $n.Icon = [System.Drawing.SystemIcons]::Information;`+
			`$n.Visible = $true; $n.ShowBalloonTip(3000, '%s', '%s', 'Info'); Start-Sleep -s 3; $n.Dispose()`,
			escapePS(title), escapePS(body))
		cmd = exec.Command("powershell", "-NoProfile", "-Command", ps)
	default:
		cmd = exec.Command("notify-send", "--app-name=gulpwatch", title, body)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func escapePS(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
