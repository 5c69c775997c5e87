package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/gulpwatch/internal/app"
	"github.com/ayusman/gulpwatch/internal/capture"
	"github.com/ayusman/gulpwatch/internal/config"
	"github.com/ayusman/gulpwatch/internal/detector"
	"github.com/ayusman/gulpwatch/internal/gesture"
	"github.com/ayusman/gulpwatch/internal/plugin"
	"github.com/ayusman/gulpwatch/internal/server"
	"github.com/ayusman/gulpwatch/internal/store"
	"github.com/ayusman/gulpwatch/internal/tray"
)

// chimePlugin is muted when sound is switched off.
const chimePlugin = "chime"

type runOptions struct {
	Headless     bool
	MockCamera   bool
	MockDetector bool
	Addr         string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the camera and count gulps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService(cmd.Context(), cfg, runOpts)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.Headless, "headless", false, "run without the system tray")
	runCmd.Flags().BoolVar(&runOpts.MockCamera, "mock-camera", false, "use a synthetic camera")
	runCmd.Flags().BoolVar(&runOpts.MockDetector, "mock-detector", false, "use the mock perception detector")
	runCmd.Flags().StringVar(&runOpts.Addr, "addr", "", "HTTP listen address (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runService(ctx context.Context, cfg *config.Config, opts runOptions) error {
	log := logger

	st, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := plugin.NewManager(cfg.PluginDir, log.Named("plugin"))
	if err := mgr.Discover(); err != nil {
		log.Warn("plugin discovery failed", zap.String("dir", cfg.PluginDir), zap.Error(err))
	}
	if !cfg.SoundEnabled {
		mgr.SetDisabled(chimePlugin, true)
	}
	log.Info("plugins loaded", zap.Int("count", len(mgr.List())))
	notifier := plugin.NewNotifier(mgr, plugin.NewExecutor(time.Duration(cfg.PluginTimeoutMS)*time.Millisecond), log.Named("plugin"), 32)
	defer notifier.Close()

	det, err := newDetector(cfg, opts.MockDetector)
	if err != nil {
		return err
	}

	var cam capture.Camera
	if opts.MockCamera {
		cam = capture.NewMockCamera(640, 480, nil)
	} else {
		cam = capture.NewCamera(cfg.CameraIndex, nil)
	}

	a, err := app.New(app.Options{
		Config:   cfg,
		Store:    st,
		Camera:   cam,
		Detector: det,
		Notifier: notifier,
		Logger:   log,
		Location: time.Local,
	})
	if err != nil {
		det.Close()
		return err
	}

	hub := server.NewHub(log.Named("ws"))
	a.OnStatus(func(s gesture.Status) { hub.Publish(s) })

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Tracker:   a,
		Frames:    a.Frames(),
		Hub:       hub,
		Logger:    log.Named("http"),
	})

	addr := cfg.ServerAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(addr) }()

	if err := a.Start(); err != nil {
		det.Close()
		return fmt.Errorf("failed to start detection: %w", err)
	}
	defer a.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.RunReminders(ctx)
	go func() {
		select {
		case err := <-srvErr:
			if err != nil {
				log.Error("http server failed", zap.Error(err))
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.Headless {
		<-ctx.Done()
	} else {
		runTray(ctx, cancel, a, "http://"+browserAddr(addr))
	}

	log.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

// runTray blocks in the system tray until quit or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App, debugURL string) {
	log := logger.Named("tray")
	t := tray.New(a.Enabled())

	if p, err := a.Progress(""); err == nil {
		t.SetProgress(*p)
	}
	a.OnProgress(t.SetProgress)

	t.OnToggle(func(enabled bool) {
		if err := a.SetEnabled(enabled); err != nil {
			log.Error("toggle detection", zap.Error(err))
		}
	})
	t.OnAdd(func() {
		ev, err := a.AddDrink()
		if err != nil {
			log.Error("manual add", zap.Error(err))
			return
		}
		t.SetLast(describe(ev))
	})
	t.OnUndo(func() {
		_, ok, err := a.UndoDrink()
		if err != nil {
			log.Error("undo", zap.Error(err))
		}
		if ok {
			if last := a.Status().LastEvent; last != nil {
				t.SetLast(describe(*last))
			} else {
				t.SetLast("")
			}
		}
	})
	t.OnDebug(func() {
		if err := openBrowser(debugURL); err != nil {
			log.Warn("open browser", zap.Error(err))
		}
	})
	t.OnQuit(cancel)

	a.OnStatus(func(s gesture.Status) {
		if s.LastEvent != nil {
			t.SetLast(describe(*s.LastEvent))
		}
	})

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func newDetector(cfg *config.Config, mock bool) (detector.Detector, error) {
	if mock || cfg.MockDetector {
		logger.Warn("using mock perception detector")
		return detector.NewMockDetector(), nil
	}
	d, err := detector.NewMediaPipeDetector(cfg.Detector())
	if err != nil {
		return nil, fmt.Errorf("perception unavailable (use --mock-detector to run without it): %w", err)
	}
	return d, nil
}

func describe(ev gesture.Event) string {
	return fmt.Sprintf("%s %s", ev.Timestamp.Local().Format("15:04"), ev.Source)
}

// browserAddr turns a listen address into one a browser can open.
func browserAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return strings.Replace(addr, "0.0.0.0", "localhost", 1)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory next to the working directory,
// then under dataDir. Returns "" when none exists.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// todayProgress is shared by the progress, add and undo commands.
func todayProgress(st *store.Store, cfg *config.Config, day string) (*store.Progress, error) {
	if day == "" {
		day = store.DayKey(time.Now())
	}
	return st.Drinks().Progress(day, cfg.GoalML)
}
