package app

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/gulpwatch/internal/capture"
)

// ErrNoCamera is returned by Start when the App has no camera or detector.
var ErrNoCamera = errors.New("app: camera and detector are required to start")

// Start opens the camera and runs the frame loop until Stop.
func (a *App) Start() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.camera == nil || a.detector == nil {
		return ErrNoCamera
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.gate.FPS())
	a.motion = capture.NewMotionDetector(a.cfg.MotionThreshold)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.run(a.stopCh, a.doneCh)

	a.log.Info("detection pipeline started", zap.Int("camera", a.cfg.CameraIndex))
	return nil
}

// Stop halts the frame loop and releases the camera and detector.
func (a *App) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.stopCh == nil {
		return
	}
	close(a.stopCh)
	<-a.doneCh
	a.stopCh = nil

	if err := a.camera.Close(); err != nil {
		a.log.Warn("close camera", zap.Error(err))
	}
	if err := a.motion.Close(); err != nil {
		a.log.Warn("close motion detector", zap.Error(err))
	}
	if err := a.detector.Close(); err != nil {
		a.log.Warn("close detector", zap.Error(err))
	}
	a.log.Info("detection pipeline stopped")
}

// run is the frame loop. Each tick decides the delay to the next one.
func (a *App) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			timer.Reset(a.tick())
		}
	}
}

// tick reads and analyses one frame.
//
// Motion gating:
//  1. Without recent motion the camera runs at idle FPS and frames are not
//     sent to perception.
//  2. Motion switches to active FPS; frames are analysed at most every
//     interval_ms.
//  3. After idle_timeout_ms without motion it drops back to idle.
//
// Camera and perception failures are reported to the session as gaps.
func (a *App) tick() time.Duration {
	if !a.Enabled() {
		return a.gate.Interval()
	}

	f, err := a.camera.Read()
	if err != nil {
		a.log.Warn("read frame", zap.Error(err))
		a.Gap(a.now())
		return a.gate.Interval()
	}
	defer f.Close()

	if err := a.frames.Publish(f); err != nil {
		a.log.Debug("encode preview frame", zap.Error(err))
	}

	moving, changed := a.motion.Detect(f.Mat)
	if a.gate.Update(moving, f.At) {
		a.camera.SetFPS(a.gate.FPS())
		a.log.Debug("capture mode", zap.Bool("active", a.gate.Active()), zap.Float64("changed_pct", changed))
	}
	if !a.gate.Active() {
		return a.gate.Interval()
	}

	obs, err := a.detector.Detect(&f.Mat, f.At)
	if err != nil {
		a.log.Warn("perception failed", zap.Error(err))
		a.Gap(f.At)
		return a.activeInterval()
	}
	if _, err := a.Process(obs); err != nil {
		a.log.Warn("process frame", zap.Error(err))
	}
	return a.activeInterval()
}

// activeInterval is the analysis period while active: the camera frame
// period, but never shorter than interval_ms.
func (a *App) activeInterval() time.Duration {
	return max(a.gate.Interval(), a.cfg.Interval())
}
