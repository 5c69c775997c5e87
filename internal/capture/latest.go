package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// Latest holds the most recent frame as JPEG for preview streams. Frames are
// only encoded while someone is watching.
type Latest struct {
	watchers atomic.Int32

	mu   sync.RWMutex
	jpeg []byte
	at   time.Time
	seq  uint64
}

// Watch registers a viewer. Call the returned function when done.
func (l *Latest) Watch() func() {
	l.watchers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { l.watchers.Add(-1) })
	}
}

// Watching reports whether any viewer is registered.
func (l *Latest) Watching() bool {
	return l.watchers.Load() > 0
}

// Publish encodes f as JPEG when watched.
func (l *Latest) Publish(f Frame) error {
	if !l.Watching() {
		return nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		return err
	}
	defer buf.Close()

	// The native buffer is freed on Close.
	data := append([]byte(nil), buf.GetBytes()...)
	l.PublishJPEG(data, f.At)
	return nil
}

// PublishJPEG stores an already encoded frame.
func (l *Latest) PublishJPEG(data []byte, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jpeg = data
	l.at = at
	l.seq++
}

// Get returns the latest frame and its sequence number. ok is false before
// the first frame.
func (l *Latest) Get() (data []byte, seq uint64, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.jpeg, l.seq, l.seq > 0
}
