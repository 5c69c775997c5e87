package plugin

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier runs subscribed plugins for each event on a background worker so
// the frame loop never waits on a plugin.
type Notifier struct {
	mgr  *Manager
	exec *Executor
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan Request
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier starts a Notifier with room for queueSize pending events.
func NewNotifier(mgr *Manager, exec *Executor, log *zap.Logger, queueSize int) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		mgr:    mgr,
		exec:   exec,
		log:    log,
		queue:  make(chan Request, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues req. It reports false when the queue is full or the
// notifier is closed; the event is then dropped.
func (n *Notifier) Notify(req Request) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	select {
	case n.queue <- req:
		return true
	default:
		n.log.Warn("plugin queue full, dropping event", zap.String("event", req.Event))
		return false
	}
}

// Close stops accepting events, lets queued ones finish and waits for the
// worker to exit.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	<-n.done
}

// Abort cancels running plugins and drops queued events.
func (n *Notifier) Abort() {
	n.cancel()
	n.Close()
}

func (n *Notifier) run() {
	defer close(n.done)
	for req := range n.queue {
		if n.ctx.Err() != nil {
			continue
		}
		n.dispatch(req)
	}
}

func (n *Notifier) dispatch(req Request) {
	for _, p := range n.mgr.Subscribers(req.Event) {
		resp, err := n.exec.Execute(n.ctx, p, &req)
		switch {
		case err != nil:
			n.log.Warn("plugin failed", zap.String("plugin", p.Manifest.Name), zap.String("event", req.Event), zap.Error(err))
		case !resp.Success:
			n.log.Warn("plugin reported error", zap.String("plugin", p.Manifest.Name), zap.String("event", req.Event), zap.String("error", resp.Error))
		default:
			n.log.Debug("plugin ran", zap.String("plugin", p.Manifest.Name), zap.String("event", req.Event))
		}
	}
}
