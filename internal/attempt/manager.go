package attempt

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shabonaa/exambuilder/internal/model"
)

func newAttemptID() string {
	return uuid.NewString()
}

type entry struct {
	engine *Engine
	stop   chan struct{}
}

// Manager owns the live attempts. Each timed attempt gets its own goroutine
// ticking the countdown once per second; study attempts have no goroutine.
// A student has at most one live attempt at a time.
type Manager struct {
	mu       sync.Mutex
	attempts map[string]*entry // by attempt id
	bySub    map[string]string // subject id -> attempt id
	logger   *slog.Logger
}

// NewManager returns an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		attempts: make(map[string]*entry),
		bySub:    make(map[string]string),
		logger:   logger,
	}
}

// Start creates and registers a new attempt. Any previous attempt by the
// same student is dropped first, ticker and all.
func (m *Manager) Start(exam model.Exam, questions []model.Question, mode Mode, sess model.Session, writer ResultWriter) (*Engine, error) {
	e, err := New(exam, questions, mode, sess, writer, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if prev, ok := m.bySub[sess.SubjectID]; ok {
		m.removeLocked(prev)
	}
	ent := &entry{engine: e}
	if mode == ModeTimed {
		ent.stop = make(chan struct{})
		go m.tickLoop(e, ent.stop)
	}
	m.attempts[e.ID()] = ent
	m.bySub[sess.SubjectID] = e.ID()
	m.mu.Unlock()

	m.logger.Info("attempt started", "attempt", e.ID(), "exam", exam.ID, "mode", mode)
	return e, nil
}

// Get looks up a live attempt by id.
func (m *Manager) Get(id string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ent, ok := m.attempts[id]
	if !ok {
		return nil, false
	}
	return ent.engine, true
}

// Drop removes an attempt and stops its ticker. Dropping an unknown id is a
// no-op.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

// Close stops every ticker. Engines already handed out stay usable; their
// clocks just stop.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.attempts {
		m.removeLocked(id)
	}
}

func (m *Manager) removeLocked(id string) {
	ent, ok := m.attempts[id]
	if !ok {
		return
	}
	if ent.stop != nil {
		close(ent.stop)
	}
	delete(m.attempts, id)
	if m.bySub[ent.engine.SubjectID()] == id {
		delete(m.bySub, ent.engine.SubjectID())
	}
}

func (m *Manager) tickLoop(e *Engine, stop chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			e.Tick()
			if e.Snapshot().State == StateScored {
				return
			}
		}
	}
}
