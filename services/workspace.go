package services

import (
	"sync"

	"bulk-email-sender/ledger"
	"bulk-email-sender/models"
)

// Workspace is the state of one user session: the uploaded ledger, the
// preview position and the outcome of the last bulk send. Lock it for the
// whole duration of an action.
type Workspace struct {
	sync.Mutex

	FileName   string
	Ledger     *ledger.Ledger
	Preview    int
	LastReport *models.BatchReport
}

// Reset replaces the ledger and clears navigation and report state.
func (w *Workspace) Reset(fileName string, l *ledger.Ledger) {
	w.FileName = fileName
	w.Ledger = l
	w.Preview = 0
	w.LastReport = nil
}

// Current returns the previewed pending row, wrapping the stored position
// into the current pending range. ok is false when nothing is pending.
func (w *Workspace) Current() (row ledger.Row, position, total int, ok bool) {
	if w.Ledger == nil {
		return ledger.Row{}, 0, 0, false
	}
	pending := w.Ledger.Pending()
	if len(pending) == 0 {
		w.Preview = 0
		return ledger.Row{}, 0, 0, false
	}
	w.Preview = wrap(w.Preview, len(pending))
	return pending[w.Preview], w.Preview, len(pending), true
}

// Move shifts the preview position by delta with wrap-around.
func (w *Workspace) Move(delta int) {
	if w.Ledger == nil {
		return
	}
	if n := len(w.Ledger.Pending()); n > 0 {
		w.Preview = wrap(w.Preview+delta, n)
	}
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

// WorkspaceStore keeps one workspace per session token.
type WorkspaceStore struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewWorkspaceStore() *WorkspaceStore {
	return &WorkspaceStore{workspaces: make(map[string]*Workspace)}
}

// Get returns the workspace for token, creating an empty one if needed.
func (s *WorkspaceStore) Get(token string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.workspaces[token]
	if !ok {
		ws = &Workspace{}
		s.workspaces[token] = ws
	}
	return ws
}

func (s *WorkspaceStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, token)
}

func (s *WorkspaceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}
