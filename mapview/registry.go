package mapview

import "sync"

// Registry keeps one manager per session
type Registry struct {
	sync.Mutex
	managers map[string]*Manager
	factory  func() *Manager
}

func NewRegistry(factory func() *Manager) *Registry {
	return &Registry{
		managers: map[string]*Manager{},
		factory:  factory,
	}
}

// Get returns the manager of the session, creating it on first use
func (r *Registry) Get(sessionID string) *Manager {
	r.Lock()
	defer r.Unlock()

	m, ok := r.managers[sessionID]
	if !ok {
		m = r.factory()
		r.managers[sessionID] = m
	}
	return m
}

// Drop forgets the manager of a session that ended
func (r *Registry) Drop(sessionID string) {
	r.Lock()
	defer r.Unlock()
	delete(r.managers, sessionID)
}
