package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	hostManager *Manager
	managerOnce sync.Once
)

// Manager reference-counts the PortAudio host so that the microphone
// sampler and the speaker can each acquire and release it independently.
type Manager struct {
	mu          sync.Mutex
	initialized bool
	refCount    int

	// init and term are swapped out in tests.
	init func() error
	term func() error
}

// GetManager returns the process-wide host manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		hostManager = newManager(portaudio.Initialize, portaudio.Terminate)
	})
	return hostManager
}

func newManager(init, term func() error) *Manager {
	return &Manager{init: init, term: term}
}

// Acquire initializes the host on first use and takes a reference.
func (m *Manager) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		if err := m.init(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		m.initialized = true
	}

	m.refCount++
	return nil
}

// Release drops a reference and terminates the host once none remain.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refCount > 0 {
		m.refCount--
	}

	if m.refCount == 0 && m.initialized {
		m.initialized = false
		if err := m.term(); err != nil {
			return fmt.Errorf("failed to terminate PortAudio: %w", err)
		}
	}

	return nil
}

// Refs returns the number of outstanding references.
func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refCount
}
