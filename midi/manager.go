package midi

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver
)

// Manager attaches the router to every MIDI input port and keeps doing so as
// devices come and go. Hot-plug is detected by polling the port list, which
// is what the backend drivers do internally anyway.
//
// When no MIDI driver is available the manager constructs disabled and every
// method is a no-op: MIDI is a capability, never a requirement.
type Manager struct {
	router   *Router
	enabled  bool
	pollRate time.Duration

	mu     sync.Mutex
	inputs map[string]func() // stop function per connected port
}

func NewManager(router *Router) *Manager {
	m := &Manager{
		router:   router,
		pollRate: time.Second,
		inputs:   make(map[string]func()),
	}
	if _, err := drivers.Ins(); err != nil {
		log.Printf("midi: no driver available, MIDI input disabled: %v", err)
		return m
	}
	m.enabled = true
	return m
}

// Enabled reports whether MIDI input is available on this host.
func (m *Manager) Enabled() bool { return m.enabled }

// Devices returns the names of the connected input ports, sorted.
func (m *Manager) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.inputs))
	for id := range m.inputs {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Run polls for devices until ctx is cancelled (blocking - run in goroutine).
func (m *Manager) Run(ctx context.Context) {
	if !m.enabled {
		return
	}
	ticker := time.NewTicker(m.pollRate)
	defer ticker.Stop()

	m.scan()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			gomidi.CloseDriver()
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

func (m *Manager) scan() {
	ports := gomidi.GetInPorts()

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(ports))
	for _, port := range ports {
		id := port.String()
		seen[id] = true
		if _, ok := m.inputs[id]; ok {
			continue
		}
		stop, err := gomidi.ListenTo(port, m.receive)
		if err != nil {
			log.Printf("midi: open %s: %v", id, err)
			continue
		}
		m.inputs[id] = stop
		log.Printf("midi: connected %s", id)
	}

	for id, stop := range m.inputs {
		if !seen[id] {
			stop()
			delete(m.inputs, id)
			log.Printf("midi: disconnected %s", id)
		}
	}
}

func (m *Manager) receive(msg gomidi.Message, _ int32) {
	if len(msg) < 3 {
		return
	}
	m.router.Handle(msg[0], msg[1], msg[2])
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, stop := range m.inputs {
		stop()
		delete(m.inputs, id)
	}
}
