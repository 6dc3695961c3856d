package sse

import "sync"

const (
	defaultMaxPerIP    = 10
	defaultMaxPerTopic = 1000
)

// Manager is the process-wide registry of live SSE connections,
// grouped by topic, with per-IP and per-topic admission limits. It
// acquires at most one of its two locks at a time: topics and
// ipCounts are never held together, so a Register that must touch
// both does so as two short critical sections rather than one long
// one, trading a narrow TOCTOU race at the per-IP admission boundary
// (registrations racing from an IP at its exact limit may each be
// admitted, exceeding it by up to the number racing; the topic check
// and insert share one critical section, so the topic limit holds)
// for never serializing the hot broadcast path behind the
// IP-accounting path.
type Manager struct {
	topicMu sync.Mutex
	topics  map[string]map[*Connection]struct{}

	ipMu     sync.Mutex
	ipCounts map[string]int

	maxPerIP    int
	maxPerTopic int
}

// NewManager builds an empty registry with the default admission
// limits (10 connections/IP, 1000 connections/topic).
func NewManager() *Manager {
	return &Manager{
		topics:      make(map[string]map[*Connection]struct{}),
		ipCounts:    make(map[string]int),
		maxPerIP:    defaultMaxPerIP,
		maxPerTopic: defaultMaxPerTopic,
	}
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the process-wide Manager, built lazily on first use.
func Default() *Manager {
	defaultManagerOnce.Do(func() { defaultManager = NewManager() })
	return defaultManager
}

// ResetDefault discards the process-wide Manager; intended for tests
// that need a clean registry between cases.
func ResetDefault() {
	defaultManagerOnce = sync.Once{}
	defaultManager = nil
}

// RegisterConnection admits c onto topic if neither the per-IP nor
// per-topic limit is already exhausted, returning false (without
// registering) if either is.
func (m *Manager) RegisterConnection(topic string, c *Connection) bool {
	m.ipMu.Lock()
	if m.ipCounts[c.clientIP] >= m.maxPerIP {
		m.ipMu.Unlock()
		return false
	}
	m.ipMu.Unlock()

	m.topicMu.Lock()
	set := m.topics[topic]
	if len(set) >= m.maxPerTopic {
		m.topicMu.Unlock()
		return false
	}
	if set == nil {
		set = make(map[*Connection]struct{})
		m.topics[topic] = set
	}
	set[c] = struct{}{}
	c.topic = topic
	m.topicMu.Unlock()

	m.ipMu.Lock()
	m.ipCounts[c.clientIP]++
	m.ipMu.Unlock()

	return true
}

// UnregisterConnection removes c from its topic and decrements its
// IP's count. Safe to call even if c was never registered, or was
// already unregistered.
func (m *Manager) UnregisterConnection(c *Connection) {
	m.topicMu.Lock()
	set, ok := m.topics[c.topic]
	var present bool
	if ok {
		_, present = set[c]
		if present {
			delete(set, c)
			if len(set) == 0 {
				delete(m.topics, c.topic)
			}
		}
	}
	m.topicMu.Unlock()

	if !present {
		return
	}

	m.ipMu.Lock()
	m.ipCounts[c.clientIP]--
	if m.ipCounts[c.clientIP] <= 0 {
		delete(m.ipCounts, c.clientIP)
	}
	m.ipMu.Unlock()
}

// Broadcast offers ev to every currently-registered connection on
// topic that is open and returns how many connections it was offered
// to (not how many accepted it — a full queue still counts as offered,
// per Connection.SendEvent's drop policy).
func (m *Manager) Broadcast(topic string, ev *Event) int {
	m.topicMu.Lock()
	set := m.topics[topic]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	m.topicMu.Unlock()

	n := 0
	for _, c := range conns {
		if !c.IsOpen() {
			continue
		}
		_ = c.SendEvent(ev)
		n++
	}
	return n
}

// BroadcastToTopics offers ev to every connection across the given
// topics, returning the total number of offers made.
func (m *Manager) BroadcastToTopics(topics []string, ev *Event) int {
	total := 0
	for _, topic := range topics {
		total += m.Broadcast(topic, ev)
	}
	return total
}

// GetConnections returns a snapshot slice of the connections
// currently registered on topic.
func (m *Manager) GetConnections(topic string) []*Connection {
	m.topicMu.Lock()
	defer m.topicMu.Unlock()

	set := m.topics[topic]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Statistics is a point-in-time snapshot of the registry's admission
// state.
type Statistics struct {
	TotalConnections int
	PerTopic         map[string]int
	PerIP            map[string]int
}

// GetStatistics snapshots the registry's topic and IP counts.
func (m *Manager) GetStatistics() Statistics {
	stats := Statistics{PerTopic: make(map[string]int), PerIP: make(map[string]int)}

	m.topicMu.Lock()
	for topic, set := range m.topics {
		stats.PerTopic[topic] = len(set)
		stats.TotalConnections += len(set)
	}
	m.topicMu.Unlock()

	m.ipMu.Lock()
	for ip, n := range m.ipCounts {
		stats.PerIP[ip] = n
	}
	m.ipMu.Unlock()

	return stats
}

// CloseAllConnections closes every registered connection and empties
// the registry; intended for graceful shutdown.
func (m *Manager) CloseAllConnections() {
	m.topicMu.Lock()
	var all []*Connection
	for _, set := range m.topics {
		for c := range set {
			all = append(all, c)
		}
	}
	m.topics = make(map[string]map[*Connection]struct{})
	m.topicMu.Unlock()

	m.ipMu.Lock()
	m.ipCounts = make(map[string]int)
	m.ipMu.Unlock()

	for _, c := range all {
		c.Close()
	}
}
