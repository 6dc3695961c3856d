package sse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterConnectionEnforcesPerIPLimit(t *testing.T) {
	m := NewManager()

	for i := 0; i < defaultMaxPerIP; i++ {
		c := NewConnection(string(rune('a'+i)), "192.168.1.100")
		require.True(t, m.RegisterConnection(string(rune('a'+i)), c))
	}

	eleventh := NewConnection("eleventh", "192.168.1.100")
	require.False(t, m.RegisterConnection("eleventh-topic", eleventh))
}

func TestRegisterConnectionEnforcesPerTopicLimit(t *testing.T) {
	m := NewManager()
	m.maxPerTopic = 2

	c1 := NewConnection("c1", "10.0.0.1")
	c2 := NewConnection("c2", "10.0.0.2")
	c3 := NewConnection("c3", "10.0.0.3")

	require.True(t, m.RegisterConnection("topic", c1))
	require.True(t, m.RegisterConnection("topic", c2))
	require.False(t, m.RegisterConnection("topic", c3))
}

func TestUnregisterConnectionFreesAdmissionSlot(t *testing.T) {
	m := NewManager()
	m.maxPerIP = 1

	c1 := NewConnection("c1", "10.0.0.1")
	require.True(t, m.RegisterConnection("topic", c1))

	c2 := NewConnection("c2", "10.0.0.1")
	require.False(t, m.RegisterConnection("topic", c2))

	m.UnregisterConnection(c1)
	require.True(t, m.RegisterConnection("topic", c2))
}

func TestBroadcastReturnsRecipientCount(t *testing.T) {
	m := NewManager()

	for i := 0; i < 3; i++ {
		c := NewConnection(string(rune('a'+i)), "10.0.0.1")
		require.NoError(t, c.Open())
		require.True(t, m.RegisterConnection("topic", c))
	}

	n := m.Broadcast("topic", &Event{Data: "hi"})
	require.Equal(t, 3, n)
}

func TestCloseAllConnectionsEmptiesRegistry(t *testing.T) {
	m := NewManager()
	c := NewConnection("c", "10.0.0.1")
	require.NoError(t, c.Open())
	require.True(t, m.RegisterConnection("topic", c))

	m.CloseAllConnections()

	stats := m.GetStatistics()
	require.Equal(t, 0, stats.TotalConnections)
	require.Equal(t, Closed, c.State())
}
