package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
	dto "github.com/prometheus/client_model/go"
)

func TestIncDecActiveConnectionsTracksCounterAndGauge(t *testing.T) {
	c := New()

	c.IncActiveConnections()
	c.IncActiveConnections()
	require.EqualValues(t, 2, c.ActiveConnectionCount())

	c.DecActiveConnections()
	require.EqualValues(t, 1, c.ActiveConnectionCount())

	var m dto.Metric
	require.NoError(t, c.ActiveConns.Write(&m))
	require.EqualValues(t, 1, m.GetGauge().GetValue())
}

func TestDefaultReturnsSameInstanceAcrossCalls(t *testing.T) {
	ResetDefault()
	a := Default()
	b := Default()
	require.Same(t, a, b)
}

func TestResetDefaultReplacesInstance(t *testing.T) {
	a := Default()
	b := ResetDefault()
	require.NotSame(t, a, b)
	require.Same(t, b, Default())
}

func TestNewRegistersAllCollectors(t *testing.T) {
	c := New()
	families, err := c.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
