package health

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/metrics"
)

func TestHealthUpThenMarkedUnhealthy(t *testing.T) {
	e := New(metrics.New())

	var ctx fasthttp.RequestCtx
	e.Health(&ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.Contains(t, string(ctx.Response.Body()), `"status":"UP"`)

	e.MarkUnhealthy()

	var ctx2 fasthttp.RequestCtx
	e.Health(&ctx2)
	require.Equal(t, fasthttp.StatusServiceUnavailable, ctx2.Response.StatusCode())
	require.Contains(t, string(ctx2.Response.Body()), `"status":"DOWN"`)
}

func TestMetricsExposesPrometheusText(t *testing.T) {
	m := metrics.New()
	e := New(m)
	m.RequestsTotal.WithLabelValues("http1", "200").Inc()

	var ctx fasthttp.RequestCtx
	e.Metrics(&ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.Contains(t, string(ctx.Response.Body()), "http_requests_total")
}
