// Package health implements the /health and /health/metrics endpoints:
// a liveness JSON document and a Prometheus text export, wired onto a
// fasthttp.Server the way the rest of this module's components are.
package health

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/metrics"
)

// Endpoint serves /health and /health/metrics.
type Endpoint struct {
	startedAt time.Time
	unhealthy int32
	metrics   *metrics.Collector
}

// New builds an Endpoint reporting UP until MarkUnhealthy is called.
func New(m *metrics.Collector) *Endpoint {
	return &Endpoint{startedAt: time.Now(), metrics: m}
}

// MarkUnhealthy flips /health to report DOWN/503. Called by the
// graceful-shutdown coordinator on shutdown().
func (e *Endpoint) MarkUnhealthy() {
	atomic.StoreInt32(&e.unhealthy, 1)
}

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Disk      string `json:"disk"`
	Memory    string `json:"memory"`
	Uptime    string `json:"uptime"`
}

// Health handles GET /health.
func (e *Endpoint) Health(ctx *fasthttp.RequestCtx) {
	down := atomic.LoadInt32(&e.unhealthy) == 1

	body := healthBody{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Disk:      "ok",
		Memory:    "ok",
		Uptime:    time.Since(e.startedAt).String(),
	}
	if down {
		body.Status = "DOWN"
	}

	b, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	if down {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	} else {
		ctx.SetStatusCode(fasthttp.StatusOK)
	}
	ctx.SetBody(b)
}

// Metrics handles GET /health/metrics, rendering the registry in
// Prometheus text exposition format.
func (e *Endpoint) Metrics(ctx *fasthttp.RequestCtx) {
	mfs, err := e.metrics.Registry.Gather()
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType(string(expfmt.FmtText))
	ctx.SetStatusCode(fasthttp.StatusOK)

	enc := expfmt.NewEncoder(ctx, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			break
		}
	}
}
