package external

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
)

// MetricTrunk is one of the four auxiliary sender trunks MetricServer fans
// incoming pushes into.
type MetricTrunk func(body []byte)

// MetricServer is the HTTP endpoint external agents/sidecars push metrics
// to; it fans each push body into the trunk matching the request path
// (/otel, /prometheus, /telegraf, /otel/compressed) without parsing the
// payload itself — serialization belongs to whichever wire format the
// matching UniformSender speaks.
type MetricServer struct {
	addr   string
	server *http.Server

	otel           MetricTrunk
	prometheus     MetricTrunk
	telegraf       MetricTrunk
	otelCompressed MetricTrunk
}

func NewMetricServer(addr string, otel, prometheus, telegraf, otelCompressed MetricTrunk) *MetricServer {
	return &MetricServer{
		addr:           addr,
		otel:           otel,
		prometheus:     prometheus,
		telegraf:       telegraf,
		otelCompressed: otelCompressed,
	}
}

func (m *MetricServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/otel", m.handler(m.otel))
	mux.HandleFunc("/prometheus", m.handler(m.prometheus))
	mux.HandleFunc("/telegraf", m.handler(m.telegraf))
	mux.HandleFunc("/otel/compressed", m.handler(m.otelCompressed))

	m.server = &http.Server{
		Addr:         m.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logrus.WithField("addr", m.addr).Info("metric server starting")
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metric server error")
		}
	}()
	return nil
}

func (m *MetricServer) Stop() error {
	if m.server == nil {
		return nil
	}
	logrus.Info("metric server stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metric server shutdown: %w", err)
	}
	return nil
}

func (m *MetricServer) OnConfigChange(snapshot *config.ChangedConfig) {}

func (m *MetricServer) handler(trunk MetricTrunk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trunk == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		trunk(body)
		w.WriteHeader(http.StatusAccepted)
	}
}
