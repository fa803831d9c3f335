package logging

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
)

// remoteRecord is the wire shape shipped to the ingester's log-receiving
// port: a flat, timestamped, hostname-tagged record, analogous to a syslog
// line but JSON-encoded since the ingester speaks DeepFlow's own protocol
// rather than RFC 5424.
type remoteRecord struct {
	Timestamp int64             `json:"timestamp"`
	Hostname  string            `json:"hostname"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// remoteHook is a logrus.Hook that ships records above a configured level to
// the ingester over UDP. A send failure is swallowed: remote logging is best
// effort and must never block or fail the local log write it is attached to.
type remoteHook struct {
	conn     net.Conn
	minLevel logrus.Level
	hostname string
}

func newRemoteHook(cfg config.LogConfig) (*remoteHook, error) {
	minLevel, err := logrus.ParseLevel(strings.ToLower(cfg.RemoteLevel))
	if err != nil {
		minLevel = logrus.WarnLevel
	}

	conn, err := net.Dial("udp", cfg.IngesterAddr)
	if err != nil {
		return nil, fmt.Errorf("dial ingester %s: %w", cfg.IngesterAddr, err)
	}

	return &remoteHook{
		conn:     conn,
		minLevel: minLevel,
		hostname: cfg.RemoteHostname,
	}, nil
}

func (h *remoteHook) Levels() []logrus.Level {
	return logrus.AllLevels[:h.minLevel+1]
}

func (h *remoteHook) Fire(entry *logrus.Entry) error {
	fields := make(map[string]string, len(entry.Data))
	for k, v := range entry.Data {
		fields[k] = fmt.Sprintf("%v", v)
	}

	rec := remoteRecord{
		Timestamp: entry.Time.UnixMilli(),
		Hostname:  h.hostname,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Fields:    fields,
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil
	}

	_ = h.conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
	_, _ = h.conn.Write(payload)
	return nil
}
