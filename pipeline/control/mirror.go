package control

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/alumet-go/alumet/internal/alog"
)

// MirrorConfig configures the optional NATS event mirror that republishes
// control-plane activity for external observers, adapted from the
// teacher's pkg/nats/client.go connection-option wiring. Disabled by
// default: a pipeline that never sets Address never imports a NATS
// dependency at runtime.
type MirrorConfig struct {
	Address       string `json:"address"`
	Subject       string `json:"subject"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFilePath string `json:"creds_file_path,omitempty"`
}

// EventMirror publishes a one-line status message to NATS every time a
// control request has been applied. It is best-effort: publish failures
// are logged, never returned to the caller, since losing an observability
// mirror message must not affect the pipeline's control plane.
type EventMirror struct {
	conn    *nats.Conn
	subject string
}

// NewEventMirror connects to cfg.Address and returns a mirror publishing
// to cfg.Subject. A zero-value MirrorConfig (empty Address) is not valid
// here; callers should only invoke NewEventMirror when the mirror has
// been explicitly enabled in configuration.
func NewEventMirror(cfg MirrorConfig) (*EventMirror, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("control: NATS mirror address is required")
	}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				alog.Warnf("control: NATS mirror disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			alog.Infof("control: NATS mirror reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			alog.Errorf("control: NATS mirror error: %v", err)
		}),
	)

	conn, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("control: NATS mirror connect failed: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "alumet.control.requests"
	}
	return &EventMirror{conn: conn, subject: subject}, nil
}

// publishRequestApplied mirrors the outcome of one control request.
func (m *EventMirror) publishRequestApplied(applyErr error) {
	payload := "ok"
	if applyErr != nil {
		payload = fmt.Sprintf("error: %v", applyErr)
	}
	if err := m.conn.Publish(m.subject, []byte(payload)); err != nil {
		alog.Warnf("control: failed to publish to NATS mirror: %v", err)
	}
}

// Close drains and closes the underlying NATS connection.
func (m *EventMirror) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
