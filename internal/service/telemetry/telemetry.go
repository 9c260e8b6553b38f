package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	natscomponent "github.com/pwa-builder/PWABuilder-sub006/internal/component/nats"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

const (
	PackageEvent        = "AndroidPackageEvent"
	PackageFailureEvent = "AndroidPackageFailureEvent"
)

// Event is the payload published for every packaging outcome. It carries only
// the fields of model.AnalyticsInfo, never signing material.
type Event struct {
	Name        string            `json:"name"`
	OperationID string            `json:"operationId,omitempty"`
	Properties  map[string]string `json:"properties"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Telemetry records package outcomes. Implementations never block the
// caller on delivery and never return errors.
type Telemetry interface {
	Track(ctx context.Context, info model.AnalyticsInfo, errMsg string, success bool)
	ShutDown(ctx context.Context)
}

// NewEvent builds the event for one outcome. errMsg is only included for
// failures.
func NewEvent(info model.AnalyticsInfo, errMsg string, success bool, now time.Time) Event {
	props := map[string]string{
		"name":              info.Name,
		"url":               info.URL,
		"packageId":         info.PackageID,
		"platformId":        info.PlatformID,
		"platformIdVersion": info.PlatformIDVersion,
		"referrer":          info.Referrer,
	}
	name := PackageEvent
	if !success {
		name = PackageFailureEvent
		props["error"] = errMsg
	}
	return Event{
		Name:        name,
		OperationID: info.CorrelationID,
		Properties:  props,
		Timestamp:   now.UTC(),
	}
}

// InfoFromOptions derives the analytics fields reported for a package. The
// url falls back to the host when no pwaUrl was supplied.
func InfoFromOptions(opts model.PackagingOptions) model.AnalyticsInfo {
	info := model.AnalyticsInfo{
		URL:       opts.PwaURL,
		PackageID: opts.PackageID,
		Name:      opts.Name,
	}
	if info.URL == "" {
		info.URL = opts.Host
	}
	if a := opts.AnalyticsInfo; a != nil {
		info.PlatformID = a.PlatformID
		info.PlatformIDVersion = a.PlatformIDVersion
		info.CorrelationID = a.CorrelationID
		info.Referrer = a.Referrer
	}
	return info
}

// NatsTelemetry publishes events as JSON on a NATS subject.
type NatsTelemetry struct {
	conn    *nats.Conn
	subject string
}

var (
	nt        *NatsTelemetry
	once      sync.Once
	initError error
)

func NewNatsTelemetry() (Telemetry, error) {
	once.Do(func() {
		cfg, err := config.GetNatsConfig()
		if err != nil {
			initError = err
			return
		}
		conn, err := natscomponent.NewNatsConnection()
		if err != nil {
			initError = fmt.Errorf("failed to connect to NATS: %w", err)
			return
		}
		nt = NewNatsTelemetryWithConn(conn, cfg.SUBJECT)
	})
	if initError != nil {
		return nil, initError
	}
	return nt, nil
}

func NewNatsTelemetryWithConn(conn *nats.Conn, subject string) *NatsTelemetry {
	return &NatsTelemetry{conn: conn, subject: subject}
}

func (t *NatsTelemetry) Track(ctx context.Context, info model.AnalyticsInfo, errMsg string, success bool) {
	ev := NewEvent(info, errMsg, success, time.Now())
	b, err := json.Marshal(ev)
	if err != nil {
		logger.Log.Error().Err(err).Msg("unable to encode telemetry event")
		return
	}
	if err := t.conn.Publish(t.subject, b); err != nil {
		logger.Log.Warn().Err(err).Str("event", ev.Name).Msg("unable to publish telemetry event")
	}
}

func (t *NatsTelemetry) ShutDown(ctx context.Context) {
	if err := t.conn.Drain(); err != nil {
		logger.Log.Warn().Err(err).Msg("NATS drain failed")
	}
}

// Noop drops every event.
type Noop struct{}

func (Noop) Track(ctx context.Context, info model.AnalyticsInfo, errMsg string, success bool) {}
func (Noop) ShutDown(ctx context.Context)                                                     {}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Track(ctx context.Context, info model.AnalyticsInfo, errMsg string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEvent(info, errMsg, success, time.Now()))
}

func (r *Recorder) ShutDown(ctx context.Context) {}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
