package nats

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
)

var (
	nc        *nats.Conn
	once      sync.Once
	initError error
)

// NewNatsConnection returns the process wide NATS connection. Reconnects are
// unbounded.
func NewNatsConnection() (*nats.Conn, error) {
	once.Do(func() {
		cfg, err := config.GetNatsConfig()
		if err != nil {
			initError = err
			return
		}
		nc, err = nats.Connect(cfg.URL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(1*time.Second),
			nats.Timeout(5*time.Second),
			nats.Name("pwabuilder-cloudapk"),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
			}),
			nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
				logger.Log.Error().Err(err).Msg("NATS disconnected")
			}),
			nats.ClosedHandler(func(c *nats.Conn) {
				logger.Log.Warn().Msg("NATS closed")
			}),
		)
		if err != nil {
			initError = err
			return
		}
	})
	return nc, initError
}

func ResetNatsConnection() {
	nc = nil
	once = sync.Once{}
	initError = nil
}
