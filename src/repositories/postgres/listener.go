package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/assafrot/api-keys-app/src/database"
	"github.com/assafrot/api-keys-app/src/logging"
	"github.com/assafrot/api-keys-app/src/models"
)

const listenRetryDelay = 2 * time.Second

// Subscribe starts the NOTIFY listener on first use and registers ownerID
// with the hub. The channel closes when ctx ends or the store is closed.
func (s *Store) Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, error) {
	s.listenOnce.Do(func() {
		listenCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.listen(listenCtx)
	})
	return s.hub.Subscribe(ctx, ownerID), nil
}

// listen holds a dedicated connection in LISTEN and republishes every
// notification on the hub, reconnecting after failures
func (s *Store) listen(ctx context.Context) {
	defer close(s.done)
	logger := logging.NewLogger("listener")

	for {
		err := s.listenConn(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Warn().Err(err).Dur("retry_in", listenRetryDelay).Msg("change listener disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (s *Store) listenConn(ctx context.Context) error {
	logger := logging.NewLogger("listener")

	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return err
	}
	// A connection left in LISTEN must not go back to the pool
	defer func() {
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+database.ChangeChannel); err != nil {
		return err
	}
	logger.Info().Str("channel", database.ChangeChannel).Msg("listening for api key changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := decodeNotification(n.Payload)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping malformed change notification")
			continue
		}
		s.hub.Publish(ev)
	}
}

func decodeNotification(payload string) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}
