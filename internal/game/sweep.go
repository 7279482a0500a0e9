package game

import (
	"context"
	"errors"
	"time"

	"github.com/npezzotti/go-pairup/internal/store"
	"github.com/npezzotti/go-pairup/internal/types"
)

// SweepInactive removes every active user whose last heartbeat is older
// than the inactivity timeout: kick marker, registry record, room
// membership with master handover, and room deletion once empty. The
// sweep interleaves with request handlers, so a record or room that has
// vanished underneath it is a no-op, not a fault.
func (g *GameServer) SweepInactive(ctx context.Context) (int, error) {
	records, err := g.users.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-g.InactivityTimeout)
	var swept int
	for _, record := range records {
		if record.LastActivity.After(cutoff) {
			continue
		}

		if err := g.markers.SetUserKickMarker(ctx, record.Username, types.KickInactivity, ""); err != nil {
			return swept, err
		}
		if err := g.users.Delete(ctx, record.Username); err != nil {
			return swept, err
		}
		g.stats.Decr(StatActiveUsers)
		g.stats.Incr(StatUsersSweptTimeout)

		room, err := g.rooms.GetById(ctx, record.RoomId)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				swept++
				continue
			}
			return swept, err
		}

		if err := g.removeFromRoom(ctx, room, record.UserId, types.RoomDeleteInactivity); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				swept++
				continue
			}
			return swept, err
		}

		g.log.Printf("swept inactive user %q from room %q", record.Username, record.RoomId)
		swept++
	}

	return swept, nil
}

// RunSweeper drives SweepInactive on a fixed interval until ctx is
// canceled.
func (g *GameServer) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := g.SweepInactive(ctx); err != nil {
				g.log.Println("inactivity sweep:", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
