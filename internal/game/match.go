package game

import (
	"context"
	"time"

	"github.com/npezzotti/go-pairup/internal/types"
)

// resolveSelections partitions the room's voters into mutual pairs and
// unmatched in a single pass over the selections in insertion order.
// Reciprocity is symmetric, so processing order never changes which
// pairs form; it only decides which of two mutually-selecting voters is
// labeled User1, with insertion order breaking the tie.
func resolveSelections(room *types.Room, now time.Time) (*types.MatchResult, []string) {
	result := &types.MatchResult{CompletedAt: now}
	processed := make(map[string]bool, len(room.Selections))
	var matched []string

	for _, sel := range room.Selections {
		if processed[sel.VoterId] {
			continue
		}
		processed[sel.VoterId] = true

		voter, ok := room.User(sel.VoterId)
		if !ok {
			// Stale vote from a member already removed. Benign.
			continue
		}

		if !processed[sel.ChosenId] && sel.ChosenId != sel.VoterId {
			if choice, ok := room.Selection(sel.ChosenId); ok && choice == sel.VoterId {
				if target, ok := room.User(sel.ChosenId); ok {
					processed[sel.ChosenId] = true
					result.Pairs = append(result.Pairs, types.Pair{User1: voter, User2: target})
					matched = append(matched, voter.Id, target.Id)
					continue
				}
			}
		}

		result.Unmatched = append(result.Unmatched, voter)
	}

	return result, matched
}

// finishRound resolves the current selections, removes matched users
// from the room's live sets (a successful match exits the pool) and
// advances the room to completed. The result snapshot keeps the removed
// users' data for that round's display. A room left with no members is
// deleted outright.
func (g *GameServer) finishRound(ctx context.Context, room *types.Room) error {
	result, matched := resolveSelections(room, time.Now().UTC())

	for _, id := range matched {
		user, ok := room.User(id)
		if !ok {
			continue
		}
		if err := g.users.Delete(ctx, user.Username); err != nil {
			return err
		}
		g.stats.Decr(StatActiveUsers)
		room.RemoveUser(id)
		room.RemoveSelection(id)
	}

	room.GameState = types.GameStateCompleted
	room.MatchResult = result
	g.stats.Incr(StatMatchesCompleted)
	g.log.Printf("room %q resolved: %d pairs, %d unmatched", room.Id, len(result.Pairs), len(result.Unmatched))

	if len(room.Users) == 0 {
		if err := g.markers.SetRoomDeleteMarker(ctx, room.Id, types.RoomDeleteEmpty); err != nil {
			return err
		}
		if err := g.rooms.Delete(ctx, room.Id); err != nil {
			return err
		}
		g.stats.Decr(StatActiveRooms)
		return nil
	}

	return g.rooms.Save(ctx, room)
}
