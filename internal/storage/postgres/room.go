package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duoquiz/duoquiz/internal/game/room"
)

// RoomRepository persists full room state as a single JSONB blob per
// room. It implements room.Store.
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// Load retrieves the state persisted for roomID.
//
// Precondition: roomID must be non-empty.
// Postcondition: Returns the deserialized state, or room.ErrStateNotFound
// if the room has never been saved.
func (r *RoomRepository) Load(ctx context.Context, roomID string) (*room.State, error) {
	var blob []byte
	err := r.db.QueryRow(ctx,
		`SELECT state FROM rooms WHERE id = $1`,
		roomID,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, room.ErrStateNotFound
		}
		return nil, fmt.Errorf("querying room %s: %w", roomID, err)
	}

	var st room.State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("decoding room %s state: %w", roomID, err)
	}
	return &st, nil
}

// Save persists the full state under roomID, replacing any prior value.
//
// Precondition: roomID must be non-empty; state must be non-nil.
// Postcondition: A subsequent Load returns an identical state.
func (r *RoomRepository) Save(ctx context.Context, roomID string, state *room.State) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding room %s state: %w", roomID, err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO rooms (id, state)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		roomID, blob,
	)
	if err != nil {
		return fmt.Errorf("upserting room %s: %w", roomID, err)
	}
	return nil
}
