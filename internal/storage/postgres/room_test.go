package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duoquiz/duoquiz/internal/game/room"
	"github.com/duoquiz/duoquiz/internal/storage/postgres"
	"github.com/duoquiz/duoquiz/internal/testutil"
)

func newRepo(t *testing.T) *postgres.RoomRepository {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return postgres.NewRoomRepository(pc.RawPool)
}

func sampleState(roomID string) *room.State {
	st := room.NewState(roomID, []room.Question{"q0", "q1", "q2"})
	st.Players[room.SlotPlayer1] = &room.Player{Name: "Alice", HasAnswered: true, CurrentAnswer: "cats"}
	st.Players[room.SlotPlayer2] = &room.Player{Name: "Bob"}
	st.CurrentQuestion = 1
	st.SetHistory(0, room.HistoryEntry{Player1: "a1", Player2: "b1"})
	st.Phase = room.PhaseAnswering
	return st
}

func TestRoomRepository_SaveLoadRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	want := sampleState("RT000001")
	require.NoError(t, repo.Save(ctx, "RT000001", want))

	got, err := repo.Load(ctx, "RT000001")
	require.NoError(t, err)

	assert.Equal(t, want.RoomID, got.RoomID)
	assert.Equal(t, want.Questions, got.Questions)
	assert.Equal(t, want.CurrentQuestion, got.CurrentQuestion)
	assert.Equal(t, want.Phase, got.Phase)
	assert.Equal(t, want.History, got.History)
	require.NotNil(t, got.Players[room.SlotPlayer1])
	assert.Equal(t, "Alice", got.Players[room.SlotPlayer1].Name)
	assert.Equal(t, "cats", got.Players[room.SlotPlayer1].CurrentAnswer)
	assert.True(t, got.Players[room.SlotPlayer1].HasAnswered)
}

func TestRoomRepository_SaveOverwrites(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	first := sampleState("OW000001")
	require.NoError(t, repo.Save(ctx, "OW000001", first))

	second := first.Clone()
	second.CurrentQuestion = 2
	second.SetHistory(1, room.HistoryEntry{Player1: "a2", Player2: "b2"})
	require.NoError(t, repo.Save(ctx, "OW000001", second))

	got, err := repo.Load(ctx, "OW000001")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentQuestion)
	require.Len(t, got.History, 2)
}

func TestRoomRepository_LoadMissing(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.Load(context.Background(), "NOPE0000")
	assert.ErrorIs(t, err, room.ErrStateNotFound)
}

func TestRoomRepository_RoomsAreIsolated(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "ISO00001", sampleState("ISO00001")))
	require.NoError(t, repo.Save(ctx, "ISO00002", room.NewState("ISO00002", []room.Question{"x"})))

	got, err := repo.Load(ctx, "ISO00002")
	require.NoError(t, err)
	assert.Equal(t, "ISO00002", got.RoomID)
	assert.Len(t, got.Questions, 1)
	assert.Nil(t, got.Players[room.SlotPlayer1])
}

func TestRoomRepository_SessionIDsNeverPersisted(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	st := sampleState("SESS0001")
	st.Players[room.SlotPlayer1].SessionID = "live-connection"
	require.NoError(t, repo.Save(ctx, "SESS0001", st))

	got, err := repo.Load(ctx, "SESS0001")
	require.NoError(t, err)
	assert.Empty(t, got.Players[room.SlotPlayer1].SessionID)
}
