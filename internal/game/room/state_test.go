package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func twoPlayerState() *State {
	st := NewState("ROOM1234", []Question{"q0", "q1", "q2"})
	st.Players[SlotPlayer1] = &Player{Name: "Alice", SessionID: "s1"}
	st.Players[SlotPlayer2] = &Player{Name: "Bob", SessionID: "s2"}
	st.Phase = PhaseAnswering
	return st
}

func TestNewState(t *testing.T) {
	st := NewState("ROOM1234", []Question{"q0", "q1"})
	assert.Equal(t, "ROOM1234", st.RoomID)
	assert.Equal(t, PhaseSetup, st.Phase)
	assert.Empty(t, st.Players)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.CurrentQuestion)
	assert.NoError(t, st.Validate())
}

func TestBySession(t *testing.T) {
	st := twoPlayerState()

	slot, p, ok := st.BySession("s2")
	require.True(t, ok)
	assert.Equal(t, SlotPlayer2, slot)
	assert.Equal(t, "Bob", p.Name)

	_, _, ok = st.BySession("nope")
	assert.False(t, ok)

	_, _, ok = st.BySession("")
	assert.False(t, ok, "empty session id must never match a disconnected player")
}

func TestBySession_DisconnectedPlayerNotMatched(t *testing.T) {
	st := twoPlayerState()
	st.Players[SlotPlayer1].SessionID = ""

	_, _, ok := st.BySession("")
	assert.False(t, ok)
}

func TestByName(t *testing.T) {
	st := twoPlayerState()

	slot, p, ok := st.ByName("Alice")
	require.True(t, ok)
	assert.Equal(t, SlotPlayer1, slot)
	assert.Equal(t, "s1", p.SessionID)

	_, _, ok = st.ByName("Carol")
	assert.False(t, ok)
}

func TestBarrierHelpers(t *testing.T) {
	st := twoPlayerState()
	assert.False(t, st.AllAnswered())
	assert.False(t, st.AllClickedNext())
	assert.False(t, st.AllEnded())

	st.Players[SlotPlayer1].HasAnswered = true
	assert.False(t, st.AllAnswered(), "one answer must not satisfy the barrier")
	st.Players[SlotPlayer2].HasAnswered = true
	assert.True(t, st.AllAnswered())
}

func TestBarrierHelpers_SinglePlayer(t *testing.T) {
	st := NewState("R", []Question{"q0"})
	st.Players[SlotPlayer1] = &Player{Name: "Alice", HasAnswered: true, HasClickedNext: true, HasEnded: true}

	assert.False(t, st.AllAnswered())
	assert.False(t, st.AllClickedNext())
	assert.False(t, st.AllEnded())
}

func TestSetHistory_GrowsWithGaps(t *testing.T) {
	st := twoPlayerState()
	st.SetHistory(2, HistoryEntry{Player1: "a", Player2: "b"})

	require.Len(t, st.History, 3)
	assert.Nil(t, st.History[0])
	assert.Nil(t, st.History[1])
	assert.Equal(t, &HistoryEntry{Player1: "a", Player2: "b"}, st.History[2])
	assert.NoError(t, st.Validate())
}

func TestSetHistory_OutOfRangePanics(t *testing.T) {
	st := twoPlayerState()
	assert.Panics(t, func() { st.SetHistory(3, HistoryEntry{}) })
	assert.Panics(t, func() { st.SetHistory(-1, HistoryEntry{}) })
}

func TestResetRound(t *testing.T) {
	st := twoPlayerState()
	st.Players[SlotPlayer1].CurrentAnswer = "a"
	st.Players[SlotPlayer1].HasAnswered = true
	st.Players[SlotPlayer2].HasClickedNext = true
	st.CurrentQuestion = 1

	st.ResetRound()

	for _, p := range st.Players {
		assert.Empty(t, p.CurrentAnswer)
		assert.False(t, p.HasAnswered)
	}
	assert.True(t, st.Players[SlotPlayer2].HasClickedNext, "ResetRound must not touch next flags")
	assert.Equal(t, 1, st.CurrentQuestion)
}

func TestResetGame(t *testing.T) {
	st := twoPlayerState()
	st.CurrentQuestion = 2
	st.SetHistory(0, HistoryEntry{Player1: "a", Player2: "b"})
	st.Players[SlotPlayer1].HasEnded = true
	st.Players[SlotPlayer2].HasClickedNext = true
	st.Phase = PhaseFinal

	st.ResetGame()

	assert.Equal(t, 0, st.CurrentQuestion)
	assert.Empty(t, st.History)
	assert.Equal(t, PhaseSetup, st.Phase)
	for _, p := range st.Players {
		assert.Empty(t, p.CurrentAnswer)
		assert.False(t, p.HasAnswered)
		assert.False(t, p.HasClickedNext)
		assert.False(t, p.HasEnded)
	}
	assert.Equal(t, "Alice", st.Players[SlotPlayer1].Name, "players survive a restart")
}

func TestClone_Independent(t *testing.T) {
	st := twoPlayerState()
	st.SetHistory(0, HistoryEntry{Player1: "a", Player2: "b"})

	c := st.Clone()
	c.Players[SlotPlayer1].Name = "Mallory"
	c.History[0].Player1 = "x"
	c.Questions[0] = "tampered"
	c.CurrentQuestion = 2

	assert.Equal(t, "Alice", st.Players[SlotPlayer1].Name)
	assert.Equal(t, "a", st.History[0].Player1)
	assert.Equal(t, Question("q0"), st.Questions[0])
	assert.Equal(t, 0, st.CurrentQuestion)
}

func TestClone_KeepsSessionBindings(t *testing.T) {
	st := twoPlayerState()
	c := st.Clone()
	assert.Equal(t, "s1", c.Players[SlotPlayer1].SessionID)
	assert.Equal(t, "s2", c.Players[SlotPlayer2].SessionID)
}

func TestValidate_Violations(t *testing.T) {
	st := twoPlayerState()
	st.Players[SlotPlayer2].Name = "Alice"
	assert.Error(t, st.Validate(), "duplicate names must fail validation")

	st = twoPlayerState()
	st.Players[SlotPlayer2].SessionID = "s1"
	assert.Error(t, st.Validate(), "one session bound to both slots must fail validation")

	st = twoPlayerState()
	st.CurrentQuestion = 3
	assert.Error(t, st.Validate())

	st = twoPlayerState()
	st.Players["player3"] = &Player{Name: "Carol"}
	assert.Error(t, st.Validate())
}

// Property: persisting and reloading a room yields an identical room.
// SessionID is connection-scoped and deliberately excluded.
func TestPropertyStateJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "questions")
		qs := make([]Question, n)
		for i := range qs {
			qs[i] = Question(rapid.StringMatching(`[a-z ?]{1,40}`).Draw(t, "q"))
		}
		st := NewState(rapid.StringMatching(`[A-Za-z0-9]{8}`).Draw(t, "room"), qs)
		st.CurrentQuestion = rapid.IntRange(0, n-1).Draw(t, "index")

		names := []string{"Alice", "Bob"}
		for i, slot := range []Slot{SlotPlayer1, SlotPlayer2} {
			if rapid.Bool().Draw(t, "present") {
				st.Players[slot] = &Player{
					Name:           names[i],
					CurrentAnswer:  rapid.StringMatching(`[a-z]{0,10}`).Draw(t, "answer"),
					HasAnswered:    rapid.Bool().Draw(t, "answered"),
					HasClickedNext: rapid.Bool().Draw(t, "next"),
					HasEnded:       rapid.Bool().Draw(t, "ended"),
				}
			}
		}
		for i := 0; i < st.CurrentQuestion; i++ {
			if rapid.Bool().Draw(t, "answered_round") {
				st.SetHistory(i, HistoryEntry{
					Player1: rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "a1"),
					Player2: rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "a2"),
				})
			}
		}

		blob, err := json.Marshal(st)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got State
		if err := json.Unmarshal(blob, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if got.RoomID != st.RoomID || got.CurrentQuestion != st.CurrentQuestion || got.Phase != st.Phase {
			t.Fatalf("scalar fields differ after round trip")
		}
		if len(got.Questions) != len(st.Questions) {
			t.Fatalf("questions differ after round trip")
		}
		for slot, p := range st.Players {
			gp := got.Players[slot]
			if gp == nil {
				t.Fatalf("slot %s lost in round trip", slot)
			}
			if gp.Name != p.Name || gp.CurrentAnswer != p.CurrentAnswer ||
				gp.HasAnswered != p.HasAnswered || gp.HasClickedNext != p.HasClickedNext ||
				gp.HasEnded != p.HasEnded {
				t.Fatalf("player %s differs after round trip", slot)
			}
		}
		for i, h := range st.History {
			if (h == nil) != (got.History[i] == nil) {
				t.Fatalf("history %d presence differs", i)
			}
			if h != nil && *h != *got.History[i] {
				t.Fatalf("history %d differs", i)
			}
		}
	})
}
