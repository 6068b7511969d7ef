// Package room implements the per-room game actor: the authoritative
// owner of one quiz session's state. All mutations for a room flow
// through a single event queue; see Actor.
package room

import (
	"errors"
	"fmt"
)

// Slot identifies one of the two fixed player positions in a room.
type Slot string

// The two player slots. Slots are assigned in join order and are never
// reassigned while the prior holder remains known to the room.
const (
	SlotPlayer1 Slot = "player1"
	SlotPlayer2 Slot = "player2"
)

// Phase describes where a room is in its lifecycle.
type Phase string

const (
	// PhaseSetup: fewer than two players have joined.
	PhaseSetup Phase = "setup"
	// PhaseAnswering: both players joined, awaiting answers for the current question.
	PhaseAnswering Phase = "answering"
	// PhaseRevealing: both players answered the current question.
	PhaseRevealing Phase = "revealing"
	// PhaseFinal: the game is over (last reveal acknowledged or both players ended).
	PhaseFinal Phase = "final"
)

// Question is one opaque quiz prompt.
type Question string

// Player is one participant's durable record within a room. Player
// identity and progress outlive the websocket connection; only
// SessionID is connection-scoped.
type Player struct {
	Name           string `json:"name"`
	CurrentAnswer  string `json:"answer,omitempty"`
	HasAnswered    bool   `json:"hasAnswered"`
	HasClickedNext bool   `json:"hasClickedNext"`
	HasEnded       bool   `json:"hasEnded"`

	// SessionID is the live connection currently bound to this slot,
	// or empty after a disconnect. Never persisted.
	SessionID string `json:"-"`
}

// HistoryEntry is the pair of answers both players submitted for one
// question. Immutable once written.
type HistoryEntry struct {
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

// State is the full durable state of one room. It round-trips through
// JSON for persistence and is broadcast verbatim as the gameUpdate
// payload.
type State struct {
	RoomID          string           `json:"gameId"`
	Players         map[Slot]*Player `json:"players"`
	Questions       []Question       `json:"questions"`
	CurrentQuestion int              `json:"currentQuestion"`
	History         []*HistoryEntry  `json:"history"`
	Phase           Phase            `json:"phase"`
}

// Business-rule violations surfaced to the offending session only.
var (
	ErrGameAlreadyCreated = errors.New("game already created")
	ErrGameNotCreated     = errors.New("game has not been created yet")
	ErrGameFull           = errors.New("game is already full")
	ErrNameTaken          = errors.New("that name is already taken in this game")
	ErrNameRequired       = errors.New("a player name is required")
	ErrNotJoined          = errors.New("you have not joined this game")
	ErrNoSuchPlayer       = errors.New("no player with that name in this game")
	ErrStillConnected     = errors.New("that player is still connected")
)

// ErrStateNotFound is returned by Store.Load when no state has ever
// been persisted for a room.
var ErrStateNotFound = errors.New("room state not found")

// NewState creates an empty room with the given shuffled question deck.
//
// Precondition: roomID must be non-empty; questions must be non-empty.
// Postcondition: Returns a State in PhaseSetup with no players and no history.
func NewState(roomID string, questions []Question) *State {
	return &State{
		RoomID:    roomID,
		Players:   make(map[Slot]*Player),
		Questions: questions,
		Phase:     PhaseSetup,
	}
}

// Clone returns a deep copy of the state, including connection bindings.
func (s *State) Clone() *State {
	c := &State{
		RoomID:          s.RoomID,
		Players:         make(map[Slot]*Player, len(s.Players)),
		Questions:       append([]Question(nil), s.Questions...),
		CurrentQuestion: s.CurrentQuestion,
		Phase:           s.Phase,
	}
	for slot, p := range s.Players {
		cp := *p
		c.Players[slot] = &cp
	}
	if s.History != nil {
		c.History = make([]*HistoryEntry, len(s.History))
		for i, h := range s.History {
			if h != nil {
				ch := *h
				c.History[i] = &ch
			}
		}
	}
	return c
}

// BySession returns the slot and player currently bound to the given session.
func (s *State) BySession(sessionID string) (Slot, *Player, bool) {
	if sessionID == "" {
		return "", nil, false
	}
	for _, slot := range []Slot{SlotPlayer1, SlotPlayer2} {
		if p := s.Players[slot]; p != nil && p.SessionID == sessionID {
			return slot, p, true
		}
	}
	return "", nil, false
}

// ByName returns the slot and player with the given name.
func (s *State) ByName(name string) (Slot, *Player, bool) {
	for _, slot := range []Slot{SlotPlayer1, SlotPlayer2} {
		if p := s.Players[slot]; p != nil && p.Name == name {
			return slot, p, true
		}
	}
	return "", nil, false
}

// BothPresent reports whether both player slots are occupied.
func (s *State) BothPresent() bool {
	return s.Players[SlotPlayer1] != nil && s.Players[SlotPlayer2] != nil
}

// AllAnswered reports whether every present player has answered the
// current question. False while either slot is empty.
func (s *State) AllAnswered() bool {
	if !s.BothPresent() {
		return false
	}
	return s.Players[SlotPlayer1].HasAnswered && s.Players[SlotPlayer2].HasAnswered
}

// AllClickedNext reports whether both players have asked to advance.
func (s *State) AllClickedNext() bool {
	if !s.BothPresent() {
		return false
	}
	return s.Players[SlotPlayer1].HasClickedNext && s.Players[SlotPlayer2].HasClickedNext
}

// AllEnded reports whether both players have explicitly ended the game.
func (s *State) AllEnded() bool {
	if !s.BothPresent() {
		return false
	}
	return s.Players[SlotPlayer1].HasEnded && s.Players[SlotPlayer2].HasEnded
}

// LastQuestion reports whether the current question is the final one.
func (s *State) LastQuestion() bool {
	return s.CurrentQuestion >= len(s.Questions)-1
}

// SetHistory records the answer pair for question index i, growing the
// history slice with nil gaps as needed.
//
// Precondition: 0 <= i < len(s.Questions).
// Postcondition: s.History[i] is set and len(s.History) <= len(s.Questions).
func (s *State) SetHistory(i int, e HistoryEntry) {
	if i < 0 || i >= len(s.Questions) {
		panic(fmt.Sprintf("room: history index %d out of range [0,%d)", i, len(s.Questions)))
	}
	for len(s.History) <= i {
		s.History = append(s.History, nil)
	}
	s.History[i] = &e
}

// ResetRound clears both players' answers and answered flags without
// touching the question index or history.
func (s *State) ResetRound() {
	for _, p := range s.Players {
		p.CurrentAnswer = ""
		p.HasAnswered = false
	}
}

// ResetGame rewinds the room to a fresh game with the same players and
// question deck: index 0, empty history, all per-round flags cleared.
func (s *State) ResetGame() {
	s.CurrentQuestion = 0
	s.History = nil
	for _, p := range s.Players {
		p.CurrentAnswer = ""
		p.HasAnswered = false
		p.HasClickedNext = false
		p.HasEnded = false
	}
	s.Phase = PhaseSetup
}

// Validate checks the structural invariants that must hold after every
// transition. Used by tests and as a load-time sanity check.
func (s *State) Validate() error {
	if len(s.Players) > 2 {
		return fmt.Errorf("room %s: %d players, want at most 2", s.RoomID, len(s.Players))
	}
	for slot := range s.Players {
		if slot != SlotPlayer1 && slot != SlotPlayer2 {
			return fmt.Errorf("room %s: unknown slot %q", s.RoomID, slot)
		}
	}
	if p1, p2 := s.Players[SlotPlayer1], s.Players[SlotPlayer2]; p1 != nil && p2 != nil {
		if p1.Name == p2.Name {
			return fmt.Errorf("room %s: duplicate player name %q", s.RoomID, p1.Name)
		}
		if p1.SessionID != "" && p1.SessionID == p2.SessionID {
			return fmt.Errorf("room %s: session %s bound to both slots", s.RoomID, p1.SessionID)
		}
	}
	if len(s.Questions) > 0 && (s.CurrentQuestion < 0 || s.CurrentQuestion >= len(s.Questions)) {
		return fmt.Errorf("room %s: question index %d out of range [0,%d)", s.RoomID, s.CurrentQuestion, len(s.Questions))
	}
	if len(s.History) > len(s.Questions) {
		return fmt.Errorf("room %s: history longer than question deck (%d > %d)", s.RoomID, len(s.History), len(s.Questions))
	}
	return nil
}
