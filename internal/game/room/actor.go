package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duoquiz/duoquiz/internal/game/session"
)

// Store is the durable persistence contract for room state.
type Store interface {
	// Load retrieves the state persisted for roomID, or ErrStateNotFound
	// if the room has never been saved.
	Load(ctx context.Context, roomID string) (*State, error)
	// Save persists the full state under roomID, replacing any prior value.
	Save(ctx context.Context, roomID string, state *State) error
}

// Kind discriminates inbound room events.
type Kind int

const (
	// KindConnect: a session attached to the room and needs a catch-up snapshot.
	KindConnect Kind = iota
	// KindDisconnect: a session's transport closed.
	KindDisconnect
	KindCreateGame
	KindJoinGame
	// KindRejoinGame rebinds a session to a disconnected player's slot by name.
	KindRejoinGame
	KindAnswer
	KindNextQuestion
	KindPrevQuestion
	KindRestartQuestion
	KindEndGame
	KindRestartGame
	// kindReveal is the internal deferred reveal fired by the answer barrier.
	kindReveal
)

// Event is one inbound occurrence for a room. Name is set for create,
// join, and rejoin events; Answer for answer events.
type Event struct {
	Kind      Kind
	SessionID string
	Name      string
	Answer    string

	// reveal bookkeeping, set only for kindReveal
	generation uint64
	question   int
}

// Config carries the collaborators an Actor needs.
type Config struct {
	// RoomID is the public room code. The actor never inspects how it
	// was located; the registry owns that mapping.
	RoomID string
	// Store is the durable store; required.
	Store Store
	// Sessions is the live-connection set for this room; required.
	Sessions *session.Manager
	// Logger is required.
	Logger *zap.Logger
	// NewDeck produces a freshly shuffled question deck for rooms with
	// no persisted state; required.
	NewDeck func() []Question
	// RevealDelay is the pause between the answer barrier and the
	// reveal screen push. Zero means fire immediately.
	RevealDelay time.Duration
	// QueueSize is the inbound event buffer; defaults to 64.
	QueueSize int

	// after overrides timer scheduling in tests.
	after func(d time.Duration, f func())
}

// Actor is the single-threaded owner of one room's state. Events are
// processed strictly in order; each mutating event completes its
// durable save before the next event begins. Rooms are mutually
// independent and run in parallel.
type Actor struct {
	cfg      Config
	roomID   string
	store    Store
	sessions *session.Manager
	logger   *zap.Logger
	after    func(d time.Duration, f func())

	events chan Event
	quit   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	stopped bool

	// Owned exclusively by the run goroutine after Start.
	state *State
	// generation advances whenever the current question changes or the
	// answer slate is reset, invalidating any pending reveal timer.
	generation uint64
}

// New creates an Actor. Call Start before enqueueing events.
//
// Precondition: cfg.RoomID, cfg.Store, cfg.Sessions, cfg.Logger, and
// cfg.NewDeck must all be set.
func New(cfg Config) *Actor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	after := cfg.after
	if after == nil {
		after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return &Actor{
		cfg:      cfg,
		roomID:   cfg.RoomID,
		store:    cfg.Store,
		sessions: cfg.Sessions,
		logger:   cfg.Logger.With(zap.String("room", cfg.RoomID)),
		after:    after,
		events:   make(chan Event, cfg.QueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start loads the persisted state (or initializes a fresh room with a
// shuffled deck) and then begins consuming events. It must complete
// before the first session is served: room initialization is serialized
// against first use.
//
// Postcondition: On nil return the actor is running and Enqueue may be called.
func (a *Actor) Start(ctx context.Context) error {
	st, err := a.store.Load(ctx, a.roomID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		a.state = NewState(a.roomID, a.cfg.NewDeck())
		a.logger.Info("room initialized",
			zap.Int("questions", len(a.state.Questions)),
		)
	case err != nil:
		return fmt.Errorf("loading room %s: %w", a.roomID, err)
	default:
		if verr := st.Validate(); verr != nil {
			return fmt.Errorf("loading room %s: corrupt state: %w", a.roomID, verr)
		}
		// Connections never survive a restart.
		for _, p := range st.Players {
			p.SessionID = ""
		}
		a.state = st
		a.logger.Info("room restored",
			zap.Int("players", len(st.Players)),
			zap.Int("question", st.CurrentQuestion),
		)
	}

	go a.run()
	return nil
}

// Stop shuts the actor down. Queued events that have not begun
// processing are discarded.
func (a *Actor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	close(a.quit)
	<-a.done
	a.sessions.CloseAll()
}

// Enqueue submits an event for serialized processing. It blocks while
// the queue is full to preserve ordering, and fails once the actor has
// been stopped.
func (a *Actor) Enqueue(ev Event) error {
	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		return fmt.Errorf("room %s: actor stopped", a.roomID)
	}

	select {
	case a.events <- ev:
		return nil
	case <-a.quit:
		return fmt.Errorf("room %s: actor stopped", a.roomID)
	}
}

// Sessions exposes the room's live-connection set to the transport layer.
func (a *Actor) Sessions() *session.Manager {
	return a.sessions
}

func (a *Actor) run() {
	defer close(a.done)
	for {
		select {
		case ev := <-a.events:
			a.handle(context.Background(), ev)
		case <-a.quit:
			return
		}
	}
}

func (a *Actor) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindConnect:
		a.handleConnect(ev)
	case KindDisconnect:
		a.handleDisconnect(ctx, ev)
	case KindCreateGame:
		a.handleCreateGame(ctx, ev)
	case KindJoinGame:
		a.handleJoinGame(ctx, ev)
	case KindRejoinGame:
		a.handleRejoinGame(ev)
	case KindAnswer:
		a.handleAnswer(ctx, ev)
	case KindNextQuestion:
		a.handleNextQuestion(ctx, ev)
	case KindPrevQuestion:
		a.handlePrevQuestion(ctx, ev)
	case KindRestartQuestion:
		a.handleRestartQuestion(ctx, ev)
	case KindEndGame:
		a.handleEndGame(ctx, ev)
	case KindRestartGame:
		a.handleRestartGame(ctx, ev)
	case kindReveal:
		a.handleReveal(ev)
	default:
		a.logger.Warn("unknown event kind", zap.Int("kind", int(ev.Kind)))
	}
}

// apply runs fn against a working copy of the state. On success the
// copy is persisted and committed; clients never see state the store
// has not acknowledged. On a business-rule violation or save failure
// the mutation is discarded and the offending session gets a targeted
// error.
func (a *Actor) apply(ctx context.Context, sessionID string, fn func(*State) error) bool {
	next := a.state.Clone()
	if err := fn(next); err != nil {
		a.sendError(sessionID, err.Error())
		return false
	}
	if err := a.store.Save(ctx, a.roomID, next); err != nil {
		a.logger.Error("persisting room state", zap.Error(err))
		a.sendError(sessionID, "could not save game state")
		return false
	}
	a.state = next
	return true
}

func (a *Actor) sendError(sessionID, msg string) {
	if sessionID == "" {
		return
	}
	if err := a.sessions.Send(sessionID, session.Message{Type: "gameError", Payload: msg}); err != nil {
		a.logger.Debug("delivering game error", zap.Error(err))
	}
}

func (a *Actor) broadcastState() {
	a.sessions.Broadcast(session.Message{Type: "gameUpdate", Payload: a.state})
}

// handleConnect sends the current full state to the new session only,
// so a late or reconnecting client gets caught up without disturbing
// the others.
func (a *Actor) handleConnect(ev Event) {
	if err := a.sessions.Send(ev.SessionID, session.Message{Type: "gameUpdate", Payload: a.state}); err != nil {
		a.logger.Debug("sending catch-up snapshot", zap.Error(err))
	}
}

// handleDisconnect clears the connection reference on whichever player
// was bound to the session. The player record is retained so the slot
// can be reclaimed via rejoinGame.
func (a *Actor) handleDisconnect(ctx context.Context, ev Event) {
	a.sessions.Unregister(ev.SessionID)

	slot, p, ok := a.state.BySession(ev.SessionID)
	if !ok {
		return
	}
	p.SessionID = ""
	a.logger.Info("player disconnected",
		zap.String("slot", string(slot)),
		zap.String("player", p.Name),
	)

	if err := a.store.Save(ctx, a.roomID, a.state); err != nil {
		a.logger.Error("persisting room state", zap.Error(err))
	}
	a.broadcastState()
}

func (a *Actor) handleCreateGame(ctx context.Context, ev Event) {
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		if ev.Name == "" {
			return ErrNameRequired
		}
		if st.Players[SlotPlayer1] != nil {
			return ErrGameAlreadyCreated
		}
		st.Players[SlotPlayer1] = &Player{Name: ev.Name, SessionID: ev.SessionID}
		return nil
	})
	if !ok {
		return
	}
	a.logger.Info("game created", zap.String("player", ev.Name))
	a.sessions.Broadcast(session.Message{Type: "gameCreated", Payload: a.roomID})
	a.broadcastState()
}

func (a *Actor) handleJoinGame(ctx context.Context, ev Event) {
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		if ev.Name == "" {
			return ErrNameRequired
		}
		if st.Players[SlotPlayer1] == nil {
			return ErrGameNotCreated
		}
		if st.Players[SlotPlayer2] != nil {
			return ErrGameFull
		}
		if _, _, taken := st.ByName(ev.Name); taken {
			return ErrNameTaken
		}
		st.Players[SlotPlayer2] = &Player{Name: ev.Name, SessionID: ev.SessionID}
		st.Phase = PhaseAnswering
		return nil
	})
	if !ok {
		return
	}
	a.logger.Info("player joined", zap.String("player", ev.Name))
	a.broadcastState()
}

// handleRejoinGame rebinds the caller's session to a slot whose
// connection reference is empty, keyed by player name. The durable
// state is unchanged (connection references are not persisted), so no
// save is needed.
func (a *Actor) handleRejoinGame(ev Event) {
	if _, _, bound := a.state.BySession(ev.SessionID); bound {
		a.sendError(ev.SessionID, "this connection is already bound to a player")
		return
	}
	slot, p, ok := a.state.ByName(ev.Name)
	if !ok {
		a.sendError(ev.SessionID, ErrNoSuchPlayer.Error())
		return
	}
	if p.SessionID != "" {
		a.sendError(ev.SessionID, ErrStillConnected.Error())
		return
	}
	p.SessionID = ev.SessionID
	a.logger.Info("player rejoined",
		zap.String("slot", string(slot)),
		zap.String("player", p.Name),
	)
	a.broadcastState()
}

func (a *Actor) handleAnswer(ctx context.Context, ev Event) {
	barrier := false
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		_, p, bound := st.BySession(ev.SessionID)
		if !bound {
			return ErrNotJoined
		}
		p.CurrentAnswer = ev.Answer
		p.HasAnswered = true

		if st.AllAnswered() {
			p1, p2 := st.Players[SlotPlayer1], st.Players[SlotPlayer2]
			st.SetHistory(st.CurrentQuestion, HistoryEntry{
				Player1: p1.CurrentAnswer,
				Player2: p2.CurrentAnswer,
			})
			// Answers clear atomically with the history write.
			p1.CurrentAnswer = ""
			p2.CurrentAnswer = ""
			st.Phase = PhaseRevealing
			barrier = true
		}
		return nil
	})
	if !ok {
		return
	}
	a.broadcastState()

	if barrier {
		gen, idx := a.generation, a.state.CurrentQuestion
		a.after(a.cfg.RevealDelay, func() {
			_ = a.Enqueue(Event{Kind: kindReveal, generation: gen, question: idx})
		})
	}
}

// handleReveal fires the deferred reveal scheduled by the answer
// barrier. The generation captured at schedule time guards against the
// index having moved in the meantime (prevQuestion, restartGame, ...):
// a stale reveal is suppressed rather than broadcast.
func (a *Actor) handleReveal(ev Event) {
	if ev.generation != a.generation {
		a.logger.Debug("suppressing stale reveal",
			zap.Int("question", ev.question),
			zap.Uint64("scheduled_generation", ev.generation),
			zap.Uint64("current_generation", a.generation),
		)
		return
	}
	a.sessions.Broadcast(session.Message{
		Type:    "showReveal",
		Payload: map[string]int{"questionIndex": ev.question},
	})
}

func (a *Actor) handleNextQuestion(ctx context.Context, ev Event) {
	barrier := false
	finished := false
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		_, p, bound := st.BySession(ev.SessionID)
		if !bound {
			return ErrNotJoined
		}
		p.HasClickedNext = true

		if st.AllClickedNext() {
			barrier = true
			for _, pl := range st.Players {
				pl.HasClickedNext = false
			}
			if st.LastQuestion() {
				st.Phase = PhaseFinal
				finished = true
			} else {
				st.CurrentQuestion++
				st.ResetRound()
				st.Phase = PhaseAnswering
			}
		}
		return nil
	})
	if !ok {
		return
	}
	if barrier {
		a.generation++
	}
	a.broadcastState()
	switch {
	case finished:
		a.sessions.Broadcast(session.Message{Type: "showFinalScreen"})
	case barrier:
		a.sessions.Broadcast(session.Message{Type: "showAnswerScreen"})
	}
}

// handlePrevQuestion navigates backward through already-revealed
// questions. Unlike forward navigation there is deliberately no
// two-player barrier: either participant may rewind alone. At index 0
// the event is a complete no-op.
func (a *Actor) handlePrevQuestion(ctx context.Context, ev Event) {
	if _, _, bound := a.state.BySession(ev.SessionID); !bound {
		a.sendError(ev.SessionID, ErrNotJoined.Error())
		return
	}
	if a.state.CurrentQuestion == 0 {
		return
	}
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		st.CurrentQuestion--
		st.Phase = PhaseRevealing
		return nil
	})
	if !ok {
		return
	}
	a.generation++
	a.broadcastState()
	a.sessions.Broadcast(session.Message{
		Type:    "showReveal",
		Payload: map[string]int{"questionIndex": a.state.CurrentQuestion},
	})
}

func (a *Actor) handleRestartQuestion(ctx context.Context, ev Event) {
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		if _, _, bound := st.BySession(ev.SessionID); !bound {
			return ErrNotJoined
		}
		st.ResetRound()
		if st.BothPresent() {
			st.Phase = PhaseAnswering
		}
		return nil
	})
	if !ok {
		return
	}
	a.generation++
	a.broadcastState()
	a.sessions.Broadcast(session.Message{Type: "showAnswerScreen"})
}

func (a *Actor) handleEndGame(ctx context.Context, ev Event) {
	barrier := false
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		_, p, bound := st.BySession(ev.SessionID)
		if !bound {
			return ErrNotJoined
		}
		p.HasEnded = true
		if st.AllEnded() {
			st.Phase = PhaseFinal
			barrier = true
		}
		return nil
	})
	if !ok {
		return
	}
	a.broadcastState()
	if barrier {
		a.sessions.Broadcast(session.Message{Type: "showFinalScreen"})
	}
}

func (a *Actor) handleRestartGame(ctx context.Context, ev Event) {
	ok := a.apply(ctx, ev.SessionID, func(st *State) error {
		if _, _, bound := st.BySession(ev.SessionID); !bound {
			return ErrNotJoined
		}
		st.ResetGame()
		return nil
	})
	if !ok {
		return
	}
	a.generation++
	a.logger.Info("game restarted")
	a.broadcastState()
	a.sessions.Broadcast(session.Message{Type: "showSetupScreen"})
}
