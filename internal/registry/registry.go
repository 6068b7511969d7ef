// Package registry maps public room codes to running room actors.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duoquiz/duoquiz/internal/game/room"
	"github.com/duoquiz/duoquiz/internal/game/session"
)

// DeckSource supplies a shuffled question deck for each new room.
type DeckSource interface {
	Deck() []room.Question
}

// Registry lazily creates one actor per room code and hands back the
// running instance on subsequent lookups. Creation performs the initial
// durable load before the actor is returned, so no session is ever
// served by an uninitialized room.
type Registry struct {
	store       room.Store
	decks       DeckSource
	logger      *zap.Logger
	revealDelay time.Duration

	mu    sync.Mutex
	rooms map[string]*room.Actor
}

// New creates an empty Registry.
//
// Precondition: store, decks, and logger must be non-nil.
func New(store room.Store, decks DeckSource, logger *zap.Logger, revealDelay time.Duration) *Registry {
	return &Registry{
		store:       store,
		decks:       decks,
		logger:      logger,
		revealDelay: revealDelay,
		rooms:       make(map[string]*room.Actor),
	}
}

// Room returns the actor for the given code, creating and starting it
// if needed.
//
// Precondition: code must be non-empty.
// Postcondition: Returns a started actor, or an error if the initial
// load failed.
func (r *Registry) Room(ctx context.Context, code string) (*room.Actor, error) {
	if code == "" {
		return nil, fmt.Errorf("registry: empty room code")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.rooms[code]; ok {
		return a, nil
	}

	a := room.New(room.Config{
		RoomID:      code,
		Store:       r.store,
		Sessions:    session.NewManager(r.logger.With(zap.String("room", code))),
		Logger:      r.logger,
		NewDeck:     r.decks.Deck,
		RevealDelay: r.revealDelay,
	})
	if err := a.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting room %s: %w", code, err)
	}
	r.rooms[code] = a
	return a, nil
}

// Count returns the number of running rooms.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// StopAll stops every running actor. Used during shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	rooms := make([]*room.Actor, 0, len(r.rooms))
	for code, a := range r.rooms {
		rooms = append(rooms, a)
		delete(r.rooms, code)
	}
	r.mu.Unlock()

	for _, a := range rooms {
		a.Stop()
	}
}
