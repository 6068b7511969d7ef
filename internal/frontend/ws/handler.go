// Package ws serves the websocket transport and the small HTTP surface
// around it: room creation and the per-room connection upgrade.
package ws

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/duoquiz/duoquiz/internal/game/ident"
	"github.com/duoquiz/duoquiz/internal/game/room"
	"github.com/duoquiz/duoquiz/internal/game/session"
	"github.com/duoquiz/duoquiz/internal/registry"
)

// Handler wires the HTTP routes to the room registry.
type Handler struct {
	registry   *registry.Registry
	codes      *ident.Generator
	codeLength int
	sendBuffer int
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates a Handler.
//
// Precondition: reg, codes, and logger must be non-nil; codeLength and
// sendBuffer must be positive.
func NewHandler(reg *registry.Registry, codes *ident.Generator, codeLength, sendBuffer int, logger *zap.Logger) *Handler {
	return &Handler{
		registry:   reg,
		codes:      codes,
		codeLength: codeLength,
		sendBuffer: sendBuffer,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The game carries no credentials; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register installs the routes on the given router.
func (h *Handler) Register(mux *httprouter.Router) {
	mux.POST("/api/create-game", h.createGame)
	mux.GET("/ws/:gameid", h.serveWS)
}

// createGame hands out a fresh public room code. The room itself is
// created lazily on first websocket contact.
func (h *Handler) createGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	code, err := h.codes.Code(h.codeLength)
	if err != nil {
		h.logger.Error("generating room code", zap.Error(err))
		http.Error(w, "unable to create game", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"gameId": code}); err != nil {
		h.logger.Warn("writing create-game response", zap.Error(err))
	}
}

// serveWS upgrades the connection and binds it to the room named in the
// path. The room's initial load completes before the upgrade, so the
// catch-up snapshot always reflects persisted state.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("gameid")
	if code == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	actor, err := h.registry.Room(r.Context(), code)
	if err != nil {
		h.logger.Error("locating room", zap.String("room", code), zap.Error(err))
		http.Error(w, "unable to open room", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrading connection", zap.String("room", code), zap.Error(err))
		return
	}

	sessionID := uuid.NewString()
	c := newClient(conn, h.sendBuffer)
	actor.Sessions().Register(sessionID, c)

	go c.writePump()

	if err := actor.Enqueue(room.Event{Kind: room.KindConnect, SessionID: sessionID}); err != nil {
		h.logger.Warn("room rejected connection", zap.String("room", code), zap.Error(err))
		actor.Sessions().Unregister(sessionID)
		return
	}

	h.logger.Info("session connected",
		zap.String("room", code),
		zap.String("session", sessionID),
	)

	h.readLoop(actor, sessionID, conn)
}

// readLoop consumes inbound frames until the connection drops, feeding
// typed events into the room actor. A frame that fails to decode gets a
// targeted gameError and is otherwise ignored; it must never take the
// room or the other session down.
func (h *Handler) readLoop(actor *room.Actor, sessionID string, conn *websocket.Conn) {
	defer func() {
		_ = actor.Enqueue(room.Event{Kind: room.KindDisconnect, SessionID: sessionID})
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		ev, err := decodeEvent(sessionID, data)
		if err != nil {
			h.logger.Debug("discarding malformed message",
				zap.String("session", sessionID),
				zap.Error(err),
			)
			_ = actor.Sessions().Send(sessionID, session.Message{
				Type:    "gameError",
				Payload: "invalid message format",
			})
			continue
		}

		if err := actor.Enqueue(ev); err != nil {
			return
		}
	}
}
