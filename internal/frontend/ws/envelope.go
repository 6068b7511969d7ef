package ws

import (
	"encoding/json"
	"fmt"

	"github.com/duoquiz/duoquiz/internal/game/room"
)

// envelope is the inbound wire format: {"type": ..., "payload": ...}.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Player1Name string `json:"player1Name"`
}

type joinPayload struct {
	Player2Name string `json:"player2Name"`
}

type rejoinPayload struct {
	PlayerName string `json:"playerName"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

// decodeEvent parses one inbound frame into a typed room event.
// Any failure here is the sender's problem only: the caller reports it
// with a targeted gameError and moves on.
func decodeEvent(sessionID string, data []byte) (room.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return room.Event{}, fmt.Errorf("decoding envelope: %w", err)
	}

	ev := room.Event{SessionID: sessionID}
	switch env.Type {
	case "createGame":
		var p createPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return room.Event{}, fmt.Errorf("decoding createGame payload: %w", err)
		}
		ev.Kind = room.KindCreateGame
		ev.Name = p.Player1Name
	case "joinGame":
		var p joinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return room.Event{}, fmt.Errorf("decoding joinGame payload: %w", err)
		}
		ev.Kind = room.KindJoinGame
		ev.Name = p.Player2Name
	case "rejoinGame":
		var p rejoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return room.Event{}, fmt.Errorf("decoding rejoinGame payload: %w", err)
		}
		ev.Kind = room.KindRejoinGame
		ev.Name = p.PlayerName
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return room.Event{}, fmt.Errorf("decoding answer payload: %w", err)
		}
		ev.Kind = room.KindAnswer
		ev.Answer = p.Answer
	case "nextQuestion":
		ev.Kind = room.KindNextQuestion
	case "prevQuestion":
		ev.Kind = room.KindPrevQuestion
	case "restartCurrentQuestion":
		ev.Kind = room.KindRestartQuestion
	case "endGame":
		ev.Kind = room.KindEndGame
	case "restartGame":
		ev.Kind = room.KindRestartGame
	default:
		return room.Event{}, fmt.Errorf("unknown message type %q", env.Type)
	}
	return ev, nil
}
