package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"freefall-server/internal/app"
	"freefall-server/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	auth     *Authenticator
	validate *validator.Validate
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewWSHandler wires sockets to the game. auth may be nil.
func NewWSHandler(service *app.GameService, hub *Hub, auth *Authenticator, log *logrus.Entry) *WSHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WSHandler{
		service:  service,
		hub:      hub,
		auth:     auth,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.WithField("component", "ws"),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Value          *int  `json:"value" validate:"required"`
	ResponseTimeMs int64 `json:"responseTimeMs" validate:"gte=0"`
	Round          int   `json:"round" validate:"gte=0"`
}

type timeoutPayload struct {
	Round int `json:"round" validate:"gte=0"`
}

type createChallengePayload struct {
	Mode string `json:"mode" validate:"required,oneof=survival timed score-attack"`
}

type joinTeamPayload struct {
	ChallengeID string `json:"challengeId" validate:"required"`
	TeamID      string `json:"teamId" validate:"required"`
}

type autoBalancePayload struct {
	ChallengeID string `json:"challengeId" validate:"required"`
}

type startChallengePayload struct {
	ChallengeID   string `json:"challengeId" validate:"required"`
	QuestionSetID string `json:"questionSetId"`
	Difficulty    string `json:"difficulty" validate:"required,oneof=easy normal hard"`
}

type powerUpRequest struct {
	Name string `json:"name" validate:"required"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	displayName := r.URL.Query().Get("name")
	if playerID == "" || displayName == "" {
		http.Error(w, "missing playerId or name", http.StatusBadRequest)
		return
	}
	if h.auth != nil {
		if err := h.auth.Verify(r.URL.Query().Get("token"), playerID); err != nil {
			h.log.WithField("player_id", playerID).WithError(err).Warn("rejected websocket auth")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"player_id": playerID, "name": displayName})
	c := h.hub.register(playerID, conn)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				// keep draining so enqueue never sees a stuck queue
				for range c.send {
				}
				return
			}
		}
	}()
	log.Info("player connected")

	ctx := context.Background()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, playerID, inbound)
	}

	if h.hub.unregister(c) {
		h.service.Disconnect(ctx, playerID)
	}
	<-writerDone
	log.Info("player connection closed")
}

func (h *WSHandler) dispatch(ctx context.Context, playerID string, inbound inboundMessage) {
	var err error
	switch inbound.Type {
	case "start":
		_, err = h.service.StartSession(ctx, playerID)
	case "answer":
		var p answerPayload
		if err = h.decode(inbound.Payload, &p); err == nil {
			_, err = h.service.RecordAnswer(ctx, playerID, *p.Value, p.ResponseTimeMs, p.Round)
		}
	case "timeout":
		var p timeoutPayload
		if err = h.decode(inbound.Payload, &p); err == nil {
			_, err = h.service.RecordTimeout(ctx, playerID, p.Round)
		}
	case "createChallenge":
		var p createChallengePayload
		if err = h.decode(inbound.Payload, &p); err == nil {
			var snap domain.ChallengeSnapshot
			if snap, err = h.service.CreateChallenge(ctx, playerID, domain.ChallengeMode(p.Mode)); err == nil {
				h.reply(playerID, "challengeCreated", snap)
			}
		}
	case "joinTeam":
		var p joinTeamPayload
		if err = h.decode(inbound.Payload, &p); err == nil {
			_, err = h.service.JoinTeam(ctx, playerID, p.ChallengeID, p.TeamID)
		}
	case "leaveTeam":
		err = h.service.LeaveTeam(ctx, playerID)
	case "autoBalance":
		var p autoBalancePayload
		if err = h.decode(inbound.Payload, &p); err == nil {
			_, err = h.service.AutoBalance(ctx, p.ChallengeID)
		}
	case "startChallenge":
		var p startChallengePayload
		if err = h.decode(inbound.Payload, &p); err == nil {
			_, err = h.service.StartChallenge(ctx, p.ChallengeID, p.QuestionSetID, domain.Difficulty(p.Difficulty))
		}
	case "powerUp":
		var p powerUpRequest
		if err = h.decode(inbound.Payload, &p); err == nil {
			var extended bool
			if extended, err = h.service.ActivatePowerUp(ctx, playerID, p.Name); err == nil {
				h.reply(playerID, "powerUpActivated", powerUpPayload{Name: p.Name, Extended: extended})
			}
		}
	default:
		err = errUnsupportedMessage
	}
	if err != nil {
		h.reply(playerID, "error", errorPayload{Message: err.Error()})
	}
}

var (
	errUnsupportedMessage = errors.New("unsupported message type")
	errInvalidPayload     = errors.New("invalid payload")
)

func (h *WSHandler) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errInvalidPayload
	}
	if err := h.validate.Struct(dst); err != nil {
		return errInvalidPayload
	}
	return nil
}

func (h *WSHandler) reply(playerID, typ string, payload any) {
	if err := h.hub.enqueue(playerID, typ, payload); err != nil {
		h.log.WithFields(logrus.Fields{"player_id": playerID, "type": typ}).WithError(err).Warn("reply dropped")
	}
}
