package http

import (
	"errors"
	"io"
	"sync"

	"freefall-server/internal/domain"
	"github.com/sirupsen/logrus"
)

const sendBuffer = 64

var errSendQueueFull = errors.New("send queue full")

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type fallSpeedPayload struct {
	Scale float64 `json:"scale"`
}

type magnetPayload struct {
	Enabled bool `json:"enabled"`
	Lane    int  `json:"lane"`
}

type despawnPayload struct{}

type powerUpPayload struct {
	Name     string `json:"name"`
	Extended bool   `json:"extended"`
}

// Hub routes presenter payloads to the send queue of each connected player. Payloads for players
// without a connection are dropped.
type Hub struct {
	log *logrus.Entry

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	playerID string
	conn     io.Closer
	send     chan outboundMessage[any]
	closed   bool
}

func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{log: log.WithField("component", "hub"), clients: make(map[string]*client)}
}

// register attaches conn for playerID. An older connection of the same player is closed and
// replaced, which ends its read loop.
func (h *Hub) register(playerID string, conn io.Closer) *client {
	c := &client{playerID: playerID, conn: conn, send: make(chan outboundMessage[any], sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[playerID]; ok {
		old.closed = true
		close(old.send)
		if old.conn != nil {
			old.conn.Close()
		}
		h.log.WithField("player_id", playerID).Info("replacing existing connection")
	}
	h.clients[playerID] = c
	return c
}

// unregister detaches c. It reports whether c was still the player's current connection.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.clients[c.playerID] == c
	if current {
		delete(h.clients, c.playerID)
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return current
}

// Connected reports whether playerID has a live connection.
func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

func (h *Hub) enqueue(playerID, typ string, payload any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[playerID]
	if !ok || c.closed {
		return nil
	}
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
		return nil
	default:
		return errSendQueueFull
	}
}

func (h *Hub) SpawnTargets(playerID string, req domain.SpawnRequest) error {
	return h.enqueue(playerID, "spawnTargets", req)
}

func (h *Hub) DespawnTargets(playerID string) error {
	return h.enqueue(playerID, "despawnTargets", despawnPayload{})
}

func (h *Hub) ShowProblem(playerID string, view domain.ProblemView) error {
	return h.enqueue(playerID, "problem", view)
}

func (h *Hub) RoundResult(playerID string, result domain.RoundResult) error {
	return h.enqueue(playerID, "roundResult", result)
}

func (h *Hub) SessionEnded(playerID string, summary domain.SessionSummary) error {
	return h.enqueue(playerID, "sessionEnd", summary)
}

func (h *Hub) FallSpeed(playerID string, scale float64) error {
	return h.enqueue(playerID, "fallSpeed", fallSpeedPayload{Scale: scale})
}

func (h *Hub) Magnet(playerID string, enabled bool, lane int) error {
	return h.enqueue(playerID, "magnet", magnetPayload{Enabled: enabled, Lane: lane})
}

func (h *Hub) TeamRound(playerID string, result domain.TeamRoundResult) error {
	return h.enqueue(playerID, "teamUpdate", result)
}

func (h *Hub) Lobby(playerID string, snapshot domain.ChallengeSnapshot) error {
	return h.enqueue(playerID, "lobby", snapshot)
}

func (h *Hub) ChallengeEnded(playerID string, summary domain.ChallengeSummary) error {
	return h.enqueue(playerID, "challengeEnd", summary)
}
