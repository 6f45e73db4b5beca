package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Message is one chat message relayed through a room. Delivery is best
// effort: members see messages published while they are connected, in
// publish order per connection, and nothing else.
type Message struct {
	ID     string `json:"id"`
	Room   string `json:"room"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	Time   int64  `json:"time"`
}

// RoomHub relays room-scoped messages over Redis pub/sub. Subscribers hold
// an SSE connection; membership is transient and rebuilt on reconnect.
type RoomHub struct {
	redis   *redis.Client
	deduper Deduper
	logger  *log.Logger
	clock   func() int64
}

// NewRoomHub creates a hub over the given Redis client. The deduper may be
// nil, in which case duplicate publish suppression is off.
func NewRoomHub(rc *redis.Client, deduper Deduper, logger *log.Logger) *RoomHub {
	return &RoomHub{redis: rc, deduper: deduper, logger: logger, clock: nowMillis}
}

func roomChannel(room string) string {
	return "room:" + room
}

// Publish fans a message out to the room's current members. A duplicate
// idempotency key makes the publish a silent no-op.
func (h *RoomHub) Publish(ctx context.Context, msg Message) (bool, error) {
	if h.deduper != nil && msg.ID != "" {
		fresh, err := h.deduper.Add(ctx, msg.Room, msg.ID)
		if err != nil {
			return false, err
		}
		if !fresh {
			return false, nil
		}
	}
	payload, err := sonic.ConfigStd.Marshal(msg)
	if err != nil {
		return false, err
	}
	if err := h.redis.Publish(ctx, roomChannel(msg.Room), payload).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// postMessage validates and publishes one chat message.
func postMessage(h *RoomHub, verifier Verifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		room := c.Param("room")
		var body struct {
			ID           string `json:"id,omitempty"`
			Sender       string `json:"sender"`
			Text         string `json:"text"`
			CaptchaToken string `json:"captchaToken,omitempty"`
		}
		if err := decodeBody(c, &body); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if body.Sender == "" || body.Text == "" {
			return jsonError(c, http.StatusBadRequest, "sender and text are required")
		}
		ctx := c.Request().Context()
		if verifier != nil {
			if err := verifier.Verify(ctx, body.CaptchaToken, "chat_message"); err != nil {
				if errors.Is(err, ErrVerificationRejected) {
					return jsonError(c, http.StatusForbidden, "verification failed")
				}
				c.Logger().Error(err)
				return jsonError(c, http.StatusInternalServerError, "verification unavailable")
			}
		}
		msg := Message{
			ID:     body.ID,
			Room:   room,
			Sender: body.Sender,
			Text:   body.Text,
			Time:   h.clock(),
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		delivered, err := h.Publish(ctx, msg)
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, "publish failed")
		}
		if !delivered {
			return c.JSON(http.StatusOK, map[string]any{"id": msg.ID, "duplicate": true})
		}
		return c.JSON(http.StatusAccepted, map[string]any{"id": msg.ID})
	}
}

// streamRoom joins a room and forwards its messages over SSE until the
// client disconnects. Failures surface as a named error event on the same
// connection rather than tearing the process down.
func streamRoom(h *RoomHub) echo.HandlerFunc {
	return func(c echo.Context) error {
		room := c.Param("room")
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return jsonError(c, http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		sub := h.redis.Subscribe(ctx, roomChannel(room))
		defer sub.Close()
		ch := sub.Channel()

		joined, err := sonic.ConfigStd.Marshal(map[string]string{"room": room})
		if err != nil {
			return jsonError(c, http.StatusInternalServerError, "stream setup failed")
		}
		if err := writeEvent(c, "joined", joined); err != nil {
			return nil
		}
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, open := <-ch:
				if !open {
					// Named error event back to this connection, then close.
					_ = writeEvent(c, "error", []byte(`{"error":"room stream closed"}`))
					flusher.Flush()
					h.logger.WithField("room", room).Error("room subscription closed")
					return nil
				}
				if err := writeEvent(c, "message", []byte(msg.Payload)); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(c echo.Context, event string, data []byte) error {
	if _, err := c.Response().Write([]byte("event: " + event + "\ndata: ")); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	_, err := c.Response().Write([]byte("\n\n"))
	return err
}
