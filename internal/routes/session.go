package routes

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/shieldfi/shieldfi/internal/apperrors"
	"github.com/shieldfi/shieldfi/internal/notification"
	"github.com/shieldfi/shieldfi/internal/session"
)

const (
	eventBuffer       = 16
	heartbeatInterval = 15 * time.Second
)

type sessionResponse struct {
	State   session.State          `json:"state"`
	Session *session.WalletSession `json:"session"`
}

// RegisterSessionRoutes wires the wallet session endpoints. limiter runs before connect.
func RegisterSessionRoutes(r fiber.Router, store *session.Store, hub *notification.Hub, limiter fiber.Handler) {
	r.Get("/session", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(snapshot(store))
	})

	r.Post("/session/connect", limiter, func(c *fiber.Ctx) error {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if _, err := store.Connect(c.UserContext(), req.Username); err != nil {
			return sessionError(err)
		}
		return c.Status(http.StatusOK).JSON(snapshot(store))
	})

	r.Post("/session/refresh", func(c *fiber.Ctx) error {
		if _, err := store.Refresh(c.UserContext()); err != nil {
			return sessionError(err)
		}
		return c.Status(http.StatusOK).JSON(snapshot(store))
	})

	r.Delete("/session", func(c *fiber.Ctx) error {
		if err := store.Disconnect(c.UserContext()); err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(snapshot(store))
	})

	r.Get("/session/transactions", func(c *fiber.Ctx) error {
		txs, err := store.Transactions(c.UserContext())
		if err != nil {
			return sessionError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txs})
	})

	r.Get("/session/events", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		events := make(chan session.Event, eventBuffer)
		unsubscribe := hub.Subscribe(func(event session.Event) {
			select {
			case events <- event:
			default:
			}
		})
		initial := snapshot(store)
		// Done closes when the server shuts down.
		reqCtx := c.Context()

		reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()
			ticker := time.NewTicker(heartbeatInterval)
			defer ticker.Stop()

			if err := writeEvent(w, "snapshot", initial); err != nil {
				return
			}
			for {
				select {
				case <-reqCtx.Done():
					return
				case event := <-events:
					if err := writeEvent(w, string(event.Kind), event); err != nil {
						return
					}
				case <-ticker.C:
					if _, err := w.WriteString(": ping\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		}))
		return nil
	})
}

func snapshot(store *session.Store) sessionResponse {
	state, current := store.Snapshot()
	return sessionResponse{State: state, Session: current}
}

// writeEvent emits one server-sent event and flushes it.
func writeEvent(w *bufio.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrSuperseded) {
		return fiber.NewError(http.StatusConflict, err.Error())
	}
	return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
}
