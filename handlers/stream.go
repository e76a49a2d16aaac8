// handlers/stream.go
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"staking-ledger/middleware"
)

// Stream pushes the account summary every StreamInterval, plus a notice
// event whenever the session's staking job paid out.
func (h *Handler) Stream(c *fiber.Ctx) error {
	accountID, _ := middleware.AccountID(c)
	sessionID := middleware.SessionID(c)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	reqCtx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(h.StreamInterval)
		defer ticker.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := h.writeFrame(context.Background(), w, accountID, sessionID); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				if err := h.writeFrame(context.Background(), w, accountID, sessionID); err != nil {
					// client disconnected
					return
				}
			case <-reqCtx.Done():
				return
			}
		}
	})

	return nil
}

// writeFrame emits one summary event and any pending notice, then flushes.
func (h *Handler) writeFrame(ctx context.Context, w *bufio.Writer, accountID int64, sessionID string) error {
	sum, err := h.Ledger.Summary(ctx, accountID)
	if err != nil {
		h.Logger.Warnf("SSE summary error for account %d: %v", accountID, err)
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		return w.Flush()
	}
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: summary\ndata: %s\n\n", payload)

	if notice, ok := h.Sessions.PopNotice(sessionID); ok {
		msg, _ := json.Marshal(notice)
		fmt.Fprintf(w, "event: notice\ndata: %s\n\n", msg)
	}

	return w.Flush()
}
