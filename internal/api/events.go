package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleEvents streams hub events as Server-Sent Events. Each connection
// is one hub session for as long as the client stays connected.
func (s *Server) handleEvents(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime events disabled"})
		return
	}

	sess := s.hub.Connect(roleOf(c))
	defer s.hub.Disconnect(sess.ID)
	if s.metrics != nil {
		s.metrics.SessionsActive.Add(1)
		defer s.metrics.SessionsActive.Add(-1)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ping := time.NewTicker(s.keepAlive)
	defer ping.Stop()

	c.SSEvent("session", gin.H{"id": sess.ID, "role": sess.RoleName})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sess.Done():
			return false
		case ev, ok := <-sess.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			sess.Touch()
			return true
		case t := <-ping.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
			sess.Touch()
			return true
		}
	})
}
