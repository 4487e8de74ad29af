package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tpris/backend/internal/pipeline"
)

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(payload StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	payload.Timestamp = time.Now().UTC()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
}

// handleAnalyzeStream serves live analysis over a websocket: every inbound
// FeedbackInput message gets exactly one StreamEvent back, in order.
func (s *Server) handleAnalyzeStream(c *gin.Context) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}
	client := &wsClient{conn: conn}
	remote := conn.RemoteAddr().String()
	logrus.WithField("remote", remote).Info("analysis websocket connected")
	defer conn.Close()

	ctx := c.Request.Context()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", remote).Info("analysis websocket closed")
			} else {
				logrus.WithError(err).Warn("analysis websocket unexpected close")
			}
			return
		}

		event := s.streamEvent(c, message)
		if ctx.Err() != nil {
			return
		}
		if err := client.writeJSON(event); err != nil {
			logrus.WithError(err).WithField("remote", remote).Warn("write analysis event")
			return
		}
	}
}

func (s *Server) streamEvent(c *gin.Context, message []byte) StreamEvent {
	var input pipeline.FeedbackInput
	if err := json.Unmarshal(message, &input); err != nil {
		return StreamEvent{Type: "error", Message: "invalid request: " + err.Error()}
	}
	if strings.TrimSpace(input.ReviewText) == "" {
		return StreamEvent{Type: "error", Message: errEmptyReview.Error()}
	}
	requestID := uuid.NewString()
	report := s.pipeline.Analyze(c.Request.Context(), requestID, input)
	s.recordAnalysis(report)
	result := report.Outcome.Result
	return StreamEvent{Type: "analysis", RequestID: requestID, Result: &result}
}
