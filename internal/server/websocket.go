package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/franckalain/traypositions/internal/ingest"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // callers are authenticated by token, not origin
	},
}

type wsMessage struct {
	Type string `json:"type"`
	Data struct {
		Image    string `json:"image"`     // base64 image bytes
		ImageURL string `json:"image_url"` // or an already hosted image
		Filename string `json:"filename"`
	} `json:"data"`
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("websocket client connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("error reading message", zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError(conn, "Invalid message format")
			continue
		}

		switch msg.Type {
		case "analyze":
			s.handleAnalyzeMessage(c, conn, msg)
		case "ping":
			s.sendMessage(conn, "pong", nil)
		default:
			s.sendError(conn, "Unknown message type")
		}
	}
}

func (s *Server) handleAnalyzeMessage(c *gin.Context, conn *websocket.Conn, msg wsMessage) {
	ctx := c.Request.Context()

	var ref ingest.Reference
	switch {
	case msg.Data.ImageURL != "":
		ref = ingest.Direct(msg.Data.ImageURL)
	case msg.Data.Image != "":
		data, err := base64.StdEncoding.DecodeString(msg.Data.Image)
		if err != nil {
			s.sendError(conn, "Invalid image format")
			return
		}
		filename := msg.Data.Filename
		if filename == "" {
			filename = "upload.jpg"
		}
		ref, err = s.ingestBytes(ctx, filename, "", data)
		if err != nil {
			s.sendError(conn, errorDetail(err))
			return
		}
	default:
		s.sendError(conn, "image or image_url is required")
		return
	}

	resp, err := s.analyzer.Analyze(ctx, ref.String())
	if err != nil {
		s.sendError(conn, errorDetail(err))
		return
	}
	s.sendMessage(conn, "analysis_result", resp)
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", zap.String("type", messageType), zap.Error(err))
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending error message", zap.Error(err))
	}
}
