package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/xhad/resumatch/internal/types"
	"github.com/xhad/resumatch/pkg/matcher"
	"github.com/xhad/resumatch/pkg/scraper"
	"github.com/xhad/resumatch/pkg/session"
	"go.uber.org/zap"
)

// inbound mirrors types.Message with the payload left undecoded.
type inbound struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// handleWebSocket drives one interactive client. The session lives as long
// as the connection and messages are handled in arrival order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// base64 inflates uploads by a third.
	conn.SetReadLimit(s.config.BodyLimit*4/3 + 4096)

	st := session.NewState("")
	log := s.log.With(zap.String("session_id", st.ID()))
	log.Info("websocket session opened")
	defer log.Info("websocket session closed")

	s.sendMessage(conn, types.Message{Type: types.MsgSession, Content: st.ID()})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("error reading message", zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendText(conn, types.MsgError, "Malformed message")
			continue
		}

		s.handleMessage(r.Context(), conn, st, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, st *session.State, msg inbound) {
	switch msg.Type {
	case types.MsgUpload:
		s.handleUpload(ctx, conn, st, msg)
	case types.MsgAnalyze:
		s.handleAnalyzeMessage(ctx, conn, st, msg.Content)
	default:
		s.sendText(conn, types.MsgError, fmt.Sprintf("Unknown message type %q", msg.Type))
	}
}

func (s *Server) handleUpload(ctx context.Context, conn *websocket.Conn, st *session.State, msg inbound) {
	var payload types.UploadPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Filename == "" {
		s.sendText(conn, types.MsgWarning, "Upload needs a filename and file data")
		return
	}

	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		s.sendText(conn, types.MsgWarning, "Upload data is not valid base64")
		return
	}

	s.sendText(conn, types.MsgStatus, fmt.Sprintf("Processing %s...", payload.Filename))

	res, err := s.matcher.IngestFile(ctx, st, payload.Filename, bytes.NewReader(data))
	if err != nil {
		s.sendFailure(conn, err)
		return
	}

	s.sendMessage(conn, types.Message{
		Type:    types.MsgIngested,
		Content: fmt.Sprintf("Resume processed! (%d chunks)", res.ChunksAdded),
		Data: types.IngestResponse{
			Filename:    res.Binding.Filename,
			ChunksAdded: res.ChunksAdded,
			Status:      "success",
			SessionID:   res.Binding.SessionID,
		},
	})
}

func (s *Server) handleAnalyzeMessage(ctx context.Context, conn *websocket.Conn, st *session.State, content string) {
	if scraper.IsURL(content) {
		s.sendText(conn, types.MsgStatus, "Fetching job posting...")
	}

	jobDescription, err := s.matcher.ResolveJobDescription(ctx, content, "")
	if err != nil {
		s.sendFailure(conn, err)
		return
	}

	s.sendText(conn, types.MsgStatus, "Analyzing match...")

	analysis, err := s.matcher.Analyze(ctx, st, jobDescription)
	if err != nil {
		s.sendFailure(conn, err)
		return
	}

	s.sendMessage(conn, types.Message{
		Type:    types.MsgAnalysis,
		Content: analysis.Critique.Text,
		Data: types.AnalysisPayload{
			Score:       analysis.Critique.Score,
			ContextUsed: analysis.ContextUsed,
			Degraded:    !analysis.Critique.OK(),
		},
	})
}

// sendFailure reports client mistakes as warnings and everything else as
// errors.
func (s *Server) sendFailure(conn *websocket.Conn, err error) {
	switch {
	case errors.Is(err, matcher.ErrNoResume):
		s.sendText(conn, types.MsgWarning, "Please upload a resume first.")
	case errors.Is(err, matcher.ErrAlreadyIngested),
		errors.Is(err, matcher.ErrUnsupportedFormat),
		errors.Is(err, matcher.ErrInvalidInput):
		s.sendText(conn, types.MsgWarning, err.Error())
	default:
		s.log.Error("websocket request failed", zap.Error(err))
		s.sendText(conn, types.MsgError, err.Error())
	}
}

func (s *Server) sendText(conn *websocket.Conn, msgType, content string) {
	s.sendMessage(conn, types.Message{Type: msgType, Content: content})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg types.Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("error sending message", zap.Error(err))
	}
}
