package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
	"github.com/ghifiardi/gatra-world-monitor/pkg/gates"
	"github.com/ghifiardi/gatra-world-monitor/pkg/httpx"
	"github.com/ghifiardi/gatra-world-monitor/pkg/stream"
	"github.com/ghifiardi/gatra-world-monitor/pkg/task"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// handleA2A is the single JSON-RPC endpoint. Protocol errors ride in the
// envelope with a 200 transport status; transport-level failures (body
// read) are the only non-200 responses.
func (s *Server) handleA2A(w http.ResponseWriter, r *http.Request) {
	body, ok := readRequestBody(w, r)
	if !ok {
		return
	}

	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, a2a.ErrResponse(nil, a2a.NewError(a2a.CodeParseError)))
		return
	}
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" || len(req.ID) == 0 {
		writeRPC(w, a2a.ErrResponse(req.ID, a2a.NewError(a2a.CodeInvalidRequest)))
		return
	}

	// message/send params are decoded before admission so the injection
	// and sanitization gates see the message content.
	var msg *a2a.Message
	var sendParams a2a.SendParams
	if req.Method == "message/send" {
		if err := json.Unmarshal(req.Params, &sendParams); err != nil {
			writeRPC(w, a2a.ErrResponse(req.ID, a2a.NewError(a2a.CodeInvalidParams)))
			return
		}
		msg = &sendParams.Message
	}

	requestID := uuid.New().String()
	adm, rpcErr := s.Pipeline.Admit(r.Context(), r, requestID, req.Method, int64(len(body)), msg)
	if rpcErr != nil {
		writeRPC(w, a2a.ErrResponse(req.ID, rpcErr))
		return
	}

	writeRPC(w, s.dispatch(req, adm, sendParams))
}

// dispatch routes an admitted request to its method handler.
func (s *Server) dispatch(req a2a.Request, adm *gates.Admission, sendParams a2a.SendParams) a2a.Response {
	switch req.Method {
	case "message/send":
		t, err := s.Tasks.Send(sendParams, adm.Decision.Meta())
		if err != nil {
			return a2a.ErrResponse(req.ID, a2a.NewErrorf(a2a.CodeInvalidParams, err.Error()))
		}
		if skill, ok := t.Metadata["skill"].(string); ok {
			s.Metrics.IncSkill(skill)
		}
		return a2a.OkResponse(req.ID, t)

	case "tasks/get":
		var params a2a.QueryParams
		if err := json.Unmarshal(req.Params, &params); err != nil || strings.TrimSpace(params.ID) == "" {
			return a2a.ErrResponse(req.ID, a2a.NewError(a2a.CodeInvalidParams))
		}
		t, err := s.Tasks.Get(params.ID, params.HistoryLength)
		if err != nil {
			return a2a.ErrResponse(req.ID, taskError(err))
		}
		return a2a.OkResponse(req.ID, t)

	case "tasks/cancel":
		var params a2a.QueryParams
		if err := json.Unmarshal(req.Params, &params); err != nil || strings.TrimSpace(params.ID) == "" {
			return a2a.ErrResponse(req.ID, a2a.NewError(a2a.CodeInvalidParams))
		}
		t, err := s.Tasks.Cancel(params.ID)
		if err != nil {
			return a2a.ErrResponse(req.ID, taskError(err))
		}
		return a2a.OkResponse(req.ID, t)

	case "message/stream", "tasks/resubscribe":
		return a2a.ErrResponse(req.ID, a2a.NewError(a2a.CodeUnsupportedOperation))

	default:
		if strings.HasPrefix(req.Method, "tasks/pushNotificationConfig/") {
			return a2a.ErrResponse(req.ID, a2a.NewError(a2a.CodePushUnsupported))
		}
		return a2a.ErrResponse(req.ID, a2a.NewError(a2a.CodeMethodNotFound))
	}
}

// taskError maps task-engine sentinels to their protocol codes.
func taskError(err error) *a2a.Error {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return a2a.NewError(a2a.CodeTaskNotFound)
	case errors.Is(err, task.ErrNotCancelable):
		return a2a.NewError(a2a.CodeTaskNotCancelable)
	default:
		return a2a.NewError(a2a.CodeInternalError)
	}
}

func writeRPC(w http.ResponseWriter, resp a2a.Response) {
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// listScores returns the current CII table.
func (s *Server) listScores(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, 200, map[string]interface{}{"scores": s.Scores.Snapshot()})
}

type scoreUpdate struct {
	Country string  `json:"country"`
	Score   float64 `json:"score"`
}

// updateScore mutates one CII entry at runtime and announces the change
// on the event stream.
func (s *Server) updateScore(w http.ResponseWriter, r *http.Request) {
	body, ok := readRequestBody(w, r)
	if !ok {
		return
	}
	var upd scoreUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		httpx.Error(w, 400, "invalid json body")
		return
	}
	if err := s.Scores.Set(upd.Country, upd.Score); err != nil {
		httpx.Error(w, 400, err.Error())
		return
	}
	if s.Events != nil {
		s.Events.Publish(stream.NewEvent(stream.KindScoreUpdate, upd))
	}
	httpx.WriteJSON(w, 200, map[string]string{"status": "updated"})
}

// listTasks exposes the bounded task table, newest first.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.Tasks.Store.List()
	httpx.WriteJSON(w, 200, map[string]interface{}{"tasks": tasks, "count": len(tasks)})
}

// streamEvents pushes admission and score-update events over a
// websocket.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		httpx.Error(w, 503, "stream unavailable")
		return
	}
	opts := &websocket.AcceptOptions{}
	if origins := wsOriginPatterns(env("WS_ALLOWED_ORIGINS", "")); len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sub := s.Events.Subscribe(64)
	defer s.Events.Unsubscribe(sub)

	_ = wsjson.Write(ctx, conn, stream.NewEvent("ready", nil))
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case evt, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, evt)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

func wsOriginPatterns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
