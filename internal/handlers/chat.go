package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/MegaGrindStone/alx/internal/models"
	"github.com/tmaxmax/go-sse"
)

// SSE event type carrying a rendered assistant message.
var messagesSSEType = sse.Type("messages")

// HandleChats accepts a form submission for one surface. It expects the "surface_id" and "message"
// form fields; the message is forwarded as-is, including when empty.
//
// The user message is appended immediately and rendered in the response together with a loading
// placeholder for the assistant. The dispatch runs asynchronously and its result, or the fallback reply
// on failure, is published to the surface's SSE topic. A submission made while the surface already has
// one in flight is rejected with 409 Conflict.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	surfaceID := r.FormValue(surfaceIDParam)
	s, ok := m.surfaces.Get(surfaceID)
	if !ok {
		m.logger.Error("Surface not found", slog.String("surfaceID", surfaceID))
		http.Error(w, "Surface not found", http.StatusNotFound)
		return
	}

	input := r.FormValue("message")

	um, err := s.Submit(input)
	if err != nil {
		if errors.Is(err, chat.ErrBusy) {
			m.logger.Warn("Submission rejected while busy", slog.String("surfaceID", surfaceID))
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		m.logger.Error("Failed to submit message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go m.dispatch(s, input)

	userMsg, err := viewMessage(um, models.StreamingStateEnded)
	if err != nil {
		m.logger.Error("Failed to render user message",
			slog.String("messageID", um.ID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "user_message", userMsg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "ai_message", loadingMessage()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// dispatch completes the submit cycle started by HandleChats. It runs detached from the request, so a
// closed browser tab does not cancel the provider call.
func (m Main) dispatch(s *chat.Surface, input string) {
	var (
		am  models.Message
		err error
	)

	text, dErr := m.dispatcher.Dispatch(context.Background(), input)
	if dErr != nil {
		m.logger.Error("Error generating response",
			slog.String("surfaceID", s.ID()),
			slog.String(errLoggerKey, dErr.Error()))
		am, err = s.Fail(dErr)
	} else {
		am, err = s.Succeed(text)
	}
	if err != nil {
		m.logger.Error("Failed to resolve submission",
			slog.String("surfaceID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	vm, err := viewMessage(am, models.StreamingStateEnded)
	if err != nil {
		m.logger.Error("Failed to render assistant message",
			slog.String("messageID", am.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "ai_message", vm); err != nil {
		m.logger.Error("Failed to execute ai_message template", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: messagesSSEType,
	}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, surfaceTopic(s.ID())); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("surfaceID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
	}
}
