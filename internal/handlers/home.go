package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/MegaGrindStone/alx/internal/models"
	"github.com/MegaGrindStone/alx/internal/render"
)

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	StreamingState string
}

type homePageData struct {
	SurfaceID   string
	LastEventID string
	Submitting  bool
	Messages    []message
}

// HandleHome renders the chat page. A request without a known surface_id starts a new surface, so every
// page load owns an independent conversation; a known surface_id re-renders that surface's history.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s, ok := m.surfaces.Get(r.URL.Query().Get(surfaceIDParam))
	if !ok {
		s = m.surfaces.New()
		m.logger.Debug("New surface", slog.String("surfaceID", s.ID()))
	}

	// Read before the history, so a reply published meanwhile is replayed rather than missed
	lastEventID := m.replies.LastID()
	state, history := s.Snapshot()
	submitting := state == chat.StateSubmitting
	msgs := make([]message, 0, len(history)+1)
	for _, hm := range history {
		vm, err := viewMessage(hm, models.StreamingStateEnded)
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.String("messageID", hm.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		msgs = append(msgs, vm)
	}
	if submitting {
		msgs = append(msgs, loadingMessage())
	}

	data := homePageData{
		SurfaceID:   s.ID(),
		LastEventID: lastEventID,
		Submitting:  submitting,
		Messages:    msgs,
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSSE serves the event stream a surface's page listens on for assistant replies.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

func viewMessage(msg models.Message, streamingState string) (message, error) {
	content, err := render.Markdown(msg.Content)
	if err != nil {
		return message{}, err
	}
	return message{
		ID:             msg.ID,
		Role:           string(msg.Role),
		Content:        content,
		Timestamp:      msg.Timestamp,
		StreamingState: streamingState,
	}, nil
}

func loadingMessage() message {
	return message{
		Role:           string(models.RoleAssistant),
		Timestamp:      time.Now(),
		StreamingState: models.StreamingStateLoading,
	}
}
