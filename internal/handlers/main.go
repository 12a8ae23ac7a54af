package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/alx"
	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/tmaxmax/go-sse"
)

// Dispatcher forwards one prompt to the text-generation provider and returns the response text, or the
// provider's failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt string) (string, error)
}

// Main handles the core functionality of the chat application, managing server-sent events, HTML
// templates, and the interaction between chat surfaces and the Dispatcher.
type Main struct {
	sseSrv    *sse.Server
	replies   *replyReplayer
	templates *template.Template

	dispatcher Dispatcher
	surfaces   *chat.Registry

	logger *slog.Logger
}

const (
	surfaceIDParam   = "surface_id"
	lastEventIDParam = "last_event_id"
	errLoggerKey     = "error"

	replayBufferSize = 256
)

// NewMain creates a new Main instance with the provided Dispatcher and surface registry. It initializes
// the SSE server and parses the required HTML templates from the embedded filesystem. Every SSE client
// subscribes to the topic of exactly one surface and is replayed the events it missed: those after its
// Last-Event-ID header, or after the "last_event_id" parameter the page was rendered with.
func NewMain(dispatcher Dispatcher, surfaces *chat.Registry, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		alx.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger = logger.With(slog.String("module", "handlers"))
	replies := newReplyReplayer(replayBufferSize)

	return Main{
		sseSrv: &sse.Server{
			Provider: &sse.Joe{Replayer: replies},
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				query := s.Req.URL.Query()
				surfaceID := query.Get(surfaceIDParam)
				if _, ok := surfaces.Get(surfaceID); !ok {
					logger.Warn("SSE subscription for unknown surface", slog.String("surfaceID", surfaceID))
					http.Error(s.Res, "Surface not found", http.StatusNotFound)
					return sse.Subscription{}, false
				}

				lastEventID := s.LastEventID
				if !lastEventID.IsSet() {
					id, err := sse.NewID(query.Get(lastEventIDParam))
					if err != nil || !id.IsSet() {
						id = sse.ID("0")
					}
					lastEventID = id
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: lastEventID,
					Topics:      []string{sse.DefaultTopic, surfaceTopic(surfaceID)},
				}, true
			},
		},
		replies:    replies,
		templates:  tmpl,
		dispatcher: dispatcher,
		surfaces:   surfaces,
		logger:     logger,
	}, nil
}

func surfaceTopic(surfaceID string) string {
	return fmt.Sprintf("surface-%s", surfaceID)
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// SSE requires data on every event
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
