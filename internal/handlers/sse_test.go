package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/MegaGrindStone/alx/internal/handlers"
	"github.com/tmaxmax/go-sse"
)

func TestSSEDeliversReply(t *testing.T) {
	tests := []struct {
		name       string
		dispatcher *mockDispatcher
		want       string
	}{
		{
			name:       "Rendered reply",
			dispatcher: &mockDispatcher{response: "Use **fast IO**."},
			want:       "<strong>fast IO</strong>",
		},
		{
			name:       "Fallback on dispatch failure",
			dispatcher: &mockDispatcher{err: errors.New("network error")},
			want:       chat.FallbackReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surfaces := chat.NewRegistry()
			s := surfaces.New()
			srv := newTestServer(t, tt.dispatcher, surfaces)

			events := subscribe(t, srv.URL+"/sse?surface_id="+s.ID()+"&last_event_id=0", "")

			resp, err := http.PostForm(srv.URL+"/chats", url.Values{
				"surface_id": {s.ID()},
				"message":    {"Solve two-sum"},
			})
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("POST /chats status = %d", resp.StatusCode)
			}

			ev := nextEvent(t, events)
			if ev.Type != "messages" {
				t.Errorf("event type = %q, want messages", ev.Type)
			}
			if !strings.Contains(ev.Data, tt.want) {
				t.Errorf("event data = %s, want to contain %s", ev.Data, tt.want)
			}
			if !strings.Contains(ev.Data, `data-streaming-state="ended"`) {
				t.Errorf("event data is not a finished message: %s", ev.Data)
			}
		})
	}
}

func TestSSEReplaysMissedReply(t *testing.T) {
	surfaces := chat.NewRegistry()
	s := surfaces.New()
	other := surfaces.New()
	srv := newTestServer(t, &mockDispatcher{response: "late answer"}, surfaces)

	for _, id := range []string{other.ID(), s.ID()} {
		resp, err := http.PostForm(srv.URL+"/chats", url.Values{"surface_id": {id}, "message": {"X"}})
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		waitFor(t, func() bool {
			sf, _ := surfaces.Get(id)
			return sf.State() == chat.StateIdle
		})
	}

	tests := []struct {
		name        string
		url         string
		lastEventID string
	}{
		{
			name:        "Reconnect with Last-Event-ID header",
			url:         srv.URL + "/sse?surface_id=" + s.ID(),
			lastEventID: "0",
		},
		{
			name: "Page baseline parameter",
			url:  srv.URL + "/sse?surface_id=" + s.ID() + "&last_event_id=0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := nextEvent(t, subscribe(t, tt.url, tt.lastEventID))

			if ev.Type != "messages" || !strings.Contains(ev.Data, "late answer") {
				t.Errorf("replayed event = %+v", ev)
			}
			msgs := s.Messages()
			if !strings.Contains(ev.Data, msgs[1].ID) {
				t.Errorf("replayed event is not this surface's reply: %s", ev.Data)
			}
		})
	}
}

func TestHandleHomeCarriesLastEventID(t *testing.T) {
	surfaces := chat.NewRegistry()
	s := surfaces.New()
	srv := newTestServer(t, &mockDispatcher{response: "ok"}, surfaces)

	resp, err := http.PostForm(srv.URL+"/chats", url.Values{"surface_id": {s.ID()}, "message": {"X"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	waitFor(t, func() bool { return s.State() == chat.StateIdle })

	// The publish follows the state change
	events := subscribe(t, srv.URL+"/sse?surface_id="+s.ID()+"&last_event_id=0", "")
	nextEvent(t, events)

	w := httptest.NewRecorder()
	srv.Config.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?surface_id="+s.ID(), nil))

	if !strings.Contains(w.Body.String(), `data-last-event-id="1"`) {
		t.Errorf("home page does not carry the last event ID: %s", w.Body.String())
	}
}

func TestSSERejectsUnknownSurface(t *testing.T) {
	srv := newTestServer(t, &mockDispatcher{}, chat.NewRegistry())

	resp, err := http.Get(srv.URL + "/sse?surface_id=missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /sse status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func newTestServer(t *testing.T, d handlers.Dispatcher, surfaces *chat.Registry) *httptest.Server {
	t.Helper()

	main, err := handlers.NewMain(d, surfaces, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", main.HandleHome)
	mux.HandleFunc("/chats", main.HandleChats)
	mux.HandleFunc("/sse", main.HandleSSE)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		_ = main.Shutdown(context.Background())
		srv.Close()
	})
	return srv
}

// subscribe opens an event stream in the background. The request is made from a goroutine because
// no response headers arrive before the first event.
func subscribe(t *testing.T, streamURL, lastEventID string) <-chan sse.Event {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events := make(chan sse.Event, 8)
	go func() {
		defer close(events)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
		if err != nil {
			return
		}
		if lastEventID != "" {
			req.Header.Set("Last-Event-ID", lastEventID)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}

func nextEvent(t *testing.T, events <-chan sse.Event) sse.Event {
	t.Helper()

	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event stream closed before an event arrived")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event in time")
	}
	return sse.Event{}
}
