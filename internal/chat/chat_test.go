package chat_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/MegaGrindStone/alx/internal/models"
	"github.com/MegaGrindStone/alx/internal/prompts"
)

type mockGenerator struct {
	mu      sync.Mutex
	systems []string
	prompts []string

	response string
	err      error
	block    chan struct{}
}

func TestSurfaceSuccessfulSubmissions(t *testing.T) {
	gen := &mockGenerator{response: "=== CODE ===\n...\n100.00"}
	d := newDispatcher(gen, 0)
	s := chat.NewSurface()

	const turns = 3
	for i := 0; i < turns; i++ {
		if _, err := s.Exchange(context.Background(), d, "Solve two-sum", discardLogger()); err != nil {
			t.Fatalf("Exchange() error = %v", err)
		}
	}

	msgs := s.Messages()
	if len(msgs) != 2*turns {
		t.Fatalf("len(Messages()) = %d, want %d", len(msgs), 2*turns)
	}
	for i, msg := range msgs {
		wantRole := models.RoleUser
		if i%2 == 1 {
			wantRole = models.RoleAssistant
		}
		if msg.Role != wantRole {
			t.Errorf("Messages()[%d].Role = %s, want %s", i, msg.Role, wantRole)
		}
	}
	if s.State() != chat.StateIdle {
		t.Errorf("State() = %v, want idle", s.State())
	}
}

func TestSurfaceScenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		gen   *mockGenerator
		want  []models.Message
	}{
		{
			name:  "Success",
			input: "Solve two-sum",
			gen:   &mockGenerator{response: "=== CODE ===\n...\n100.00"},
			want: []models.Message{
				{Role: models.RoleUser, Content: "Solve two-sum"},
				{Role: models.RoleAssistant, Content: "=== CODE ===\n...\n100.00"},
			},
		},
		{
			name:  "Network error",
			input: "X",
			gen:   &mockGenerator{err: errors.New("dial tcp: connection refused")},
			want: []models.Message{
				{Role: models.RoleUser, Content: "X"},
				{Role: models.RoleAssistant, Content: chat.FallbackReply},
			},
		},
		{
			name:  "Empty input still dispatches",
			input: "",
			gen:   &mockGenerator{response: "ok"},
			want: []models.Message{
				{Role: models.RoleUser, Content: ""},
				{Role: models.RoleAssistant, Content: "ok"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := chat.NewSurface()
			d := newDispatcher(tt.gen, 0)

			if _, err := s.Exchange(context.Background(), d, tt.input, discardLogger()); err != nil {
				t.Fatalf("Exchange() error = %v", err)
			}

			got := s.Messages()
			if len(got) != len(tt.want) {
				t.Fatalf("Messages() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i].Role != tt.want[i].Role || got[i].Content != tt.want[i].Content {
					t.Errorf("Messages()[%d] = {%s, %q}, want {%s, %q}",
						i, got[i].Role, got[i].Content, tt.want[i].Role, tt.want[i].Content)
				}
			}
			if len(tt.gen.prompts) != 1 || tt.gen.prompts[0] != tt.input {
				t.Errorf("generator prompts = %q, want [%q]", tt.gen.prompts, tt.input)
			}
		})
	}
}

func TestSurfaceRejectsConcurrentSubmission(t *testing.T) {
	gen := &mockGenerator{response: "done", block: make(chan struct{})}
	d := newDispatcher(gen, 0)
	s := chat.NewSurface()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.Exchange(context.Background(), d, "first", discardLogger()); err != nil {
			t.Errorf("Exchange() error = %v", err)
		}
	}()

	waitFor(t, func() bool { return s.State() == chat.StateSubmitting })

	if _, err := s.Submit("second"); !errors.Is(err, chat.ErrBusy) {
		t.Errorf("Submit() while busy error = %v, want %v", err, chat.ErrBusy)
	}
	if got := len(s.Messages()); got != 1 {
		t.Errorf("len(Messages()) while busy = %d, want 1", got)
	}

	close(gen.block)
	<-done

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[1].Content != "done" {
		t.Errorf("Messages() = %+v", msgs)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("dispatches = %d, want 1", len(gen.prompts))
	}
}

func TestSurfaceResolveWithoutSubmission(t *testing.T) {
	s := chat.NewSurface()

	if _, err := s.Succeed("x"); !errors.Is(err, chat.ErrNotSubmitting) {
		t.Errorf("Succeed() error = %v, want %v", err, chat.ErrNotSubmitting)
	}
	if _, err := s.Fail(errors.New("boom")); !errors.Is(err, chat.ErrNotSubmitting) {
		t.Errorf("Fail() error = %v, want %v", err, chat.ErrNotSubmitting)
	}
	if len(s.Messages()) != 0 {
		t.Errorf("Messages() should stay empty")
	}
}

func TestSurfaceFailKeepsUserMessage(t *testing.T) {
	s := chat.NewSurface()

	um, err := s.Submit("keep me")
	if err != nil {
		t.Fatal(err)
	}
	am, err := s.Fail(errors.New("provider down"))
	if err != nil {
		t.Fatal(err)
	}

	if am.Content != chat.FallbackReply || am.Role != models.RoleAssistant {
		t.Errorf("Fail() = %+v", am)
	}
	msgs := s.Messages()
	if msgs[0] != um {
		t.Errorf("user message changed: got %+v, want %+v", msgs[0], um)
	}
}

func TestDispatcher(t *testing.T) {
	tmpl, err := prompts.Load("legacy")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Forwards template and prompt", func(t *testing.T) {
		gen := &mockGenerator{response: "  raw\n"}
		d := chat.NewDispatcher(gen, tmpl, 0, discardLogger())

		got, err := d.Dispatch(context.Background(), "Solve two-sum")
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if got != "  raw\n" {
			t.Errorf("Dispatch() = %q, want response unmodified", got)
		}
		if gen.systems[0] != tmpl.Text {
			t.Errorf("system prompt was not the template text")
		}
		if gen.prompts[0] != "Solve two-sum" {
			t.Errorf("prompt = %q", gen.prompts[0])
		}
	})

	t.Run("Propagates failure", func(t *testing.T) {
		cause := errors.New("unauthorized")
		d := chat.NewDispatcher(&mockGenerator{err: cause}, tmpl, 0, discardLogger())

		if _, err := d.Dispatch(context.Background(), "x"); !errors.Is(err, cause) {
			t.Errorf("Dispatch() error = %v, want %v", err, cause)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		gen := &mockGenerator{block: make(chan struct{})}
		defer close(gen.block)
		d := chat.NewDispatcher(gen, tmpl, 20*time.Millisecond, discardLogger())

		if _, err := d.Dispatch(context.Background(), "x"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Dispatch() error = %v, want %v", err, context.DeadlineExceeded)
		}
	})
}

func TestExchangeLogsFailureOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	d := chat.NewDispatcher(&mockGenerator{err: errors.New("quota exceeded")},
		prompts.Template{Name: "test", Text: "instructions"}, 0, logger)
	s := chat.NewSurface()

	if _, err := s.Exchange(context.Background(), d, "X", logger); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if got := strings.Count(buf.String(), "level=ERROR"); got != 1 {
		t.Errorf("error log lines = %d, want 1:\n%s", got, buf.String())
	}
	if !strings.Contains(buf.String(), "surfaceID="+s.ID()) {
		t.Errorf("error log does not name the surface:\n%s", buf.String())
	}
}

func TestRegistry(t *testing.T) {
	r := chat.NewRegistry()

	idle := r.New()
	busy := r.New()
	if _, err := busy.Submit("in flight"); err != nil {
		t.Fatal(err)
	}

	if got, ok := r.Get(idle.ID()); !ok || got != idle {
		t.Errorf("Get() = %v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Errorf("Get() found a missing surface")
	}

	if removed := r.Sweep(time.Hour); removed != 0 {
		t.Errorf("Sweep(1h) removed %d, want 0", removed)
	}

	time.Sleep(5 * time.Millisecond)
	if removed := r.Sweep(time.Millisecond); removed != 1 {
		t.Errorf("Sweep(1ms) removed %d, want 1", removed)
	}
	if _, ok := r.Get(busy.ID()); !ok {
		t.Errorf("surface with submission in flight was swept")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func (m *mockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.systems = append(m.systems, system)
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func newDispatcher(gen chat.Generator, timeout time.Duration) chat.Dispatcher {
	return chat.NewDispatcher(gen, prompts.Template{Name: "test", Text: "instructions"}, timeout, discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
