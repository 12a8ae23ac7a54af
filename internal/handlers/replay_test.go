package handlers

import (
	"testing"

	"github.com/tmaxmax/go-sse"
)

type recordingWriter struct {
	sent    []*sse.Message
	flushes int
}

func (w *recordingWriter) Send(m *sse.Message) error {
	w.sent = append(w.sent, m)
	return nil
}

func (w *recordingWriter) Flush() error {
	w.flushes++
	return nil
}

func TestReplyReplayer(t *testing.T) {
	r := newReplyReplayer(3)
	if r.LastID() != "0" {
		t.Errorf("LastID() = %s, want 0", r.LastID())
	}

	put := func(data string, topics ...string) *sse.Message {
		t.Helper()
		m := &sse.Message{}
		m.AppendData(data)
		got, err := r.Put(m, topics)
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		return got
	}

	first := put("a", "surface-1")
	put("b", "surface-2")
	put("c", "surface-1")

	if first.ID.String() != "1" {
		t.Errorf("first ID = %s, want 1", first.ID)
	}
	if r.LastID() != "3" {
		t.Errorf("LastID() = %s, want 3", r.LastID())
	}

	tests := []struct {
		name        string
		lastEventID string
		topics      []string
		wantIDs     []string
	}{
		{name: "Nothing seen", lastEventID: "0", topics: []string{"surface-1"}, wantIDs: []string{"1", "3"}},
		{name: "Seen first", lastEventID: "1", topics: []string{"surface-1"}, wantIDs: []string{"3"}},
		{name: "Up to date", lastEventID: "3", topics: []string{"surface-1"}},
		{name: "Other topic", lastEventID: "0", topics: []string{"surface-2"}, wantIDs: []string{"2"}},
		{name: "Invalid ID", lastEventID: "abc", topics: []string{"surface-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			err := r.Replay(sse.Subscription{Client: w, LastEventID: sse.ID(tt.lastEventID), Topics: tt.topics})
			if err != nil {
				t.Fatalf("Replay() error = %v", err)
			}

			if len(w.sent) != len(tt.wantIDs) {
				t.Fatalf("replayed %d events, want %d", len(w.sent), len(tt.wantIDs))
			}
			for i, m := range w.sent {
				if m.ID.String() != tt.wantIDs[i] {
					t.Errorf("replayed[%d] ID = %s, want %s", i, m.ID, tt.wantIDs[i])
				}
			}
			if len(tt.wantIDs) > 0 && w.flushes != 1 {
				t.Errorf("flushes = %d, want 1", w.flushes)
			}
		})
	}

	t.Run("Oldest event dropped", func(t *testing.T) {
		put("d", "surface-1")

		w := &recordingWriter{}
		if err := r.Replay(sse.Subscription{Client: w, LastEventID: sse.ID("0"), Topics: []string{"surface-1"}}); err != nil {
			t.Fatal(err)
		}
		if len(w.sent) != 2 || w.sent[0].ID.String() != "3" || w.sent[1].ID.String() != "4" {
			t.Errorf("replayed %v", w.sent)
		}
	})

	t.Run("Rejects preset ID", func(t *testing.T) {
		if _, err := r.Put(&sse.Message{ID: sse.ID("9")}, []string{"surface-1"}); err == nil {
			t.Error("Put() should reject a message with an ID")
		}
		if _, err := r.Put(&sse.Message{}, nil); err == nil {
			t.Error("Put() should reject a message without topics")
		}
	})
}
