package handlers

import (
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/tmaxmax/go-sse"
)

type replayedMessage struct {
	id     uint64
	msg    *sse.Message
	topics []string
}

// replyReplayer keeps the most recent published events so a page whose event stream reconnected, or
// connected after its reply was published, still receives it. IDs are assigned from 1, so a client
// that has seen nothing asks for everything after "0".
type replyReplayer struct {
	mu     sync.Mutex
	size   int
	lastID uint64
	buf    []replayedMessage
}

func newReplyReplayer(size int) *replyReplayer {
	return &replyReplayer{size: size}
}

// Put implements sse.Replayer.
func (r *replyReplayer) Put(msg *sse.Message, topics []string) (*sse.Message, error) {
	if len(topics) == 0 {
		return nil, sse.ErrNoTopic
	}
	if msg.ID.IsSet() {
		return nil, errors.New("message already has an ID, can't use generated ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	m := msg.Clone()
	m.ID = sse.ID(strconv.FormatUint(r.lastID, 10))

	r.buf = append(r.buf, replayedMessage{id: r.lastID, msg: m, topics: slices.Clone(topics)})
	if len(r.buf) > r.size {
		r.buf = slices.Delete(r.buf, 0, len(r.buf)-r.size)
	}
	return m, nil
}

// Replay implements sse.Replayer. Events newer than the subscription's last event ID are sent when
// they share a topic with it; an ID that is not a number replays nothing.
func (r *replyReplayer) Replay(sub sse.Subscription) error {
	since, err := strconv.ParseUint(sub.LastEventID.String(), 10, 64)
	if err != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sent := false
	for _, rm := range r.buf {
		if rm.id <= since || !slices.ContainsFunc(rm.topics, func(t string) bool {
			return slices.Contains(sub.Topics, t)
		}) {
			continue
		}
		if err := sub.Client.Send(rm.msg); err != nil {
			return err
		}
		sent = true
	}
	if !sent {
		return nil
	}
	return sub.Client.Flush()
}

// LastID returns the ID of the newest published event, "0" before the first one.
func (r *replyReplayer) LastID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strconv.FormatUint(r.lastID, 10)
}
