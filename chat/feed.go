package chat

import "sync"

const feedBuffer = 16

// Feed is the in-process push channel: inserts fan out to the subscribers of
// the receiving user only, in publish order. Cross-instance delivery is the
// socket layer's job; the feed serves sessions mounted in this process.
type Feed struct {
	mu   sync.RWMutex
	subs map[uint]map[*Subscription]struct{}
}

// Subscription is one live receiver-filtered stream. Close it when the
// interested party unmounts, otherwise the registration leaks.
type Subscription struct {
	C      chan StoredMessage
	userID uint
	feed   *Feed
	once   sync.Once
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[uint]map[*Subscription]struct{})}
}

// Subscribe registers for messages addressed to userID.
func (f *Feed) Subscribe(userID uint) *Subscription {
	sub := &Subscription{
		C:      make(chan StoredMessage, feedBuffer),
		userID: userID,
		feed:   f,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[userID] == nil {
		f.subs[userID] = make(map[*Subscription]struct{})
	}
	f.subs[userID][sub] = struct{}{}
	return sub
}

// Close tears the subscription down and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		f := s.feed
		f.mu.Lock()
		defer f.mu.Unlock()
		if set, ok := f.subs[s.userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(f.subs, s.userID)
			}
		}
		close(s.C)
	})
}

// Publish delivers msg to every subscriber of its receiver. A subscriber
// that has fallen feedBuffer messages behind misses the event rather than
// blocking the publisher.
func (f *Feed) Publish(msg StoredMessage) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs[msg.ReceiverID] {
		select {
		case sub.C <- msg:
		default:
		}
	}
}
