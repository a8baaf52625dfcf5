package chat_test

import (
	"testing"
	"time"

	"classboard-service/chat"
)

func TestFeedDeliversToReceiverOnly(t *testing.T) {
	feed := chat.NewFeed()

	subA := feed.Subscribe(1)
	defer subA.Close()
	subB := feed.Subscribe(2)
	defer subB.Close()

	feed.Publish(chat.StoredMessage{ID: 10, SenderID: 2, ReceiverID: 1, Content: "for A"})

	select {
	case got := <-subA.C:
		if got.ID != 10 {
			t.Errorf("got message %d, want 10", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver subscription never fired")
	}

	select {
	case got := <-subB.C:
		t.Fatalf("wrong receiver notified: %+v", got)
	default:
	}
}

func TestFeedFanOut(t *testing.T) {
	feed := chat.NewFeed()

	first := feed.Subscribe(1)
	defer first.Close()
	second := feed.Subscribe(1)
	defer second.Close()

	feed.Publish(chat.StoredMessage{ID: 7, ReceiverID: 1})

	for _, sub := range []*chat.Subscription{first, second} {
		select {
		case got := <-sub.C:
			if got.ID != 7 {
				t.Errorf("got message %d, want 7", got.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the publish")
		}
	}
}

func TestFeedCloseStopsDelivery(t *testing.T) {
	feed := chat.NewFeed()

	sub := feed.Subscribe(1)
	sub.Close()
	sub.Close() // idempotent

	feed.Publish(chat.StoredMessage{ID: 1, ReceiverID: 1})

	if _, open := <-sub.C; open {
		t.Fatal("channel still open after Close")
	}
}

func TestFeedSlowSubscriberDoesNotBlock(t *testing.T) {
	feed := chat.NewFeed()

	sub := feed.Subscribe(1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			feed.Publish(chat.StoredMessage{ID: uint(i + 1), ReceiverID: 1})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
