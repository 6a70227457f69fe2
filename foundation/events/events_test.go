package events_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/events"
)

func TestEvents(t *testing.T) {
	evts := events.New()

	id1, ch1 := evts.Acquire()
	id2, ch2 := evts.Acquire()
	if id1 == id2 {
		t.Fatalf("Should get a unique id per subscriber: %s", id1)
	}

	evts.Send("block mined")

	for _, ch := range []<-chan string{ch1, ch2} {
		if msg := <-ch; msg != "block mined" {
			t.Fatalf("Should receive the message, got %q", msg)
		}
	}

	if err := evts.Release(id1); err != nil {
		t.Fatalf("Should be able to release a subscriber: %v", err)
	}
	if _, open := <-ch1; open {
		t.Fatal("Should close the channel on release.")
	}
	if err := evts.Release(id1); err == nil {
		t.Fatal("Should not release a subscriber twice.")
	}

	// A subscriber that doesn't read must not block the sender.
	for i := 0; i < 500; i++ {
		evts.Send("flood")
	}

	evts.Shutdown()
	if evts.Count() != 0 {
		t.Fatalf("Should remove every subscriber on shutdown, got %d", evts.Count())
	}

	var n int
	for range ch2 {
		n++
	}
	if n != 100 {
		t.Fatalf("Should buffer 100 messages before dropping, got %d", n)
	}
}
