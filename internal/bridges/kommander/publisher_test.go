package kommander

import (
	"fmt"
	"testing"
)

func TestPublisher_KeepsOrderAndDrainsOnClose(t *testing.T) {
	client := newMockMQTT()
	p := newPublisher(client, 1)

	// Queued before start, sent once the worker runs.
	for i := 0; i < 5; i++ {
		p.enqueue("kommander/test-01/variable/v", []byte(fmt.Sprint(i)))
	}
	p.start()
	p.close()

	msgs := client.onTopic("kommander/test-01/variable/v")
	if len(msgs) != 5 {
		t.Fatalf("published %d, want 5", len(msgs))
	}
	for i, m := range msgs {
		if string(m.payload) != fmt.Sprint(i) || !m.retained || m.qos != 1 {
			t.Errorf("message %d = %+v", i, m)
		}
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	client := newMockMQTT()
	p := newPublisher(client, 0)
	var warnings int
	p.logWarn = func(string, ...any) { warnings++ }

	for i := 0; i < publishQueueSize+3; i++ {
		p.enqueue("kommander/test-01/status", []byte("{}"))
	}
	if got := p.dropped.Load(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
	if warnings != 1 {
		t.Errorf("warnings = %d, want 1", warnings)
	}

	// Never started: close returns without publishing.
	p.close()
	p.close()
	if n := len(client.onTopic("kommander/test-01/status")); n != 0 {
		t.Errorf("published %d before start", n)
	}
}
