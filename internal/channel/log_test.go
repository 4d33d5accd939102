package channel

import (
	"fmt"
	"sort"
	"testing"

	"palaver/internal/models"
)

func TestLog_AppendOrder(t *testing.T) {
	l := NewLog(10)

	for i := 0; i < 5; i++ {
		l.Append("general", models.Message{Author: "alice", Text: fmt.Sprintf("msg %d", i)})
	}

	msgs := l.History("general")
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Text != fmt.Sprintf("msg %d", i) {
			t.Errorf("index %d: expected 'msg %d', got %q", i, i, m.Text)
		}
		if m.Seq != int64(i+1) {
			t.Errorf("index %d: expected seq %d, got %d", i, i+1, m.Seq)
		}
	}
}

func TestLog_EmptyHistory(t *testing.T) {
	l := NewLog(10)

	msgs := l.History("never-seen")
	if msgs == nil {
		t.Fatal("History should return an empty slice, not nil")
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty history, got %d messages", len(msgs))
	}
}

func TestLog_RetentionWrap(t *testing.T) {
	l := NewLog(3)

	for i := 0; i < 4; i++ {
		l.Append("general", models.Message{Text: fmt.Sprintf("msg %d", i)})
	}

	msgs := l.History("general")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages after wrap, got %d", len(msgs))
	}
	// msg 0 fell off; chronological order preserved.
	expected := []string{"msg 1", "msg 2", "msg 3"}
	for i, exp := range expected {
		if msgs[i].Text != exp {
			t.Errorf("index %d: expected %q, got %q", i, exp, msgs[i].Text)
		}
	}
}

func TestLog_Purge(t *testing.T) {
	l := NewLog(10)

	l.Append("pm:alice:bob", models.Message{Text: "secret"})
	if l.Len("pm:alice:bob") != 1 {
		t.Fatal("expected 1 retained message")
	}

	l.Purge("pm:alice:bob")

	msgs := l.History("pm:alice:bob")
	if len(msgs) != 0 {
		t.Errorf("expected empty history after purge, got %d", len(msgs))
	}

	// A recreated channel starts from a fresh buffer.
	stored := l.Append("pm:alice:bob", models.Message{Text: "hello again"})
	if stored.Seq != 1 {
		t.Errorf("expected seq 1 after recreation, got %d", stored.Seq)
	}
}

func TestLog_Keys(t *testing.T) {
	l := NewLog(10)

	if got := len(l.Keys()); got != 0 {
		t.Fatalf("expected no keys, got %d", got)
	}

	l.Append("general", models.Message{Text: "a"})
	l.Append("pm:alice:bob", models.Message{Text: "b"})

	keys := l.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "general" || keys[1] != "pm:alice:bob" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	l.Purge("pm:alice:bob")
	keys = l.Keys()
	if len(keys) != 1 || keys[0] != "general" {
		t.Fatalf("expected [general] after purge, got %v", keys)
	}
}

func TestLog_IndependentChannels(t *testing.T) {
	l := NewLog(10)

	l.Append("general", models.Message{Text: "a"})
	l.Append("random", models.Message{Text: "b"})

	if len(l.History("general")) != 1 || len(l.History("random")) != 1 {
		t.Error("channels should not share buffers")
	}

	l.Purge("general")
	if len(l.History("random")) != 1 {
		t.Error("purging one channel should not touch another")
	}
}
