package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// chanSubscriber は受信ペイロードをチャネルに流すテスト用購読者。
type chanSubscriber struct {
	received chan []byte
	sendErr  error
	mu       sync.Mutex
	closed   bool
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{received: make(chan []byte, 8)}
}

func (s *chanSubscriber) Send(payload []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.received <- payload
	return nil
}

func (s *chanSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *chanSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ Subscriber = (*chanSubscriber)(nil)

func waitForPayload(t *testing.T, sub *chanSubscriber) []byte {
	t.Helper()
	select {
	case payload := <-sub.received:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event payload")
		return nil
	}
}

func TestHub_PublishProfileUpdated_DeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	sub := newChanSubscriber()
	hub.Register("user-1", sub)

	hub.PublishProfileUpdated("user-1")

	payload := waitForPayload(t, sub)

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if msg.Type != EventProfileUpdated {
		t.Errorf("type = %q, want %q", msg.Type, EventProfileUpdated)
	}
	if msg.UserID != "user-1" {
		t.Errorf("userID = %q, want %q", msg.UserID, "user-1")
	}
}

func TestHub_Publish_OnlyReachesOwnUser(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	alice := newChanSubscriber()
	bob := newChanSubscriber()
	hub.Register("alice", alice)
	hub.Register("bob", bob)

	hub.PublishProfileUpdated("alice")
	waitForPayload(t, alice)

	select {
	case <-bob.received:
		t.Error("event for alice must not reach bob")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_MultipleSubscribersSameUser_AllReceive(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	// 同一ユーザーが複数タブを開いているケース
	tab1 := newChanSubscriber()
	tab2 := newChanSubscriber()
	hub.Register("user-1", tab1)
	hub.Register("user-1", tab2)

	hub.PublishProfileUpdated("user-1")

	waitForPayload(t, tab1)
	waitForPayload(t, tab2)
}

func TestHub_Unregister_StopsDelivery(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	sub := newChanSubscriber()
	hub.Register("user-1", sub)
	hub.Unregister("user-1", sub)

	hub.PublishProfileUpdated("user-1")

	select {
	case <-sub.received:
		t.Error("unregistered subscriber must not receive events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_FailedSend_RemovesSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	broken := newChanSubscriber()
	broken.sendErr = errors.New("connection reset")
	hub.Register("user-1", broken)

	hub.PublishProfileUpdated("user-1")

	// 配信失敗した購読者はクローズされる
	deadline := time.After(2 * time.Second)
	for !broken.isClosed() {
		select {
		case <-deadline:
			t.Fatal("broken subscriber should have been closed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHub_PublishWithoutSubscribers_DoesNotBlock(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	done := make(chan struct{})
	go func() {
		hub.PublishProfileUpdated("nobody")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish without subscribers must not block")
	}
}

func TestHub_Shutdown_ClosesSubscribers(t *testing.T) {
	hub := NewHub()

	sub := newChanSubscriber()
	hub.Register("user-1", sub)

	hub.Shutdown()

	deadline := time.After(2 * time.Second)
	for !sub.isClosed() {
		select {
		case <-deadline:
			t.Fatal("subscriber should be closed on shutdown")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// シャットダウン後の操作がブロックしないこと
	hub.PublishProfileUpdated("user-1")
	hub.Register("user-1", newChanSubscriber())
}

// nopFlusher はテスト用のno-op Flusher。
type nopFlusher struct{}

func (nopFlusher) Flush() {}

func TestSSEClient_Send_WritesDataFrame(t *testing.T) {
	var buf bytes.Buffer
	client := NewSSEClient(&buf, nopFlusher{})

	if err := client.Send([]byte(`{"type":"profileUpdated"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "data: ") {
		t.Errorf("output = %q, want data frame", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Errorf("output = %q, frame must end with blank line", got)
	}

	// data行がSSEとしてパース可能なこと
	scanner := bufio.NewScanner(strings.NewReader(got))
	scanner.Scan()
	if scanner.Text() != `data: {"type":"profileUpdated"}` {
		t.Errorf("first line = %q", scanner.Text())
	}
}

func TestSSEClient_Heartbeat_WritesCommentFrame(t *testing.T) {
	var buf bytes.Buffer
	client := NewSSEClient(&buf, nopFlusher{})

	if err := client.Heartbeat(); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), ": ") {
		t.Errorf("output = %q, heartbeat must be a comment frame", buf.String())
	}
}

func TestSSEClient_SendAfterClose_ReturnsEOF(t *testing.T) {
	var buf bytes.Buffer
	client := NewSSEClient(&buf, nopFlusher{})

	client.Close()

	if err := client.Send([]byte("x")); err != io.EOF {
		t.Errorf("Send() after close = %v, want io.EOF", err)
	}
	if err := client.Heartbeat(); err != io.EOF {
		t.Errorf("Heartbeat() after close = %v, want io.EOF", err)
	}
	if buf.Len() != 0 {
		t.Errorf("no bytes should be written after close, got %q", buf.String())
	}
}

// errWriter は常に書き込みに失敗するWriter。
type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestSSEClient_WriteFailure_ClosesClient(t *testing.T) {
	client := NewSSEClient(errWriter{}, nopFlusher{})

	if err := client.Send([]byte("x")); err == nil {
		t.Fatal("expected error from failed write")
	}
	// 失敗後はクローズ済み扱い
	if err := client.Send([]byte("y")); err != io.EOF {
		t.Errorf("Send() after failure = %v, want io.EOF", err)
	}
}
