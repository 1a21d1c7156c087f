package event

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// SSEClient はServer-Sent EventsとしてイベントをHTTPレスポンスに書き出す。
// Hubの配信ゴルーチンとハートビートの両方から呼ばれるため、書き込みは排他する。
type SSEClient struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	closed  bool
}

// NewSSEClient はSSEClientを生成する。
func NewSSEClient(w io.Writer, flusher http.Flusher) *SSEClient {
	return &SSEClient{writer: w, flusher: flusher}
}

// Send はdataイベントをストリームに書き出す。
// 書き込みに失敗したクライアントは閉じ、以後の送信はio.EOFを返す。
func (c *SSEClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if _, err := fmt.Fprintf(c.writer, "data: %s\n\n", payload); err != nil {
		c.closed = true
		slog.Warn("sse send failed", slog.String("error", err.Error()))
		return err
	}
	c.flusher.Flush()
	return nil
}

// Heartbeat は接続維持のためのコメントフレームを書き出す。
func (c *SSEClient) Heartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if _, err := fmt.Fprint(c.writer, ": ping\n\n"); err != nil {
		c.closed = true
		return err
	}
	c.flusher.Flush()
	return nil
}

// Close はストリームを閉じた状態にする。
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

var _ Subscriber = (*SSEClient)(nil)
