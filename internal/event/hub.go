// Package event はユーザー単位のアプリ内イベント配信を提供する。
//
// プロフィール更新などの変更を、同じユーザーが開いている全ての画面に
// 即時反映させるためのインプロセスのpub/subハブと、
// それをServer-Sent Eventsとして配信するクライアントを含む。
package event

import (
	"encoding/json"
	"sync"
	"time"
)

// EventProfileUpdated はプロフィール変更時に配信されるイベント種別。
const EventProfileUpdated = "profileUpdated"

// Message は配信されるイベントのペイロード。
type Message struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber はイベント配信先の抽象。
type Subscriber interface {
	Send(payload []byte) error
	Close()
}

// Hub はユーザーIDをキーにした購読を管理する。
// 登録・解除・配信は専用ゴルーチンで直列化される。
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	done      chan struct{}
	closeOnce sync.Once
}

type subscription struct {
	userID string
	client Subscriber
}

type message struct {
	userID  string
	payload []byte
}

// NewHub は配信ゴルーチンを起動した状態のHubを生成する。
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			h.clients = make(map[string]map[Subscriber]struct{})
			return
		case sub := <-h.register:
			if _, ok := h.clients[sub.userID]; !ok {
				h.clients[sub.userID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.userID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.userID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.userID)
				}
			}
		case msg := <-h.broadcast:
			clients, ok := h.clients[msg.userID]
			if !ok {
				continue
			}
			for c := range clients {
				if err := c.Send(msg.payload); err != nil {
					c.Close()
					delete(clients, c)
				}
			}
			if len(clients) == 0 {
				delete(h.clients, msg.userID)
			}
		}
	}
}

// Register はユーザーのイベントストリームに購読者を追加する。
func (h *Hub) Register(userID string, client Subscriber) {
	select {
	case h.register <- subscription{userID: userID, client: client}:
	case <-h.done:
	}
}

// Unregister は購読者を解除する。
func (h *Hub) Unregister(userID string, client Subscriber) {
	select {
	case h.unreg <- subscription{userID: userID, client: client}:
	case <-h.done:
	}
}

// PublishProfileUpdated はプロフィール更新イベントを
// 該当ユーザーの全購読者に配信する。購読者がいない場合は何もしない。
func (h *Hub) PublishProfileUpdated(userID string) {
	payload, err := json.Marshal(Message{
		Type:      EventProfileUpdated,
		UserID:    userID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- message{userID: userID, payload: payload}:
	case <-h.done:
	}
}

// Shutdown は全購読者を閉じ、配信ゴルーチンを停止する。
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}
