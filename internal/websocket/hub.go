package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/truecar-kr/truecar-backend/internal/metrics"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
)

const sendBufferSize = 16

// ViewEvent 상세 페이지로 전송되는 조회수 변경 이벤트
type ViewEvent struct {
	Type     string `json:"type"` // "view"
	ReviewID string `json:"review_id"`
	Delta    int64  `json:"delta"`
}

// Client 리뷰 상세 페이지 하나의 WebSocket 연결
type Client struct {
	Hub      *Hub
	Conn     *Conn
	ReviewID string
	Send     chan []byte
}

func NewClient(hub *Hub, conn *Conn, reviewID string) *Client {
	return &Client{
		Hub:      hub,
		Conn:     conn,
		ReviewID: reviewID,
		Send:     make(chan []byte, sendBufferSize),
	}
}

// Hub 리뷰별 실시간 조회수 구독 관리자
type Hub struct {
	// 리뷰별 구독 클라이언트 (ReviewID -> clients)
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage 브로드캐스트 메시지
type BroadcastMessage struct {
	ReviewID string
	Message  []byte
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
	}
}

// Run Hub 실행. ctx가 끝나면 모든 연결을 닫고 반환
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.ReviewID]; !ok {
				h.rooms[client.ReviewID] = make(map[*Client]struct{})
			}
			h.rooms[client.ReviewID][client] = struct{}{}
			viewers := len(h.rooms[client.ReviewID])
			h.mu.Unlock()

			metrics.LiveViewers.Inc()
			logger.Debug("Live viewer registered", map[string]interface{}{
				"review_id": client.ReviewID,
				"viewers":   viewers,
			})

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			var stale []*Client
			for client := range h.rooms[message.ReviewID] {
				select {
				case client.Send <- message.Message:
				default:
					// Send 채널이 막혀있음 - 연결 정리
					stale = append(stale, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range stale {
				logger.Warn("Live viewer send buffer full, disconnecting", map[string]interface{}{
					"review_id": client.ReviewID,
				})
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.ReviewID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.ReviewID)
	}
	close(client.Send)
	metrics.LiveViewers.Dec()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for reviewID, clients := range h.rooms {
		for client := range clients {
			close(client.Send)
			metrics.LiveViewers.Dec()
		}
		delete(h.rooms, reviewID)
	}
}

// PublishView 조회수 +1 이벤트 전송. 채널이 가득 차면 버림
func (h *Hub) PublishView(reviewID string) {
	data, err := json.Marshal(ViewEvent{Type: "view", ReviewID: reviewID, Delta: 1})
	if err != nil {
		logger.Error("Failed to marshal view event", err, nil)
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{ReviewID: reviewID, Message: data}:
	default:
		logger.Warn("Broadcast channel full, view event dropped", map[string]interface{}{
			"review_id": reviewID,
		})
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Viewers 리뷰를 실시간으로 보고 있는 연결 수
func (h *Hub) Viewers(reviewID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[reviewID])
}
