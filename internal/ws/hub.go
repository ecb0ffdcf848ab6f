package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// Event — конверт серверного сообщения подписчикам.
type Event struct {
	Type      string            `json:"type"`
	Task      *dto.TaskResponse `json:"task,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Hub владеет множеством открытых соединений. Множество мутируется
// только горутиной Run — регистрация, отписка, рассылка и ответы на
// пинги идут через каналы, поэтому блокировки не нужны. Каналом send
// подписчика тоже владеет хаб: только горутина Run пишет в него и
// закрывает его. Доставка best-effort: событие, случившееся до
// подключения клиента, он не увидит никогда, полное состояние
// перечитывается по REST.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	pong       chan *Client

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 64),
		pong:       make(chan *Client, 16),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// источники фильтрует CORS-слой роутера
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("WS: Остановка рассылки", zap.Int("clients", len(h.clients)))
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			logger.Info("WS: Подписчик подключён", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Info("WS: Подписчик отключён", zap.Int("clients", len(h.clients)))
			}

		case client := <-h.pong:
			// уже отключённый подписчик просто игнорируется: его send
			// закрыт, писать туда нельзя
			if _, ok := h.clients[client]; ok {
				select {
				case client.send <- pongMessage:
				default:
				}
			}

		case event := <-h.broadcast:
			msg, err := json.Marshal(event)
			if err != nil {
				logger.Error("WS: Ошибка сериализации события", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// переполненный буфер — клиент мёртв или
					// безнадёжно отстал; остальных это не касается
					delete(h.clients, client)
					close(client.send)
					logger.Warn("WS: Подписчик отстал и отключён",
						zap.Int("clients", len(h.clients)))
				}
			}
		}
	}
}

func (h *Hub) TaskCreated(task dto.TaskResponse) {
	h.publish(Event{Type: EventTaskCreated, Task: &task, Timestamp: time.Now().UTC()})
}

func (h *Hub) TaskUpdated(task dto.TaskResponse) {
	h.publish(Event{Type: EventTaskUpdated, Task: &task, Timestamp: time.Now().UTC()})
}

func (h *Hub) TaskDeleted(id uuid.UUID) {
	h.publish(Event{Type: EventTaskDeleted, TaskID: id.String(), Timestamp: time.Now().UTC()})
}

func (h *Hub) publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		logger.Warn("WS: Очередь рассылки переполнена, событие отброшено",
			zap.String("type", event.Type))
	}
}

// ServeWS переводит HTTP-запрос в websocket-соединение и запускает
// насосы чтения и записи клиента.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "WS: Запрос подключения")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WS: Ошибка установления соединения", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 32),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
