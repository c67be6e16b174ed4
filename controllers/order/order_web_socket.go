package orderControllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	clientBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// OrderUpdate is pushed to a buyer's sockets whenever one of their orders
// changes status.
type OrderUpdate struct {
	OrderID     uint               `json:"orderId"`
	Reference   string             `json:"reference"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type wsClient struct {
	buyerID uint
	conn    *websocket.Conn
	send    chan []byte
}

type buyerMessage struct {
	buyerID uint
	data    []byte
}

// Hub fans order updates out to the sockets of the owning buyer.
type Hub struct {
	clients    map[uint]map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan buyerMessage
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan buyerMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the client registry until ctx is cancelled, then closes every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.buyerID]
			if !ok {
				set = make(map[*wsClient]struct{})
				h.clients[c.buyerID] = set
			}
			set[c] = struct{}{}
			h.setCount(1)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.buyerID] {
				select {
				case c.send <- msg.data:
				default:
					// slow reader, drop it
					h.remove(c)
				}
			}

		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					h.remove(c)
				}
			}
			return
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	set, ok := h.clients[c.buyerID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.buyerID)
	}
	close(c.send)
	h.setCount(-1)
}

func (h *Hub) setCount(delta int) {
	h.mu.Lock()
	h.count += delta
	h.mu.Unlock()
}

// ClientCount is the number of registered sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// OrderChanged queues an update for the order's buyer. It never blocks.
func (h *Hub) OrderChanged(order models.Order) {
	data, err := json.Marshal(OrderUpdate{
		OrderID:     order.ID,
		Reference:   order.Reference,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		UpdatedAt:   order.UpdatedAt,
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- buyerMessage{buyerID: order.BuyerID, data: data}:
	case <-h.done:
	default:
		slog.Warn("order update dropped, hub is busy", "order_id", order.ID)
	}
}

func (h *Hub) add(c *wsClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) drop(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// GET /order/ws
func OrderWebSocketHandler(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
			return
		}

		client := &wsClient{
			buyerID: middleware.BuyerID(c),
			conn:    conn,
			send:    make(chan []byte, clientBufferSize),
		}
		if !h.add(client) {
			conn.Close()
			return
		}

		go writePump(client)
		readPump(h, client)
	}
}

func readPump(h *Hub, c *wsClient) {
	defer h.drop(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection and closes it on exit.
func writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
