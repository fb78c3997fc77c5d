package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partdraft/go/internal/draft/events"
	"github.com/mcdev12/partdraft/go/internal/draft/orchestrator"
)

// ConnectionManager manages WebSocket connections per lottery room. It is the
// presence transport rooms broadcast through.
type ConnectionManager struct {
	// Connection pools organized by lottery ID
	roomConnections map[uuid.UUID]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
	dispatcher  *Dispatcher
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID        string
	UserID    uuid.UUID // uuid.Nil for anonymous viewers
	LotteryID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time

	mu       sync.Mutex
	closed   bool
	session  *orchestrator.Session
	lastPing time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	ActionTimeout   time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
	// AllowForceStart lets a client skip the readiness check when starting.
	AllowForceStart bool
}

// BroadcastMessage is a marshaled event queued for a room
type BroadcastMessage struct {
	LotteryID uuid.UUID
	Type      events.EventType
	Data      []byte
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		ActionTimeout:   5 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager. SetRooms
// must be called before connections are accepted.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	cm := &ConnectionManager{
		roomConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
	return cm
}

// SetRooms wires the registry that connections join. The registry in turn
// broadcasts through the manager, so the two are built separately.
func (cm *ConnectionManager) SetRooms(rooms Rooms) {
	cm.dispatcher = NewDispatcher(rooms, cm.config)
}

// Start processes queued broadcasts until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Broadcast queues an event for every connection in a room. It never blocks.
func (cm *ConnectionManager) Broadcast(lotteryID uuid.UUID, event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event for broadcast")
		return
	}
	select {
	case cm.broadcastCh <- BroadcastMessage{LotteryID: lotteryID, Type: event.Type, Data: data}:
	default:
		log.Warn().
			Str("lottery_id", lotteryID.String()).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// SendTo delivers an event to a single connection
func (cm *ConnectionManager) SendTo(conn *Connection, event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for connection")
		return
	}
	if !conn.enqueue(data) {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and registers it
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID, lotteryID uuid.UUID) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		LotteryID:   lotteryID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		lastPing:    time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Str("lottery_id", lotteryID.String()).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.LotteryID] == nil {
		cm.roomConnections[conn.LotteryID] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.LotteryID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("lottery_id", conn.LotteryID.String()).
		Int("total_connections", len(cm.roomConnections[conn.LotteryID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection and tells its room it left
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.roomConnections[conn.LotteryID]
	if !exists || !connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.roomConnections, conn.LotteryID)
	}
	cm.mu.Unlock()

	session := conn.close()
	if session != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cm.config.ActionTimeout)
			defer cancel()
			if err := session.Leave(ctx, conn.ID); err != nil {
				log.Debug().Err(err).Str("connection_id", conn.ID).Msg("leave not delivered")
			}
		}()
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Str("lottery_id", conn.LotteryID.String()).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.LotteryID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if !conn.enqueue(message.Data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
		}
	}

	log.Debug().
		Str("event_type", string(message.Type)).
		Str("lottery_id", message.LotteryID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// ConnectionStats summarizes active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRooms:     len(cm.roomConnections),
		RoomConnections: make(map[string]int, len(cm.roomConnections)),
	}
	for lotteryID, connections := range cm.roomConnections {
		stats.TotalConnections += len(connections)
		stats.RoomConnections[lotteryID.String()] = len(connections)
	}
	return stats
}

// ConnectionCount is the number of open sockets across all rooms
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	n := 0
	for _, connections := range cm.roomConnections {
		n += len(connections)
	}
	return n
}

// enqueue reports false when the send buffer is full.
func (c *Connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) close() *orchestrator.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.Send)
	return c.session
}

// setSession reports false if the connection already closed.
func (c *Connection) setSession(s *orchestrator.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.session = s
	return true
}

func (c *Connection) Session() *orchestrator.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client actions until the socket closes
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.mu.Lock()
		c.lastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Manager.dispatcher.Handle(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
