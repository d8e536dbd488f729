package services

import (
	"log/slog"
	"sync"

	"bulk-email-sender/models"

	"github.com/gorilla/websocket"
)

type progressMessage struct {
	session string
	update  models.ProgressUpdate
}

// WebSocketService pushes batch progress to the browser tabs of the session
// that started the batch.
type WebSocketService struct {
	clients   map[*websocket.Conn]string
	mu        sync.Mutex
	broadcast chan progressMessage
	done      chan struct{}
	logger    *slog.Logger
}

func NewWebSocketService(logger *slog.Logger) *WebSocketService {
	ws := &WebSocketService{
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan progressMessage, 100),
		done:      make(chan struct{}),
		logger:    logger,
	}
	go ws.handleBroadcasts()
	return ws
}

func (ws *WebSocketService) AddClient(session string, conn *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.clients[conn] = session
}

func (ws *WebSocketService) RemoveClient(conn *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.clients, conn)
	conn.Close()
}

// Progress returns a ProgressFunc publishing to session's clients. Updates are
// dropped rather than blocking the sender when the queue is full.
func (ws *WebSocketService) Progress(session string) ProgressFunc {
	return func(update models.ProgressUpdate) {
		select {
		case ws.broadcast <- progressMessage{session: session, update: update}:
		default:
			ws.logger.Debug("progress update dropped", "email", update.Email)
		}
	}
}

// Close stops the broadcast loop and disconnects every client.
func (ws *WebSocketService) Close() {
	close(ws.done)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for client := range ws.clients {
		client.Close()
		delete(ws.clients, client)
	}
}

func (ws *WebSocketService) handleBroadcasts() {
	for {
		select {
		case <-ws.done:
			return
		case msg := <-ws.broadcast:
			ws.send(msg)
		}
	}
}

func (ws *WebSocketService) send(msg progressMessage) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for client, session := range ws.clients {
		if session != msg.session {
			continue
		}
		err := client.WriteJSON(map[string]interface{}{
			"type": "progress",
			"data": msg.update,
		})
		if err != nil {
			delete(ws.clients, client)
			client.Close()
		}
	}
}
