package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/metasino/internal/auth"
	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/table"
	"github.com/lox/metasino/internal/tableid"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound messages buffered per connection
	sendBufferSize = 256
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = errors.New("server: connection closed")

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	host      *host.Host
	validator *Validator
	auth      auth.Validator
	timeout   time.Duration
	logger    *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	account  table.AccountID
	watching map[string]bool
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, h *host.Host, v *Validator, av auth.Validator, timeout time.Duration, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:      conn,
		send:      make(chan *Message, sendBufferSize),
		host:      h,
		validator: v,
		auth:      av,
		timeout:   timeout,
		logger:    logger.WithPrefix("conn"),
		ctx:       ctx,
		cancel:    cancel,
		watching:  make(map[string]bool),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. A client that stops reading
// long enough to fill its buffer is disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection", "account", c.Account())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Account returns the authenticated account, or "" before auth.
func (c *Connection) Account() table.AccountID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

func (c *Connection) setAccount(account table.AccountID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = account
}

// IsWatching reports whether the client asked for events of tableID.
func (c *Connection) IsWatching(tableID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching[tableID]
}

func (c *Connection) watch(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching[tableID] = true
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// A malformed field elsewhere in the envelope should not cost
			// the client its correlation ID.
			var envelope struct {
				RequestID string `json:"requestId"`
			}
			_ = json.Unmarshal(raw, &envelope)
			c.logger.Debug("Undecodable message", "requestId", envelope.RequestID, "error", err)
			c.sendError(envelope.RequestID, CodeInvalidMessage, "invalid message: "+err.Error())
			continue
		}
		if err := c.validator.ValidateMessage(raw); err != nil {
			c.logger.Debug("Rejected message", "type", msg.Type, "error", err)
			c.sendError(msg.RequestID, CodeInvalidMessage, err.Error())
			continue
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage dispatches a validated message
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "account", c.Account(), "requestId", msg.RequestID)

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if !c.decode(msg, &data) {
			return
		}
		account, err := c.auth.Validate(ctx, data.Account, data.Token)
		if err != nil {
			c.logger.Info("Auth rejected", "account", data.Account, "error", err)
			c.fail(msg, err)
			return
		}
		c.setAccount(account)
		c.logger.Info("Client authenticated", "account", account)
		c.reply(msg, MessageTypeAuthResponse, AuthResponseData{Success: true, Account: string(account)})

	case MessageTypeOpenTable:
		var data OpenTableData
		if !c.decode(msg, &data) {
			return
		}
		snap, err := c.host.Open(ctx, c.Account(), table.Balance(data.RequiredStartBet))
		if err != nil {
			c.fail(msg, err)
			return
		}
		c.reply(msg, MessageTypeTableOpened, TableOpenedData{TableID: snap.ID, Table: snap})

	case MessageTypeRegisterPlayer:
		var data RegisterPlayerData
		if !c.decode(msg, &data) || !c.checkTableID(msg, data.TableID) {
			return
		}
		snap, err := c.host.Register(ctx, data.TableID, c.Account(), table.Balance(data.StartBet))
		c.replyTable(msg, snap, err)

	case MessageTypeStartGame:
		var data TableRefData
		if !c.decode(msg, &data) || !c.checkTableID(msg, data.TableID) {
			return
		}
		snap, err := c.host.Start(ctx, data.TableID, c.Account())
		c.replyTable(msg, snap, err)

	case MessageTypeTerminate:
		var data TableRefData
		if !c.decode(msg, &data) || !c.checkTableID(msg, data.TableID) {
			return
		}
		snap, err := c.host.Terminate(ctx, data.TableID, c.Account())
		c.replyTable(msg, snap, err)

	case MessageTypeGetTable:
		var data TableRefData
		if !c.decode(msg, &data) || !c.checkTableID(msg, data.TableID) {
			return
		}
		snap, err := c.host.Table(ctx, data.TableID)
		c.replyTable(msg, snap, err)

	case MessageTypeWatch:
		var data TableRefData
		if !c.decode(msg, &data) || !c.checkTableID(msg, data.TableID) {
			return
		}
		snap, err := c.host.Table(ctx, data.TableID)
		if err != nil {
			c.fail(msg, err)
			return
		}
		c.watch(data.TableID)
		c.reply(msg, MessageTypeTableState, TableStateData{Table: snap})

	case MessageTypeListTables:
		tables, err := c.host.List(ctx)
		if err != nil {
			c.fail(msg, err)
			return
		}
		c.reply(msg, MessageTypeTableList, TableListData{Tables: tables})

	case MessageTypeGetEvents:
		var data TableRefData
		if !c.decode(msg, &data) || !c.checkTableID(msg, data.TableID) {
			return
		}
		events, err := c.host.Events(ctx, data.TableID)
		if err != nil {
			c.fail(msg, err)
			return
		}
		c.reply(msg, MessageTypeEventList, EventListData{TableID: data.TableID, Events: events})

	default:
		c.sendError(msg.RequestID, CodeUnknownMessageType, "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) decode(msg *Message, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.sendError(msg.RequestID, CodeInvalidMessage, "Failed to parse "+msg.Type.String()+" data")
		return false
	}
	return true
}

// checkTableID rejects malformed table IDs before they reach the host.
func (c *Connection) checkTableID(msg *Message, id string) bool {
	if err := tableid.Validate(id); err != nil {
		c.sendError(msg.RequestID, CodeInvalidMessage, err.Error())
		return false
	}
	return true
}

// replyTable answers msg with the snapshot a host operation produced, or
// with its error.
func (c *Connection) replyTable(msg *Message, snap host.Snapshot, err error) {
	if err != nil {
		c.fail(msg, err)
		return
	}
	c.reply(msg, MessageTypeTableState, TableStateData{Table: snap})
}

func (c *Connection) reply(req *Message, messageType MessageType, data any) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	msg.RequestID = req.RequestID
	_ = c.SendMessage(msg)
}

func (c *Connection) fail(req *Message, err error) {
	code := ErrorCode(err)
	if code == CodeInternal {
		c.logger.Error("Request failed", "type", req.Type, "account", c.Account(), "error", err)
	}
	c.sendError(req.RequestID, code, err.Error())
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}
