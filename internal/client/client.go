// Package client talks to a metasino server over its WebSocket API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/server" // Reuse message types
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

const writeWait = 10 * time.Second

// ErrClosed is returned by calls made after the connection has gone away.
var ErrClosed = errors.New("client: connection closed")

// Error is a failure reported by the server.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// EventHandler receives table events for watched tables.
type EventHandler func(store.Event)

// Client represents a WebSocket client for a metasino server
type Client struct {
	serverURL string
	logger    *log.Logger
	onEvent   EventHandler

	conn    *websocket.Conn
	writeMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	nextID    atomic.Uint64
	pendingMu sync.Mutex
	pending   map[string]chan *server.Message
}

// Option configures a Client.
type Option func(*Client)

// WithEventHandler registers fn for table events pushed by the server.
func WithEventHandler(fn EventHandler) Option {
	return func(c *Client) { c.onEvent = fn }
}

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		serverURL: serverURL,
		logger:    logger.WithPrefix("client"),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]chan *server.Message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	c.logger.Debug("Connecting to server", "url", u.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	go c.readPump()
	return nil
}

// Close closes the WebSocket connection
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn == nil {
			return
		}
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Auth identifies the connection as account and returns the account the
// server accepted. token may be empty when the server trusts clients.
func (c *Client) Auth(ctx context.Context, account, token string) (table.AccountID, error) {
	resp, err := c.request(ctx, server.MessageTypeAuth, server.AuthData{Account: account, Token: token}, server.MessageTypeAuthResponse)
	if err != nil {
		return "", err
	}
	var data server.AuthResponseData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("decode %s: %w", resp.Type, err)
	}
	return table.AccountID(data.Account), nil
}

// OpenTable opens a table staked at requiredStartBet and returns it.
func (c *Client) OpenTable(ctx context.Context, requiredStartBet table.Balance) (host.Snapshot, error) {
	resp, err := c.request(ctx, server.MessageTypeOpenTable,
		server.OpenTableData{RequiredStartBet: int64(requiredStartBet)}, server.MessageTypeTableOpened)
	if err != nil {
		return host.Snapshot{}, err
	}
	var data server.TableOpenedData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return host.Snapshot{}, fmt.Errorf("decode %s: %w", resp.Type, err)
	}
	return data.Table, nil
}

// Register joins table id with startBet.
func (c *Client) Register(ctx context.Context, id string, startBet table.Balance) (host.Snapshot, error) {
	return c.tableRequest(ctx, server.MessageTypeRegisterPlayer,
		server.RegisterPlayerData{TableID: id, StartBet: int64(startBet)})
}

// Start starts the game at table id.
func (c *Client) Start(ctx context.Context, id string) (host.Snapshot, error) {
	return c.tableRequest(ctx, server.MessageTypeStartGame, server.TableRefData{TableID: id})
}

// Terminate terminates table id.
func (c *Client) Terminate(ctx context.Context, id string) (host.Snapshot, error) {
	return c.tableRequest(ctx, server.MessageTypeTerminate, server.TableRefData{TableID: id})
}

// Table fetches the current state of table id.
func (c *Client) Table(ctx context.Context, id string) (host.Snapshot, error) {
	return c.tableRequest(ctx, server.MessageTypeGetTable, server.TableRefData{TableID: id})
}

// Watch subscribes to events of table id and returns its current state.
func (c *Client) Watch(ctx context.Context, id string) (host.Snapshot, error) {
	return c.tableRequest(ctx, server.MessageTypeWatch, server.TableRefData{TableID: id})
}

// List returns every table on the server.
func (c *Client) List(ctx context.Context) ([]host.Snapshot, error) {
	resp, err := c.request(ctx, server.MessageTypeListTables, nil, server.MessageTypeTableList)
	if err != nil {
		return nil, err
	}
	var data server.TableListData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", resp.Type, err)
	}
	return data.Tables, nil
}

// Events returns the event log of table id.
func (c *Client) Events(ctx context.Context, id string) ([]store.Event, error) {
	resp, err := c.request(ctx, server.MessageTypeGetEvents, server.TableRefData{TableID: id}, server.MessageTypeEventList)
	if err != nil {
		return nil, err
	}
	var data server.EventListData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", resp.Type, err)
	}
	return data.Events, nil
}

func (c *Client) tableRequest(ctx context.Context, messageType server.MessageType, data any) (host.Snapshot, error) {
	resp, err := c.request(ctx, messageType, data, server.MessageTypeTableState)
	if err != nil {
		return host.Snapshot{}, err
	}
	var state server.TableStateData
	if err := json.Unmarshal(resp.Data, &state); err != nil {
		return host.Snapshot{}, fmt.Errorf("decode %s: %w", resp.Type, err)
	}
	return state.Table, nil
}

// request sends a message and waits for the reply carrying the same request
// ID. Error replies are returned as *Error.
func (c *Client) request(ctx context.Context, messageType server.MessageType, data any, want server.MessageType) (*server.Message, error) {
	if c.conn == nil {
		return nil, ErrClosed
	}

	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = strconv.FormatUint(c.nextID.Add(1), 10)

	reply := make(chan *server.Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.RequestID] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.RequestID)
		c.pendingMu.Unlock()
	}()

	if err := c.write(msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-reply:
		if resp.Type == server.MessageTypeError {
			var e server.ErrorData
			if err := json.Unmarshal(resp.Data, &e); err != nil {
				return nil, fmt.Errorf("decode error reply: %w", err)
			}
			return nil, &Error{Code: e.Code, Message: e.Message}
		}
		if resp.Type != want {
			return nil, fmt.Errorf("unexpected reply %s to %s", resp.Type, messageType)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrClosed
	}
}

func (c *Client) write(msg *server.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer c.cancel()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.ctx.Err() == nil {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		if msg.Type == server.MessageTypeTableEvent {
			c.handleEvent(&msg)
			continue
		}

		c.pendingMu.Lock()
		reply, ok := c.pending[msg.RequestID]
		c.pendingMu.Unlock()
		if !ok {
			c.logger.Debug("Dropping unsolicited message", "type", msg.Type, "requestId", msg.RequestID)
			continue
		}
		reply <- &msg
	}
}

func (c *Client) handleEvent(msg *server.Message) {
	if c.onEvent == nil {
		return
	}
	var data server.TableEventData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.logger.Warn("Failed to decode table event", "error", err)
		return
	}
	c.onEvent(data.Event)
}
