package server

import (
	"encoding/json"
	"time"

	"github.com/lox/metasino/internal/host"
	"github.com/lox/metasino/internal/store"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	msg := &Message{
		Type:      messageType,
		Timestamp: time.Now(),
	}
	if data != nil {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = dataBytes
	}
	return msg, nil
}

// Client → Server payloads

type AuthData struct {
	Account string `json:"account"`
	Token   string `json:"token,omitempty"`
}

type OpenTableData struct {
	RequiredStartBet int64 `json:"requiredStartBet"`
}

type RegisterPlayerData struct {
	TableID  string `json:"tableId"`
	StartBet int64  `json:"startBet"`
}

// TableRefData is the payload of start_game, terminate, get_table,
// get_events and watch.
type TableRefData struct {
	TableID string `json:"tableId"`
}

// Server → Client payloads

type AuthResponseData struct {
	Success bool   `json:"success"`
	Account string `json:"account,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TableOpenedData struct {
	TableID string        `json:"tableId"`
	Table   host.Snapshot `json:"table"`
}

type TableStateData struct {
	Table host.Snapshot `json:"table"`
}

type TableListData struct {
	Tables []host.Snapshot `json:"tables"`
}

type EventListData struct {
	TableID string        `json:"tableId"`
	Events  []store.Event `json:"events"`
}

type TableEventData struct {
	Event store.Event `json:"event"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
