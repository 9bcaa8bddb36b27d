package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// Client → Server message types
const (
	MessageTypeAuth           MessageType = "auth"
	MessageTypeOpenTable      MessageType = "open_table"
	MessageTypeRegisterPlayer MessageType = "register_player"
	MessageTypeStartGame      MessageType = "start_game"
	MessageTypeTerminate      MessageType = "terminate"
	MessageTypeGetTable       MessageType = "get_table"
	MessageTypeListTables     MessageType = "list_tables"
	MessageTypeGetEvents      MessageType = "get_events"
	MessageTypeWatch          MessageType = "watch"
)

// Server → Client message types
const (
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeTableOpened  MessageType = "table_opened"
	MessageTypeTableState   MessageType = "table_state"
	MessageTypeTableList    MessageType = "table_list"
	MessageTypeEventList    MessageType = "event_list"
	MessageTypeTableEvent   MessageType = "table_event"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
