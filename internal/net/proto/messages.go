package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"betterhud/server/internal/game"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeCommandReply = "commandReply"
	typeActionAck    = "actionAck"
	typeActionReject = "actionReject"
	typeHeartbeat    = "heartbeat"
	typeReadyAck     = "readyAck"
)

// Client message type identifiers.
const (
	TypeReady     = "ready"
	TypeCommand   = "command"
	TypeAction    = "action"
	TypeHeartbeat = "heartbeat"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeCommandReply = typeCommandReply
	TypeActionAck    = typeActionAck
	TypeActionReject = typeActionReject
	TypeReadyAck     = typeReadyAck
)

var (
	// ErrUnknownType is returned by DecodeClientMessage for unrecognised
	// message types.
	ErrUnknownType = errors.New("proto: unknown message type")
	// ErrIncomplete is returned when a message lacks its payload.
	ErrIncomplete = errors.New("proto: incomplete message")
)

// ClientMessage is the envelope of every message a client sends.
type ClientMessage struct {
	Ver    int          `json:"ver,omitempty"`
	Type   string       `json:"type"`
	Seq    uint64       `json:"seq,omitempty"`
	Line   string       `json:"line,omitempty"`
	Action *game.Action `json:"action,omitempty"`
	SentAt int64        `json:"sentAt,omitempty"`
}

// DecodeClientMessage parses and validates a client payload.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, err
	}
	if msg.Ver != 0 && msg.Ver != Version {
		return ClientMessage{}, fmt.Errorf("proto: unsupported version %d", msg.Ver)
	}
	switch msg.Type {
	case TypeReady, TypeHeartbeat:
	case TypeCommand:
		if msg.Line == "" {
			return ClientMessage{}, fmt.Errorf("%w: command without line", ErrIncomplete)
		}
	case TypeAction:
		if msg.Action == nil || msg.Action.Name == "" {
			return ClientMessage{}, fmt.Errorf("%w: action without name", ErrIncomplete)
		}
	default:
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return msg, nil
}

// CommandReply carries the text answer to a chat command.
type CommandReply struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
	Text string `json:"text"`
}

func NewCommandReply(seq uint64, text string) CommandReply {
	return CommandReply{Ver: Version, Type: typeCommandReply, Seq: seq, Text: text}
}

// ActionAck confirms a debug inventory action.
type ActionAck struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
}

func NewActionAck(seq uint64) ActionAck {
	return ActionAck{Ver: Version, Type: typeActionAck, Seq: seq}
}

// ActionReject reports why an action was refused.
type ActionReject struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq,omitempty"`
	Reason string `json:"reason"`
}

func NewActionReject(seq uint64, reason string) ActionReject {
	return ActionReject{Ver: Version, Type: typeActionReject, Seq: seq, Reason: reason}
}

// ReadyAck confirms that overlay creation was scheduled.
type ReadyAck struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
}

func NewReadyAck(seq uint64) ReadyAck {
	return ReadyAck{Ver: Version, Type: typeReadyAck, Seq: seq}
}

// Heartbeat echoes the client clock next to the server clock.
type Heartbeat struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

func NewHeartbeat(serverTime, clientTime int64) Heartbeat {
	return Heartbeat{Ver: Version, Type: typeHeartbeat, ServerTime: serverTime, ClientTime: clientTime}
}

// JoinResponse is returned by the join endpoint.
type JoinResponse struct {
	Ver  int    `json:"ver"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewJoinResponse(player *game.Player) JoinResponse {
	return JoinResponse{Ver: Version, ID: player.ID().String(), Name: player.DisplayName()}
}
