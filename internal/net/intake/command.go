package intake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"betterhud/server/internal/command"
	"betterhud/server/internal/game"
	"betterhud/server/internal/net/proto"
)

// World is the part of the game world client messages act on.
type World interface {
	Ready(ctx context.Context, id uuid.UUID) error
	Apply(id uuid.UUID, action game.Action) error
}

// Commands executes chat command lines.
type Commands interface {
	Dispatch(ctx context.Context, sender command.Sender, line string) string
}

// Context carries the collaborators a staged message is routed to.
type Context struct {
	World    World
	Commands Commands
	Now      func() time.Time
}

// StageClientMessage routes one decoded client message for player and
// returns the reply to write back, or nil when nothing should be sent.
func StageClientMessage(ctx context.Context, deps Context, player *game.Player, msg proto.ClientMessage) (any, error) {
	if player == nil {
		return nil, game.ErrUnknownPlayer
	}
	switch msg.Type {
	case proto.TypeReady:
		if deps.World == nil {
			return nil, errors.New("intake: no world")
		}
		if err := deps.World.Ready(ctx, player.ID()); err != nil {
			return nil, err
		}
		return proto.NewReadyAck(msg.Seq), nil
	case proto.TypeCommand:
		if deps.Commands == nil {
			return nil, errors.New("intake: no command dispatcher")
		}
		sender := command.Sender{Name: player.DisplayName(), PlayerID: player.ID(), IsPlayer: true}
		return proto.NewCommandReply(msg.Seq, deps.Commands.Dispatch(ctx, sender, msg.Line)), nil
	case proto.TypeAction:
		if deps.World == nil || msg.Action == nil {
			return proto.NewActionReject(msg.Seq, "invalid action"), nil
		}
		if err := deps.World.Apply(player.ID(), *msg.Action); err != nil {
			return proto.NewActionReject(msg.Seq, err.Error()), nil
		}
		return proto.NewActionAck(msg.Seq), nil
	case proto.TypeHeartbeat:
		now := time.Now
		if deps.Now != nil {
			now = deps.Now
		}
		return proto.NewHeartbeat(now().UnixMilli(), msg.SentAt), nil
	default:
		return nil, proto.ErrUnknownType
	}
}
