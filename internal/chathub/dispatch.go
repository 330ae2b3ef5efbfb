package chathub

import (
	"context"
	"fmt"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
)

// Dispatch executes one command received on c. Failures are reported back to
// c alone as an error event.
func (m *ManagerService) Dispatch(ctx context.Context, c Client, cmd models.Command) {
	if err := m.dispatch(ctx, c, cmd); err != nil {
		m.log.Debug("command failed",
			zap.String("conn_id", c.GetConnID()),
			zap.String("command", cmd.Type),
			zap.Error(err),
		)
		m.deliver(c, models.ErrorEvent(cmd.Type, chaterr.Message(err)))
	}
}

func (m *ManagerService) dispatch(ctx context.Context, c Client, cmd models.Command) error {
	userID := c.GetUserID()

	switch cmd.Type {
	case models.CmdJoinRoom:
		return m.Join(ctx, c, cmd.RoomID)

	case models.CmdLeaveRoom:
		if cmd.RoomID == "" {
			return fmt.Errorf("%w: room id is required", chaterr.ErrValidation)
		}
		m.Leave(c, cmd.RoomID)
		return nil

	case models.CmdSendMessage:
		// A message accepted from the client is carried through even if the
		// connection drops mid-pipeline.
		_, err := m.Submit(context.WithoutCancel(ctx), userID, c.GetAlias(), cmd.RoomID, cmd.Content, cmd.MessageType)
		if err == nil {
			m.Typing.Stop(cmd.RoomID, userID)
		}
		return err

	case models.CmdTypingStart, models.CmdTypingStop:
		if !m.IsSubscribed(c.GetConnID(), cmd.RoomID) {
			return fmt.Errorf("%w: not joined to room %s", chaterr.ErrAuthorizationDenied, cmd.RoomID)
		}
		if cmd.Type == models.CmdTypingStart {
			m.Typing.Start(cmd.RoomID, userID, c.GetAlias())
		} else {
			m.Typing.Stop(cmd.RoomID, userID)
		}
		return nil

	case models.CmdReactToMessage:
		_, err := m.React(ctx, userID, cmd.RoomID, cmd.MessageID, cmd.Reaction)
		return err

	case models.CmdRemoveReaction:
		_, err := m.Unreact(ctx, userID, cmd.RoomID, cmd.MessageID)
		return err

	case models.CmdMarkRead:
		_, err := m.MarkRead(ctx, userID, cmd.RoomID, cmd.MessageID)
		return err

	case models.CmdUpdateStatus:
		status, ok := models.ParsePresenceStatus(cmd.Status)
		if !ok {
			return fmt.Errorf("%w: unknown status %q", chaterr.ErrValidation, cmd.Status)
		}
		_, err := m.Presence.SetStatus(userID, status)
		return err

	case models.CmdEditMessage:
		_, err := m.Edit(ctx, userID, cmd.MessageID, cmd.Content)
		return err

	case models.CmdDeleteMessage:
		_, err := m.Delete(ctx, userID, cmd.MessageID)
		return err

	case models.CmdGetMessages:
		page, err := m.History(ctx, userID, cmd.RoomID, cmd.Page, cmd.Limit)
		if err != nil {
			return err
		}
		m.deliver(c, models.NewEvent(models.EvtRoomMessages, page))
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", chaterr.ErrValidation, cmd.Type)
	}
}
