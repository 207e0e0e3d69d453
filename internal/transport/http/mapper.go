package http

import (
	"encoding/json"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
)

// inboundToCommand validates a wire frame and maps it onto a core command.
// A non-nil proto.Error means the frame was understood but rejected; a
// non-nil error means the frame was unreadable.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeRoomJoin, proto.InboundTypeRoomLeave:
		var room proto.RoomData
		if err := json.Unmarshal(inbound.Data, &room); err != nil {
			return nil, nil, err
		}
		if room.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		kind := core.CommandJoinRoom
		if inbound.Type == proto.InboundTypeRoomLeave {
			kind = core.CommandLeaveRoom
		}
		return &core.Command{Kind: kind, AckID: inbound.ID, Room: room.Room}, nil, nil

	case proto.InboundTypeMessageSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, nil, err
		}
		if send.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		if send.Content == "" && len(send.Attachments) == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "content is required"}, nil
		}
		attachments := make([]core.Attachment, 0, len(send.Attachments))
		for _, a := range send.Attachments {
			attachments = append(attachments, core.Attachment{
				ID: a.ID, Name: a.Name, URL: a.URL, MimeType: a.MimeType, Size: a.Size,
			})
		}
		return &core.Command{
			Kind:  core.CommandSendMessage,
			AckID: inbound.ID,
			Room:  send.Room,
			Message: core.ChatMessage{
				Type:        core.MessageType(send.Type),
				Content:     send.Content,
				ReplyToID:   send.ReplyToID,
				Mentions:    send.Mentions,
				Attachments: attachments,
			},
		}, nil, nil

	case proto.InboundTypeMessageEdit:
		var edit proto.EditData
		if err := json.Unmarshal(inbound.Data, &edit); err != nil {
			return nil, nil, err
		}
		if edit.ID == "" || edit.Content == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "id and content are required"}, nil
		}
		return &core.Command{Kind: core.CommandEditMessage, AckID: inbound.ID, MessageID: edit.ID, Content: edit.Content}, nil, nil

	case proto.InboundTypeMessageDel:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, nil, err
		}
		if del.ID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "id is required"}, nil
		}
		return &core.Command{Kind: core.CommandDeleteMessage, AckID: inbound.ID, MessageID: del.ID}, nil, nil

	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		if typing.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{Kind: core.CommandTyping, Room: typing.Room, Typing: typing.Typing}, nil, nil

	case proto.InboundTypeHistory:
		var hist proto.HistoryData
		if err := json.Unmarshal(inbound.Data, &hist); err != nil {
			return nil, nil, err
		}
		if hist.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{Kind: core.CommandHistory, AckID: inbound.ID, Room: hist.Room, Before: hist.Before, Limit: hist.Limit}, nil, nil

	case proto.InboundTypeStatus:
		var status proto.StatusData
		if err := json.Unmarshal(inbound.Data, &status); err != nil {
			return nil, nil, err
		}
		if !core.ValidStatus(core.PresenceStatus(status.Status)) {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid status"}, nil
		}
		return &core.Command{Kind: core.CommandSetStatus, AckID: inbound.ID, Status: core.PresenceStatus(status.Status)}, nil, nil

	case proto.InboundTypeMarkRead:
		var mark proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &mark); err != nil {
			return nil, nil, err
		}
		if mark.ID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "id is required"}, nil
		}
		return &core.Command{Kind: core.CommandMarkNotificationRead, AckID: inbound.ID, NotificationID: mark.ID}, nil, nil

	case proto.InboundTypeMarkAllRead:
		return &core.Command{Kind: core.CommandMarkAllNotificationsRead, AckID: inbound.ID}, nil, nil

	case proto.InboundTypeClearNotif:
		var clear proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &clear); err != nil {
			return nil, nil, err
		}
		if clear.ID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "id is required"}, nil
		}
		return &core.Command{Kind: core.CommandClearNotification, AckID: inbound.ID, NotificationID: clear.ID}, nil, nil

	case proto.InboundTypeSubscribe:
		var sub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil {
			return nil, nil, err
		}
		if sub.DataType == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "dataType is required"}, nil
		}
		return &core.Command{Kind: core.CommandSubscribeData, AckID: inbound.ID, DataType: sub.DataType, Filters: sub.Filters}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageNew:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventMessageNew, Data: event.Message}
	case core.EventMessageEdit:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventMessageEdit, Data: event.Message}
	case core.EventMessageDelete:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventMessageDelete, Data: map[string]string{
			"id":   event.Message.ID,
			"room": event.Room,
		}}
	case core.EventTyping:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventTyping, Data: proto.TypingPayload{
			Room:   event.Room,
			User:   event.User,
			Typing: event.Typing,
		}}
	case core.EventUserOnline:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventUserOnline, Data: event.User}
	case core.EventUserOffline:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventUserOffline, Data: proto.OfflinePayload{UserID: event.UserID}}
	case core.EventPresenceSnapshot:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventPresenceUpdate, Data: event.Presence}
	case core.EventHistory:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventHistory, Data: proto.HistoryPayload{
			Room:     event.Room,
			Messages: event.Messages,
			HasMore:  event.HasMore,
		}}
	case core.EventNotification:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNotification, Data: event.Notification}
	case core.EventDataSync:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventDataSync,
			Data: proto.NewSyncPayload(event.Sync.Type, event.Sync.Version, event.Sync.Payload)}
	case core.EventAck:
		ok := event.Ack.OK
		out := proto.Outbound{Type: proto.OutboundTypeAck, ReplyTo: event.Ack.ID, OK: &ok}
		if event.Ack.Message != nil {
			out.Data = event.Ack.Message
		}
		if !ok {
			code := event.Ack.Code
			if code == "" {
				code = core.ErrCodeInternal
			}
			out.Error = &proto.Error{Code: code, Msg: event.Ack.Reason}
		}
		return out
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message}}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
