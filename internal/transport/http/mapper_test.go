package http

import (
	"encoding/json"
	"testing"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
)

func frame(id, kind string, payload any) proto.Inbound {
	raw, _ := json.Marshal(payload)
	return proto.Inbound{ID: id, Type: kind, Data: raw}
}

func TestInboundToCommandMapsSend(t *testing.T) {
	cmd, protoErr, err := inboundToCommand(frame("m1", proto.InboundTypeMessageSend, proto.SendData{
		Room:     "general",
		Content:  "hi",
		Mentions: []string{"bob"},
	}))
	if err != nil || protoErr != nil {
		t.Fatalf("unexpected rejection: %v / %+v", err, protoErr)
	}
	if cmd.Kind != core.CommandSendMessage || cmd.AckID != "m1" || cmd.Room != "general" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.Message.Content != "hi" || len(cmd.Message.Mentions) != 1 {
		t.Fatalf("message payload lost: %+v", cmd.Message)
	}
}

func TestInboundToCommandRejectsEmptyContent(t *testing.T) {
	_, protoErr, err := inboundToCommand(frame("m1", proto.InboundTypeMessageSend, proto.SendData{Room: "general"}))
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if protoErr == nil || protoErr.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", protoErr)
	}
}

func TestInboundToCommandRejectsUnknownType(t *testing.T) {
	_, protoErr, err := inboundToCommand(proto.Inbound{Type: "bogus"})
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if protoErr == nil || protoErr.Code != "invalid_message" {
		t.Fatalf("expected invalid_message, got %+v", protoErr)
	}
}

func TestInboundToCommandRejectsInvalidStatus(t *testing.T) {
	_, protoErr, err := inboundToCommand(frame("s1", proto.InboundTypeStatus, proto.StatusData{Status: "sleeping"}))
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if protoErr == nil || protoErr.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", protoErr)
	}
}

func TestOutboundFromEventAck(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind: core.EventAck,
		Ack:  &core.Ack{ID: "m1", OK: true, Message: &core.ChatMessage{ID: "msg-1"}},
	})
	if out.Type != proto.OutboundTypeAck || out.ReplyTo != "m1" {
		t.Fatalf("unexpected ack frame: %+v", out)
	}
	if out.OK == nil || !*out.OK || out.Error != nil {
		t.Fatalf("positive ack malformed: %+v", out)
	}

	failed := outboundFromEvent(&core.Event{
		Kind: core.EventAck,
		Ack:  &core.Ack{ID: "m2", Code: core.ErrCodeNoCapability, Reason: "missing capability: write"},
	})
	if failed.OK == nil || *failed.OK || failed.Error == nil {
		t.Fatalf("failed ack malformed: %+v", failed)
	}
	if failed.Error.Code != core.ErrCodeNoCapability {
		t.Fatalf("ack error code not carried: %+v", failed.Error)
	}

	// An ack without a code still produces a valid error frame.
	uncoded := outboundFromEvent(&core.Event{
		Kind: core.EventAck,
		Ack:  &core.Ack{ID: "m3", Reason: "boom"},
	})
	if uncoded.Error == nil || uncoded.Error.Code != core.ErrCodeInternal {
		t.Fatalf("expected internal fallback code, got %+v", uncoded.Error)
	}
}

func TestOutboundFromEventDeleteCarriesIDOnly(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:    core.EventMessageDelete,
		Room:    "general",
		Message: &core.ChatMessage{ID: "msg-1", ChannelID: "general"},
	})
	data, ok := out.Data.(map[string]string)
	if !ok || data["id"] != "msg-1" || data["room"] != "general" {
		t.Fatalf("unexpected delete payload: %+v", out.Data)
	}
	if out.Event != proto.EventMessageDelete {
		t.Fatalf("unexpected event name: %s", out.Event)
	}
}
