package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/unimarket/backend/internal/model"
	"github.com/unimarket/backend/internal/service"
)

type fakeChatService struct {
	getErr  error
	sendErr error
	sent    []string
	marked  []uint64
}

func (f *fakeChatService) ResolveOrCreate(ctx context.Context, productID uint64, uid string) (*service.ConversationDetail, error) {
	return nil, service.ErrNotFound
}

func (f *fakeChatService) ListConversations(ctx context.Context, uid string) ([]service.ConversationSummary, error) {
	return nil, nil
}

func (f *fakeChatService) GetConversation(ctx context.Context, convID uint64, uid string) (*service.ConversationDetail, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &service.ConversationDetail{}, nil
}

func (f *fakeChatService) ListMessages(ctx context.Context, convID uint64, uid string) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeChatService) SendMessage(ctx context.Context, convID uint64, uid, body string) (*model.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, body)
	return &model.Message{ID: 1, ConversationID: convID, SenderUID: uid, Body: body}, nil
}

func (f *fakeChatService) MarkRead(ctx context.Context, convID uint64, uid string) (string, error) {
	f.marked = append(f.marked, convID)
	return "other", nil
}

func newTestGateway(svc service.ChatService) (*Gateway, *Hub) {
	hub := NewHub()
	return NewGateway(hub, svc, nil, nil), hub
}

func frame(t *testing.T, event string, ackID *uint64, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(envelope{Event: event, AckID: ackID, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func lastAck(t *testing.T, c *Client) (outEnvelope, ackPayload) {
	t.Helper()
	got := drain(t, c)
	if len(got) == 0 {
		t.Fatal("no ack received")
	}
	env := got[len(got)-1]
	if env.Event != eventAck {
		t.Fatalf("expected ack, got %q", env.Event)
	}
	raw, _ := json.Marshal(env.Data)
	var p ackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	return env, p
}

func ackID(v uint64) *uint64 { return &v }

func TestSendMessageAck(t *testing.T) {
	svc := &fakeChatService{}
	g, hub := newTestGateway(svc)
	c := newClient(hub, nil, "buyer")
	hub.Register(c)

	g.handle(c, frame(t, eventSendMessage, ackID(3), sendMessagePayload{ConversationID: 5, Content: "hi"}))

	env, p := lastAck(t, c)
	if env.AckID == nil || *env.AckID != 3 {
		t.Fatalf("ack id = %v", env.AckID)
	}
	if !p.Success || p.Message == nil || p.Message.Body != "hi" {
		t.Fatalf("ack = %+v", p)
	}
	if len(svc.sent) != 1 {
		t.Fatalf("service called %d times", len(svc.sent))
	}
}

func TestSendMessageErrorsStayOnAck(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{"forbidden", service.ErrForbidden, "forbidden"},
		{"not found", service.ErrNotFound, "not_found"},
		{"empty body", service.ErrInvalidArgument, "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeChatService{sendErr: tt.err}
			g, hub := newTestGateway(svc)
			c := newClient(hub, nil, "stranger")
			hub.Register(c)

			g.handle(c, frame(t, eventSendMessage, ackID(1), sendMessagePayload{ConversationID: 5, Content: "x"}))

			_, p := lastAck(t, c)
			if p.Success || p.Error != tt.wantErr {
				t.Fatalf("ack = %+v", p)
			}
			// the connection survives a failed operation
			if !hub.Online("stranger") {
				t.Fatal("connection dropped on operation error")
			}
		})
	}
}

func TestJoinRequiresParticipation(t *testing.T) {
	svc := &fakeChatService{getErr: service.ErrForbidden}
	g, hub := newTestGateway(svc)
	c := newClient(hub, nil, "stranger")
	hub.Register(c)

	g.handle(c, frame(t, eventJoinConversation, ackID(1), conversationPayload{ConversationID: 5}))

	_, p := lastAck(t, c)
	if p.Error != "forbidden" {
		t.Fatalf("ack = %+v", p)
	}
	hub.PublishToConversation(5, "new_message", nil)
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("non-participant joined the room: %+v", got)
	}
}

func TestJoinThenReceive(t *testing.T) {
	svc := &fakeChatService{}
	g, hub := newTestGateway(svc)
	c := newClient(hub, nil, "buyer")
	hub.Register(c)

	g.handle(c, frame(t, eventJoinConversation, nil, conversationPayload{ConversationID: 5}))
	hub.PublishToConversation(5, "new_message", conversationPayload{ConversationID: 5})

	got := drain(t, c)
	if len(got) != 1 || got[0].Event != "new_message" {
		t.Fatalf("got %+v", got)
	}
}

func TestTypingRelay(t *testing.T) {
	svc := &fakeChatService{}
	g, hub := newTestGateway(svc)
	sender := newClient(hub, nil, "buyer")
	peer := newClient(hub, nil, "seller")
	hub.Register(sender)
	hub.Register(peer)
	hub.Join(sender, 5)
	hub.Join(peer, 5)

	g.handle(sender, frame(t, eventTypingStart, nil, conversationPayload{ConversationID: 5}))
	g.handle(sender, frame(t, eventTypingStop, nil, conversationPayload{ConversationID: 5}))

	if got := drain(t, sender); len(got) != 0 {
		t.Fatalf("sender saw own typing events: %+v", got)
	}
	got := drain(t, peer)
	if len(got) != 2 || got[0].Event != eventUserTyping || got[1].Event != eventUserStoppedTyping {
		t.Fatalf("peer got %+v", got)
	}
	raw, _ := json.Marshal(got[0].Data)
	var p typingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	if p.UserID != "buyer" || p.ConversationID != 5 {
		t.Fatalf("typing payload = %+v", p)
	}
}

func TestMarkMessagesRead(t *testing.T) {
	svc := &fakeChatService{}
	g, hub := newTestGateway(svc)
	c := newClient(hub, nil, "buyer")
	hub.Register(c)

	g.handle(c, frame(t, eventMarkMessagesRead, nil, conversationPayload{ConversationID: 9}))

	if len(svc.marked) != 1 || svc.marked[0] != 9 {
		t.Fatalf("marked = %v", svc.marked)
	}
}

func TestUnknownAndMalformedFramesIgnored(t *testing.T) {
	svc := &fakeChatService{}
	g, hub := newTestGateway(svc)
	c := newClient(hub, nil, "buyer")
	hub.Register(c)

	g.handle(c, []byte("not json"))
	g.handle(c, frame(t, "no_such_event", nil, nil))

	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("unexpected replies: %+v", got)
	}
	if !hub.Online("buyer") {
		t.Fatal("connection dropped on bad frame")
	}
}
