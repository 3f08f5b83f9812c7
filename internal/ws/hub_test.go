package ws

import (
	"encoding/json"
	"testing"
)

func drain(t *testing.T, c *Client) []outEnvelope {
	t.Helper()
	var out []outEnvelope
	for {
		select {
		case raw := <-c.send:
			var env outEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func testClient(h *Hub, uid string) *Client {
	c := newClient(h, nil, uid)
	h.Register(c)
	return c
}

func TestPublishToUserReachesAllConnections(t *testing.T) {
	h := NewHub()
	tab1 := testClient(h, "alice")
	tab2 := testClient(h, "alice")
	other := testClient(h, "bob")

	h.PublishToUser("alice", "conversation_updated", conversationPayload{ConversationID: 7})

	for i, c := range []*Client{tab1, tab2} {
		got := drain(t, c)
		if len(got) != 1 || got[0].Event != "conversation_updated" {
			t.Fatalf("tab %d got %+v", i+1, got)
		}
	}
	if got := drain(t, other); len(got) != 0 {
		t.Fatalf("bob received %+v", got)
	}
}

func TestPublishToConversationOnlyJoined(t *testing.T) {
	h := NewHub()
	joined := testClient(h, "alice")
	notJoined := testClient(h, "bob")
	h.Join(joined, 5)
	h.Join(joined, 5) // idempotent

	h.PublishToConversation(5, "new_message", conversationPayload{ConversationID: 5})

	if got := drain(t, joined); len(got) != 1 {
		t.Fatalf("joined client got %d events", len(got))
	}
	if got := drain(t, notJoined); len(got) != 0 {
		t.Fatalf("participant without the room open received %+v", got)
	}
}

func TestLeaveAndUnregisterStopDelivery(t *testing.T) {
	h := NewHub()
	c := testClient(h, "alice")
	h.Join(c, 5)
	h.Leave(c, 5)
	h.PublishToConversation(5, "new_message", nil)
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("left client received %+v", got)
	}

	h.Join(c, 6)
	h.Unregister(c)
	h.PublishToConversation(6, "new_message", nil)
	h.PublishToUser("alice", "conversation_updated", nil)
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("unregistered client received %+v", got)
	}
	if h.Online("alice") {
		t.Fatal("alice still online after unregister")
	}
}

func TestUnregisterKeepsOtherConnections(t *testing.T) {
	h := NewHub()
	tab1 := testClient(h, "alice")
	tab2 := testClient(h, "alice")
	h.Unregister(tab1)
	if !h.Online("alice") {
		t.Fatal("alice offline while a tab is still connected")
	}
	h.PublishToUser("alice", "conversation_updated", nil)
	if got := drain(t, tab2); len(got) != 1 {
		t.Fatalf("surviving tab got %d events", len(got))
	}
}

func TestRelayToOthersExcludesSender(t *testing.T) {
	h := NewHub()
	sender := testClient(h, "alice")
	peer := testClient(h, "bob")
	h.Join(sender, 5)
	h.Join(peer, 5)

	h.RelayToOthers(5, sender, "user_typing", typingPayload{ConversationID: 5, UserID: "alice"})

	if got := drain(t, sender); len(got) != 0 {
		t.Fatalf("sender received own typing event: %+v", got)
	}
	got := drain(t, peer)
	if len(got) != 1 || got[0].Event != "user_typing" {
		t.Fatalf("peer got %+v", got)
	}
}

func TestDeliveryOrderPreserved(t *testing.T) {
	h := NewHub()
	c := testClient(h, "alice")
	h.Join(c, 5)

	for i := 1; i <= 10; i++ {
		h.PublishToConversation(5, "new_message", conversationPayload{ConversationID: uint64(i)})
	}
	got := drain(t, c)
	if len(got) != 10 {
		t.Fatalf("got %d events", len(got))
	}
	for i, env := range got {
		raw, _ := json.Marshal(env.Data)
		var p conversationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if p.ConversationID != uint64(i+1) {
			t.Fatalf("event %d out of order: %+v", i, p)
		}
	}
}
