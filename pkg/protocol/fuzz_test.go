package protocol

import (
	"testing"
)

// FuzzDecodeMessage fuzzes the inbound decoder with random bytes
func FuzzDecodeMessage(f *testing.F) {
	f.Add([]byte(`{"type":"welcome","payload":{"user":{"id":"u1","name":"new-user"}}}`))
	f.Add([]byte(`{"type":"message","payload":{"channel":"general","user":{"id":"u2","name":"bob"},"message":"hi"}}`))
	f.Add([]byte(`{"type":"channel-users","payload":{"channel":"general","users":[{"name":"bob","id":"u2"}]}}`))
	f.Add([]byte(`{"type":"channels-info","payload":{"info":[{"name":"general","user-count":1}]}}`))
	f.Add([]byte(`{"type":"user-rename","payload":{"old-name":"a","new-name":"b","user":{"id":"u2"}}}`))
	f.Add([]byte(`{"type":"welcome"}`))
	f.Add([]byte(`null`))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := DecodeMessage(data)

		// Either a typed message or an error, never both and never a panic
		if err != nil && msg != nil {
			t.Fatalf("got both message %T and error %v", msg, err)
		}
		if err == nil && msg == nil {
			t.Fatal("got neither message nor error")
		}
	})
}

// FuzzDecodeAction fuzzes the outbound decoder with random bytes
func FuzzDecodeAction(f *testing.F) {
	f.Add([]byte(`{"action":"join-channel","payload":{"target-channel":"general"}}`))
	f.Add([]byte(`{"action":"send-message","payload":{"target-channel":"general","message":"hi"}}`))
	f.Add([]byte(`{"action":"get-channels-info","payload":{}}`))
	f.Add([]byte(`{"action":7}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		action, err := DecodeAction(data)
		if err != nil && action != nil {
			t.Fatalf("got both action %T and error %v", action, err)
		}
	})
}
