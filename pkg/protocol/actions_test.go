package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeActionWireFormat(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{
			name:   "join-channel",
			action: &JoinChannelAction{TargetChannel: "general"},
			want:   `{"action":"join-channel","payload":{"target-channel":"general"}}`,
		},
		{
			name:   "send-message",
			action: &SendMessageAction{TargetChannel: "general", Message: "hi"},
			want:   `{"action":"send-message","payload":{"target-channel":"general","message":"hi"}}`,
		},
		{
			name:   "change-name",
			action: &ChangeNameAction{NewName: "alice"},
			want:   `{"action":"change-name","payload":{"new-name":"alice"}}`,
		},
		{
			name:   "get-channels-info",
			action: &GetChannelsInfoAction{},
			want:   `{"action":"get-channels-info","payload":{}}`,
		},
		{
			name:   "get-channel-users",
			action: &GetChannelUsersAction{TargetChannel: "general"},
			want:   `{"action":"get-channel-users","payload":{"target-channel":"general"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeAction(tt.action)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			decoded, err := DecodeAction(data)
			require.NoError(t, err)
			assert.Equal(t, tt.action, decoded)
		})
	}
}

func TestParseActionErrors(t *testing.T) {
	t.Run("unknown action", func(t *testing.T) {
		_, err := DecodeAction([]byte(`{"action":"leave-channel","payload":{}}`))
		assert.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("join without target", func(t *testing.T) {
		_, err := DecodeAction([]byte(`{"action":"join-channel","payload":{}}`))
		assert.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("send without message", func(t *testing.T) {
		_, err := DecodeAction([]byte(`{"action":"send-message","payload":{"target-channel":"general"}}`))
		assert.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("change-name with number", func(t *testing.T) {
		_, err := DecodeAction([]byte(`{"action":"change-name","payload":{"new-name":3}}`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("users without target", func(t *testing.T) {
		_, err := DecodeAction([]byte(`{"action":"get-channel-users","payload":{}}`))
		assert.ErrorIs(t, err, ErrMissingField)
	})
}
