package client

import (
	"slices"

	"github.com/butembo/butembochat/pkg/protocol"
)

// Outbound actions. Each encodes one frame and hands it to the connection.
// They never block and report whether the frame was queued; while not
// Connected they do nothing and return false.

// JoinChannel asks the server to add the local user to channel. An empty
// name is ignored.
func (c *Client) JoinChannel(channel string) bool {
	if channel == "" {
		return false
	}
	if !c.send(&protocol.JoinChannelAction{TargetChannel: channel}) {
		return false
	}

	c.joinedMu.Lock()
	if !slices.Contains(c.joined, channel) {
		c.joined = append(c.joined, channel)
	}
	c.joinedMu.Unlock()
	return true
}

// SendMessage posts text to channel
func (c *Client) SendMessage(channel, text string) bool {
	return c.send(&protocol.SendMessageAction{TargetChannel: channel, Message: text})
}

// ChangeUserName requests a new display name for the local user
func (c *Client) ChangeUserName(newName string) bool {
	return c.send(&protocol.ChangeNameAction{NewName: newName})
}

// RequestChannelsInfo asks for the server's channel list
func (c *Client) RequestChannelsInfo() bool {
	return c.send(&protocol.GetChannelsInfoAction{})
}

// RequestChannelUsers asks for the roster of channel
func (c *Client) RequestChannelUsers(channel string) bool {
	return c.send(&protocol.GetChannelUsersAction{TargetChannel: channel})
}

// JoinedChannels returns channels joined through this client, in join order
func (c *Client) JoinedChannels() []string {
	c.joinedMu.Lock()
	defer c.joinedMu.Unlock()
	return slices.Clone(c.joined)
}

func (c *Client) send(a protocol.Action) bool {
	data, err := protocol.EncodeAction(a)
	if err != nil {
		c.logger.Error().Err(err).Str("action", a.ActionName()).Msg("encode action")
		return false
	}
	if !c.conn.Send(data) {
		return false
	}
	c.metrics.RecordFrameSent(a.ActionName())
	return true
}
