package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/butembo/butembochat/pkg/protocol"
)

var (
	ErrInvalidChannel  = errors.New("channel name is empty")
	ErrNotMember       = errors.New("not a member of the channel")
	ErrMessageTooLong  = errors.New("message too long")
	ErrInvalidNickname = errors.New("nickname is empty")
	ErrNicknameTooLong = errors.New("nickname too long")
)

// handleFrame decodes one client frame and dispatches it to its handler
func (s *Server) handleFrame(sess *Session, data []byte) error {
	action, err := protocol.DecodeAction(data)
	if err != nil {
		s.metrics.RecordInvalidAction(invalidReason(err))
		return err
	}

	s.metrics.RecordActionReceived(action.ActionName())

	switch a := action.(type) {
	case *protocol.JoinChannelAction:
		return s.handleJoinChannel(sess, a)
	case *protocol.SendMessageAction:
		return s.handleSendMessage(sess, a)
	case *protocol.ChangeNameAction:
		return s.handleChangeName(sess, a)
	case *protocol.GetChannelsInfoAction:
		return s.handleGetChannelsInfo(sess)
	case *protocol.GetChannelUsersAction:
		return s.handleGetChannelUsers(sess, a)
	default:
		return fmt.Errorf("unhandled action %q", action.ActionName())
	}
}

func invalidReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownType):
		return "unknown_action"
	case errors.Is(err, protocol.ErrMissingField), errors.Is(err, protocol.ErrMissingPayload):
		return "missing_field"
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return "too_large"
	default:
		return "malformed"
	}
}

// handleJoinChannel adds the session to a channel, announces the join to
// every member including the joiner, then sends the joiner the roster
func (s *Server) handleJoinChannel(sess *Session, a *protocol.JoinChannelAction) error {
	name := strings.TrimSpace(a.TargetChannel)
	if name == "" {
		return ErrInvalidChannel
	}

	if s.sessions.Join(sess, name) {
		s.broadcast(s.sessions.Members(name), &protocol.UserJoin{Channel: name, User: sess.User()})
	}

	return s.send(sess, &protocol.ChannelUsers{Channel: name, Users: s.sessions.Roster(name)})
}

// handleSendMessage relays a chat line to every member of the channel,
// the sender included
func (s *Server) handleSendMessage(sess *Session, a *protocol.SendMessageAction) error {
	if !s.sessions.IsMember(sess, a.TargetChannel) {
		return fmt.Errorf("%w: %s", ErrNotMember, a.TargetChannel)
	}
	if len(a.Message) > s.config.MaxMessageLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLong, len(a.Message), s.config.MaxMessageLength)
	}

	s.broadcast(s.sessions.Members(a.TargetChannel), &protocol.ChatMessage{
		Channel: a.TargetChannel,
		User:    sess.User(),
		Text:    a.Message,
	})
	s.metrics.RecordMessageBroadcast()
	return nil
}

// handleChangeName renames the session and tells everyone who can see it
func (s *Server) handleChangeName(sess *Session, a *protocol.ChangeNameAction) error {
	name := strings.TrimSpace(a.NewName)
	if name == "" {
		return ErrInvalidNickname
	}
	if utf8.RuneCountInString(name) > s.config.MaxNicknameLength {
		return fmt.Errorf("%w: max %d characters", ErrNicknameTooLong, s.config.MaxNicknameLength)
	}
	if name == sess.Name() {
		return nil
	}

	old := s.sessions.Rename(sess, name)
	s.broadcast(s.sessions.Peers(sess), &protocol.UserRename{
		OldName: old,
		NewName: name,
		User:    sess.User(),
	})
	return nil
}

func (s *Server) handleGetChannelsInfo(sess *Session) error {
	return s.send(sess, &protocol.ChannelsInfo{Info: s.sessions.ChannelsInfo()})
}

func (s *Server) handleGetChannelUsers(sess *Session, a *protocol.GetChannelUsersAction) error {
	return s.send(sess, &protocol.ChannelUsers{
		Channel: a.TargetChannel,
		Users:   s.sessions.Roster(a.TargetChannel),
	})
}

// announceLeave tells the remaining members of each channel that sess left
func (s *Server) announceLeave(sess *Session, channels []string) {
	user := sess.User()
	for _, name := range channels {
		s.broadcast(s.sessions.Members(name), &protocol.UserLeave{Channel: name, User: user})
	}
}

// send queues msg for one session
func (s *Server) send(sess *Session, msg protocol.Message) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	s.deliver(sess, msg.MessageType(), data)
	return nil
}

// broadcast encodes msg once and queues it for every recipient. It returns
// the number of sessions the frame was queued for.
func (s *Server) broadcast(recipients []*Session, msg protocol.Message) int {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msg.MessageType()).Msg("encode broadcast")
		return 0
	}

	delivered := 0
	for _, sess := range recipients {
		if s.deliver(sess, msg.MessageType(), data) {
			delivered++
		}
	}
	s.metrics.RecordBroadcast(msg.MessageType(), delivered)
	return delivered
}

// deliver queues data for sess. A session whose queue is full is closed;
// its read loop then cleans up and announces the leave.
func (s *Server) deliver(sess *Session, msgType string, data []byte) bool {
	if sess.Send(data) {
		s.metrics.RecordFrameSent(msgType)
		return true
	}

	select {
	case <-sess.Done():
	default:
		s.metrics.RecordSlowConsumer()
		s.logger.Warn().Str("session", sess.ID).Str("type", msgType).Msg("send queue full, closing slow session")
		sess.Close()
	}
	return false
}
