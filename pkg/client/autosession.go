package client

import "github.com/rs/zerolog"

// AutoSession is an observer that restores the local user's session after
// each welcome and keeps the persisted preferences up to date.
//
// On welcome it renames to the last nickname (when AutoSetNickname is on)
// and rejoins persisted channels (when RejoinChannels is on). It records
// renames and joins/leaves of the local user as they are reported by the
// server, so only server-confirmed changes are persisted.
type AutoSession struct {
	BaseObserver

	client ActionSender
	state  StateInterface
	logger zerolog.Logger

	AutoSetNickname bool
	RejoinChannels  bool
}

// NewAutoSession creates an AutoSession with both behaviors enabled
func NewAutoSession(client ActionSender, state StateInterface, logger zerolog.Logger) *AutoSession {
	return &AutoSession{
		client:          client,
		state:           state,
		logger:          logger,
		AutoSetNickname: true,
		RejoinChannels:  true,
	}
}

func (a *AutoSession) OnConnected() {
	if err := a.state.RecordConnection(a.client.Address()); err != nil {
		a.logger.Warn().Err(err).Msg("failed to record connection")
	}
}

func (a *AutoSession) OnWelcome(myID, myName string) {
	if a.AutoSetNickname {
		if nick := a.state.GetLastNickname(); nick != "" && nick != myName {
			a.logger.Debug().Str("nickname", nick).Msg("restoring nickname")
			a.client.ChangeUserName(nick)
		}
	}

	if !a.RejoinChannels {
		return
	}
	channels, err := a.state.GetJoinedChannels()
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to load joined channels")
		return
	}
	for _, channel := range channels {
		a.client.JoinChannel(channel)
	}
}

func (a *AutoSession) OnUserRename(newName, oldName, userName, userID string) {
	if !a.isLocal(userID) {
		return
	}
	if err := a.state.SetLastNickname(newName); err != nil {
		a.logger.Warn().Err(err).Msg("failed to save nickname")
	}
}

func (a *AutoSession) OnUserJoin(channel, userName, userID string) {
	if !a.isLocal(userID) {
		return
	}
	if err := a.state.AddJoinedChannel(channel); err != nil {
		a.logger.Warn().Err(err).Str("channel", channel).Msg("failed to save joined channel")
	}
}

func (a *AutoSession) OnUserLeave(channel, userName, userID string) {
	if !a.isLocal(userID) {
		return
	}
	if err := a.state.RemoveJoinedChannel(channel); err != nil {
		a.logger.Warn().Err(err).Str("channel", channel).Msg("failed to forget joined channel")
	}
}

func (a *AutoSession) isLocal(userID string) bool {
	local, ok := a.client.LocalUser()
	return ok && local.ID == userID
}
