package server

import (
	"net/http"
	"time"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Terminal and mobile clients send no meaningful Origin
		return true
	},
}

// HandleWebSocket upgrades the HTTP connection, welcomes the new user and
// serves its frames until the connection ends
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdown:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(protocol.MaxFrameSize)

	sess := s.sessions.CreateSession(ws)
	s.logger.Debug().
		Str("remote", ws.RemoteAddr().String()).
		Str("session", sess.ID).
		Msg("websocket connection")

	// Welcome is queued before any frame from the client is handled
	if err := s.send(sess, &protocol.Welcome{User: sess.User()}); err != nil {
		s.logger.Error().Err(err).Str("session", sess.ID).Msg("failed to send welcome")
	}

	s.wg.Add(2)
	go s.writeLoop(sess, ws)
	go s.messageLoop(sess, ws)
}

// messageLoop reads frames until the connection fails, then removes the
// session and announces its departure
func (s *Server) messageLoop(sess *Session, ws *websocket.Conn) {
	defer s.wg.Done()
	defer func() {
		left := s.sessions.RemoveSession(sess.ID)
		s.announceLeave(sess, left)
		s.logger.Debug().Str("session", sess.ID).Strs("left", left).Msg("session disconnected")
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Str("session", sess.ID).Msg("read error")
			}
			return
		}

		s.logger.Trace().Str("session", sess.ID).Int("len", len(data)).Msg("← RECV")

		if err := s.handleFrame(sess, data); err != nil {
			// The protocol has no error reply; the frame is dropped
			s.logger.Warn().Err(err).Str("session", sess.ID).Msg("rejected frame")
		}
	}
}

// writeLoop is the only writer of data frames for the session
func (s *Server) writeLoop(sess *Session, ws *websocket.Conn) {
	defer s.wg.Done()

	for {
		select {
		case data := <-sess.outgoing:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug().Err(err).Str("session", sess.ID).Msg("write error")
				sess.Close()
				return
			}
		case <-sess.done:
			return
		}
	}
}
