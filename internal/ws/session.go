package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ComprosoftCEO/lines-of-battle/internal/mediator"
	apperrors "github.com/ComprosoftCEO/lines-of-battle/internal/platform/errors"
	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
	"github.com/ComprosoftCEO/lines-of-battle/internal/token"
)

const (
	// writeWait bounds a single outbound frame write.
	writeWait = 10 * time.Second

	// sendBufferSize is the outbound queue depth per session. A client
	// that falls this far behind the broadcast stream is dropped.
	sendBufferSize = 256
)

// Session is the server side of one authenticated connection. It serializes
// all inbound requests to the mediator and relays broadcasts back out.
type Session struct {
	identity token.Identity
	conn     *websocket.Conn
	mediator *mediator.Mediator
	logger   *log.Logger

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(identity token.Identity, conn *websocket.Conn, m *mediator.Mediator, logger *log.Logger) *Session {
	return &Session{
		identity: identity,
		conn:     conn,
		mediator: m,
		logger:   logger,
		send:     make(chan []byte, sendBufferSize),
		closed:   make(chan struct{}),
	}
}

// SessionID identifies the session to the mediator.
func (s *Session) SessionID() uuid.UUID {
	return s.identity.ID
}

// Send enqueues an outbound frame without blocking. It reports false when
// the session is closed or its queue is full; the mediator then drops the
// session.
func (s *Session) Send(frame []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Close asks the session to shut down. Frames already queued are flushed
// before the close frame; frames sent after Close are refused.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// refuse answers a connection the mediator rejected: one error frame, a
// close frame, then the socket goes down. The pumps never start.
func (s *Session) refuse(err *apperrors.Error) {
	deadline := time.Now().Add(writeWait)
	s.conn.SetWriteDeadline(deadline)
	s.conn.WriteMessage(websocket.TextMessage, err.MarshalResponse())
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Description))
	s.conn.Close()
}

// run pumps the connection until either side closes it, then detaches from
// the mediator.
func (s *Session) run() {
	go s.writePump()
	s.readPump()
	s.mediator.Disconnect(s)
	s.Close()
}

func (s *Session) readPump() {
	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			s.sendError(apperrors.New(apperrors.CodeWebsocketError, "Unsupported frame type"))
			continue
		}

		request, perr := protocol.ParseRequest(payload)
		if perr != nil {
			s.logger.Printf("bad frame from %s: %v", s.identity.ID, perr)
			s.sendError(perr)
			continue
		}
		s.dispatch(request)
	}
}

func (s *Session) writePump() {
	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.conn.Close()
				return
			}
		case <-s.closed:
			// Flush anything already queued (a terminal error frame in
			// particular) before the close frame goes out.
			for drained := false; !drained; {
				select {
				case frame := <-s.send:
					s.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
						s.conn.Close()
						return
					}
				default:
					drained = true
				}
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.conn.Close()
			return
		}
	}
}

// dispatch routes a parsed request, enforcing the role policy: players may
// send everything, viewers only the queries.
func (s *Session) dispatch(request protocol.Request) {
	switch request := request.(type) {
	case protocol.GetServerStateRequest:
		s.sendResponse(protocol.NewServerStateResponse(s.mediator.ServerState()))
		return
	case protocol.GetRegisteredPlayersRequest:
		registered := s.mediator.RegisteredPlayers()
		s.sendResponse(protocol.NewRegisteredPlayersResponse(registered.Players, registered.Order))
		return
	case protocol.RegisterRequest:
		if s.identity.Role != token.RolePlayer {
			s.sendError(viewerRefusal())
			return
		}
		if err := s.mediator.Register(s.identity.ID, s.identity.Name); err != nil {
			s.sendError(err)
		}
	case protocol.UnregisterRequest:
		if s.identity.Role != token.RolePlayer {
			s.sendError(viewerRefusal())
			return
		}
		if err := s.mediator.Unregister(s.identity.ID); err != nil {
			s.sendError(err)
		}
	case protocol.ActionRequest:
		if s.identity.Role != token.RolePlayer {
			s.sendError(viewerRefusal())
			return
		}
		if err := s.mediator.SubmitAction(s.identity.ID, request.Action); err != nil {
			s.sendError(err)
		}
	}
}

func viewerRefusal() *apperrors.Error {
	return apperrors.New(apperrors.CodeCannotSendAction, "Viewers cannot send player requests")
}

func (s *Session) sendResponse(response any) {
	frame, err := protocol.Marshal(response)
	if err != nil {
		s.logger.Printf("failed to marshal response for %s: %v", s.identity.ID, err)
		return
	}
	if !s.Send(frame) {
		s.Close()
	}
}

func (s *Session) sendError(err *apperrors.Error) {
	if !s.Send(err.MarshalResponse()) {
		s.Close()
	}
}
