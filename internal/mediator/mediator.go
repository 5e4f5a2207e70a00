// Package mediator implements the session mediator: the single coordinator
// that owns the registry, the server state machine, the lobby countdown, the
// tick loop, and the broadcast fan-out.
//
// The mediator runs on one goroutine and drains a typed request mailbox;
// sessions and timers never touch its state directly.
package mediator

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ComprosoftCEO/lines-of-battle/internal/platform/errors"
	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
)

// Engine is the mediator's view of the scripted game engine. It is only
// ever invoked from the mediator goroutine.
type Engine interface {
	Init(players []uuid.UUID, ticksPerGame int) (protocol.GameState, error)
	Update(actions map[uuid.UUID]protocol.PlayerAction, ticksLeft int) (protocol.GameState, []uuid.UUID, error)
}

// Session is the mediator's handle on one connected client. Send must not
// block: it reports false when the session's outbound queue is full, which
// the mediator treats as a disconnect.
type Session interface {
	SessionID() uuid.UUID
	Send(frame []byte) bool
	Close()
}

// Config carries the tunable game parameters. The interval fields default
// to one-second lobby ticks and SecondsPerTick game ticks; tests shrink
// them.
type Config struct {
	MinPlayers       int
	MaxPlayers       int
	LobbyWaitSeconds int
	TicksPerGame     int
	SecondsPerTick   int

	CountdownInterval time.Duration
	TickInterval      time.Duration

	Logger *log.Logger
}

// Mediator coordinates every session and drives the game clock.
type Mediator struct {
	cfg    Config
	engine Engine
	logger *log.Logger

	requests chan request
	done     chan struct{}

	state      protocol.ServerState
	registered map[uuid.UUID]string  // id -> display name
	players    map[uuid.UUID]Session // live player sessions, one per id
	viewers    map[Session]struct{}

	turnOrder   []uuid.UUID
	world       protocol.GameState
	inbox       *ActionInbox
	secondsLeft int
	ticksLeft   int

	tick  *time.Ticker
	tickC <-chan time.Time
}

// New creates a mediator in the registration state. Run must be started
// before any request is served.
func New(engine Engine, cfg Config) *Mediator {
	if cfg.CountdownInterval <= 0 {
		cfg.CountdownInterval = time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Duration(cfg.SecondsPerTick) * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Mediator{
		cfg:         cfg,
		engine:      engine,
		logger:      logger,
		requests:    make(chan request, 64),
		done:        make(chan struct{}),
		state:       protocol.StateRegistration,
		registered:  make(map[uuid.UUID]string),
		players:     make(map[uuid.UUID]Session),
		viewers:     make(map[Session]struct{}),
		inbox:       NewActionInbox(),
		secondsLeft: cfg.LobbyWaitSeconds,
	}
}

// Run drains the mailbox and drives the lobby countdown and the tick loop
// until the context is cancelled. It must be called exactly once.
func (m *Mediator) Run(ctx context.Context) {
	defer close(m.done)

	countdown := time.NewTicker(m.cfg.CountdownInterval)
	defer countdown.Stop()
	defer m.stopTicking()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.requests:
			m.handle(req)
		case <-countdown.C:
			m.lobbyTick()
		case <-m.tickC:
			m.gameTick()
		}
	}
}

//
// Public request surface, called from session goroutines.
//

// ConnectPlayer attaches a player session, enforcing one live session per
// player id.
func (m *Mediator) ConnectPlayer(s Session) *apperrors.Error {
	reply := make(chan *apperrors.Error, 1)
	return m.roundTrip(connectPlayerRequest{session: s, reply: reply}, reply)
}

// ConnectViewer attaches a viewer session to the broadcast fan-out.
func (m *Mediator) ConnectViewer(s Session) *apperrors.Error {
	reply := make(chan *apperrors.Error, 1)
	return m.roundTrip(connectViewerRequest{session: s, reply: reply}, reply)
}

// Disconnect detaches a session, applying the per-state disconnect effects.
func (m *Mediator) Disconnect(s Session) {
	select {
	case m.requests <- disconnectRequest{session: s}:
	case <-m.done:
	}
}

// Register admits the player for the upcoming round.
func (m *Mediator) Register(id uuid.UUID, name string) *apperrors.Error {
	reply := make(chan *apperrors.Error, 1)
	return m.roundTrip(registerRequest{id: id, name: name, reply: reply}, reply)
}

// Unregister withdraws the player from the upcoming round.
func (m *Mediator) Unregister(id uuid.UUID) *apperrors.Error {
	reply := make(chan *apperrors.Error, 1)
	return m.roundTrip(unregisterRequest{id: id, reply: reply}, reply)
}

// SubmitAction queues the player's action for the current tick.
func (m *Mediator) SubmitAction(id uuid.UUID, action protocol.PlayerAction) *apperrors.Error {
	reply := make(chan *apperrors.Error, 1)
	return m.roundTrip(actionRequest{id: id, action: action, reply: reply}, reply)
}

// ServerState reports the current lifecycle state.
func (m *Mediator) ServerState() protocol.ServerState {
	reply := make(chan protocol.ServerState, 1)
	select {
	case m.requests <- serverStateRequest{reply: reply}:
	case <-m.done:
		return protocol.StateFatalError
	}
	select {
	case state := <-reply:
		return state
	case <-m.done:
		return protocol.StateFatalError
	}
}

// RegisteredPlayers reports the registry and, outside of registration, the
// frozen turn order.
func (m *Mediator) RegisteredPlayers() RegisteredPlayers {
	reply := make(chan RegisteredPlayers, 1)
	select {
	case m.requests <- registeredPlayersRequest{reply: reply}:
	case <-m.done:
		return RegisteredPlayers{Players: protocol.Registry{}}
	}
	select {
	case result := <-reply:
		return result
	case <-m.done:
		return RegisteredPlayers{Players: protocol.Registry{}}
	}
}

func (m *Mediator) roundTrip(req request, reply chan *apperrors.Error) *apperrors.Error {
	stopped := apperrors.New(apperrors.CodeWebsocketError, "Server is shutting down")
	select {
	case m.requests <- req:
	case <-m.done:
		return stopped
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return stopped
	}
}

//
// Mailbox handlers. Everything below runs on the mediator goroutine.
//

func (m *Mediator) handle(req request) {
	switch req := req.(type) {
	case connectPlayerRequest:
		req.reply <- m.handleConnectPlayer(req.session)
	case connectViewerRequest:
		req.reply <- m.handleConnectViewer(req.session)
	case disconnectRequest:
		m.handleDisconnect(req.session)
	case registerRequest:
		req.reply <- m.handleRegister(req.id, req.name)
	case unregisterRequest:
		req.reply <- m.handleUnregister(req.id)
	case actionRequest:
		req.reply <- m.handleAction(req.id, req.action)
	case serverStateRequest:
		req.reply <- m.state
	case registeredPlayersRequest:
		req.reply <- m.handleRegisteredPlayers()
	}
}

func (m *Mediator) handleConnectPlayer(s Session) *apperrors.Error {
	id := s.SessionID()

	if m.state == protocol.StateFatalError {
		return apperrors.New(apperrors.CodeGameEngineCrash, "Game engine crashed")
	}
	if _, exists := m.players[id]; exists {
		return apperrors.Newf(apperrors.CodeAlreadyConnected,
			"Player already connected on another websocket", "player id: %s", id)
	}
	if !m.state.CanChangeRegistration() {
		if _, registered := m.registered[id]; !registered {
			return apperrors.Newf(apperrors.CodeNotRegistered,
				"Player not registered to play in the game", "player id: %s", id)
		}
	}

	m.players[id] = s
	return nil
}

func (m *Mediator) handleConnectViewer(s Session) *apperrors.Error {
	if m.state == protocol.StateFatalError {
		return apperrors.New(apperrors.CodeGameEngineCrash, "Game engine crashed")
	}
	m.viewers[s] = struct{}{}
	return nil
}

func (m *Mediator) handleDisconnect(s Session) {
	if _, ok := m.viewers[s]; ok {
		delete(m.viewers, s)
		return
	}

	id := s.SessionID()
	current, ok := m.players[id]
	if !ok || current != s {
		// A stale disconnect from a session that was already replaced.
		return
	}
	delete(m.players, id)

	// During registration a dropped player also leaves the registry.
	if m.state == protocol.StateRegistration {
		if _, registered := m.registered[id]; registered {
			m.removeRegistered(id)
		}
	}
}

func (m *Mediator) handleRegister(id uuid.UUID, name string) *apperrors.Error {
	if !m.state.CanChangeRegistration() {
		return apperrors.New(apperrors.CodeFailedToRegister,
			"Failed to register: game already started")
	}

	_, already := m.registered[id]
	if !already && len(m.registered) >= m.cfg.MaxPlayers {
		return apperrors.Newf(apperrors.CodeFailedToRegister,
			"Failed to register: too many players registered",
			"%d maximum allowed", m.cfg.MaxPlayers)
	}

	belowBefore := len(m.registered) < m.cfg.MinPlayers
	m.registered[id] = name

	// Crossing the quorum threshold arms a fresh countdown.
	if belowBefore && len(m.registered) >= m.cfg.MinPlayers {
		m.secondsLeft = m.cfg.LobbyWaitSeconds
	}

	m.broadcastRegistrationUpdate()
	return nil
}

func (m *Mediator) handleUnregister(id uuid.UUID) *apperrors.Error {
	if !m.state.CanChangeRegistration() {
		return apperrors.New(apperrors.CodeFailedToUnregister,
			"Failed to unregister: game already started")
	}
	if _, ok := m.registered[id]; !ok {
		return apperrors.Newf(apperrors.CodeFailedToUnregister,
			"Failed to unregister: player is not registered", "player id: %s", id)
	}

	m.removeRegistered(id)
	return nil
}

// removeRegistered drops a registry entry, resetting the countdown when the
// lobby falls below quorum, and broadcasts the new registration state.
func (m *Mediator) removeRegistered(id uuid.UUID) {
	delete(m.registered, id)
	if len(m.registered) < m.cfg.MinPlayers {
		m.secondsLeft = m.cfg.LobbyWaitSeconds
	}
	m.broadcastRegistrationUpdate()
}

func (m *Mediator) handleAction(id uuid.UUID, action protocol.PlayerAction) *apperrors.Error {
	if !m.state.CanSendAction() {
		return apperrors.New(apperrors.CodeCannotSendAction,
			"Cannot send action: game has not started yet")
	}
	if _, alive := m.world.Players[id.String()]; !alive {
		return apperrors.New(apperrors.CodeCannotSendAction,
			"Cannot send action: player has been killed")
	}
	if !m.inbox.Put(id, action) {
		return apperrors.New(apperrors.CodeCannotSendAction,
			"Cannot send action: already sent player action")
	}
	return nil
}

func (m *Mediator) handleRegisteredPlayers() RegisteredPlayers {
	result := RegisteredPlayers{Players: m.registry()}
	if m.state != protocol.StateRegistration {
		result.Order = append([]uuid.UUID(nil), m.turnOrder...)
	}
	return result
}

//
// Lobby countdown and game clock.
//

func (m *Mediator) lobbyTick() {
	if m.state != protocol.StateRegistration || len(m.registered) < m.cfg.MinPlayers {
		return
	}

	m.secondsLeft--
	m.broadcast(protocol.NewGameStartingSoon(m.registry(), m.cfg.MinPlayers, m.cfg.MaxPlayers, m.secondsLeft))
	if m.secondsLeft <= 0 {
		m.startGame()
	}
}

func (m *Mediator) startGame() {
	// Freeze the turn order as a random permutation of the registry.
	m.turnOrder = make([]uuid.UUID, 0, len(m.registered))
	for id := range m.registered {
		m.turnOrder = append(m.turnOrder, id)
	}
	rand.Shuffle(len(m.turnOrder), func(i, j int) {
		m.turnOrder[i], m.turnOrder[j] = m.turnOrder[j], m.turnOrder[i]
	})

	m.state = protocol.StateInitializing
	m.broadcast(protocol.NewGameStarting(m.registry(), m.turnOrder))

	world, err := m.engine.Init(m.turnOrder, m.cfg.TicksPerGame)
	if err != nil {
		m.fatal(err)
		return
	}

	m.world = world
	m.ticksLeft = m.cfg.TicksPerGame
	m.state = protocol.StateRunning
	m.inbox.Reset()
	m.broadcast(protocol.NewInit(world, m.ticksLeft, m.cfg.SecondsPerTick))

	m.tick = time.NewTicker(m.cfg.TickInterval)
	m.tickC = m.tick.C
}

func (m *Mediator) gameTick() {
	if m.state != protocol.StateRunning {
		return
	}

	actions := m.inbox.Drain()
	world, kills, err := m.engine.Update(actions, m.ticksLeft)
	if err != nil {
		m.fatal(err)
		return
	}
	m.world = world

	for _, id := range kills {
		m.broadcast(protocol.NewPlayerKilled(id))
	}
	m.ticksLeft--

	actionsTaken := make(map[string]protocol.PlayerAction, len(actions))
	for id, action := range actions {
		actionsTaken[id.String()] = action
	}

	if winners, ended := m.endCondition(); ended {
		m.broadcast(protocol.NewGameEnded(winners, world, actionsTaken))
		m.endRound()
		return
	}

	m.broadcast(protocol.NewNextState(world, actionsTaken, m.ticksLeft, m.cfg.SecondsPerTick))
}

// endCondition evaluates the three end-of-round rules against the current
// world.
func (m *Mediator) endCondition() ([]uuid.UUID, bool) {
	switch remaining := len(m.world.Players); {
	case remaining == 0:
		return []uuid.UUID{}, true
	case remaining == 1:
		for id := range m.world.Players {
			return []uuid.UUID{uuid.MustParse(id)}, true
		}
		return nil, false // unreachable
	case m.ticksLeft <= 0:
		winners := make([]uuid.UUID, 0, remaining)
		for _, id := range m.turnOrder {
			if _, alive := m.world.Players[id.String()]; alive {
				winners = append(winners, id)
			}
		}
		return winners, true
	default:
		return nil, false
	}
}

// endRound returns the server to registration with a cleared world, an
// unfrozen turn order, and an empty registry. Sessions stay connected.
func (m *Mediator) endRound() {
	m.stopTicking()
	m.state = protocol.StateRegistration
	m.registered = make(map[uuid.UUID]string)
	m.turnOrder = nil
	m.world = protocol.GameState{}
	m.inbox.Reset()
	m.secondsLeft = m.cfg.LobbyWaitSeconds
}

func (m *Mediator) stopTicking() {
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
		m.tickC = nil
	}
}

// fatal moves the server into the absorbing error state: every session gets
// a terminal error frame and is closed.
func (m *Mediator) fatal(err error) {
	m.logger.Printf("fatal game engine error: %v", err)
	m.state = protocol.StateFatalError
	m.stopTicking()

	frame := apperrors.Wrap(apperrors.CodeGameEngineCrash, "Game engine crashed", err).MarshalResponse()
	for id, s := range m.players {
		s.Send(frame)
		s.Close()
		delete(m.players, id)
	}
	for s := range m.viewers {
		s.Send(frame)
		s.Close()
		delete(m.viewers, s)
	}
}

//
// Broadcast fan-out.
//

// registry snapshots the registered player set in its wire form.
func (m *Mediator) registry() protocol.Registry {
	players := make(protocol.Registry, len(m.registered))
	for id, name := range m.registered {
		players[id.String()] = protocol.PlayerInfo{Name: name}
	}
	return players
}

func (m *Mediator) broadcastRegistrationUpdate() {
	if len(m.registered) < m.cfg.MinPlayers {
		m.broadcast(protocol.NewWaitingOnPlayers(m.registry(), m.cfg.MinPlayers, m.cfg.MaxPlayers))
		return
	}
	m.broadcast(protocol.NewGameStartingSoon(m.registry(), m.cfg.MinPlayers, m.cfg.MaxPlayers, m.secondsLeft))
}

// broadcast fans a response out to every live session. Sessions whose
// outbound queue is full are dropped with the usual disconnect effects.
func (m *Mediator) broadcast(response any) {
	frame, err := protocol.Marshal(response)
	if err != nil {
		m.logger.Printf("failed to marshal broadcast: %v", err)
		return
	}

	var dropped []Session
	for _, s := range m.players {
		if !s.Send(frame) {
			dropped = append(dropped, s)
		}
	}
	for s := range m.viewers {
		if !s.Send(frame) {
			dropped = append(dropped, s)
		}
	}

	for _, s := range dropped {
		m.logger.Printf("dropping unresponsive session %s", s.SessionID())
		s.Close()
		m.handleDisconnect(s)
	}
}
