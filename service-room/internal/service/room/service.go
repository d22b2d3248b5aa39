package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/logger"
	"game-party/pkg/model"

	"game-party/service-room/internal/broadcast"
	"game-party/service-room/internal/correlator"
	"game-party/service-room/internal/recovery"
	"game-party/service-room/internal/registry"
	"game-party/service-room/internal/repository"
	"game-party/service-room/internal/scheduler"
	"game-party/service-room/internal/stream"
)

const (
	joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 4
	joinCodeAttempts = 10
	graceFireTimeout = 5 * time.Second
)

var (
	// ErrNoConnection reports a recovery request from a player who holds no
	// registered live connection on this instance.
	ErrNoConnection = errors.New("no live connection registered for player")

	// ErrInvalidIdentity reports a malformed join code or player name,
	// rejected before any registry mutation.
	ErrInvalidIdentity = errors.New("invalid player identity")
)

// Service owns the room lifecycle. Every mutation travels the same path:
// build a command, enqueue it on the ordered log, and let whichever instance
// consumes it apply the transition and broadcast the outcome. Synchronous
// callers block on the correlator until their command lands.
type Service struct {
	cfg         *config.Config
	store       Store
	publisher   *stream.Publisher
	correlator  *correlator.Correlator
	broadcaster *broadcast.Broadcaster
	registry    *registry.Registry
	scheduler   *scheduler.Scheduler
	recovery    *recovery.Log
	results     *repository.ResultStore // nil when result persistence is disabled
	qr          *QrCodeJob              // nil when QR generation is disabled
}

// NewService wires the room service
func NewService(
	cfg *config.Config,
	store Store,
	publisher *stream.Publisher,
	corr *correlator.Correlator,
	bcast *broadcast.Broadcaster,
	reg *registry.Registry,
	sched *scheduler.Scheduler,
	rec *recovery.Log,
	results *repository.ResultStore,
	qr *QrCodeJob,
) *Service {
	return &Service{
		cfg:         cfg,
		store:       store,
		publisher:   publisher,
		correlator:  corr,
		broadcaster: bcast,
		registry:    reg,
		scheduler:   sched,
		recovery:    rec,
		results:     results,
		qr:          qr,
	}
}

// Handlers returns the command dispatch table for the stream consumer, built
// once at startup.
func (s *Service) Handlers() map[model.EventType]stream.Handler {
	return map[model.EventType]stream.Handler{
		model.EventRoomCreate:         s.handleRoomCreate,
		model.EventRoomJoin:           s.handleRoomJoin,
		model.EventPlayerReady:        s.handlePlayerReady,
		model.EventPlayerKick:         s.handlePlayerKick,
		model.EventMiniGameSelect:     s.handleMiniGameSelect,
		model.EventGameStart:          s.handleGameStart,
		model.EventGameResult:         s.handleGameResult,
		model.EventRouletteShow:       s.handleRouletteShow,
		model.EventRouletteSpin:       s.handleRouletteSpin,
		model.EventSessionRegistered:  s.handleSessionRegistered,
		model.EventPlayerDisconnected: s.handlePlayerDisconnected,
		model.EventQrCodeStatus:       s.handleQrCodeStatus,
	}
}

// --- synchronous entry points (REST / WebSocket commands) ---

// CreateRoom allocates a join code and creates the room through the log
func (s *Service) CreateRoom(ctx context.Context, hostName string) (*Room, error) {
	if err := validatePlayerName(hostName); err != nil {
		return nil, err
	}
	joinCode, err := s.newJoinCode(ctx)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, model.EventRoomCreate, joinCode, model.RoomCreatePayload{HostName: hostName})
}

// JoinRoom adds a guest through the log
func (s *Service) JoinRoom(ctx context.Context, joinCode, guestName string) (*Room, error) {
	if err := validatePlayerName(guestName); err != nil {
		return nil, err
	}
	return s.execute(ctx, model.EventRoomJoin, joinCode, model.RoomJoinPayload{GuestName: guestName})
}

// GetRoom returns the current room snapshot
func (s *Service) GetRoom(ctx context.Context, joinCode string) (*Room, error) {
	return s.store.Load(ctx, joinCode)
}

// ToggleReady flips a guest's ready flag
func (s *Service) ToggleReady(ctx context.Context, joinCode, playerName string, ready bool) (*Room, error) {
	return s.execute(ctx, model.EventPlayerReady, joinCode, model.PlayerReadyPayload{PlayerName: playerName, Ready: ready})
}

// KickPlayer removes a guest on the host's behalf
func (s *Service) KickPlayer(ctx context.Context, joinCode, hostName, targetName string) (*Room, error) {
	return s.execute(ctx, model.EventPlayerKick, joinCode, model.PlayerKickPayload{HostName: hostName, TargetName: targetName})
}

// SelectMiniGames replaces the queued mini game list
func (s *Service) SelectMiniGames(ctx context.Context, joinCode, hostName string, games []string) (*Room, error) {
	return s.execute(ctx, model.EventMiniGameSelect, joinCode, model.MiniGameSelectPayload{HostName: hostName, MiniGames: games})
}

// StartGame pops the next queued game and enters PLAYING
func (s *Service) StartGame(ctx context.Context, joinCode, hostName string) (*Room, error) {
	return s.execute(ctx, model.EventGameStart, joinCode, model.GameStartPayload{HostName: hostName})
}

// ReportResult records a finished mini game's ranking
func (s *Service) ReportResult(ctx context.Context, joinCode, miniGame string, ranking []string) (*Room, error) {
	return s.execute(ctx, model.EventGameResult, joinCode, model.GameResultPayload{MiniGame: miniGame, Ranking: ranking})
}

// ShowRoulette moves the room to the roulette phase
func (s *Service) ShowRoulette(ctx context.Context, joinCode, hostName string) (*Room, error) {
	return s.execute(ctx, model.EventRouletteShow, joinCode, model.RouletteShowPayload{HostName: hostName})
}

// SpinRoulette picks the winner and finishes the room
func (s *Service) SpinRoulette(ctx context.Context, joinCode, hostName string) (*Room, error) {
	return s.execute(ctx, model.EventRouletteSpin, joinCode, model.RouletteSpinPayload{HostName: hostName})
}

// Recover replays the broadcasts a reconnected player missed. The player
// must hold a live registered connection here; otherwise the reconnect has
// not happened yet and there is nothing meaningful to sync against.
func (s *Service) Recover(ctx context.Context, joinCode, playerName, lastID string) ([]model.RecoveryMessage, error) {
	key, err := registry.NewPlayerKey(joinCode, playerName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if _, ok := s.registry.Conn(key); !ok {
		return nil, ErrNoConnection
	}
	return s.recovery.MessagesSince(ctx, joinCode, lastID)
}

// --- connection lifecycle (called by the transport layer) ---

// RegisterConnection binds a player to a fresh connection and announces it,
// so whichever instance armed a grace-period removal can stand down.
func (s *Service) RegisterConnection(ctx context.Context, key registry.PlayerKey, connID string) {
	s.registry.Register(key, connID)
	s.scheduler.Cancel(string(key))

	event, err := model.NewEvent(model.EventSessionRegistered, key.JoinCode(), model.SessionRegisteredPayload{
		PlayerKey:    string(key),
		ConnectionID: connID,
	})
	if err != nil {
		logger.Errorf(err, "failed to build session event for %s", key)
		return
	}
	if err := s.publisher.Enqueue(ctx, event); err != nil {
		logger.Errorf(err, "failed to announce session for %s", key)
	}
}

// HandleDisconnect processes a dropped socket. Transports fire several hooks
// for one physical drop; the registry collapses them to a single command.
func (s *Service) HandleDisconnect(ctx context.Context, connID, reason string) {
	if !s.registry.MarkDisconnectionProcessed(connID) {
		logger.Debugf("disconnect for %s already processed", connID)
		return
	}
	key, ok := s.registry.PlayerKeyOf(connID)
	if !ok {
		return
	}

	event, err := model.NewEvent(model.EventPlayerDisconnected, key.JoinCode(), model.PlayerDisconnectedPayload{
		PlayerKey:    string(key),
		ConnectionID: connID,
		Reason:       reason,
	})
	if err != nil {
		logger.Errorf(err, "failed to build disconnect event for %s", key)
		return
	}
	if err := s.publisher.Enqueue(ctx, event); err != nil {
		logger.Errorf(err, "failed to enqueue disconnect for %s", key)
	}
}

// --- command execution ---

// execute enqueues a command and blocks until a consumer somewhere applies
// it. A timeout means "unknown outcome": the command may still land later,
// and its resolution will be dropped.
func (s *Service) execute(ctx context.Context, eventType model.EventType, joinCode string, payload interface{}) (*Room, error) {
	event, err := model.NewEvent(eventType, joinCode, payload)
	if err != nil {
		return nil, err
	}

	pending := s.correlator.Register(event.ID)
	if err := s.publisher.Enqueue(ctx, event); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return nil, err
	}

	result, err := pending.Await(ctx)
	if err != nil {
		return nil, err
	}
	rm, ok := result.(*Room)
	if !ok {
		return nil, fmt.Errorf("unexpected command result type %T", result)
	}
	return rm, nil
}

// --- log consumers ---

func (s *Service) handleRoomCreate(ctx context.Context, event model.Event) error {
	var payload model.RoomCreatePayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}

	// a replayed create must not reset an existing room
	existing, err := s.store.Load(ctx, event.JoinCode)
	if err == nil {
		s.correlator.ResolveSuccess(event.ID, existing)
		return nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}

	rm := NewRoom(event.JoinCode, payload.HostName, event.EnqueuedAt)
	if err := s.store.Save(ctx, rm); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}

	s.correlator.ResolveSuccess(event.ID, rm)
	s.broadcastRoom(ctx, rm)

	// the whole session is scheduled for deletion up front; the Redis TTLs
	// are the backstop if this instance dies before the timer fires
	joinCode := rm.JoinCode
	s.scheduler.Schedule(roomExpiryKey(joinCode), s.cfg.Room.SessionTTL, func() {
		s.expireRoom(joinCode)
	})

	if s.qr != nil {
		go s.qr.Generate(context.Background(), rm.JoinCode)
	}
	return nil
}

func (s *Service) handleRoomJoin(ctx context.Context, event model.Event) error {
	var payload model.RoomJoinPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}
	return s.applyCommand(ctx, event, func(rm *Room) error {
		return rm.Join(payload.GuestName)
	}, nil)
}

func (s *Service) handlePlayerReady(ctx context.Context, event model.Event) error {
	var payload model.PlayerReadyPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}
	return s.applyCommand(ctx, event, func(rm *Room) error {
		return rm.SetReady(payload.PlayerName, payload.Ready)
	}, nil)
}

func (s *Service) handlePlayerKick(ctx context.Context, event model.Event) error {
	var payload model.PlayerKickPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}
	return s.applyCommand(ctx, event, func(rm *Room) error {
		return rm.Kick(payload.HostName, payload.TargetName)
	}, func(ctx context.Context, rm *Room) {
		// drop the kicked player's connection if this instance holds it
		if key, err := registry.NewPlayerKey(rm.JoinCode, payload.TargetName); err == nil {
			if conn, ok := s.registry.Conn(key); ok {
				s.registry.Remove(conn)
			}
		}
	})
}

func (s *Service) handleMiniGameSelect(ctx context.Context, event model.Event) error {
	var payload model.MiniGameSelectPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}
	return s.applyCommand(ctx, event, func(rm *Room) error {
		return rm.SelectMiniGames(payload.HostName, payload.MiniGames)
	}, func(ctx context.Context, rm *Room) {
		s.broadcaster.Publish(ctx, broadcast.Destination(rm.JoinCode, "minigame"),
			model.SuccessEnvelope(rm.QueuedGames))
	})
}

func (s *Service) handleGameStart(ctx context.Context, event model.Event) error {
	var payload model.GameStartPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}
	return s.applyCommand(ctx, event, func(rm *Room) error {
		return rm.StartNextGame(payload.HostName)
	}, func(ctx context.Context, rm *Room) {
		s.broadcaster.Publish(ctx, broadcast.Destination(rm.JoinCode, "minigame"),
			model.SuccessEnvelope(rm.CurrentGame))
	})
}

func (s *Service) handleGameResult(ctx context.Context, event model.Event) error {
	var payload model.GameResultPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}
	return s.applyCommand(ctx, event, func(rm *Room) error {
		return rm.ApplyResult(payload.MiniGame, payload.Ranking)
	}, nil)
}

func (s *Service) handleRouletteShow(ctx context.Context, event model.Event) error {
	var payload model.RouletteShowPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}
	return s.applyCommand(ctx, event, func(rm *Room) error {
		return rm.ShowRoulette(payload.HostName)
	}, func(ctx context.Context, rm *Room) {
		s.broadcaster.Publish(ctx, broadcast.Destination(rm.JoinCode, "roulette"),
			model.SuccessEnvelope(rm.Players))
	})
}

func (s *Service) handleRouletteSpin(ctx context.Context, event model.Event) error {
	var payload model.RouletteSpinPayload
	if err := event.DecodePayload(&payload); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}

	var winner string
	return s.applyCommand(ctx, event, func(rm *Room) error {
		var err error
		winner, err = rm.Spin(payload.HostName)
		return err
	}, func(ctx context.Context, rm *Room) {
		s.broadcaster.Publish(ctx, broadcast.Destination(rm.JoinCode, "winner"),
			model.SuccessEnvelope(winner))

		// history row is best-effort: the spin already committed
		if s.results != nil {
			if err := s.results.RecordWinner(ctx, rm.JoinCode, winner, len(rm.Players)); err != nil {
				logger.Errorf(err, "failed to persist roulette winner for room %s", rm.JoinCode)
			}
		}
	})
}

func (s *Service) handleSessionRegistered(ctx context.Context, event model.Event) error {
	var payload model.SessionRegisteredPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	key := registry.PlayerKey(payload.PlayerKey)
	s.scheduler.Cancel(payload.PlayerKey)

	rm, err := s.store.Load(ctx, event.JoinCode)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return err
	}
	p, ok := rm.Player(key.PlayerName())
	if !ok || p.Connected {
		return nil
	}

	p.Connected = true
	p.DisconnectedAt = 0
	if err := s.store.Save(ctx, rm); err != nil {
		return err
	}
	s.broadcastRoom(ctx, rm)
	return nil
}

func (s *Service) handlePlayerDisconnected(ctx context.Context, event model.Event) error {
	var payload model.PlayerDisconnectedPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	key := registry.PlayerKey(payload.PlayerKey)

	rm, err := s.store.Load(ctx, event.JoinCode)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return err
	}
	p, ok := rm.Player(key.PlayerName())
	if !ok || !p.Connected {
		return nil
	}

	p.Connected = false
	p.DisconnectedAt = event.EnqueuedAt
	inGrace := rm.State == StateReady && !p.Host
	if inGrace {
		// the window reads as "temporarily inactive", not "still ready"
		p.Ready = false
	}
	if err := s.store.Save(ctx, rm); err != nil {
		return err
	}
	s.broadcastRoom(ctx, rm)

	if inGrace {
		joinCode, playerName := event.JoinCode, key.PlayerName()
		s.scheduler.Schedule(payload.PlayerKey, s.cfg.Room.GracePeriod, func() {
			s.removeAfterGrace(joinCode, playerName)
		})
	}
	return nil
}

func (s *Service) handleQrCodeStatus(ctx context.Context, event model.Event) error {
	var payload model.QrCodeStatusPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}

	rm, err := s.store.Load(ctx, event.JoinCode)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return err
	}

	rm.QrCodeStatus = payload.Status
	rm.QrCodeURL = payload.URL
	if err := s.store.Save(ctx, rm); err != nil {
		return err
	}

	s.broadcaster.Publish(ctx, broadcast.Destination(rm.JoinCode, "qr-code"),
		model.SuccessEnvelope(payload))
	return nil
}

// applyCommand is the common consumer path: load, mutate, save, resolve,
// broadcast. Domain rejections resolve the caller's promise with the error
// but are not consumer failures; replay makes them routine.
func (s *Service) applyCommand(ctx context.Context, event model.Event, mutate func(*Room) error, after func(context.Context, *Room)) error {
	rm, err := s.store.Load(ctx, event.JoinCode)
	if err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return err
	}

	if err := mutate(rm); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return nil
	}

	if err := s.store.Save(ctx, rm); err != nil {
		s.correlator.ResolveFailure(event.ID, err)
		return err
	}

	s.correlator.ResolveSuccess(event.ID, rm)
	s.broadcastRoom(ctx, rm)
	if after != nil {
		after(ctx, rm)
	}
	return nil
}

// removeAfterGrace fires when a disconnected player's grace period elapses.
// It re-checks persisted state first: a reconnect handled by any instance
// flips Connected back and turns this into a no-op, so a timer that could
// not be cancelled remotely is still harmless.
func (s *Service) removeAfterGrace(joinCode, playerName string) {
	ctx, cancel := context.WithTimeout(context.Background(), graceFireTimeout)
	defer cancel()

	rm, err := s.store.Load(ctx, joinCode)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			logger.Errorf(err, "failed to load room %s for grace removal", joinCode)
		}
		return
	}
	p, ok := rm.Player(playerName)
	if !ok || p.Connected || rm.State != StateReady {
		return
	}

	if err := rm.RemovePlayer(playerName); err != nil {
		logger.Errorf(err, "failed to remove player %s from room %s", playerName, joinCode)
		return
	}
	if err := s.store.Save(ctx, rm); err != nil {
		logger.Errorf(err, "failed to save room %s after grace removal", joinCode)
		return
	}

	logger.Infof("removed %s from room %s after grace period", playerName, joinCode)
	s.broadcastRoom(ctx, rm)

	if key, err := registry.NewPlayerKey(joinCode, playerName); err == nil {
		if conn, ok := s.registry.Conn(key); ok {
			s.registry.Remove(conn)
		}
	}
}

// expireRoom drops everything a session leaves behind once its TTL elapses:
// the state value, the recovery stream with its dedup keys, and any local
// connection mappings.
func (s *Service) expireRoom(joinCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), graceFireTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, joinCode); err != nil {
		logger.Errorf(err, "failed to delete expired room %s", joinCode)
	}
	if err := s.recovery.Cleanup(ctx, joinCode); err != nil {
		logger.Errorf(err, "failed to clean recovery log for room %s", joinCode)
	}
	for _, conn := range s.registry.ConnsByRoom(joinCode) {
		s.registry.Remove(conn)
	}
	logger.Infof("room %s expired after session TTL", joinCode)
}

// roomExpiryKey never collides with player keys: join codes are drawn from
// an uppercase alphabet and player keys start with one.
func roomExpiryKey(joinCode string) string {
	return "room-expire:" + joinCode
}

func (s *Service) broadcastRoom(ctx context.Context, rm *Room) {
	s.broadcaster.Publish(ctx, broadcast.Destination(rm.JoinCode), model.SuccessEnvelope(rm))
}

// newJoinCode draws short codes until one is free
func (s *Service) newJoinCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code := randomJoinCode()
		_, err := s.store.Load(ctx, code)
		if errors.Is(err, ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate a free join code")
}

func randomJoinCode() string {
	b := make([]byte, joinCodeLength)
	for i := range b {
		b[i] = joinCodeAlphabet[rand.Intn(len(joinCodeAlphabet))]
	}
	return string(b)
}

func validatePlayerName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: player name must not be empty", ErrInvalidIdentity)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: player name must not contain %q", ErrInvalidIdentity, ":")
	}
	return nil
}
