package room

import (
	"errors"
	"fmt"
	"math/rand"
)

// State is the room lifecycle phase. Transitions originate only from
// commands on the ordered log; broadcasts are side effects.
type State string

const (
	StateReady      State = "READY"
	StatePlaying    State = "PLAYING"
	StateScoreBoard State = "SCORE_BOARD"
	StateRoulette   State = "ROULETTE"
	StateDone       State = "DONE"
)

const (
	MinPlayers   = 2
	MaxPlayers   = 9
	MaxMiniGames = 5

	// initial roulette weight per player; mini-game rankings shift it
	baseWeight = 100
	minWeight  = 1
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

// Player is one participant. Weight drives the roulette: doing well in mini
// games lowers it, doing poorly raises it.
type Player struct {
	Name           string `json:"name"`
	Host           bool   `json:"host"`
	Ready          bool   `json:"ready"`
	Connected      bool   `json:"connected"`
	DisconnectedAt int64  `json:"disconnectedAt,omitempty"`
	Weight         int    `json:"weight"`
}

// Room is the full session state, persisted as one JSON value per join code.
type Room struct {
	JoinCode     string    `json:"joinCode"`
	State        State     `json:"state"`
	Players      []*Player `json:"players"`
	QueuedGames  []string  `json:"queuedGames"`
	CurrentGame  string    `json:"currentGame,omitempty"`
	PlayedGames  []string  `json:"playedGames,omitempty"`
	Winner       string    `json:"winner,omitempty"`
	QrCodeStatus string    `json:"qrCodeStatus,omitempty"`
	QrCodeURL    string    `json:"qrCodeUrl,omitempty"`
	CreatedAt    int64     `json:"createdAt"`
}

// NewRoom creates a room in READY state with hostName as its host. The host
// counts as ready; only guests toggle.
func NewRoom(joinCode, hostName string, createdAt int64) *Room {
	return &Room{
		JoinCode:  joinCode,
		State:     StateReady,
		CreatedAt: createdAt,
		Players: []*Player{{
			Name:      hostName,
			Host:      true,
			Ready:     true,
			Connected: true,
			Weight:    baseWeight,
		}},
	}
}

// Player returns the named player, if present
func (r *Room) Player(name string) (*Player, bool) {
	for _, p := range r.Players {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Host returns the room's host
func (r *Room) Host() *Player {
	for _, p := range r.Players {
		if p.Host {
			return p
		}
	}
	return nil
}

func (r *Room) requireHost(name string) error {
	p, ok := r.Player(name)
	if !ok {
		return fmt.Errorf("player %s is not in the room", name)
	}
	if !p.Host {
		return fmt.Errorf("only the host can do that")
	}
	return nil
}

// Join adds a guest. Guests can only join while the room is still gathering.
func (r *Room) Join(guestName string) error {
	if r.State != StateReady {
		return fmt.Errorf("room %s already started", r.JoinCode)
	}
	if len(r.Players) >= MaxPlayers {
		return ErrRoomFull
	}
	if _, exists := r.Player(guestName); exists {
		return fmt.Errorf("player name %s is already taken", guestName)
	}
	r.Players = append(r.Players, &Player{
		Name:      guestName,
		Connected: true,
		Weight:    baseWeight,
	})
	return nil
}

// SetReady flips a guest's ready flag. The host is always ready.
func (r *Room) SetReady(playerName string, ready bool) error {
	if r.State != StateReady {
		return fmt.Errorf("room %s already started", r.JoinCode)
	}
	p, ok := r.Player(playerName)
	if !ok {
		return fmt.Errorf("player %s is not in the room", playerName)
	}
	if p.Host {
		return nil
	}
	p.Ready = ready
	return nil
}

// Kick removes targetName from the room. Host only, gathering phase only.
func (r *Room) Kick(hostName, targetName string) error {
	if err := r.requireHost(hostName); err != nil {
		return err
	}
	if r.State != StateReady {
		return fmt.Errorf("room %s already started", r.JoinCode)
	}
	if hostName == targetName {
		return fmt.Errorf("the host cannot kick themselves")
	}
	return r.RemovePlayer(targetName)
}

// RemovePlayer drops a player regardless of who asked. No-op semantics are
// up to the caller; an unknown name is an error here.
func (r *Room) RemovePlayer(name string) error {
	for i, p := range r.Players {
		if p.Name == name {
			if p.Host {
				return fmt.Errorf("the host cannot be removed")
			}
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("player %s is not in the room", name)
}

// SelectMiniGames replaces the queued game list. Host only, up to MaxMiniGames.
func (r *Room) SelectMiniGames(hostName string, games []string) error {
	if err := r.requireHost(hostName); err != nil {
		return err
	}
	if r.State != StateReady {
		return fmt.Errorf("room %s already started", r.JoinCode)
	}
	if len(games) > MaxMiniGames {
		return fmt.Errorf("at most %d mini games can be queued", MaxMiniGames)
	}
	r.QueuedGames = append([]string(nil), games...)
	return nil
}

// StartNextGame pops the next queued game and enters PLAYING. The first
// start leaves the gathering phase and requires everyone ready; later starts
// continue from the score board.
func (r *Room) StartNextGame(hostName string) error {
	if err := r.requireHost(hostName); err != nil {
		return err
	}
	switch r.State {
	case StateReady:
		if len(r.Players) < MinPlayers {
			return fmt.Errorf("at least %d players are needed to start", MinPlayers)
		}
		for _, p := range r.Players {
			if !p.Ready {
				return fmt.Errorf("player %s is not ready", p.Name)
			}
		}
	case StateScoreBoard:
	default:
		return fmt.Errorf("room %s cannot start a game in state %s", r.JoinCode, r.State)
	}
	if len(r.QueuedGames) == 0 {
		return fmt.Errorf("no mini games queued")
	}

	r.CurrentGame = r.QueuedGames[0]
	r.QueuedGames = r.QueuedGames[1:]
	r.State = StatePlaying
	return nil
}

// ApplyResult records a finished mini game and moves to the score board.
// Rankings shift roulette weights: the best-placed player sheds weight, the
// worst-placed gains it. Applying a result for a game that is not currently
// running is rejected, which makes replayed log entries harmless.
func (r *Room) ApplyResult(miniGame string, ranking []string) error {
	if r.State != StatePlaying || r.CurrentGame != miniGame {
		return fmt.Errorf("room %s is not playing %s", r.JoinCode, miniGame)
	}

	n := len(ranking)
	for i, name := range ranking {
		p, ok := r.Player(name)
		if !ok {
			continue
		}
		delta := 0
		if n > 1 {
			delta = -10 + (20*i)/(n-1)
		}
		p.Weight += delta
		if p.Weight < minWeight {
			p.Weight = minWeight
		}
	}

	r.PlayedGames = append(r.PlayedGames, miniGame)
	r.CurrentGame = ""
	r.State = StateScoreBoard
	return nil
}

// ShowRoulette moves the room to the roulette phase. Host only; allowed from
// the score board once the game queue is exhausted.
func (r *Room) ShowRoulette(hostName string) error {
	if err := r.requireHost(hostName); err != nil {
		return err
	}
	if r.State != StateScoreBoard {
		return fmt.Errorf("room %s cannot show the roulette in state %s", r.JoinCode, r.State)
	}
	r.State = StateRoulette
	return nil
}

// Spin picks the winner by weighted draw and finishes the room. Host only,
// roulette phase only, so a replayed spin cannot pick twice.
func (r *Room) Spin(hostName string) (string, error) {
	if err := r.requireHost(hostName); err != nil {
		return "", err
	}
	if r.State != StateRoulette {
		return "", fmt.Errorf("room %s cannot spin in state %s", r.JoinCode, r.State)
	}

	total := 0
	for _, p := range r.Players {
		total += p.Weight
	}
	pick := rand.Intn(total)
	for _, p := range r.Players {
		pick -= p.Weight
		if pick < 0 {
			r.Winner = p.Name
			r.State = StateDone
			return p.Name, nil
		}
	}
	// unreachable as long as every weight is positive
	last := r.Players[len(r.Players)-1]
	r.Winner = last.Name
	r.State = StateDone
	return last.Name, nil
}
