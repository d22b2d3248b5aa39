package registry

import (
	"fmt"
	"strings"
	"sync"
)

const keySeparator = ":"

// PlayerKey identifies one player within one room: "joinCode:playerName".
type PlayerKey string

// NewPlayerKey builds a player key, rejecting parts that would make the
// encoded form ambiguous.
func NewPlayerKey(joinCode, playerName string) (PlayerKey, error) {
	if joinCode == "" || playerName == "" {
		return "", fmt.Errorf("join code and player name must not be empty")
	}
	if strings.Contains(joinCode, keySeparator) {
		return "", fmt.Errorf("join code must not contain %q", keySeparator)
	}
	if strings.Contains(playerName, keySeparator) {
		return "", fmt.Errorf("player name must not contain %q", keySeparator)
	}
	return PlayerKey(joinCode + keySeparator + playerName), nil
}

// JoinCode returns the room part of the key
func (k PlayerKey) JoinCode() string {
	code, _, _ := strings.Cut(string(k), keySeparator)
	return code
}

// PlayerName returns the player part of the key
func (k PlayerKey) PlayerName() string {
	_, name, _ := strings.Cut(string(k), keySeparator)
	return name
}

// Registry tracks which live connection belongs to which player. At most one
// connection is valid per player key at a time; registering a new one evicts
// the old mapping in both directions. Each direction is its own sync.Map so
// operations on unrelated keys never contend, and every mutation is a single
// atomic map primitive rather than a read-decide-write sequence.
type Registry struct {
	connByKey sync.Map // PlayerKey -> connection id
	keyByConn sync.Map // connection id -> PlayerKey
	processed sync.Map // connection id -> struct{}, disconnect dedup per epoch
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds connID to key, superseding any previous connection for the
// key. The superseded connection's reverse mapping is evicted so a late
// disconnect notification for it resolves to nothing.
func (r *Registry) Register(key PlayerKey, connID string) {
	r.processed.Delete(connID)
	r.keyByConn.Store(connID, key)

	prev, loaded := r.connByKey.Swap(key, connID)
	if loaded && prev != connID {
		prevConn := prev.(string)
		r.keyByConn.CompareAndDelete(prevConn, key)
		r.processed.Delete(prevConn)
	}
}

// Conn returns the live connection for key, if any
func (r *Registry) Conn(key PlayerKey) (string, bool) {
	v, ok := r.connByKey.Load(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// PlayerKeyOf returns the player key a connection is registered under, if any
func (r *Registry) PlayerKeyOf(connID string) (PlayerKey, bool) {
	v, ok := r.keyByConn.Load(connID)
	if !ok {
		return "", false
	}
	return v.(PlayerKey), true
}

// Remove clears both directions for connID. No-op when the connection is
// unknown, or when the forward mapping already points at a newer connection.
func (r *Registry) Remove(connID string) {
	r.processed.Delete(connID)
	v, ok := r.keyByConn.LoadAndDelete(connID)
	if !ok {
		return
	}
	r.connByKey.CompareAndDelete(v.(PlayerKey), connID)
}

// MarkDisconnectionProcessed reports whether the caller is the first to
// process a disconnect for connID since its last registration. Transports
// fire multiple hooks for one physical drop; only the first wins. Returns
// false for connections that are not registered at all.
func (r *Registry) MarkDisconnectionProcessed(connID string) bool {
	if _, ok := r.keyByConn.Load(connID); !ok {
		return false
	}
	_, alreadyMarked := r.processed.LoadOrStore(connID, struct{}{})
	return !alreadyMarked
}

// ConnsByRoom returns the connection ids of every player registered in the
// room identified by joinCode.
func (r *Registry) ConnsByRoom(joinCode string) []string {
	prefix := joinCode + keySeparator
	var conns []string
	r.connByKey.Range(func(key, value interface{}) bool {
		if strings.HasPrefix(string(key.(PlayerKey)), prefix) {
			conns = append(conns, value.(string))
		}
		return true
	})
	return conns
}

// ConnectedCount returns the number of live registered connections
func (r *Registry) ConnectedCount() int {
	count := 0
	r.keyByConn.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
