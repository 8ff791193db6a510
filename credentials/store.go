package credentials

import "github.com/carefleet/carefleet-client/users"

// Pair is the client-held credential pair. The access token is short-lived
// and carries claims; the refresh token is long-lived and opaque, no claims
// are ever extracted from it.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether no access credential is held
func (p Pair) Empty() bool {
	return p.AccessToken == ""
}

// Snapshot is the minimal {user, isAuthenticated} state persisted for fast
// UI boot. It is advisory only: Initialize reconciles it against decoded
// claims and it must never drive an authorization decision.
type Snapshot struct {
	User            *users.User `json:"user,omitempty"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// Store is durable key/value persistence for the current credentials.
// Pure storage, no logic. The session manager is the only writer.
//
// SetPair replaces both tokens atomically: a stale access token is never
// left paired with a rotated refresh token.
type Store interface {
	Pair() (Pair, error)
	SetPair(pair Pair) error
	Snapshot() (Snapshot, error)
	SetSnapshot(snapshot Snapshot) error
	Clear() error
}
