package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goStage/user"
)

// KV is the durable key-value backend of a Store.
type KV interface {
	// Get returns ok == false when key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes every pair atomically.
	Set(ctx context.Context, values map[string]string) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Keys names the two persisted entries.
type Keys struct {
	Prefix string
	User   string
	Token  string
}

// DefaultKeys returns the key names used by the browser client.
func DefaultKeys() Keys {
	return Keys{User: "currentUser", Token: "token"}
}

// Entry is one persisted session.
type Entry struct {
	User  user.Record
	Token string
}

// LoadStatus reports what Load found.
type LoadStatus uint8

const (
	// LoadEmpty means neither entry was present.
	LoadEmpty LoadStatus = iota
	// LoadFound means both entries were present and parseable.
	LoadFound
	// LoadPurged means a partial or unparseable pair was found and removed.
	LoadPurged
)

func (s LoadStatus) String() string {
	switch s {
	case LoadFound:
		return "found"
	case LoadPurged:
		return "purged"
	default:
		return "empty"
	}
}

// Store persists the current user record and raw credential.
type Store struct {
	kv       KV
	userKey  string
	tokenKey string
}

// NewStore builds a Store over kv. Empty key names fall back to DefaultKeys.
func NewStore(kv KV, keys Keys) *Store {
	def := DefaultKeys()
	if strings.TrimSpace(keys.User) == "" {
		keys.User = def.User
	}
	if strings.TrimSpace(keys.Token) == "" {
		keys.Token = def.Token
	}
	return &Store{
		kv:       kv,
		userKey:  keys.Prefix + keys.User,
		tokenKey: keys.Prefix + keys.Token,
	}
}

// Load reads the persisted pair. A partial pair or an unparseable entry is
// purged and reported as LoadPurged with an empty Entry.
func (s *Store) Load(ctx context.Context) (Entry, LoadStatus, error) {
	rawUser, userOK, err := s.kv.Get(ctx, s.userKey)
	if err != nil {
		return Entry{}, LoadEmpty, wrapUnavailable(err)
	}
	rawToken, tokenOK, err := s.kv.Get(ctx, s.tokenKey)
	if err != nil {
		return Entry{}, LoadEmpty, wrapUnavailable(err)
	}

	if !userOK && !tokenOK {
		return Entry{}, LoadEmpty, nil
	}

	var rec user.Record
	valid := userOK && tokenOK && strings.TrimSpace(rawToken) != ""
	if valid {
		valid = json.Unmarshal([]byte(rawUser), &rec) == nil && rec.Email != ""
	}
	if !valid {
		if err := s.Purge(ctx); err != nil {
			return Entry{}, LoadEmpty, err
		}
		return Entry{}, LoadPurged, nil
	}

	return Entry{User: rec, Token: strings.TrimSpace(rawToken)}, LoadFound, nil
}

// Save writes both entries in one backend operation.
func (s *Store) Save(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.Token) == "" {
		return errors.New("session store: empty token")
	}
	data, err := json.Marshal(e.User)
	if err != nil {
		return fmt.Errorf("session store: encode user: %w", err)
	}
	return wrapUnavailable(s.kv.Set(ctx, map[string]string{
		s.userKey:  string(data),
		s.tokenKey: e.Token,
	}))
}

// SaveUser replaces the persisted user record and leaves the credential as is.
func (s *Store) SaveUser(ctx context.Context, rec user.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session store: encode user: %w", err)
	}
	return wrapUnavailable(s.kv.Set(ctx, map[string]string{s.userKey: string(data)}))
}

// Purge removes both entries. It is idempotent.
func (s *Store) Purge(ctx context.Context) error {
	return wrapUnavailable(s.kv.Delete(ctx, s.userKey, s.tokenKey))
}

func wrapUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
