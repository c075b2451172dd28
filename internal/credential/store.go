// Package credential persists the single enrolled face credential on top of
// a key/value blob store.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-enroll/internal/database"
	"github.com/kozaktomas/face-enroll/internal/vecmath"
	"github.com/rs/zerolog/log"
)

// Logical keys. The names match what the browser client keeps in localStorage.
const (
	CredentialKey = "faceCredentials"
	RegisteredKey = "alreadyRegistered"
)

// CurrentVersion is the format version written by Save.
// Version 0 marks a legacy record that was a bare embedding array.
const CurrentVersion = 1

// Credential is the persisted enrollment record.
type Credential struct {
	Embedding vecmath.Embedding `json:"embedding"`
	CreatedAt time.Time         `json:"created_at"`
	Version   int               `json:"version"`
}

// New creates a credential for an aggregated embedding. The embedding is copied.
func New(emb vecmath.Embedding, now time.Time) *Credential {
	return &Credential{
		Embedding: emb.Clone(),
		CreatedAt: now.UTC(),
		Version:   CurrentVersion,
	}
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Embedding = c.Embedding.Clone()
	return &out
}

// Store loads and saves the credential. Saves are serialized; the last write wins.
type Store struct {
	kv     database.KV
	prefix string
	mu     sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces both logical keys, e.g. per device or per user profile.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// NewStore creates a credential store over kv.
func NewStore(kv database.KV, opts ...Option) *Store {
	s := &Store{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Load returns the stored credential, or nil if none is enrolled.
// A record that fails to parse or carries no embedding is treated as absent.
// Only storage I/O failures are returned as errors.
func (s *Store) Load(ctx context.Context) (*Credential, error) {
	data, err := s.kv.Get(ctx, s.key(CredentialKey))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	cred, err := decode(data)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable stored credential")
		return nil, nil
	}
	return cred, nil
}

// decode parses the current JSON record or the legacy bare-array format.
func decode(data []byte) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal(data, &cred); err == nil {
		if len(cred.Embedding) == 0 {
			return nil, errors.New("credential has no embedding")
		}
		return &cred, nil
	}

	var legacy []float64
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}
	if len(legacy) == 0 {
		return nil, errors.New("credential has no embedding")
	}
	return &Credential{Embedding: legacy, Version: 0}, nil
}

// Save replaces the stored credential.
func (s *Store) Save(ctx context.Context, cred *Credential) error {
	if cred == nil || len(cred.Embedding) == 0 {
		return errors.New("save credential: empty embedding")
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, s.key(CredentialKey), data); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Registered reports the presentation flag set after a confirmed match.
// A missing or unreadable flag reads as false.
func (s *Store) Registered(ctx context.Context) (bool, error) {
	data, err := s.kv.Get(ctx, s.key(RegisteredKey))
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load registration flag: %w", err)
	}
	return string(data) == "true", nil
}

// SetRegistered stores the presentation flag.
func (s *Store) SetRegistered(ctx context.Context, registered bool) error {
	value := "false"
	if registered {
		value = "true"
	}
	if err := s.kv.Set(ctx, s.key(RegisteredKey), []byte(value)); err != nil {
		return fmt.Errorf("save registration flag: %w", err)
	}
	return nil
}

// Reset removes the credential and the registration flag.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, s.key(CredentialKey)); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if err := s.kv.Delete(ctx, s.key(RegisteredKey)); err != nil {
		return fmt.Errorf("delete registration flag: %w", err)
	}
	return nil
}
