// Package store scopes the key-value backend by user name.
//
// Physical layout:
//
//	{user}_currentFormId
//	{user}_formList
//	{user}_formData_{draftId}
//	userRegistry
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/go-json-experiment/json"
	"go.uber.org/zap"

	"github.com/zeptools/clinsup/apperr"
	"github.com/zeptools/clinsup/db/kvdb"
)

const (
	KeyCurrentFormID = "currentFormId"
	KeyFormList      = "formList"
	KeyFormDataPfx   = "formData_"
	KeyUserRegistry  = "userRegistry"
)

var ErrEmptyUser = errors.New("store: user name is empty")

// Cipher seals values at rest. storageKey is the physical key.
type Cipher interface {
	Seal(storageKey, plaintext string) (string, error)
	Open(storageKey, stored string) (string, error)
}

type Store struct {
	kv     kvdb.Client
	cipher Cipher // optional
	log    *zap.Logger
	regMu  sync.Mutex
}

func New(kv kvdb.Client, cipher Cipher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, cipher: cipher, log: logger.Named("store")}
}

func FormDataKey(draftID string) string {
	return KeyFormDataPfx + draftID
}

// Scoped returns the handle for one user's partition
func (s *Store) Scoped(user string) (*Scope, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, ErrEmptyUser
	}
	return &Scope{s: s, user: user, prefix: user + "_"}, nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", false, &apperr.StorageFailure{Op: "get", Key: key, Err: err}
	}
	if !found {
		return "", false, nil
	}
	if s.cipher != nil {
		raw, err = s.cipher.Open(key, raw)
		if err != nil {
			return "", false, &apperr.StorageFailure{Op: "decode", Key: key, Err: err}
		}
	}
	return raw, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if s.cipher != nil {
		sealed, err := s.cipher.Seal(key, value)
		if err != nil {
			return &apperr.StorageFailure{Op: "set", Key: key, Err: err}
		}
		value = sealed
	}
	if err := s.kv.Set(ctx, key, value, 0); err != nil {
		s.log.Warn("write failed", zap.String("key", key), zap.Error(err))
		return &apperr.StorageFailure{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *Store) remove(ctx context.Context, key string) error {
	if _, err := s.kv.Delete(ctx, key); err != nil {
		return &apperr.StorageFailure{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// Users returns the registry of known user names in insertion order
func (s *Store) Users(ctx context.Context) ([]string, error) {
	raw, found, err := s.get(ctx, KeyUserRegistry)
	if err != nil || !found {
		return nil, err
	}
	var users []string
	if err = json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, &apperr.StorageFailure{Op: "decode", Key: KeyUserRegistry, Err: err}
	}
	return users, nil
}

// RegisterUser appends user to the registry unless already known
func (s *Store) RegisterUser(ctx context.Context, user string) error {
	user = strings.TrimSpace(user)
	if user == "" {
		return ErrEmptyUser
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()
	users, err := s.Users(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(users, user) {
		return nil
	}
	users = append(users, user)
	b, err := json.Marshal(users)
	if err != nil {
		return err
	}
	if err = s.set(ctx, KeyUserRegistry, string(b)); err != nil {
		return err
	}
	s.log.Info("user registered", zap.String("user", user))
	return nil
}

// Scope is one user's partition. Writes are immediate.
type Scope struct {
	s      *Store
	user   string
	prefix string
}

func (sc *Scope) User() string { return sc.user }

func (sc *Scope) Get(ctx context.Context, key string) (string, bool, error) {
	return sc.s.get(ctx, sc.prefix+key)
}

func (sc *Scope) Set(ctx context.Context, key, value string) error {
	return sc.s.set(ctx, sc.prefix+key, value)
}

func (sc *Scope) Remove(ctx context.Context, key string) error {
	return sc.s.remove(ctx, sc.prefix+key)
}

// Keys lists the user's logical keys starting with prefix (unscoped form)
func (sc *Scope) Keys(ctx context.Context, prefix string) ([]string, error) {
	full, err := kvdb.ScanAll(ctx, sc.s.kv, sc.prefix+prefix, 100)
	if err != nil {
		return nil, &apperr.StorageFailure{Op: "scan", Key: sc.prefix + prefix, Err: err}
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, sc.prefix))
	}
	slices.Sort(keys)
	return keys, nil
}
