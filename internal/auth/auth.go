// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth keeps the local credential collection and the active-user
// pointer in the blob store.
//
// Credentials are stored in plain text and compared exactly. The store is
// a convenience for switching between local profiles, not a security
// boundary.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/iachat/internal/logging"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

// The messages are shown to the user verbatim.
var (
	ErrInvalidCredentials = errors.New("ชื่อผู้ใช้หรือรหัสผ่านไม่ถูกต้อง")
	ErrMissingFields      = errors.New("กรุณากรอกข้อมูลให้ครบถ้วน")
	ErrUsernameTaken      = errors.New("ชื่อผู้ใช้นี้ถูกใช้งานแล้ว")
	ErrReservedUsername   = errors.New("ชื่อผู้ใช้นี้สงวนสิทธิ์")
)

// IsValidationError reports whether err is a registration validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrReservedUsername)
}

// =============================================================================
// PRIVILEGED ACCOUNT
// =============================================================================

// Owner is the built-in privileged account. It is recreated on every start.
var Owner = model.UserProfile{
	Username: "Nice222",
	Password: "1175",
	Name:     "คุณไนซ์ (CEO)",
	Avatar:   "👑",
}

// IsPrivileged reports whether p is the owner account.
func IsPrivileged(p model.UserProfile) bool {
	return p.Username == Owner.Username
}

// =============================================================================
// SERVICE
// =============================================================================

// Service reads and writes credentials through a storage.Store.
type Service struct {
	store storage.Store
	log   logging.Logger

	mu sync.Mutex
}

// New creates a Service over store.
func New(store storage.Store, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, log: log.With("component", "auth")}
}

// EnsureOwner makes sure the owner account is present at the head of the
// collection with its canonical password. The collection is only rewritten
// when something changed.
func (s *Service) EnsureOwner(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load(ctx)
	idx := indexOf(users, Owner.Username)

	switch {
	case idx == -1:
		users = append([]model.UserProfile{Owner}, users...)
	case users[idx].Password != Owner.Password:
		users[idx] = Owner
	default:
		return nil
	}

	s.log.Info(ctx, "owner account restored")
	return s.save(ctx, users)
}

// Login returns the profile whose username and password both match exactly.
func (s *Service) Login(ctx context.Context, username, password string) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.load(ctx) {
		if u.Username == username && u.Password == password {
			s.log.Info(ctx, "login", "user", username)
			return u, nil
		}
	}
	s.log.Warn(ctx, "login rejected", "user", username)
	return model.UserProfile{}, ErrInvalidCredentials
}

// Register appends a new account and returns it. Checks run in order:
// missing fields, taken username (case-sensitive), reserved username
// (case-insensitive). On any failure the collection is left unchanged.
func (s *Service) Register(ctx context.Context, username, password, name string) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if username == "" || password == "" || name == "" {
		return model.UserProfile{}, ErrMissingFields
	}
	users := s.load(ctx)
	if indexOf(users, username) != -1 {
		return model.UserProfile{}, ErrUsernameTaken
	}
	if strings.EqualFold(username, Owner.Username) {
		return model.UserProfile{}, ErrReservedUsername
	}

	profile := model.UserProfile{
		Username: username,
		Password: password,
		Name:     name,
		Avatar:   model.DefaultAvatar,
	}
	if err := s.save(ctx, append(users, profile)); err != nil {
		return model.UserProfile{}, err
	}
	s.log.Info(ctx, "registered", "user", username)
	return profile, nil
}

// Users returns the credential collection. Malformed data reads as empty.
func (s *Service) Users(ctx context.Context) []model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// =============================================================================
// ACTIVE USER
// =============================================================================

// SetActive records p as the logged-in user. The password is not copied.
func (s *Service) SetActive(ctx context.Context, p model.UserProfile) error {
	p.Password = ""
	data, err := model.EncodeUser(p)
	if err != nil {
		return fmt.Errorf("encode active user: %w", err)
	}
	return s.store.Set(ctx, storage.KeyActiveUser, data)
}

// Active returns the logged-in user, if any. Unreadable data counts as
// logged out.
func (s *Service) Active(ctx context.Context) (model.UserProfile, bool) {
	data, err := s.store.Get(ctx, storage.KeyActiveUser)
	if err != nil {
		s.log.Warn(ctx, "read active user", "error", err)
		return model.UserProfile{}, false
	}
	if data == nil {
		return model.UserProfile{}, false
	}
	p, err := model.DecodeUser(data)
	if err != nil || p.Username == "" {
		s.log.Warn(ctx, "discarding malformed active user", "error", err)
		return model.UserProfile{}, false
	}
	return p, true
}

// ClearActive removes the logged-in user pointer.
func (s *Service) ClearActive(ctx context.Context) error {
	return s.store.Delete(ctx, storage.KeyActiveUser)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) load(ctx context.Context) []model.UserProfile {
	data, err := s.store.Get(ctx, storage.KeyUsers)
	if err != nil {
		s.log.Warn(ctx, "read credentials", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	users, err := model.DecodeUsers(data)
	if err != nil {
		s.log.Warn(ctx, "discarding malformed credentials", "error", err)
		return nil
	}
	return users
}

func (s *Service) save(ctx context.Context, users []model.UserProfile) error {
	data, err := model.EncodeUsers(users)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyUsers, data); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func indexOf(users []model.UserProfile, username string) int {
	for i, u := range users {
		if u.Username == username {
			return i
		}
	}
	return -1
}
