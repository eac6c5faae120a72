package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tallyboard/internal/models"
	"tallyboard/internal/store"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a token resolves to no session
var ErrSessionNotFound = errors.New("auth: session not found")

// sessionKeyPrefix scopes session records in the key-value store
const sessionKeyPrefix = "tally:session:"

// SessionManager issues and resolves token-backed sessions. A session is the
// resolved role+name pair; it lives in the same key-value store as the
// entries and carries no expiry.
type SessionManager struct {
	store   store.Store
	checker CredentialChecker
}

// NewSessionManager creates a session manager
func NewSessionManager(s store.Store, checker CredentialChecker) *SessionManager {
	return &SessionManager{
		store:   s,
		checker: checker,
	}
}

// LoginContributor creates a contributor session for the given name
func (m *SessionManager) LoginContributor(ctx context.Context, name string) (string, models.Session, error) {
	return m.createSession(ctx, models.RoleContributor, name)
}

// LoginAdmin validates the credentials and creates an admin session
func (m *SessionManager) LoginAdmin(ctx context.Context, name, password string) (string, models.Session, error) {
	if err := m.checker.CheckAdmin(ctx, name, password); err != nil {
		return "", models.Session{}, err
	}
	return m.createSession(ctx, models.RoleAdmin, name)
}

func (m *SessionManager) createSession(ctx context.Context, role, name string) (string, models.Session, error) {
	session := models.Session{
		Role:      role,
		Name:      strings.TrimSpace(name),
		Timestamp: time.Now().UnixMilli(),
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return "", models.Session{}, fmt.Errorf("failed to serialize session: %w", err)
	}

	token := uuid.NewString()
	if err := m.store.Set(ctx, sessionKeyPrefix+token, string(raw)); err != nil {
		return "", models.Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	return token, session, nil
}

// GetSession resolves a token to its session record
func (m *SessionManager) GetSession(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrSessionNotFound
	}

	raw, err := m.store.Get(ctx, sessionKeyPrefix+token)
	if err != nil {
		if err == store.ErrNotFound {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		// Unreadable record: treat as absent, same as any malformed blob.
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Logout removes the session record for a token
func (m *SessionManager) Logout(ctx context.Context, token string) error {
	return m.store.Delete(ctx, sessionKeyPrefix+token)
}
