// Package identity authenticates users and manages projects, users and
// role bindings.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jbweber/hearth/internal/session"
	"github.com/jbweber/hearth/internal/store"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = time.Hour

// AuthGate issues and validates session tokens.
type AuthGate struct {
	users    *store.UserRepository
	projects *store.ProjectRepository
	roles    *store.RoleRepository
	sessions session.Store
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string

	// dummyHash is compared against when the user does not exist so that
	// unknown usernames cost the same as wrong passwords. Its cost must
	// match the cost of stored hashes.
	dummyHash []byte
}

// AuthGateOption configures an AuthGate.
type AuthGateOption func(*authGateOptions)

type authGateOptions struct {
	hashCost int
}

// WithHashCost sets the bcrypt cost of the hash compared for unknown users.
// It must equal the cost the Directory hashes passwords with.
func WithHashCost(cost int) AuthGateOption {
	return func(o *authGateOptions) {
		o.hashCost = cost
	}
}

// NewAuthGate creates an AuthGate. A zero ttl means DefaultTokenTTL.
func NewAuthGate(db *gorm.DB, sessions session.Store, ttl time.Duration, logger *slog.Logger, opts ...AuthGateOption) *AuthGate {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := authGateOptions{hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("hearth-dummy-password"), o.hashCost)
	if err != nil {
		// Only an out-of-range cost fails; fall back to the directory default.
		dummy, _ = bcrypt.GenerateFromPassword([]byte("hearth-dummy-password"), bcrypt.DefaultCost)
	}

	return &AuthGate{
		users:    store.NewUserRepository(db),
		projects: store.NewProjectRepository(db),
		roles:    store.NewRoleRepository(db),
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		newToken: uuid.NewString,

		dummyHash: dummy,
	}
}

// Authenticate checks username and password and that the user holds at least
// one role in projectName. On success it returns a new token scoped to that
// project.
func (g *AuthGate) Authenticate(ctx context.Context, username, password, projectName string) (string, time.Time, error) {
	log := g.logger.With("username", username, "project", projectName)

	if username == "" || password == "" || projectName == "" {
		log.Info("authentication failed", "reason", "missing credentials")
		return "", time.Time{}, ErrAuthentication
	}

	user, err := g.users.FindByUsername(ctx, username)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(g.dummyHash, []byte(password))
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("user lookup failed", "error", err)
		} else {
			log.Info("authentication failed", "reason", "unknown user")
		}
		return "", time.Time{}, ErrAuthentication
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Info("authentication failed", "reason", "bad password")
		return "", time.Time{}, ErrAuthentication
	}

	project, err := g.projects.FindByName(ctx, projectName)
	if err != nil {
		log.Info("authentication failed", "reason", "unknown project", "error", err)
		return "", time.Time{}, ErrAuthentication
	}

	roles, err := g.roles.RolesInProject(ctx, user.ID, project.ID)
	if err != nil {
		log.Error("role lookup failed", "error", err)
		return "", time.Time{}, ErrAuthentication
	}
	if len(roles) == 0 {
		log.Info("authentication failed", "reason", "no role in project")
		return "", time.Time{}, ErrAuthentication
	}

	token := g.newToken()
	expiresAt := g.now().Add(g.ttl).UTC()
	sess := session.Session{
		UserID:    user.ID,
		Username:  user.Username,
		ProjectID: project.ID,
		Roles:     roles,
		ExpiresAt: expiresAt,
	}
	if err := g.sessions.Put(ctx, token, sess, g.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session: %w", err)
	}

	log.Info("token issued", "user_id", user.ID, "project_id", project.ID, "roles", roles)
	return token, expiresAt, nil
}

// ValidateToken returns the session bound to token.
func (g *AuthGate) ValidateToken(ctx context.Context, token string) (session.Session, error) {
	if token == "" {
		return session.Session{}, ErrTokenInvalid
	}
	sess, err := g.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Session{}, ErrTokenInvalid
		}
		return session.Session{}, fmt.Errorf("failed to validate token: %w", err)
	}
	return sess, nil
}

// InvalidateToken ends the session bound to token.
func (g *AuthGate) InvalidateToken(ctx context.Context, token string) error {
	if err := g.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}
