package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/neexbeast/destinasi/internal/destination"
)

const minPasswordLen = 6

// UserStore is the credential storage the provider needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *User, p *destination.Profile) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Config tunes token lifetimes and hashing cost.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Provider issues and validates sessions and notifies subscribers of
// session transitions.
type Provider struct {
	users      UserStore
	redis      *redis.Client
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
	log        *slog.Logger

	// instance tags relayed events so Listen skips the ones emitted here.
	instance string

	mu     sync.RWMutex
	subs   map[uint64]func(Event)
	nextID uint64
}

// NewProvider constructs a Provider. Zero durations and cost fall back to
// 15 minutes, 30 days and bcrypt.DefaultCost.
func NewProvider(users UserStore, client *redis.Client, cfg Config, log *slog.Logger) *Provider {
	p := &Provider{
		users:      users,
		redis:      client,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		bcryptCost: cfg.BcryptCost,
		now:        cfg.Now,
		log:        log,
		instance:   uuid.NewString(),
		subs:       make(map[uint64]func(Event)),
	}
	if p.accessTTL <= 0 {
		p.accessTTL = 15 * time.Minute
	}
	if p.refreshTTL <= 0 {
		p.refreshTTL = 30 * 24 * time.Hour
	}
	if p.bcryptCost == 0 {
		p.bcryptCost = bcrypt.DefaultCost
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

func validateCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	return email, nil
}

// SignUp registers a user with a profile and returns a signed-in session.
// The username defaults to the local part of the email.
func (p *Provider) SignUp(ctx context.Context, email, password string, meta Metadata) (*Session, error) {
	email, err := validateCredentials(email, password)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	username := strings.TrimSpace(meta.Username)
	if username == "" {
		username = email[:strings.Index(email, "@")]
	}
	profile := &destination.Profile{Username: &username}
	if fullName := strings.TrimSpace(meta.FullName); fullName != "" {
		profile.FullName = &fullName
	}

	u := &User{Email: email, PasswordHash: string(hash), Role: destination.RoleUser}
	if err := p.users.CreateUser(ctx, u, profile); err != nil {
		if errors.Is(err, destination.ErrUniqueViolation) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	p.log.Info("user registered", "user_id", u.ID)
	return p.startSession(ctx, u)
}

// SignInWithPassword checks the credentials and returns a new session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	u, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return p.startSession(ctx, u)
}

func (p *Provider) startSession(ctx context.Context, u *User) (*Session, error) {
	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	rec := sessionRecord{UserID: u.ID, Email: u.Email, Role: u.Role, RefreshHash: hashRefreshToken(refresh)}
	if err := p.storeSession(ctx, id, rec); err != nil {
		return nil, err
	}

	s, err := p.issue(id, rec, refresh)
	if err != nil {
		return nil, err
	}

	p.emit(ctx, Event{Type: EventSignedIn, SessionID: id, UserID: u.ID, At: p.now()})
	return s, nil
}

func (p *Provider) issue(id string, rec sessionRecord, refresh string) (*Session, error) {
	token, exp, err := p.signAccessToken(id, rec)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:           id,
		UserID:       rec.UserID,
		Email:        rec.Email,
		Role:         rec.Role,
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}, nil
}

// GetCurrentSession resolves an access token. It returns nil, nil when the
// token is malformed, expired, or its session has been signed out.
func (p *Provider) GetCurrentSession(ctx context.Context, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, nil
	}

	claims, err := p.parseAccessToken(accessToken, true)
	if err != nil {
		return nil, nil
	}

	rec, err := p.loadSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID != claims.Subject {
		return nil, nil
	}

	s := &Session{ID: claims.ID, UserID: rec.UserID, Email: rec.Email, Role: rec.Role}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Refresh exchanges a refresh token for a new access token and a rotated
// refresh token. Each refresh token is usable once.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrSessionNotFound
	}

	id, err := p.redis.GetDel(ctx, refreshKey(hashRefreshToken(refreshToken))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("consuming refresh token: %w", err)
	}

	rec, err := p.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	rec.RefreshHash = hashRefreshToken(refresh)
	if err := p.storeSession(ctx, id, *rec); err != nil {
		return nil, err
	}

	s, err := p.issue(id, *rec, refresh)
	if err != nil {
		return nil, err
	}

	p.emit(ctx, Event{Type: EventTokenRefreshed, SessionID: id, UserID: rec.UserID, At: p.now()})
	return s, nil
}

// SignOut revokes the session behind accessToken. Expired tokens are
// accepted; signing out an unknown session is a no-op.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.parseAccessToken(accessToken, false)
	if err != nil {
		return ErrSessionNotFound
	}

	rec, err := p.loadSession(ctx, claims.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	if err := p.deleteSession(ctx, claims.ID, *rec); err != nil {
		return err
	}

	p.emit(ctx, Event{Type: EventSignedOut, SessionID: claims.ID, UserID: rec.UserID, At: p.now()})
	return nil
}
