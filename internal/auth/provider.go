// Package auth is the identity collaborator of the ledger: email and password
// accounts stored in the local key-value store, with signed session tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"keeptrack/internal/cache"
	"keeptrack/internal/core"
	"keeptrack/internal/log"
	"keeptrack/internal/storage"
)

const (
	issuer            = "keeptrack"
	minPasswordLength = 6
	minSecretLength   = 16
	revokedCacheSize  = 10000
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// Event reports a change of the signed-in identity.
type Event struct {
	Kind  EventKind
	Owner string
}

// Listener is called synchronously after every sign-in and sign-out.
type Listener func(ctx context.Context, ev Event)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is what a successful sign-in hands back to the client.
type Session struct {
	Token     string    `json:"token"`
	Owner     string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Options struct {
	Secret string
	TTL    time.Duration
	KV     storage.KV
	Logger *log.Logger
	Now    func() time.Time
}

type Provider struct {
	mu        sync.Mutex
	kv        storage.KV
	secret    []byte
	ttl       time.Duration
	revoked   *cache.LRUCache[struct{}]
	listeners []Listener
	logger    *log.Logger
	now       func() time.Time
}

func NewProvider(opts Options) (*Provider, error) {
	if len(opts.Secret) < minSecretLength {
		return nil, fmt.Errorf("auth secret must be at least %d characters", minSecretLength)
	}
	if opts.KV == nil {
		return nil, errors.New("auth requires a key-value store")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		kv:      opts.KV,
		secret:  []byte(opts.Secret),
		ttl:     ttl,
		revoked: cache.NewLRUCache[struct{}](revokedCacheSize, ttl).WithClock(now),
		logger:  log.Or(opts.Logger).WithComponent(log.ComponentAuth),
		now:     now,
	}, nil
}

// RevokedTokens exposes the revocation list so it can be cleaned periodically.
func (p *Provider) RevokedTokens() cache.Cleaner { return p.revoked }

// Subscribe registers fn for identity events.
func (p *Provider) Subscribe(fn Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Provider) emit(ctx context.Context, ev Event) {
	p.mu.Lock()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

// SignUp registers a new account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLength {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	users, err := p.loadUsers(ctx)
	if err != nil {
		p.mu.Unlock()
		return Session{}, err
	}
	if _, taken := users[email]; taken {
		p.mu.Unlock()
		return Session{}, ErrEmailTaken
	}
	created := p.now().UTC()
	user := User{ID: core.NewID(created), Email: email, PasswordHash: string(hash), CreatedAt: created}
	users[email] = user
	err = p.saveUsers(ctx, users)
	p.mu.Unlock()
	if err != nil {
		return Session{}, err
	}

	p.logger.InfoContext(ctx, "Account created", log.FieldOwner, user.ID)
	return p.startSession(ctx, user)
}

// SignIn checks the credentials and issues a session token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	p.mu.Lock()
	users, err := p.loadUsers(ctx)
	p.mu.Unlock()
	if err != nil {
		return Session{}, err
	}
	user, ok := users[email]
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		p.logger.WarnContext(ctx, "Sign-in rejected", log.FieldOperation, log.OpSignIn, log.FieldOwner, user.ID)
		return Session{}, ErrInvalidCredentials
	}
	return p.startSession(ctx, user)
}

func (p *Provider) startSession(ctx context.Context, user User) (Session, error) {
	issued := p.now()
	expires := issued.Add(p.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   user.ID,
		ID:        core.NewID(issued),
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}

	p.logger.InfoContext(ctx, "Signed in", log.FieldOperation, log.OpSignIn, log.FieldOwner, user.ID)
	p.emit(ctx, Event{Kind: SignedIn, Owner: user.ID})
	return Session{Token: token, Owner: user.ID, Email: user.Email, ExpiresAt: expires.Truncate(time.Second)}, nil
}

// Verify returns the owner named by a valid, unrevoked token.
func (p *Provider) Verify(token string) (string, error) {
	claims, err := p.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (p *Provider) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if _, revoked := p.revoked.Get(claims.ID); revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignOut revokes token and notifies listeners.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := p.parse(token)
	if err != nil {
		return err
	}
	p.revoked.SetUntil(claims.ID, struct{}{}, claims.ExpiresAt.Time)

	p.logger.InfoContext(ctx, "Signed out", log.FieldOperation, log.OpSignOut, log.FieldOwner, claims.Subject)
	p.emit(ctx, Event{Kind: SignedOut, Owner: claims.Subject})
	return nil
}

// Owners lists the IDs of every registered account.
func (p *Provider) Owners(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	users, err := p.loadUsers(ctx)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(users))
	for _, u := range users {
		owners = append(owners, u.ID)
	}
	return owners, nil
}

func (p *Provider) loadUsers(ctx context.Context) (map[string]User, error) {
	users := make(map[string]User)
	raw, err := p.kv.Get(ctx, storage.KeyUsers)
	if errors.Is(err, storage.ErrNotFound) {
		return users, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (p *Provider) saveUsers(ctx context.Context, users map[string]User) error {
	b, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := p.kv.Put(ctx, storage.KeyUsers, b); err != nil {
		return fmt.Errorf("write users: %w", err)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
