package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"photowall/internal/logging"
	"photowall/internal/metrics"
)

// DefaultBcryptCost matches ten salt rounds.
const DefaultBcryptCost = 10

// RegistrarConfig tunes credential handling.
type RegistrarConfig struct {
	BcryptCost int
	JWTSecret  []byte
	TokenTTL   time.Duration
}

// Registrar registers and authenticates administrators.
type Registrar struct {
	store   AdminStore
	metrics *metrics.Metrics
	log     *logging.Logger
	cfg     RegistrarConfig
	now     func() time.Time
}

// NewRegistrar wires the admin service. m and log may be nil.
func NewRegistrar(store AdminStore, m *metrics.Metrics, log *logging.Logger, cfg RegistrarConfig) *Registrar {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if log == nil {
		log = logging.Default()
	}
	return &Registrar{store: store, metrics: m, log: log, cfg: cfg, now: time.Now}
}

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

var passwordTooLong = fmt.Sprintf("Password must be at most %d bytes.", maxPasswordBytes)

// Register hashes password and inserts a new administrator if username is
// free. The returned record never carries credential material.
func (r *Registrar) Register(ctx context.Context, username, password string) (*Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError("Username and password are required.")
	}

	if len(password) > maxPasswordBytes {
		return nil, validationError(passwordTooLong)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cfg.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, validationError(passwordTooLong)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := &Admin{Username: username, PasswordHash: string(hash)}
	if err := r.store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			r.metrics.RecordAdminRegistration(true)
			return nil, conflictError("Username already taken.")
		}
		r.log.Error("admin_persist_failed", logging.Fields{"username": username}, err)
		return nil, persistenceError("failed to save admin", err)
	}
	r.metrics.RecordAdminRegistration(false)
	r.log.Info("admin_registered", logging.Fields{"id": admin.ID, "username": admin.Username})

	return &Admin{ID: admin.ID, Username: admin.Username, CreatedAt: admin.CreatedAt}, nil
}

// Authenticate checks password against the stored hash for username.
func (r *Registrar) Authenticate(ctx context.Context, username, password string) (*Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError("Username and password are required.")
	}

	admin, err := r.store.FindAdminByUsername(ctx, username)
	if err != nil {
		return nil, persistenceError("failed to load admin", err)
	}
	if admin == nil || !VerifyPassword(password, admin.PasswordHash) {
		r.metrics.RecordLogin(false)
		return nil, unauthorizedError("invalid credentials")
	}
	r.metrics.RecordLogin(true)
	return &Admin{ID: admin.ID, Username: admin.Username, CreatedAt: admin.CreatedAt}, nil
}

// Claims are the JWT claims issued to administrators.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session is a signed admin token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *Admin    `json:"user"`
}

// Login authenticates and issues an HS256 token.
func (r *Registrar) Login(ctx context.Context, username, password string) (*Session, error) {
	admin, err := r.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	now := r.now()
	exp := now.Add(r.cfg.TokenTTL)
	claims := Claims{
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: tok, ExpiresAt: exp, User: admin}, nil
}

// ValidateToken parses and verifies an admin token.
func (r *Registrar) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return r.cfg.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, unauthorizedError("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, unauthorizedError("invalid token")
	}
	return claims, nil
}

// VerifyPassword compares a password with its bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
