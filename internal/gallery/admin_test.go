package gallery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type memAdmins struct {
	mu      sync.Mutex
	admins  map[string]Admin
	inserts int
	err     error
}

func (m *memAdmins) CreateAdmin(ctx context.Context, a *Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.admins == nil {
		m.admins = map[string]Admin{}
	}
	if _, ok := m.admins[a.Username]; ok {
		return ErrDuplicateUsername
	}
	m.inserts++
	a.ID = "admin-" + a.Username
	a.CreatedAt = time.Now()
	m.admins[a.Username] = *a
	return nil
}

func (m *memAdmins) FindAdminByUsername(ctx context.Context, username string) (*Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.admins[username]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func newTestRegistrar(st AdminStore) *Registrar {
	return NewRegistrar(st, nil, quietLogger(), RegistrarConfig{
		BcryptCost: bcrypt.MinCost,
		JWTSecret:  []byte("test-secret"),
		TokenTTL:   time.Hour,
	})
}

func TestRegister_HashesPassword(t *testing.T) {
	st := &memAdmins{}
	r := newTestRegistrar(st)

	a, err := r.Register(context.Background(), "root", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if a.PasswordHash != "" {
		t.Fatal("returned admin must not carry the hash")
	}

	stored := st.admins["root"]
	if stored.PasswordHash == "hunter22" || stored.PasswordHash == "" {
		t.Fatalf("password stored in clear: %q", stored.PasswordHash)
	}
	if !VerifyPassword("hunter22", stored.PasswordHash) {
		t.Fatal("correct password should verify")
	}
	if VerifyPassword("hunter23", stored.PasswordHash) {
		t.Fatal("wrong password should not verify")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	st := &memAdmins{}
	r := newTestRegistrar(st)
	ctx := context.Background()

	if _, err := r.Register(ctx, "root", "one"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := r.Register(ctx, "root", "two")
	if !IsKind(err, KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if MessageOf(err) != "Username already taken." {
		t.Fatalf("message = %q", MessageOf(err))
	}
	if st.inserts != 1 {
		t.Fatalf("expected exactly one record, got %d", st.inserts)
	}
}

func TestRegister_Validation(t *testing.T) {
	r := newTestRegistrar(&memAdmins{})

	for _, c := range []struct{ user, pass string }{
		{"", "pw"},
		{"   ", "pw"},
		{"root", ""},
		{"root", strings.Repeat("p", 73)},
	} {
		_, err := r.Register(context.Background(), c.user, c.pass)
		if !IsKind(err, KindValidation) {
			t.Errorf("Register(%q, %q): expected validation error, got %v", c.user, c.pass, err)
		}
	}
}

func TestRegister_LongestPassword(t *testing.T) {
	r := newTestRegistrar(&memAdmins{})
	pw := strings.Repeat("p", 72)

	if _, err := r.Register(context.Background(), "root", pw); err != nil {
		t.Fatalf("72-byte password should register: %v", err)
	}
	if _, err := r.Authenticate(context.Background(), "root", pw); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
}

func TestRegister_StoreFailure(t *testing.T) {
	r := newTestRegistrar(&memAdmins{err: errors.New("connection reset")})

	_, err := r.Register(context.Background(), "root", "pw")
	if !IsKind(err, KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	r := newTestRegistrar(&memAdmins{})
	ctx := context.Background()

	if _, err := r.Register(ctx, "root", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := r.Login(ctx, "root", "nope"); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := r.Login(ctx, "ghost", "hunter22"); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}

	sess, err := r.Login(ctx, "root", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token == "" || sess.User == nil || sess.User.Username != "root" {
		t.Fatalf("unexpected session %+v", sess)
	}

	claims, err := r.ValidateToken(sess.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Username != "root" || claims.Subject != "admin-root" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	r := newTestRegistrar(&memAdmins{})

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredStr, _ := expired.SignedString([]byte("test-secret"))

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "root"})
	otherKeyStr, _ := otherKey.SignedString([]byte("another-secret"))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "root"})
	noneStr, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":       "not.a.token",
		"expired":       expiredStr,
		"wrong key":     otherKeyStr,
		"alg none":      noneStr,
		"empty":         "",
		"truncated sig": strings.TrimRight(otherKeyStr, "abcdefghijklmnopqrstuvwxyz"),
	}
	for name, tok := range tests {
		if _, err := r.ValidateToken(tok); !IsKind(err, KindUnauthorized) {
			t.Errorf("%s: expected unauthorized, got %v", name, err)
		}
	}
}
