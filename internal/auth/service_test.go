package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medifast-dev/medifast-backend/internal/users"
	pkgauth "github.com/medifast-dev/medifast-backend/pkg/auth"
	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
	"github.com/medifast-dev/medifast-backend/pkg/security"
)

type fakeSender struct {
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	phone string
	body  string
}

func (f *fakeSender) SendText(ctx context.Context, phone, body string) bool {
	if f.fail {
		return false
	}
	f.sent = append(f.sent, sentMessage{phone: phone, body: body})
	return true
}

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  dni TEXT NOT NULL,
  full_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_users_dni UNIQUE (dni)
);`
	require.NoError(t, conn.Exec(ddl).Error)
	require.NoError(t, conn.Exec("DELETE FROM users").Error)
	return conn
}

type authServiceTest struct {
	svc    Service
	conn   *gorm.DB
	sender *fakeSender
	jwtCfg config.JWTConfig
	now    time.Time
}

func newAuthServiceTest(t *testing.T) *authServiceTest {
	t.Helper()
	conn := setupAuthTestDB(t)
	sender := &fakeSender{}
	jwtCfg := config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "medifast-test",
		ExpirationMinutes: 60,
	}
	// Anchored to the wall clock so minted tokens stay verifiable; jwt
	// expiry validation uses time.Now, not the injected clock.
	now := time.Now().UTC().Truncate(time.Second)
	svc, err := NewService(ServiceParams{
		UserRepo:    users.NewRepository(conn),
		Sender:      sender,
		Logger:      logger.New(logger.Options{ServiceName: "auth-test"}),
		JWTCfg:      jwtCfg,
		PasswordCfg: config.PasswordConfig{},
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)
	return &authServiceTest{svc: svc, conn: conn, sender: sender, jwtCfg: jwtCfg, now: now}
}

func (h *authServiceTest) seedUser(t *testing.T, dni, password string) uuid.UUID {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, h.conn.Exec(
		"INSERT INTO users (id, dni, full_name, phone, password_hash, role) VALUES (?, ?, ?, ?, ?, ?)",
		id, dni, "Maria Quispe", "+51 987-654-321", hash, enums.RoleUser,
	).Error)
	return id
}

func TestLoginMintsVerifiableToken(t *testing.T) {
	h := newAuthServiceTest(t)
	userID := h.seedUser(t, "74381920", "super-secret-1")

	result, err := h.svc.Login(context.Background(), LoginInput{DNI: "74381920", Password: "super-secret-1"})
	require.NoError(t, err)
	assert.Equal(t, userID, result.User.ID)

	claims, err := pkgauth.ParseAccessToken(h.jwtCfg, result.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.RoleUser, claims.Role)
}

func TestLoginDoesNotLeakWhichAccountsExist(t *testing.T) {
	h := newAuthServiceTest(t)
	h.seedUser(t, "74381920", "super-secret-1")

	_, errWrong := h.svc.Login(context.Background(), LoginInput{DNI: "74381920", Password: "nope"})
	require.Error(t, errWrong)
	_, errUnknown := h.svc.Login(context.Background(), LoginInput{DNI: "00000000", Password: "nope"})
	require.Error(t, errUnknown)

	typedWrong := pkgerrors.As(errWrong)
	typedUnknown := pkgerrors.As(errUnknown)
	require.NotNil(t, typedWrong)
	require.NotNil(t, typedUnknown)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typedWrong.Code())
	assert.Equal(t, typedWrong.Message(), typedUnknown.Message())
}

func TestRecoverPasswordSendsTempPasswordOverWhatsApp(t *testing.T) {
	h := newAuthServiceTest(t)
	h.seedUser(t, "74381920", "super-secret-1")

	require.NoError(t, h.svc.RecoverPassword(context.Background(), RecoverInput{DNI: "74381920"}))

	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "51987654321", h.sender.sent[0].phone)
	assert.Contains(t, h.sender.sent[0].body, "temporary password")

	// The old password no longer works.
	_, err := h.svc.Login(context.Background(), LoginInput{DNI: "74381920", Password: "super-secret-1"})
	require.Error(t, err)

	// The delivered temporary password does.
	fields := strings.Fields(h.sender.sent[0].body)
	var temp string
	for i, f := range fields {
		if f == "is" && i+1 < len(fields) {
			temp = strings.TrimSuffix(fields[i+1], ".")
		}
	}
	require.NotEmpty(t, temp)
	_, err = h.svc.Login(context.Background(), LoginInput{DNI: "74381920", Password: temp})
	require.NoError(t, err)
}

func TestRecoverPasswordKeepsOldHashWhenDeliveryFails(t *testing.T) {
	h := newAuthServiceTest(t)
	h.seedUser(t, "74381920", "super-secret-1")
	h.sender.fail = true

	err := h.svc.RecoverPassword(context.Background(), RecoverInput{DNI: "74381920"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())

	// A failed delivery must not lock the user out.
	_, err = h.svc.Login(context.Background(), LoginInput{DNI: "74381920", Password: "super-secret-1"})
	require.NoError(t, err)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	h := newAuthServiceTest(t)
	userID := h.seedUser(t, "74381920", "super-secret-1")
	ctx := context.Background()

	err := h.svc.ChangePassword(ctx, userID, ChangePasswordInput{
		CurrentPassword: "wrong",
		NewPassword:     "another-secret-2",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())

	require.NoError(t, h.svc.ChangePassword(ctx, userID, ChangePasswordInput{
		CurrentPassword: "super-secret-1",
		NewPassword:     "another-secret-2",
	}))
	_, err = h.svc.Login(ctx, LoginInput{DNI: "74381920", Password: "another-secret-2"})
	require.NoError(t, err)
}
