package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sqlbots/dashboard/internal/account"
	"github.com/sqlbots/dashboard/internal/auth"
	"github.com/sqlbots/dashboard/internal/events"
	"github.com/sqlbots/dashboard/internal/license"
	"github.com/sqlbots/dashboard/internal/models"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *license.Ledger) {
	t.Helper()
	db := initTestDB(t)
	ledger := &license.Ledger{DB: db}
	return &AuthHandler{
		DB:        db,
		JWTSecret: testJWTSecret,
		Accounts:  &account.Service{DB: db, Ledger: ledger},
		Producer:  &events.Producer{},
	}, ledger
}

func TestSignupHandler(t *testing.T) {
	t.Run("creates account with a fresh key", func(t *testing.T) {
		h, ledger := newAuthHandler(t)
		seedLicense(t, h.DB, "KEY-SIGNUP", "30d")

		c, rec := newJSONContext(t, http.MethodPost, "/api/signup", map[string]string{
			"username":   "alice",
			"email":      "Alice@Example.com",
			"password":   "password123",
			"licenseKey": "KEY-SIGNUP",
		})
		require.NoError(t, h.Signup(c))
		requireStatus(t, rec, http.StatusCreated)

		got := decodeBody(t, rec)
		require.Equal(t, true, got["success"])
		require.Equal(t, "Sign up successful. You can now log in.", got["message"])

		lic, err := ledger.LookupByKey(c.Request().Context(), "KEY-SIGNUP")
		require.NoError(t, err)
		require.NotNil(t, lic.UserID)
	})

	t.Run("missing fields", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		c, rec := newJSONContext(t, http.MethodPost, "/api/signup", map[string]string{
			"username": "alice",
		})
		require.NoError(t, h.Signup(c))
		requireFailure(t, rec, http.StatusBadRequest)
	})

	t.Run("invalid license key", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		c, rec := newJSONContext(t, http.MethodPost, "/api/signup", map[string]string{
			"username":   "alice",
			"email":      "alice@example.com",
			"password":   "password123",
			"licenseKey": "KEY-NOPE",
		})
		require.NoError(t, h.Signup(c))
		got := requireFailure(t, rec, http.StatusBadRequest)
		require.Equal(t, "License key is invalid.", got["message"])
	})

	t.Run("used license key", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		lic := seedLicense(t, h.DB, "KEY-USED", "30d")
		user := seedUser(t, h.DB, "first", "password123")
		require.NoError(t, h.DB.Model(lic).Update("user_id", user.ID).Error)

		c, rec := newJSONContext(t, http.MethodPost, "/api/signup", map[string]string{
			"username":   "second",
			"email":      "second@example.com",
			"password":   "password123",
			"licenseKey": "KEY-USED",
		})
		require.NoError(t, h.Signup(c))
		got := requireFailure(t, rec, http.StatusConflict)
		require.Equal(t, "License key has already been used.", got["message"])
	})

	t.Run("duplicate username wins over duplicate email", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		seedLicense(t, h.DB, "KEY-A", "30d")
		seedUser(t, h.DB, "alice", "password123")

		c, rec := newJSONContext(t, http.MethodPost, "/api/signup", map[string]string{
			"username":   "alice",
			"email":      "alice@example.com",
			"password":   "password123",
			"licenseKey": "KEY-A",
		})
		require.NoError(t, h.Signup(c))
		got := requireFailure(t, rec, http.StatusConflict)
		require.Equal(t, "Username already exists.", got["message"])
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("valid credentials set a session cookie", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")

		c, rec := newJSONContext(t, http.MethodPost, "/api/login", map[string]string{
			"email":    "ALICE@example.com",
			"password": "password123",
		})
		require.NoError(t, h.Login(c))
		requireStatus(t, rec, http.StatusOK)

		got := decodeBody(t, rec)
		require.Equal(t, true, got["success"])
		tokenStr, ok := got["token"].(string)
		require.True(t, ok)
		require.NotEmpty(t, tokenStr)

		claims, err := auth.ClaimsFromToken(tokenStr, testJWTSecret)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.UserID)
		require.Equal(t, "alice", claims.Username)

		cookies := rec.Result().Cookies()
		found := false
		for _, ck := range cookies {
			if ck.Name == auth.CookieName {
				found = true
				require.Equal(t, tokenStr, ck.Value)
				require.True(t, ck.HttpOnly)
			}
		}
		require.True(t, found, "expected %s cookie", auth.CookieName)
	})

	t.Run("wrong password", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		seedUser(t, h.DB, "alice", "password123")

		c, rec := newJSONContext(t, http.MethodPost, "/api/login", map[string]string{
			"email":    "alice@example.com",
			"password": "wrong",
		})
		require.NoError(t, h.Login(c))
		got := requireFailure(t, rec, http.StatusUnauthorized)
		require.Equal(t, "Invalid email or password.", got["message"])
	})

	t.Run("unknown email", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		c, rec := newJSONContext(t, http.MethodPost, "/api/login", map[string]string{
			"email":    "ghost@example.com",
			"password": "password123",
		})
		require.NoError(t, h.Login(c))
		requireFailure(t, rec, http.StatusUnauthorized)
	})

	t.Run("missing fields", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		c, rec := newJSONContext(t, http.MethodPost, "/api/login", map[string]string{})
		require.NoError(t, h.Login(c))
		requireFailure(t, rec, http.StatusBadRequest)
	})
}

func TestSignupClaimRaceLeavesNoOrphan(t *testing.T) {
	h, _ := newAuthHandler(t)
	seedLicense(t, h.DB, "KEY-RACE", "30d")

	// Another signup claims the key first.
	c1, rec1 := newJSONContext(t, http.MethodPost, "/api/signup", map[string]string{
		"username":   "first",
		"email":      "first@example.com",
		"password":   "password123",
		"licenseKey": "KEY-RACE",
	})
	require.NoError(t, h.Signup(c1))
	requireStatus(t, rec1, http.StatusCreated)

	c2, rec2 := newJSONContext(t, http.MethodPost, "/api/signup", map[string]string{
		"username":   "second",
		"email":      "second@example.com",
		"password":   "password123",
		"licenseKey": "KEY-RACE",
	})
	require.NoError(t, h.Signup(c2))
	requireFailure(t, rec2, http.StatusConflict)

	var count int64
	require.NoError(t, h.DB.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}
