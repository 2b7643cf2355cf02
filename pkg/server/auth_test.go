package server

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/crystal-station/gostation/pkg/adminmgr"
	"github.com/crystal-station/gostation/pkg/boltstore"
)

func newAuth(t *testing.T) (*AuthService, *boltstore.Store) {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "auth.bolt"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewAuthService(store, "test-secret", 60), store
}

func TestRegisterAndLogin(t *testing.T) {
	auth, store := newAuth(t)
	if err := auth.Register("Alice", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := auth.Register("alice", "other"); err == nil {
		t.Error("duplicate account should fail")
	}
	if err := auth.Register("Bob", "x"); err == nil {
		t.Error("short password should fail")
	}
	store.SetAdminFlags("Alice", uint32(adminmgr.FlagFun))

	token, err := auth.Login("ALICE", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Name != "Alice" || adminmgr.AdminFlags(claims.AdminFlags) != adminmgr.FlagFun {
		t.Errorf("claims = %+v", claims)
	}

	acc, _ := store.GetAccount("Alice")
	if time.Since(acc.LastLogin) > time.Minute {
		t.Error("last login should be stamped")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, _ := newAuth(t)
	auth.Register("Alice", "hunter2")

	for _, tc := range []struct{ name, pass string }{
		{"Alice", "wrong"},
		{"Nobody", "hunter2"},
	} {
		if _, err := auth.Login(tc.name, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) err = %v", tc.name, tc.pass, err)
		}
	}
}

func TestValidateTokenRejectsForeignKey(t *testing.T) {
	auth, store := newAuth(t)
	auth.Register("Alice", "hunter2")
	token, _ := auth.Login("Alice", "hunter2")

	other := NewAuthService(store, "another-secret", 60)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token signed with another key should be rejected")
	}
	if _, err := auth.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage should be rejected")
	}
}

func TestRefreshPicksUpNewFlags(t *testing.T) {
	auth, store := newAuth(t)
	auth.Register("Alice", "hunter2")
	token, _ := auth.Login("Alice", "hunter2")

	store.SetAdminFlags("Alice", uint32(adminmgr.FlagHost))
	refreshed, err := auth.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	claims, _ := auth.ValidateToken(refreshed)
	if adminmgr.AdminFlags(claims.AdminFlags) != adminmgr.FlagHost {
		t.Errorf("flags = %v", claims.AdminFlags)
	}
}

func TestGenerateJWTSecret(t *testing.T) {
	a, b := GenerateJWTSecret(), GenerateJWTSecret()
	if len(a) != 64 || a == b {
		t.Errorf("secrets = %q %q", a, b)
	}
}
