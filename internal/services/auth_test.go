package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"betternews/internal/apperr"
	"betternews/internal/models"
	"betternews/internal/testutil"
)

func newTestAuthService(t *testing.T, ttl time.Duration) (*AuthService, Deps) {
	t.Helper()
	d := Deps{DB: testutil.OpenTestDB(t)}
	return NewAuthService(d, ttl), d
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, d := newTestAuthService(t, time.Hour)

	session, err := svc.Signup(ctx, Credentials{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if len(session.ID) != 40 || strings.ToLower(session.ID) != session.ID {
		t.Errorf("Unexpected session id %q", session.ID)
	}

	var user models.User
	if err := d.DB.Where("username = ?", "alice").Take(&user).Error; err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.PasswordHash == "secret" || !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
		t.Errorf("Password not hashed: %q", user.PasswordHash)
	}

	_, err = svc.Signup(ctx, Credentials{Username: "alice", Password: "other"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Expected conflict, got %v", err)
	}
	if ae := apperr.From(err); ae.Message != "Username already used" || !ae.Form {
		t.Errorf("Unexpected conflict error: %+v", ae)
	}

	login, err := svc.Login(ctx, Credentials{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.ID == session.ID {
		t.Error("Expected a new session per login")
	}

	for _, c := range []Credentials{
		{Username: "alice", Password: "wrong"},
		{Username: "nobody", Password: "secret"},
	} {
		_, err := svc.Login(ctx, c)
		if !apperr.Is(err, apperr.KindAuth) {
			t.Errorf("Login(%s): expected auth error, got %v", c.Username, err)
			continue
		}
		if msg := apperr.From(err).Message; msg != "Incorrect username or password" {
			t.Errorf("Login(%s): unexpected message %q", c.Username, msg)
		}
	}
}

func TestCredentialsValidation(t *testing.T) {
	tests := []struct {
		name  string
		c     Credentials
		field string
	}{
		{"short username", Credentials{Username: "ab", Password: "secret"}, "username"},
		{"long username", Credentials{Username: strings.Repeat("a", 32), Password: "secret"}, "username"},
		{"bad chars", Credentials{Username: "al ice", Password: "secret"}, "username"},
		{"short password", Credentials{Username: "alice", Password: "ab"}, "password"},
		{"long password", Credentials{Username: "alice", Password: strings.Repeat("p", 256)}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.validate()
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if _, ok := apperr.From(err).Fields[tt.field]; !ok {
				t.Errorf("Expected field %q", tt.field)
			}
		})
	}

	if err := (Credentials{Username: "good_name1", Password: "abc"}).validate(); err != nil {
		t.Errorf("Expected valid credentials, got %v", err)
	}
}

func TestValidateSession(t *testing.T) {
	ctx := context.Background()
	svc, d := newTestAuthService(t, 10*time.Hour)
	now := time.Now()
	svc.now = func() time.Time { return now }

	session, err := svc.Signup(ctx, Credentials{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	info, err := svc.ValidateSession(ctx, session.ID)
	if err != nil || info == nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if info.User.Username != "alice" || info.Fresh {
		t.Errorf("Unexpected session info: %+v", info)
	}
	if v := info.Viewer(); v.UserID != info.User.ID || v.Username != "alice" {
		t.Errorf("Unexpected viewer: %+v", v)
	}

	// 剩余不足一半，续期
	now = now.Add(6 * time.Hour)
	info, err = svc.ValidateSession(ctx, session.ID)
	if err != nil || info == nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if !info.Fresh || !info.Session.ExpiresAt.Equal(now.Add(10*time.Hour)) {
		t.Errorf("Expected refreshed session, got %+v", info.Session)
	}

	now = now.Add(11 * time.Hour)
	info, err = svc.ValidateSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if info != nil {
		t.Error("Expected expired session to be rejected")
	}
	var n int64
	d.DB.Model(&models.Session{}).Where("id = ?", session.ID).Count(&n)
	if n != 0 {
		t.Error("Expected expired session row to be deleted")
	}

	if info, err := svc.ValidateSession(ctx, "unknown"); info != nil || err != nil {
		t.Errorf("Expected nil for unknown session, got %v %v", info, err)
	}
}

func TestInvalidateAndSweepSessions(t *testing.T) {
	ctx := context.Background()
	svc, d := newTestAuthService(t, time.Hour)
	alice := testutil.SeedUser(t, d.DB, "alice")

	live, err := svc.createSession(ctx, alice.ID)
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}
	expired := models.Session{ID: "expired", UserID: alice.ID, ExpiresAt: time.Now().Add(-time.Minute)}
	d.DB.Omit("User").Create(&expired)

	sweeper := NewSessionSweeper(svc, time.Hour)
	sweeper.sweep(ctx)

	var ids []string
	d.DB.Model(&models.Session{}).Pluck("id", &ids)
	if len(ids) != 1 || ids[0] != live.ID {
		t.Fatalf("Expected only live session after sweep, got %v", ids)
	}

	if err := svc.InvalidateSession(ctx, live.ID); err != nil {
		t.Fatalf("InvalidateSession failed: %v", err)
	}
	if info, _ := svc.ValidateSession(ctx, live.ID); info != nil {
		t.Error("Expected logged-out session to be gone")
	}
}

func TestSessionSweeperStops(t *testing.T) {
	svc, _ := newTestAuthService(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewSessionSweeper(svc, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
