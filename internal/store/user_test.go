package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/annex/internal/database"
	"github.com/dukerupert/annex/internal/secrets"
)

func setupUserTestDB(t *testing.T) (*UserStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	box, err := secrets.NewBox("test-passphrase")
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	return NewUserStore(db, box), db
}

func TestUserCreate(t *testing.T) {
	us, _ := setupUserTestDB(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "alice", "Alice", "token-abc")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want %q", u.Username, "alice")
	}
	if u.PaperlessToken != "token-abc" {
		t.Errorf("token = %q, want open token", u.PaperlessToken)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	us, _ := setupUserTestDB(t)
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice", "Alice", "t1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create(ctx, "alice", "Alice2", "t2"); err == nil {
		t.Fatal("expected error for duplicate username, got nil")
	}
}

func TestUserTokenSealedAtRest(t *testing.T) {
	us, db := setupUserTestDB(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "alice", "Alice", "token-abc")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	var stored string
	if err := db.QueryRow(`SELECT paperless_token FROM users WHERE id = ?`, u.ID).Scan(&stored); err != nil {
		t.Fatalf("read raw token: %v", err)
	}
	if stored == "token-abc" || stored == "" {
		t.Errorf("raw column = %q, want sealed value", stored)
	}
}

func TestUserGetByUsername(t *testing.T) {
	us, _ := setupUserTestDB(t)
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice", "Alice", "t1"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if u == nil || u.PaperlessToken != "t1" {
		t.Errorf("got %+v, want alice with open token", u)
	}

	missing, err := us.GetByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Errorf("missing user = %+v, want nil", missing)
	}
}

func TestUserListWithTokens(t *testing.T) {
	us, _ := setupUserTestDB(t)
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice", "Alice", "t1"); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := us.Create(ctx, "bob", "Bob", "t2"); err != nil {
		t.Fatalf("create bob: %v", err)
	}
	if _, err := us.Create(ctx, "carol", "Carol", ""); err != nil {
		t.Fatalf("create carol: %v", err)
	}

	users, err := us.ListWithTokens(ctx)
	if err != nil {
		t.Fatalf("list with tokens: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2 (carol has no token)", len(users))
	}
	if users[0].PaperlessToken != "t1" || users[1].PaperlessToken != "t2" {
		t.Errorf("tokens = %q, %q, want open t1, t2", users[0].PaperlessToken, users[1].PaperlessToken)
	}
}

func TestUserUpdateToken(t *testing.T) {
	us, _ := setupUserTestDB(t)
	ctx := context.Background()

	created, err := us.Create(ctx, "alice", "Alice", "old")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.UpdateToken(ctx, created.ID, "new")
	if err != nil {
		t.Fatalf("update token: %v", err)
	}
	if u.PaperlessToken != "new" {
		t.Errorf("token = %q, want %q", u.PaperlessToken, "new")
	}
}

func TestUserDelete(t *testing.T) {
	us, _ := setupUserTestDB(t)
	ctx := context.Background()

	created, err := us.Create(ctx, "alice", "Alice", "t1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := us.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	u, err := us.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get deleted user: %v", err)
	}
	if u != nil {
		t.Errorf("deleted user still returned: %+v", u)
	}
}
