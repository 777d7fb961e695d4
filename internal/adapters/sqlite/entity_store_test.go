package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/feedforge/activitylog/internal/adapters/sqlite/gormdb"
	"github.com/feedforge/activitylog/internal/core/domain"
	"github.com/feedforge/activitylog/internal/core/ports"
)

func seedUsersTable(t *testing.T, db *gormdb.DB) {
	t.Helper()

	wdb, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	ctx := context.Background()
	if _, err := wdb.ExecContext(ctx, `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL
		);
	`); err != nil {
		t.Fatalf("create users table: %v", err)
	}
	if _, err := wdb.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email) VALUES ('42', 'John Doe', 'john@example.com');
	`); err != nil {
		t.Fatalf("seed users: %v", err)
	}
}

func TestEntityStoreResolve(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedUsersTable(t, db)

	store := NewEntityStore(db)
	store.Register("user", TableSpec{Table: "users", DisplayNameColumn: "full_name"})

	entity, err := store.Resolve(ctx, domain.EntityKey{Type: "user", ID: "42"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entity.EntityType() != "user" || entity.EntityID() != "42" {
		t.Fatalf("unexpected identity: %s/%s", entity.EntityType(), entity.EntityID())
	}

	named, ok := entity.(ports.DisplayNameProvider)
	if !ok {
		t.Fatal("resolved entity should expose a display name")
	}
	if named.DisplayName() != "John Doe" {
		t.Errorf("display name = %q", named.DisplayName())
	}

	attrs, ok := entity.(ports.AttributeProvider)
	if !ok {
		t.Fatal("resolved entity should expose attributes")
	}
	if email, present := attrs.Attribute("email"); !present || email != "john@example.com" {
		t.Errorf("email attribute = %v, %v", email, present)
	}
}

func TestEntityStoreResolveMissingRow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedUsersTable(t, db)

	store := NewEntityStore(db)
	store.Register("user", TableSpec{Table: "users"})

	_, err := store.Resolve(ctx, domain.EntityKey{Type: "user", ID: "404"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEntityStoreResolveUnregisteredType(t *testing.T) {
	store := NewEntityStore(openTestDB(t))

	_, err := store.Resolve(context.Background(), domain.EntityKey{Type: "ghost", ID: "1"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEntityStoreNoDisplayNameColumn(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedUsersTable(t, db)

	store := NewEntityStore(db)
	store.Register("user", TableSpec{Table: "users"})

	entity, err := store.Resolve(ctx, domain.EntityKey{Type: "user", ID: "42"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	named := entity.(ports.DisplayNameProvider)
	if named.DisplayName() != "" {
		t.Errorf("display name = %q, want empty without a configured column", named.DisplayName())
	}
}
