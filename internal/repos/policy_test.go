package repos

import (
	"context"
	"testing"

	"github.com/apoliceplus/backend/internal/repos/testutil"
)

func TestPolicyRepo_NumberExistsIsScopedToUser(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewPolicyRepo(db, testutil.Logger(t))
	ctx := context.Background()

	owner := testutil.SeedUser(t, ctx, tx, "policyrepo-a@example.com")
	other := testutil.SeedUser(t, ctx, tx, "policyrepo-b@example.com")
	policy := testutil.SeedPolicy(t, ctx, tx, owner.ID, 1000)

	exists, err := repo.NumberExists(ctx, tx, owner.ID, policy.Number)
	if err != nil {
		t.Fatalf("NumberExists: %v", err)
	}
	if !exists {
		t.Fatalf("expected true for the owner")
	}

	exists, err = repo.NumberExists(ctx, tx, other.ID, policy.Number)
	if err != nil {
		t.Fatalf("NumberExists (other user): %v", err)
	}
	if exists {
		t.Fatalf("another broker may reuse the number")
	}
}
