package store

import (
	"context"
	"testing"
)

func TestClaimHashAlgorithm_FirstClaimWins(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	got, err := st.ClaimHashAlgorithm(ctx, " SHA256 ")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if got != "sha256" {
		t.Fatalf("expected sha256 recorded, got %q", got)
	}

	got, err = st.ClaimHashAlgorithm(ctx, "blake3")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if got != "sha256" {
		t.Fatalf("expected recorded sha256 to be kept, got %q", got)
	}

	if _, err := st.ClaimHashAlgorithm(ctx, "  "); err == nil {
		t.Fatal("expected error for empty algorithm")
	}
}
