package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// testStore connects to the database named by TEST_DATABASE_URL; tests that
// need live Postgres skip when it is unset.
func testStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := Connect(dsn)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.InitSchema(); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	return store
}

func TestSaveCampaignMaterialRetag(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	campaignID := fmt.Sprintf("CAMP-TEST-%d", time.Now().UnixNano())
	if err := store.SaveCampaign(ctx, campaignID, "half-heusler screen", "", 1.2); err != nil {
		t.Fatalf("SaveCampaign() error = %v", err)
	}

	if err := store.SaveCampaignMaterial(ctx, campaignID, "ZrNiSn", "baseline", "baseline", "", "curator"); err != nil {
		t.Fatalf("first tag error = %v", err)
	}
	// Re-tagging the same composition must update in place, not report the
	// campaign as missing.
	if err := store.SaveCampaignMaterial(ctx, campaignID, "ZrNiSn", "promoted", "candidate", "revised after scan", "curator"); err != nil {
		t.Fatalf("re-tag error = %v", err)
	}

	seeds, err := store.LoadActiveCampaignSeeds(ctx)
	if err != nil {
		t.Fatalf("LoadActiveCampaignSeeds() error = %v", err)
	}
	found := false
	for _, seed := range seeds {
		if seed.CampaignID == campaignID && seed.Composition == "ZrNiSn" {
			found = true
			if seed.Label != "promoted" || seed.Role != "candidate" {
				t.Errorf("seed = %+v, want re-tagged label/role", seed)
			}
		}
	}
	if !found {
		t.Error("re-tagged composition missing from active seeds")
	}
}

func TestSaveCampaignMaterialUnknownCampaign(t *testing.T) {
	store := testStore(t)

	err := store.SaveCampaignMaterial(context.Background(), "CAMP-DOES-NOT-EXIST", "PbTe", "x", "candidate", "", "")
	if err == nil {
		t.Fatal("expected error for unknown campaign, got nil")
	}
}
