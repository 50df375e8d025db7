package services

import (
	"testing"

	"mana/internal/models"
	"mana/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)

	t.Run("stores changes as JSON", func(t *testing.T) {
		svc.Log(user.ID, "UPDATE_BUDGET", "budget", "b-1", "10.0.0.1", map[string]any{"limit": "500"})

		var entry models.AuditLog
		if err := db.Where("user_id = ? AND action = ?", user.ID, "UPDATE_BUDGET").First(&entry).Error; err != nil {
			t.Fatalf("expected audit entry: %v", err)
		}
		if entry.Changes != `{"limit":"500"}` {
			t.Errorf("unexpected changes %q", entry.Changes)
		}
		if entry.IPAddress != "10.0.0.1" || entry.ResourceType != "budget" {
			t.Errorf("unexpected entry %+v", entry)
		}
	})

	t.Run("leaves changes empty when nil", func(t *testing.T) {
		svc.Log(user.ID, "DELETE_BUDGET", "budget", "b-2", "", nil)

		var entry models.AuditLog
		if err := db.Where("user_id = ? AND action = ?", user.ID, "DELETE_BUDGET").First(&entry).Error; err != nil {
			t.Fatalf("expected audit entry: %v", err)
		}
		if entry.Changes != "" {
			t.Errorf("expected empty changes, got %q", entry.Changes)
		}
	})
}

func TestAuditHasEntry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)

	svc.Log(user.ID, "BUDGET_ALERT", "budget", "b-1:2026-03", "", nil)

	tests := []struct {
		name       string
		userID     string
		action     string
		resourceID string
		want       bool
	}{
		{"matches the logged entry", user.ID, "BUDGET_ALERT", "b-1:2026-03", true},
		{"another month is unseen", user.ID, "BUDGET_ALERT", "b-1:2026-04", false},
		{"another action is unseen", user.ID, "UPDATE_BUDGET", "b-1:2026-03", false},
		{"another user is unseen", other.ID, "BUDGET_ALERT", "b-1:2026-03", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.HasEntry(tt.userID, tt.action, tt.resourceID)
			testutil.AssertNoError(t, err)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
