package repository

import (
	"testing"
	"time"

	"github.com/stampcard-next/internal/models"
)

func newTestRedemptionRecord(cardID uint, token, pin, legacy string, issuedAt time.Time) *models.RedemptionRecord {
	return &models.RedemptionRecord{
		StampCardID:   cardID,
		BusinessID:    2,
		CustomerID:    cardID,
		QRToken:       token,
		PINCode:       pin,
		LegacyCode:    legacy,
		QRExpiresAt:   issuedAt.Add(time.Minute),
		PINExpiresAt:  issuedAt.Add(2 * time.Minute),
		CodeExpiresAt: issuedAt.Add(2 * time.Minute),
		IssuedAt:      issuedAt,
	}
}

func TestRedemptionRepositoryFindOutstanding(t *testing.T) {
	db := setupStampRepositoryTest(t)
	repo := NewRedemptionRepository(db)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older := newTestRedemptionRecord(1, "token-a", "1234", "111111", now)
	newer := newTestRedemptionRecord(2, "token-b", "1234", "222222", now.Add(time.Second))
	for _, record := range []*models.RedemptionRecord{older, newer} {
		if err := repo.Create(record); err != nil {
			t.Fatalf("create record failed: %v", err)
		}
	}

	got, err := repo.FindOutstanding(2, RedemptionColumnPINCode, "1234")
	if err != nil || got == nil {
		t.Fatalf("find by pin failed: %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("pin collision should resolve to latest issued, got %d", got.ID)
	}

	got, err = repo.FindOutstanding(3, RedemptionColumnQRToken, "token-a")
	if err != nil {
		t.Fatalf("find by token failed: %v", err)
	}
	if got != nil {
		t.Fatalf("other business must not match")
	}

	got, err = repo.FindOutstanding(2, "id", "1")
	if err != nil || got != nil {
		t.Fatalf("unknown column must not match: %v", err)
	}

	inUse, err := repo.PINInUse(2, "1234", 1, now)
	if err != nil {
		t.Fatalf("pin in use failed: %v", err)
	}
	if !inUse {
		t.Fatalf("pin held by card 2 should be in use")
	}
	inUse, err = repo.PINInUse(2, "1234", 1, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("pin in use failed: %v", err)
	}
	if inUse {
		t.Fatalf("expired pin should be free")
	}
}

func TestRedemptionRepositoryConditionalWrites(t *testing.T) {
	db := setupStampRepositoryTest(t)
	repo := NewRedemptionRepository(db)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	record := newTestRedemptionRecord(1, "token-a", "1234", "111111", now)
	if err := repo.Create(record); err != nil {
		t.Fatalf("create record failed: %v", err)
	}
	if _, err := repo.IncrementFailedAttempts(record.ID); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if _, err := repo.Lock(record.ID, now.Add(15*time.Minute)); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	locked, _ := repo.GetByID(record.ID)
	if locked.FailedAttempts != 0 || locked.LockoutUntil == nil {
		t.Fatalf("lock should reset attempts and set lockout: %+v", locked)
	}

	record.QRToken = "token-c"
	record.IssuedAt = now.Add(time.Minute)
	affected, err := repo.Reissue(record)
	if err != nil || affected != 1 {
		t.Fatalf("reissue failed: %v affected=%d", err, affected)
	}
	reissued, _ := repo.GetByID(record.ID)
	if reissued.LockoutUntil != nil || reissued.QRToken != "token-c" {
		t.Fatalf("reissue should clear lockout and replace token: %+v", reissued)
	}

	staffID := uint(9)
	affected, err = repo.MarkRedeemed(record.ID, locked.Version, &staffID, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("stale redeem failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("redeem against a version read before reissue must not apply")
	}
	affected, err = repo.MarkRedeemed(record.ID, reissued.Version, &staffID, now.Add(2*time.Minute))
	if err != nil || affected != 1 {
		t.Fatalf("redeem failed: %v affected=%d", err, affected)
	}
	affected, err = repo.MarkRedeemed(record.ID, reissued.Version+1, &staffID, now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("second redeem failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("redeemed record must not transition twice")
	}
	affected, _ = repo.Reissue(record)
	if affected != 0 {
		t.Fatalf("redeemed record must not be reissued")
	}
	redeemed, err := repo.FindRedeemed(2, RedemptionColumnQRToken, "token-c")
	if err != nil || redeemed == nil {
		t.Fatalf("find redeemed failed: %v", err)
	}
}
