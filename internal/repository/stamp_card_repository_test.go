package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupStampRepositoryTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:stamp_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.StampCard{},
		&models.StampTransaction{},
		&models.RedemptionRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func TestStampCardRepositoryCompareAndSwap(t *testing.T) {
	db := setupStampRepositoryTest(t)
	repo := NewStampCardRepository(db)

	card := &models.StampCard{CustomerID: 1, BusinessID: 2, Cycle: 1, ProgramID: 3}
	if err := repo.Create(card); err != nil {
		t.Fatalf("create card failed: %v", err)
	}

	stale := *card
	card.StampsCollected = 1
	affected, err := repo.CompareAndSwap(card, 0)
	if err != nil {
		t.Fatalf("cas failed: %v", err)
	}
	if affected != 1 || card.Version != 1 {
		t.Fatalf("first cas want affected=1 version=1, got %d/%d", affected, card.Version)
	}

	stale.StampsCollected = 1
	affected, err = repo.CompareAndSwap(&stale, 0)
	if err != nil {
		t.Fatalf("stale cas failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("stale cas should not apply, affected=%d", affected)
	}

	got, err := repo.GetByID(card.ID)
	if err != nil || got == nil {
		t.Fatalf("get card failed: %v", err)
	}
	if got.StampsCollected != 1 || got.Version != 1 {
		t.Fatalf("unexpected card state: %+v", got)
	}
}

func TestStampCardRepositoryUniqueCycle(t *testing.T) {
	db := setupStampRepositoryTest(t)
	repo := NewStampCardRepository(db)

	if err := repo.Create(&models.StampCard{CustomerID: 1, BusinessID: 2, Cycle: 1, ProgramID: 3}); err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	err := repo.Create(&models.StampCard{CustomerID: 1, BusinessID: 2, Cycle: 1, ProgramID: 3})
	if err == nil {
		t.Fatalf("duplicate cycle should fail")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	if err := repo.Create(&models.StampCard{CustomerID: 1, BusinessID: 2, Cycle: 2, ProgramID: 3}); err != nil {
		t.Fatalf("create next cycle failed: %v", err)
	}
	current, err := repo.GetCurrent(1, 2)
	if err != nil || current == nil {
		t.Fatalf("get current failed: %v", err)
	}
	if current.Cycle != 2 {
		t.Fatalf("current cycle want 2 got %d", current.Cycle)
	}
}

func TestStampTransactionRepositoryLedger(t *testing.T) {
	db := setupStampRepositoryTest(t)
	repo := NewStampTransactionRepository(db)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := []models.StampTransaction{
		{StampCardID: 1, CustomerID: 1, BusinessID: 2, Status: constants.StampTxnStatusVerified, ScannedAt: base},
		{StampCardID: 1, CustomerID: 1, BusinessID: 2, Status: constants.StampTxnStatusRejected, ScannedAt: base.Add(time.Hour)},
		{StampCardID: 1, CustomerID: 1, BusinessID: 2, Status: constants.StampTxnStatusPending, ScannedAt: base.Add(2 * time.Hour)},
		{StampCardID: 9, CustomerID: 5, BusinessID: 2, Status: constants.StampTxnStatusVerified, ScannedAt: base.Add(3 * time.Hour)},
	}
	for i := range rows {
		if err := repo.Create(&rows[i]); err != nil {
			t.Fatalf("create txn failed: %v", err)
		}
	}

	last, err := repo.LastScanAt(1, 2)
	if err != nil || last == nil {
		t.Fatalf("last scan failed: %v", err)
	}
	if !last.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("last scan want %v got %v", base.Add(2*time.Hour), last)
	}

	count, err := repo.CountSince(1, 2, base)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("rejected scans should not count, want 2 got %d", count)
	}

	reviewer := uint(7)
	affected, err := repo.Review(rows[2].ID, StampTxnReview{Status: constants.StampTxnStatusVerified, ReviewedBy: &reviewer, ReviewedAt: base.Add(4 * time.Hour)})
	if err != nil || affected != 1 {
		t.Fatalf("review pending failed: %v affected=%d", err, affected)
	}
	affected, err = repo.Review(rows[2].ID, StampTxnReview{Status: constants.StampTxnStatusRejected, ReviewedBy: &reviewer, ReviewedAt: base.Add(5 * time.Hour)})
	if err != nil {
		t.Fatalf("second review failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("reviewed txn should not change again")
	}

	pending, total, err := repo.List(StampTransactionListFilter{BusinessID: 2, Status: constants.StampTxnStatusPending})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 0 || len(pending) != 0 {
		t.Fatalf("no pending txn expected, got %d", total)
	}
}
