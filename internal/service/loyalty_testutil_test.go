package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stampcard-next/internal/clock"
	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/metrics"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var loyaltyTestStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // 周一

type loyaltyTestEnv struct {
	db          *gorm.DB
	clock       *clock.ManualClock
	random      *scriptedSource
	metrics     *metrics.LoyaltyMetrics
	scheduler   *recordingScheduler
	stamps      *StampService
	redemptions *RedemptionService
}

type recordingScheduler struct {
	mu     sync.Mutex
	txnIDs []uint
	delays []time.Duration
}

func (r *recordingScheduler) EnqueueStampPendingExpire(txnID uint, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txnIDs = append(r.txnIDs, txnID)
	r.delays = append(r.delays, delay)
	return nil
}

// scriptedSource 可预置 PIN 的随机源，未预置时按计数生成
type scriptedSource struct {
	mu      sync.Mutex
	pins    []string
	counter int
}

func (s *scriptedSource) Token(n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return fmt.Sprintf("qr-token-%d", s.counter), nil
}

func (s *scriptedSource) Digits(n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == constants.PINCodeLength && len(s.pins) > 0 {
		pin := s.pins[0]
		s.pins = s.pins[1:]
		return pin, nil
	}
	s.counter++
	return fmt.Sprintf("%0*d", n, (s.counter*7919)%pow10(n)), nil
}

func (s *scriptedSource) queuePINs(pins ...string) {
	s.mu.Lock()
	s.pins = append(s.pins, pins...)
	s.mu.Unlock()
}

func pow10(n int) int {
	result := 1
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

func setupLoyaltyServiceTest(t *testing.T) *loyaltyTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:loyalty_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Business{},
		&models.BusinessHours{},
		&models.LoyaltyProgram{},
		&models.StampCard{},
		&models.StampTransaction{},
		&models.RedemptionRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	env := &loyaltyTestEnv{
		db:        db,
		clock:     clock.NewManualClock(loyaltyTestStart),
		random:    &scriptedSource{},
		metrics:   metrics.New(),
		scheduler: &recordingScheduler{},
	}
	businessRepo := repository.NewBusinessRepository(db)
	programRepo := repository.NewLoyaltyProgramRepository(db)
	cardRepo := repository.NewStampCardRepository(db)
	txnRepo := repository.NewStampTransactionRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	configSvc := NewLoyaltyConfigService(businessRepo, programRepo, 0)

	env.stamps = NewStampService(configSvc, cardRepo, txnRepo, redemptionRepo, programRepo, env.scheduler, env.metrics, env.clock, StampOptions{
		MaxCommitRetries: 3,
		PendingExpire:    time.Hour,
	})
	env.redemptions = NewRedemptionService(configSvc, cardRepo, redemptionRepo, programRepo, repository.NewUserRepository(db), env.random, env.metrics, env.clock, RedemptionOptions{
		PINMaxRedraws:     5,
		PenalizeUnmatched: true,
	})
	return env
}

func seedLoyaltyBusiness(t *testing.T, db *gorm.DB, timezone string) *models.Business {
	t.Helper()
	business := &models.Business{Name: "Corner Cafe", Timezone: timezone, IsActive: true}
	if err := db.Create(business).Error; err != nil {
		t.Fatalf("create business failed: %v", err)
	}
	return business
}

func seedLoyaltyProgram(t *testing.T, db *gorm.DB, businessID uint, mutate func(*models.LoyaltyProgram)) *models.LoyaltyProgram {
	t.Helper()
	program := &models.LoyaltyProgram{
		BusinessID:             businessID,
		Name:                   "Coffee Club",
		RewardDescription:      "Free coffee",
		RewardValue:            models.NewMoneyFromDecimal(decimal.NewFromFloat(4.5)),
		Currency:               constants.CurrencyDefault,
		StampsRequired:         5,
		MinScanIntervalMinutes: 0,
		MaxScansPerDay:         0,
		AutoVerify:             true,
		RedemptionMode:         constants.RedemptionModeBoth,
		QRExpirySeconds:        300,
		PINExpirySeconds:       300,
		MaxFailedAttempts:      5,
		LockoutDurationMinutes: 15,
		IsActive:               true,
	}
	if mutate != nil {
		mutate(program)
	}
	if err := db.Create(program).Error; err != nil {
		t.Fatalf("create program failed: %v", err)
	}
	return program
}

func seedLoyaltyCustomer(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, DisplayName: "Alice", Status: constants.UserStatusActive}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

// seedCompletedCard 直接写入一张已集满的卡
func seedCompletedCard(t *testing.T, db *gorm.DB, customerID uint, program *models.LoyaltyProgram) *models.StampCard {
	t.Helper()
	completedAt := loyaltyTestStart
	card := &models.StampCard{
		CustomerID:      customerID,
		BusinessID:      program.BusinessID,
		ProgramID:       program.ID,
		Cycle:           1,
		StampsCollected: program.StampsRequired,
		IsCompleted:     true,
		CompletedAt:     &completedAt,
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	return card
}
