package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/models"
)

func TestAwardStampScanIntervalScenario(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.MinScanIntervalMinutes = 30
	})
	ctx := context.Background()

	first, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart})
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	if !first.Success || first.StampsCollected != 1 || first.Status != constants.StampTxnStatusVerified {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(10 * time.Minute)})
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if second.Success || second.Error != constants.StampErrTooSoon || second.WaitMinutes != 20 {
		t.Fatalf("want TOO_SOON wait 20, got %+v", second)
	}

	third, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(31 * time.Minute)})
	if err != nil {
		t.Fatalf("third scan failed: %v", err)
	}
	if !third.Success || third.StampsCollected != 2 {
		t.Fatalf("want success with 2 stamps, got %+v", third)
	}

	var txnCount int64
	env.db.Model(&models.StampTransaction{}).Count(&txnCount)
	if txnCount != 2 {
		t.Fatalf("rejected scans must not write transactions, got %d", txnCount)
	}
}

func TestAwardStampCompletesExactlyOnce(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.StampsRequired = 5
	})
	ctx := context.Background()

	var result *AwardResult
	var err error
	for i := 0; i < 5; i++ {
		result, err = env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("scan %d failed: %v", i+1, err)
		}
		if i < 4 && result.IsCompleted {
			t.Fatalf("card completed too early at scan %d", i+1)
		}
	}
	if !result.IsCompleted || result.StampsCollected != 5 || result.StampsRequired != 5 {
		t.Fatalf("fifth scan should complete the card: %+v", result)
	}
	var card models.StampCard
	if err := env.db.First(&card, result.CardID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	completedAt := *card.CompletedAt

	sixth, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(time.Hour)})
	if err != nil {
		t.Fatalf("sixth scan failed: %v", err)
	}
	if !sixth.Success || sixth.CardID != result.CardID || sixth.StampsCollected != 6 {
		t.Fatalf("completed unredeemed card should keep accepting stamps: %+v", sixth)
	}
	if err := env.db.First(&card, result.CardID).Error; err != nil {
		t.Fatalf("reload card failed: %v", err)
	}
	if !card.CompletedAt.Equal(completedAt) {
		t.Fatalf("completed_at must not change, want %v got %v", completedAt, card.CompletedAt)
	}
}

func TestAwardStampRejectsInvalidBusinessAndProgram(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	ctx := context.Background()

	missing, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: 999})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if missing.Error != constants.StampErrInvalidBusiness {
		t.Fatalf("missing business want INVALID_BUSINESS got %+v", missing)
	}

	inactive := seedLoyaltyBusiness(t, env.db, "UTC")
	if err := env.db.Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate business failed: %v", err)
	}
	seedLoyaltyProgram(t, env.db, inactive.ID, nil)
	result, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: inactive.ID})
	if result.Error != constants.StampErrInvalidBusiness {
		t.Fatalf("inactive business want INVALID_BUSINESS got %+v", result)
	}

	deleted := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, deleted.ID, nil)
	if err := env.db.Delete(deleted).Error; err != nil {
		t.Fatalf("soft delete business failed: %v", err)
	}
	result, _ = env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: deleted.ID})
	if result.Error != constants.StampErrInvalidBusiness {
		t.Fatalf("deleted business want INVALID_BUSINESS got %+v", result)
	}

	noProgram := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, noProgram.ID, func(p *models.LoyaltyProgram) {
		p.IsActive = false
	})
	result, _ = env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: noProgram.ID})
	if result.Error != constants.StampErrNoActiveProgram {
		t.Fatalf("inactive program want NO_ACTIVE_PROGRAM got %+v", result)
	}
}

func TestAwardStampOpenHours(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "Asia/Shanghai")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.RequireOpenHours = true
	})
	// 仅周一 09:00-17:00（上海时间）营业
	hours := []models.BusinessHours{{BusinessID: business.ID, Weekday: int(time.Monday), OpenMinute: 9 * 60, CloseMinute: 17 * 60}}
	if err := env.db.Create(&hours).Error; err != nil {
		t.Fatalf("create hours failed: %v", err)
	}
	ctx := context.Background()

	// 2026-03-02 10:00 UTC = 周一 18:00 上海
	late, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if late.Error != constants.StampErrOutsideHours {
		t.Fatalf("want OUTSIDE_HOURS got %+v", late)
	}

	// 2026-03-02 02:00 UTC = 周一 10:00 上海
	open, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(-8 * time.Hour)})
	if !open.Success {
		t.Fatalf("want success during local opening hours, got %+v", open)
	}

	// 周二全天未配置
	closed, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(24 * time.Hour)})
	if closed.Error != constants.StampErrShopClosed {
		t.Fatalf("want SHOP_CLOSED got %+v", closed)
	}
}

func TestAwardStampDailyLimitResetsAtLocalMidnight(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.MaxScansPerDay = 2
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(time.Duration(i) * time.Minute)})
		if err != nil || !result.Success {
			t.Fatalf("scan %d should pass: %v %+v", i+1, err, result)
		}
	}
	limited, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(time.Hour)})
	if limited.Error != constants.StampErrDailyLimit {
		t.Fatalf("want DAILY_LIMIT got %+v", limited)
	}
	other, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 2, BusinessID: business.ID, Now: loyaltyTestStart.Add(time.Hour)})
	if !other.Success {
		t.Fatalf("limit is per customer, got %+v", other)
	}
	nextDay, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(14 * time.Hour)})
	if !nextDay.Success || nextDay.StampsCollected != 3 {
		t.Fatalf("limit should reset after local midnight, got %+v", nextDay)
	}
}

func TestAwardStampConcurrentSamePair(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.StampsRequired = 50
		p.MaxScansPerDay = 3
	})
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart})
			if err != nil {
				t.Errorf("concurrent scan failed: %v", err)
				return
			}
			if result.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 3 {
		t.Fatalf("daily limit 3 should allow exactly 3 scans, got %d", successes)
	}
	var cards []models.StampCard
	if err := env.db.Where("customer_id = ? AND business_id = ?", 1, business.ID).Find(&cards).Error; err != nil {
		t.Fatalf("load cards failed: %v", err)
	}
	if len(cards) != 1 || cards[0].StampsCollected != 3 {
		t.Fatalf("want one card with 3 stamps, got %+v", cards)
	}
}

func TestAwardStampPendingApproval(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.AutoVerify = false
		p.StampsRequired = 1
	})
	ctx := context.Background()

	pending, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !pending.Success || pending.Status != constants.StampTxnStatusPending || pending.StampsCollected != 0 {
		t.Fatalf("manual approval should record pending without increment: %+v", pending)
	}
	if len(env.scheduler.txnIDs) != 1 || env.scheduler.txnIDs[0] != pending.TransactionID || env.scheduler.delays[0] != time.Hour {
		t.Fatalf("pending expiry should be scheduled: %+v", env.scheduler)
	}

	staffID := uint(7)
	approved, err := env.stamps.ApprovePending(ctx, ReviewStampInput{TransactionID: pending.TransactionID, BusinessID: business.ID, StaffID: &staffID})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if !approved.Success || approved.StampsCollected != 1 || !approved.IsCompleted || approved.Status != constants.StampTxnStatusVerified {
		t.Fatalf("approval should run the increment path: %+v", approved)
	}

	_, err = env.stamps.ApprovePending(ctx, ReviewStampInput{TransactionID: pending.TransactionID, BusinessID: business.ID, StaffID: &staffID})
	if !errors.Is(err, ErrStampTxnNotPending) {
		t.Fatalf("second approval want ErrStampTxnNotPending got %v", err)
	}
	err = env.stamps.RejectPending(ctx, ReviewStampInput{TransactionID: pending.TransactionID, BusinessID: business.ID})
	if !errors.Is(err, ErrStampTxnNotPending) {
		t.Fatalf("reject after approval want ErrStampTxnNotPending got %v", err)
	}
	err = env.stamps.RejectPending(ctx, ReviewStampInput{TransactionID: pending.TransactionID, BusinessID: business.ID + 1})
	if !errors.Is(err, ErrStampTxnNotFound) {
		t.Fatalf("other business want ErrStampTxnNotFound got %v", err)
	}
}

func TestRejectPendingFreesDailyQuota(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.AutoVerify = false
		p.MaxScansPerDay = 1
	})
	ctx := context.Background()

	pending, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart})
	blocked, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(time.Minute)})
	if blocked.Error != constants.StampErrDailyLimit {
		t.Fatalf("pending scan should count toward the limit, got %+v", blocked)
	}
	if err := env.stamps.RejectPending(ctx, ReviewStampInput{TransactionID: pending.TransactionID}); err != nil {
		t.Fatalf("auto reject failed: %v", err)
	}
	retry, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart.Add(2 * time.Minute)})
	if !retry.Success {
		t.Fatalf("rejected scan should free the quota, got %+v", retry)
	}
}

func TestAwardStampRollsOverAfterRedemption(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	customer := seedLoyaltyCustomer(t, env.db, "rollover@example.com")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.StampsRequired = 2
	})
	ctx := context.Background()

	var last *AwardResult
	for i := 0; i < 2; i++ {
		last, _ = env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: customer.ID, BusinessID: business.ID, Now: loyaltyTestStart.Add(time.Duration(i) * time.Minute)})
	}
	if !last.IsCompleted {
		t.Fatalf("card should be complete: %+v", last)
	}
	issued, err := env.redemptions.IssueCredential(ctx, IssueCredentialInput{CustomerID: customer.ID, CardID: last.CardID, BusinessID: business.ID, Now: loyaltyTestStart.Add(2 * time.Minute)})
	if err != nil || !issued.Success {
		t.Fatalf("issue failed: %v %+v", err, issued)
	}
	verified, err := env.redemptions.Verify(ctx, VerifyInput{BusinessID: business.ID, StaffID: 3, VerificationType: "qr", Code: issued.Credential.QRToken, Now: loyaltyTestStart.Add(3 * time.Minute)})
	if err != nil || !verified.Success {
		t.Fatalf("verify failed: %v %+v", err, verified)
	}

	next, err := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: customer.ID, BusinessID: business.ID, Now: loyaltyTestStart.Add(4 * time.Minute)})
	if err != nil {
		t.Fatalf("scan after redemption failed: %v", err)
	}
	if !next.Success || next.CardID == last.CardID || next.StampsCollected != 1 {
		t.Fatalf("scan after redemption should open a new card: %+v", next)
	}

	views, total, err := env.stamps.ListCards(customer.ID, 1, 10)
	if err != nil {
		t.Fatalf("list cards failed: %v", err)
	}
	if total != 2 || len(views) != 2 {
		t.Fatalf("want 2 cards got %d", total)
	}
	redeemed := 0
	for _, view := range views {
		if view.IsRedeemed {
			redeemed++
		}
		if view.ProgramName != "Coffee Club" || view.StampsRequired != 2 {
			t.Fatalf("unexpected card view: %+v", view)
		}
	}
	if redeemed != 1 {
		t.Fatalf("exactly one card should be redeemed, got %d", redeemed)
	}
}

func TestExpireStalePendingRejectsOldScans(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.AutoVerify = false
	})
	ctx := context.Background()

	old, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 1, BusinessID: business.ID, Now: loyaltyTestStart})
	fresh, _ := env.stamps.AwardStamp(ctx, AwardStampInput{CustomerID: 2, BusinessID: business.ID, Now: loyaltyTestStart.Add(50 * time.Minute)})

	expired, err := env.stamps.ExpireStalePending(ctx, loyaltyTestStart.Add(61*time.Minute))
	if err != nil {
		t.Fatalf("expire stale pending failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("want 1 expired, got %d", expired)
	}
	var rows []models.StampTransaction
	env.db.Order("id ASC").Find(&rows)
	status := map[uint]string{}
	for _, row := range rows {
		status[row.ID] = row.Status
	}
	if status[old.TransactionID] != constants.StampTxnStatusRejected || status[fresh.TransactionID] != constants.StampTxnStatusPending {
		t.Fatalf("unexpected statuses: %v", status)
	}
}
