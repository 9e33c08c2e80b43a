package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"
)

func issueForTest(t *testing.T, env *loyaltyTestEnv, card *models.StampCard, now time.Time) *Credential {
	t.Helper()
	result, err := env.redemptions.IssueCredential(context.Background(), IssueCredentialInput{
		CustomerID: card.CustomerID,
		CardID:     card.ID,
		BusinessID: card.BusinessID,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("issue credential failed: %v", err)
	}
	if !result.Success || result.Credential == nil {
		t.Fatalf("issue credential rejected: %+v", result)
	}
	return result.Credential
}

func verifyForTest(t *testing.T, env *loyaltyTestEnv, businessID uint, channel, code string, now time.Time) *VerifyResult {
	t.Helper()
	result, err := env.redemptions.Verify(context.Background(), VerifyInput{
		BusinessID:       businessID,
		StaffID:          9,
		VerificationType: channel,
		Code:             code,
		Now:              now,
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	return result
}

func loadRedemptionRecord(t *testing.T, env *loyaltyTestEnv, id uint) *models.RedemptionRecord {
	t.Helper()
	var record models.RedemptionRecord
	if err := env.db.First(&record, id).Error; err != nil {
		t.Fatalf("load redemption record failed: %v", err)
	}
	return &record
}

func TestIssueCredentialRequiresCompletedOwnCard(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, nil)
	ctx := context.Background()

	partial := &models.StampCard{CustomerID: 1, BusinessID: business.ID, ProgramID: program.ID, Cycle: 1, StampsCollected: 4}
	if err := env.db.Create(partial).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	result, err := env.redemptions.IssueCredential(ctx, IssueCredentialInput{CustomerID: 1, CardID: partial.ID, BusinessID: business.ID})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if result.Error != constants.RedemptionErrCardNotComplete {
		t.Fatalf("incomplete card want CARD_NOT_COMPLETE got %+v", result)
	}

	completed := seedCompletedCard(t, env.db, 2, program)
	result, _ = env.redemptions.IssueCredential(ctx, IssueCredentialInput{CustomerID: 3, CardID: completed.ID, BusinessID: business.ID})
	if result.Error != constants.RedemptionErrCardNotComplete {
		t.Fatalf("foreign card want CARD_NOT_COMPLETE got %+v", result)
	}
	result, _ = env.redemptions.IssueCredential(ctx, IssueCredentialInput{CustomerID: 2, CardID: completed.ID, BusinessID: business.ID + 1})
	if result.Error != constants.RedemptionErrCardNotComplete {
		t.Fatalf("wrong business want CARD_NOT_COMPLETE got %+v", result)
	}
	result, _ = env.redemptions.IssueCredential(ctx, IssueCredentialInput{CustomerID: 2, CardID: 404, BusinessID: business.ID})
	if result.Error != constants.RedemptionErrCardNotComplete {
		t.Fatalf("missing card want CARD_NOT_COMPLETE got %+v", result)
	}

	var count int64
	env.db.Model(&models.RedemptionRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected issuance must not write records, got %d", count)
	}
}

func TestIssueCredentialShape(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.QRExpirySeconds = 30
		p.PINExpirySeconds = 120
	})
	card := seedCompletedCard(t, env.db, 1, program)

	credential := issueForTest(t, env, card, loyaltyTestStart)
	if credential.QRToken == "" || len(credential.PIN) != constants.PINCodeLength || len(credential.LegacyCode) != constants.LegacyCodeLength {
		t.Fatalf("unexpected credential codes: %+v", credential)
	}
	if !credential.QRExpiresAt.Equal(loyaltyTestStart.Add(30*time.Second)) ||
		!credential.PINExpiresAt.Equal(loyaltyTestStart.Add(120*time.Second)) ||
		!credential.CodeExpiresAt.Equal(loyaltyTestStart.Add(120*time.Second)) {
		t.Fatalf("unexpected expiries: %+v", credential)
	}
	if credential.RedemptionMode != constants.RedemptionModeBoth {
		t.Fatalf("unexpected mode: %s", credential.RedemptionMode)
	}
}

func TestIssueCredentialReissueResetsRecord(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.MaxFailedAttempts = 2
	})
	card := seedCompletedCard(t, env.db, 1, program)

	first := issueForTest(t, env, card, loyaltyTestStart)
	for i := 0; i < 3; i++ {
		verifyForTest(t, env, business.ID, constants.VerificationTypeQR, "no-such-token", loyaltyTestStart.Add(time.Second))
	}
	locked := loadRedemptionRecord(t, env, first.RecordID)
	if locked.LockoutUntil == nil {
		t.Fatalf("record should be locked after repeated misses: %+v", locked)
	}

	second := issueForTest(t, env, card, loyaltyTestStart.Add(time.Minute))
	if second.RecordID != first.RecordID {
		t.Fatalf("reissue should reuse record %d, got %d", first.RecordID, second.RecordID)
	}
	if second.QRToken == first.QRToken {
		t.Fatalf("reissue should rotate the qr token")
	}
	reissued := loadRedemptionRecord(t, env, second.RecordID)
	if reissued.FailedAttempts != 0 || reissued.LockoutUntil != nil || reissued.IsRedeemed {
		t.Fatalf("reissue should reset attempts and lockout: %+v", reissued)
	}
	if !reissued.IssuedAt.Equal(loyaltyTestStart.Add(time.Minute)) {
		t.Fatalf("issued_at should move to the reissue time, got %v", reissued.IssuedAt)
	}
	var count int64
	env.db.Model(&models.RedemptionRecord{}).Where("stamp_card_id = ?", card.ID).Count(&count)
	if count != 1 {
		t.Fatalf("want one record per card, got %d", count)
	}

	old := verifyForTest(t, env, business.ID, constants.VerificationTypeQR, first.QRToken, loyaltyTestStart.Add(2*time.Minute))
	if old.Success {
		t.Fatalf("superseded token must not verify: %+v", old)
	}
}

func TestVerifyChannelExpiry(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.QRExpirySeconds = 30
		p.PINExpirySeconds = 120
	})
	card := seedCompletedCard(t, env.db, 1, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	qr := verifyForTest(t, env, business.ID, constants.VerificationTypeQR, credential.QRToken, loyaltyTestStart.Add(45*time.Second))
	if qr.Error != constants.RedemptionErrCodeExpired {
		t.Fatalf("qr at +45s want CODE_EXPIRED got %+v", qr)
	}
	record := loadRedemptionRecord(t, env, credential.RecordID)
	if record.FailedAttempts != 0 {
		t.Fatalf("expired code must not consume an attempt, got %d", record.FailedAttempts)
	}

	pin := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, credential.PIN, loyaltyTestStart.Add(45*time.Second))
	if !pin.Success {
		t.Fatalf("pin at +45s should succeed: %+v", pin)
	}
}

func TestVerifyLegacyCodeExpiry(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.QRExpirySeconds = 30
		p.PINExpirySeconds = 120
	})
	card := seedCompletedCard(t, env.db, 1, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	expired := verifyForTest(t, env, business.ID, constants.VerificationTypeLegacy, credential.LegacyCode, loyaltyTestStart.Add(121*time.Second))
	if expired.Error != constants.RedemptionErrCodeExpired {
		t.Fatalf("legacy at +121s want CODE_EXPIRED got %+v", expired)
	}

	reissued := issueForTest(t, env, card, loyaltyTestStart.Add(3*time.Minute))
	ok := verifyForTest(t, env, business.ID, constants.VerificationTypeLegacy, reissued.LegacyCode, loyaltyTestStart.Add(4*time.Minute))
	if !ok.Success || ok.VerificationType != constants.VerificationTypeLegacy {
		t.Fatalf("legacy within window should succeed: %+v", ok)
	}
}

func TestVerifyModeNotEnabled(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.RedemptionMode = constants.RedemptionModeQROnly
	})
	card := seedCompletedCard(t, env.db, 1, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	pin := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, credential.PIN, loyaltyTestStart)
	if pin.Error != constants.RedemptionErrModeNotEnabled {
		t.Fatalf("pin on qr_only want MODE_NOT_ENABLED got %+v", pin)
	}
	record := loadRedemptionRecord(t, env, credential.RecordID)
	if record.FailedAttempts != 0 || record.IsRedeemed {
		t.Fatalf("disabled channel must not touch the record: %+v", record)
	}

	legacy := verifyForTest(t, env, business.ID, constants.VerificationTypeLegacy, credential.LegacyCode, loyaltyTestStart)
	if !legacy.Success {
		t.Fatalf("legacy is always allowed: %+v", legacy)
	}
}

func TestVerifyPINOnlyRejectsQR(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.RedemptionMode = constants.RedemptionModePINOnly
	})
	card := seedCompletedCard(t, env.db, 1, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	qr := verifyForTest(t, env, business.ID, constants.VerificationTypeQR, credential.QRToken, loyaltyTestStart)
	if qr.Error != constants.RedemptionErrModeNotEnabled {
		t.Fatalf("qr on pin_only want MODE_NOT_ENABLED got %+v", qr)
	}
}

func TestVerifyLockoutScenario(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.MaxFailedAttempts = 3
		p.LockoutDurationMinutes = 15
		p.PINExpirySeconds = 3600
	})
	card := seedCompletedCard(t, env.db, 1, program)
	env.random.queuePINs("4321")
	credential := issueForTest(t, env, card, loyaltyTestStart)
	if credential.PIN != "4321" {
		t.Fatalf("unexpected pin %s", credential.PIN)
	}

	for i := 0; i < 3; i++ {
		miss := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, "9999", loyaltyTestStart.Add(time.Duration(i)*time.Second))
		if miss.Error != constants.RedemptionErrInvalidCode {
			t.Fatalf("miss %d want INVALID_CODE got %+v", i+1, miss)
		}
	}
	trip := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, "9999", loyaltyTestStart.Add(time.Minute))
	if trip.Error != constants.RedemptionErrLockedOut || trip.RemainingMinutes != 15 {
		t.Fatalf("fourth miss want LOCKED_OUT 15 got %+v", trip)
	}

	blocked := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, credential.PIN, loyaltyTestStart.Add(2*time.Minute))
	if blocked.Error != constants.RedemptionErrLockedOut || blocked.RemainingMinutes != 14 {
		t.Fatalf("correct pin while locked want LOCKED_OUT 14 got %+v", blocked)
	}
	record := loadRedemptionRecord(t, env, credential.RecordID)
	if record.IsRedeemed || record.FailedAttempts != 0 {
		t.Fatalf("lock should reset attempts and keep record outstanding: %+v", record)
	}

	after := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, credential.PIN, loyaltyTestStart.Add(17*time.Minute))
	if !after.Success {
		t.Fatalf("correct pin after lockout should succeed: %+v", after)
	}
}

func TestVerifyMatchedCodeTripsAtLimit(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.MaxFailedAttempts = 2
	})
	card := seedCompletedCard(t, env.db, 1, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	for i := 0; i < 2; i++ {
		verifyForTest(t, env, business.ID, constants.VerificationTypePIN, "12a4", loyaltyTestStart)
	}
	record := loadRedemptionRecord(t, env, credential.RecordID)
	if record.FailedAttempts != 2 {
		t.Fatalf("malformed codes should consume attempts, got %d", record.FailedAttempts)
	}

	result := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, credential.PIN, loyaltyTestStart)
	if result.Error != constants.RedemptionErrLockedOut {
		t.Fatalf("exhausted attempts want LOCKED_OUT got %+v", result)
	}
	record = loadRedemptionRecord(t, env, credential.RecordID)
	if record.IsRedeemed || record.LockoutUntil == nil {
		t.Fatalf("record should be locked, not redeemed: %+v", record)
	}
}

func TestVerifySuccessPayloadAndReplay(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	customer := seedLoyaltyCustomer(t, env.db, "alice@example.com")
	program := seedLoyaltyProgram(t, env.db, business.ID, nil)
	card := seedCompletedCard(t, env.db, customer.ID, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	result := verifyForTest(t, env, business.ID, constants.VerificationTypeQR, credential.QRToken, loyaltyTestStart.Add(time.Minute))
	if !result.Success {
		t.Fatalf("verify should succeed: %+v", result)
	}
	if result.CustomerName != "Alice" || result.CustomerEmail != "alice@example.com" {
		t.Fatalf("unexpected customer payload: %+v", result)
	}
	if result.ProgramName != "Coffee Club" || result.RewardDescription != "Free coffee" || result.RewardValue == nil || result.RewardValue.String() != "4.50" {
		t.Fatalf("unexpected reward payload: %+v", result)
	}
	if result.StampsCollected != 5 || result.StampsRequired != 5 || result.RedeemedAt == nil || !result.RedeemedAt.Equal(loyaltyTestStart.Add(time.Minute)) {
		t.Fatalf("unexpected card payload: %+v", result)
	}
	record := loadRedemptionRecord(t, env, credential.RecordID)
	if !record.IsRedeemed || record.VerifiedBy == nil || *record.VerifiedBy != 9 {
		t.Fatalf("record should be redeemed by staff 9: %+v", record)
	}

	replay := verifyForTest(t, env, business.ID, constants.VerificationTypePIN, credential.PIN, loyaltyTestStart.Add(2*time.Minute))
	if replay.Error != constants.RedemptionErrAlreadyRedeemed {
		t.Fatalf("replay want ALREADY_REDEEMED got %+v", replay)
	}

	reissue, err := env.redemptions.IssueCredential(context.Background(), IssueCredentialInput{CustomerID: customer.ID, CardID: card.ID, BusinessID: business.ID})
	if err != nil {
		t.Fatalf("issue after redemption failed: %v", err)
	}
	if reissue.Error != constants.RedemptionErrAlreadyRedeemed {
		t.Fatalf("issue after redemption want ALREADY_REDEEMED got %+v", reissue)
	}
}

func TestVerifyConcurrentSingleSuccess(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, nil)
	card := seedCompletedCard(t, env.db, 1, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	const workers = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := map[string]int{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			channel, code := constants.VerificationTypePIN, credential.PIN
			if i%2 == 0 {
				channel, code = constants.VerificationTypeQR, credential.QRToken
			}
			result, err := env.redemptions.Verify(context.Background(), VerifyInput{
				BusinessID:       business.ID,
				StaffID:          uint(i + 1),
				VerificationType: channel,
				Code:             code,
				Now:              loyaltyTestStart.Add(time.Second),
			})
			if err != nil {
				t.Errorf("concurrent verify failed: %v", err)
				return
			}
			key := result.Error
			if result.Success {
				key = "success"
			}
			mu.Lock()
			outcomes[key]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if outcomes["success"] != 1 || outcomes[constants.RedemptionErrAlreadyRedeemed] != workers-1 {
		t.Fatalf("want exactly one success, got %v", outcomes)
	}
}

func TestVerifyAlreadyRedeemedDoesNotPenalizeOthers(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, nil)
	first := issueForTest(t, env, seedCompletedCard(t, env.db, 1, program), loyaltyTestStart)
	second := issueForTest(t, env, seedCompletedCard(t, env.db, 2, program), loyaltyTestStart.Add(time.Second))

	if ok := verifyForTest(t, env, business.ID, constants.VerificationTypeQR, first.QRToken, loyaltyTestStart.Add(time.Minute)); !ok.Success {
		t.Fatalf("verify should succeed: %+v", ok)
	}
	replay := verifyForTest(t, env, business.ID, constants.VerificationTypeQR, first.QRToken, loyaltyTestStart.Add(time.Minute))
	if replay.Error != constants.RedemptionErrAlreadyRedeemed {
		t.Fatalf("want ALREADY_REDEEMED got %+v", replay)
	}
	if record := loadRedemptionRecord(t, env, second.RecordID); record.FailedAttempts != 0 {
		t.Fatalf("replay must not penalize other records, got %d", record.FailedAttempts)
	}

	miss := verifyForTest(t, env, business.ID, constants.VerificationTypeQR, "unknown-token", loyaltyTestStart.Add(time.Minute))
	if miss.Error != constants.RedemptionErrInvalidCode {
		t.Fatalf("want INVALID_CODE got %+v", miss)
	}
	if record := loadRedemptionRecord(t, env, second.RecordID); record.FailedAttempts != 1 {
		t.Fatalf("miss should penalize the latest outstanding record, got %d", record.FailedAttempts)
	}
	if record := loadRedemptionRecord(t, env, first.RecordID); record.FailedAttempts != 0 {
		t.Fatalf("redeemed record must stay untouched, got %d", record.FailedAttempts)
	}
}

func TestVerifyWithoutUnmatchedPenalty(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, func(p *models.LoyaltyProgram) {
		p.MaxFailedAttempts = 1
	})
	card := seedCompletedCard(t, env.db, 1, program)
	credential := issueForTest(t, env, card, loyaltyTestStart)

	lenient := NewRedemptionService(
		NewLoyaltyConfigService(repository.NewBusinessRepository(env.db), repository.NewLoyaltyProgramRepository(env.db), 0),
		repository.NewStampCardRepository(env.db),
		repository.NewRedemptionRepository(env.db),
		repository.NewLoyaltyProgramRepository(env.db),
		repository.NewUserRepository(env.db),
		env.random,
		env.metrics,
		env.clock,
		RedemptionOptions{PenalizeUnmatched: false},
	)
	for i := 0; i < 3; i++ {
		result, err := lenient.Verify(context.Background(), VerifyInput{BusinessID: business.ID, VerificationType: constants.VerificationTypePIN, Code: "0000"})
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if result.Error != constants.RedemptionErrInvalidCode {
			t.Fatalf("want INVALID_CODE got %+v", result)
		}
	}
	if record := loadRedemptionRecord(t, env, credential.RecordID); record.FailedAttempts != 0 || record.LockoutUntil != nil {
		t.Fatalf("penalty disabled should leave the record untouched: %+v", record)
	}
}

func TestIssueCredentialRedrawsCollidingPIN(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, nil)
	env.random.queuePINs("1111", "1111", "2222")

	first := issueForTest(t, env, seedCompletedCard(t, env.db, 1, program), loyaltyTestStart)
	second := issueForTest(t, env, seedCompletedCard(t, env.db, 2, program), loyaltyTestStart)
	if first.PIN != "1111" || second.PIN != "2222" {
		t.Fatalf("second pin should be redrawn, got %s and %s", first.PIN, second.PIN)
	}

	other := seedLoyaltyBusiness(t, env.db, "UTC")
	otherProgram := seedLoyaltyProgram(t, env.db, other.ID, nil)
	env.random.queuePINs("1111")
	third := issueForTest(t, env, seedCompletedCard(t, env.db, 3, otherProgram), loyaltyTestStart)
	if third.PIN != "1111" {
		t.Fatalf("pins are scoped per business, got %s", third.PIN)
	}
}

func TestVerifyRejectsUnknownChannel(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	_, err := env.redemptions.Verify(context.Background(), VerifyInput{BusinessID: 1, VerificationType: "nfc", Code: "1234"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput got %v", err)
	}
}

func TestVerifyRecordsMetrics(t *testing.T) {
	env := setupLoyaltyServiceTest(t)
	business := seedLoyaltyBusiness(t, env.db, "UTC")
	program := seedLoyaltyProgram(t, env.db, business.ID, nil)
	credential := issueForTest(t, env, seedCompletedCard(t, env.db, 1, program), loyaltyTestStart)

	verifyForTest(t, env, business.ID, constants.VerificationTypePIN, "0000", loyaltyTestStart)
	verifyForTest(t, env, business.ID, constants.VerificationTypePIN, credential.PIN, loyaltyTestStart)

	families, err := env.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				found[family.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	if found["stampcard_redemptions_total"] != 1 {
		t.Fatalf("want 1 redemption, got %v", found["stampcard_redemptions_total"])
	}
	if found["stampcard_redemption_rejections_total"] != 1 {
		t.Fatalf("want 1 rejection, got %v", found["stampcard_redemption_rejections_total"])
	}
	if found["stampcard_redemption_credentials_issued_total"] != 1 {
		t.Fatalf("want 1 issued credential, got %v", found["stampcard_redemption_credentials_issued_total"])
	}
}
