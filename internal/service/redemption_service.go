package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stampcard-next/internal/clock"
	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/metrics"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"
	"github.com/stampcard-next/internal/secure"

	"gorm.io/gorm"
)

const (
	defaultPINMaxRedraws = 20
	defaultQRExpiry      = 5 * time.Minute
	defaultPINExpiry     = 5 * time.Minute
	maxIssueAttempts     = 2
	maxVerifyAttempts    = 3
)

// errRedemptionCreateRace 同一集点卡并发创建凭证，失败方重试并复用已有记录
var errRedemptionCreateRace = errors.New("redemption record created concurrently")

// errRedemptionRecordChanged 核销写入时版本已变化且记录仍未兑换（重新签发或失败计数变更）
var errRedemptionRecordChanged = errors.New("redemption record changed")

// RedemptionOptions 兑换服务参数
type RedemptionOptions struct {
	PINMaxRedraws     int
	PenalizeUnmatched bool
}

// RedemptionService 兑换凭证签发与核销
type RedemptionService struct {
	configSvc      *LoyaltyConfigService
	cardRepo       repository.StampCardRepository
	redemptionRepo repository.RedemptionRepository
	programRepo    repository.LoyaltyProgramRepository
	userRepo       repository.UserRepository
	random         secure.Source
	metrics        *metrics.LoyaltyMetrics
	clock          clock.Clock
	options        RedemptionOptions
}

// NewRedemptionService 创建兑换服务
func NewRedemptionService(
	configSvc *LoyaltyConfigService,
	cardRepo repository.StampCardRepository,
	redemptionRepo repository.RedemptionRepository,
	programRepo repository.LoyaltyProgramRepository,
	userRepo repository.UserRepository,
	random secure.Source,
	m *metrics.LoyaltyMetrics,
	c clock.Clock,
	options RedemptionOptions,
) *RedemptionService {
	if random == nil {
		random = secure.NewCryptoSource()
	}
	if c == nil {
		c = clock.SystemClock{}
	}
	if options.PINMaxRedraws <= 0 {
		options.PINMaxRedraws = defaultPINMaxRedraws
	}
	return &RedemptionService{
		configSvc:      configSvc,
		cardRepo:       cardRepo,
		redemptionRepo: redemptionRepo,
		programRepo:    programRepo,
		userRepo:       userRepo,
		random:         random,
		metrics:        m,
		clock:          c,
		options:        options,
	}
}

// IssueCredentialInput 签发凭证输入
type IssueCredentialInput struct {
	CustomerID uint
	CardID     uint
	BusinessID uint
	Now        time.Time
}

// Credential 兑换凭证（每个渠道附带各自的过期时间）
type Credential struct {
	RecordID       uint      `json:"record_id"`
	QRToken        string    `json:"qr_token"`
	QRExpiresAt    time.Time `json:"qr_expires_at"`
	PIN            string    `json:"pin"`
	PINExpiresAt   time.Time `json:"pin_expires_at"`
	LegacyCode     string    `json:"legacy_code"`
	CodeExpiresAt  time.Time `json:"code_expires_at"`
	RedemptionMode string    `json:"redemption_mode"`
}

// IssueResult 签发结果
type IssueResult struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	Credential *Credential `json:"credential,omitempty"`
}

func rejectIssue(code string) *IssueResult {
	return &IssueResult{Success: false, Error: code, Message: OutcomeMessage(code)}
}

// IssueCredential 为已集满的卡签发（或覆盖）兑换凭证
func (s *RedemptionService) IssueCredential(ctx context.Context, input IssueCredentialInput) (*IssueResult, error) {
	if input.CustomerID == 0 || input.CardID == 0 {
		return nil, ErrInvalidInput
	}
	now := clock.Or(s.clock, input.Now).UTC()

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		result, err := s.tryIssue(input, now)
		if errors.Is(err, errRedemptionCreateRace) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if result.Success {
			s.metrics.CredentialIssued()
			logger.Infow("redemption_credential_issued",
				"card_id", input.CardID,
				"customer_id", input.CustomerID,
				"record_id", result.Credential.RecordID,
			)
		} else {
			logger.Debugw("redemption_credential_rejected", "card_id", input.CardID, "code", result.Error)
		}
		return result, nil
	}
	return nil, ErrRedemptionUpdateFailed
}

func (s *RedemptionService) tryIssue(input IssueCredentialInput, now time.Time) (*IssueResult, error) {
	var result *IssueResult
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.redemptionRepo.WithTx(tx)
		card, err := s.cardRepo.WithTx(tx).GetByID(input.CardID)
		if err != nil {
			return ErrRedemptionFetchFailed
		}
		if card == nil || card.CustomerID != input.CustomerID || !card.IsCompleted ||
			(input.BusinessID != 0 && card.BusinessID != input.BusinessID) {
			result = rejectIssue(constants.RedemptionErrCardNotComplete)
			return nil
		}
		program, err := s.programRepo.WithTx(tx).GetByID(card.ProgramID)
		if err != nil {
			return ErrRedemptionFetchFailed
		}
		if program == nil {
			result = rejectIssue(constants.StampErrNoActiveProgram)
			return nil
		}
		existing, err := repo.GetByStampCardID(card.ID)
		if err != nil {
			return ErrRedemptionFetchFailed
		}
		if existing != nil && existing.IsRedeemed {
			result = rejectIssue(constants.RedemptionErrAlreadyRedeemed)
			return nil
		}

		record, err := s.buildRecord(repo, card, program, now)
		if err != nil {
			return err
		}
		if existing != nil {
			record.ID = existing.ID
			affected, err := repo.Reissue(record)
			if err != nil {
				return ErrRedemptionUpdateFailed
			}
			if affected == 0 {
				result = rejectIssue(constants.RedemptionErrAlreadyRedeemed)
				return nil
			}
		} else if err := repo.Create(record); err != nil {
			if repository.IsUniqueViolation(err) {
				return errRedemptionCreateRace
			}
			return ErrRedemptionUpdateFailed
		}

		result = &IssueResult{
			Success: true,
			Credential: &Credential{
				RecordID:       record.ID,
				QRToken:        record.QRToken,
				QRExpiresAt:    record.QRExpiresAt,
				PIN:            record.PINCode,
				PINExpiresAt:   record.PINExpiresAt,
				LegacyCode:     record.LegacyCode,
				CodeExpiresAt:  record.CodeExpiresAt,
				RedemptionMode: normalizeRedemptionMode(program.RedemptionMode),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildRecord 生成新的码与有效期
func (s *RedemptionService) buildRecord(repo repository.RedemptionRepository, card *models.StampCard, program *models.LoyaltyProgram, now time.Time) (*models.RedemptionRecord, error) {
	token, err := s.random.Token(constants.QRTokenBytes)
	if err != nil {
		logger.Errorw("redemption_token_generate_failed", "card_id", card.ID, "error", err)
		return nil, ErrRedemptionCodeFailed
	}
	pin, err := s.drawPIN(repo, card, now)
	if err != nil {
		return nil, err
	}
	legacy, err := s.random.Digits(constants.LegacyCodeLength)
	if err != nil {
		logger.Errorw("redemption_legacy_code_generate_failed", "card_id", card.ID, "error", err)
		return nil, ErrRedemptionCodeFailed
	}

	qrExpiresAt := now.Add(secondsOr(program.QRExpirySeconds, defaultQRExpiry))
	pinExpiresAt := now.Add(secondsOr(program.PINExpirySeconds, defaultPINExpiry))
	codeExpiresAt := qrExpiresAt
	if pinExpiresAt.After(codeExpiresAt) {
		codeExpiresAt = pinExpiresAt
	}
	return &models.RedemptionRecord{
		StampCardID:   card.ID,
		BusinessID:    card.BusinessID,
		CustomerID:    card.CustomerID,
		QRToken:       token,
		PINCode:       pin,
		LegacyCode:    legacy,
		QRExpiresAt:   qrExpiresAt,
		PINExpiresAt:  pinExpiresAt,
		CodeExpiresAt: codeExpiresAt,
		IssuedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// drawPIN 均匀抽取 4 位 PIN，尽量避开同商户其他有效凭证正在使用的 PIN
func (s *RedemptionService) drawPIN(repo repository.RedemptionRepository, card *models.StampCard, now time.Time) (string, error) {
	var pin string
	for draw := 0; draw <= s.options.PINMaxRedraws; draw++ {
		candidate, err := s.random.Digits(constants.PINCodeLength)
		if err != nil {
			logger.Errorw("redemption_pin_generate_failed", "card_id", card.ID, "error", err)
			return "", ErrRedemptionCodeFailed
		}
		pin = candidate
		inUse, err := repo.PINInUse(card.BusinessID, candidate, card.ID, now)
		if err != nil {
			return "", ErrRedemptionFetchFailed
		}
		if !inUse {
			return pin, nil
		}
	}
	logger.Warnw("redemption_pin_collision_unresolved", "business_id", card.BusinessID, "redraws", s.options.PINMaxRedraws)
	return pin, nil
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// VerifyInput 核销输入
type VerifyInput struct {
	BusinessID       uint
	StaffID          uint
	VerificationType string
	Code             string
	Now              time.Time
}

// VerifyResult 核销结果
type VerifyResult struct {
	Success           bool          `json:"success"`
	Error             string        `json:"error,omitempty"`
	Message           string        `json:"message,omitempty"`
	RemainingMinutes  int           `json:"remaining_minutes,omitempty"`
	VerificationType  string        `json:"verification_type"`
	RecordID          uint          `json:"record_id,omitempty"`
	CustomerName      string        `json:"customer_name,omitempty"`
	CustomerEmail     string        `json:"customer_email,omitempty"`
	ProgramName       string        `json:"program_name,omitempty"`
	RewardDescription string        `json:"reward_description,omitempty"`
	RewardValue       *models.Money `json:"reward_value,omitempty"`
	Currency          string        `json:"currency,omitempty"`
	StampsCollected   int           `json:"stamps_collected,omitempty"`
	StampsRequired    int           `json:"stamps_required,omitempty"`
	RedeemedAt        *time.Time    `json:"redeemed_at,omitempty"`
}

func rejectVerify(channel VerificationChannel, code string) *VerifyResult {
	return &VerifyResult{
		Success:          false,
		Error:            code,
		Message:          OutcomeMessage(code),
		VerificationType: string(channel),
	}
}

func lockedOut(channel VerificationChannel, remaining int) *VerifyResult {
	result := rejectVerify(channel, constants.RedemptionErrLockedOut)
	result.RemainingMinutes = remaining
	return result
}

// Verify 店员核销兑换凭证
func (s *RedemptionService) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	channel, ok := ParseVerificationChannel(input.VerificationType)
	if !ok || input.BusinessID == 0 {
		return nil, ErrInvalidInput
	}
	code := strings.TrimSpace(input.Code)
	now := clock.Or(s.clock, input.Now).UTC()

	snapshot, err := s.configSvc.Load(ctx, input.BusinessID)
	if err != nil {
		return nil, ErrRedemptionFetchFailed
	}
	program, err := s.configSvc.ResolveProgram(snapshot)
	if err != nil {
		return nil, ErrRedemptionFetchFailed
	}
	mode := constants.RedemptionModeBoth
	if program != nil {
		mode = program.RedemptionMode
	}
	if !ChannelEnabled(mode, channel) {
		return s.finishVerify(input, channel, rejectVerify(channel, constants.RedemptionErrModeNotEnabled)), nil
	}
	policy := lockoutPolicyFromProgram(program)

	var result *VerifyResult
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.redemptionRepo.WithTx(tx)
		for attempt := 0; attempt < maxVerifyAttempts; attempt++ {
			var verifyErr error
			result, verifyErr = s.verifyOnce(tx, repo, input, channel, code, policy, now)
			if !errors.Is(verifyErr, errRedemptionRecordChanged) {
				return verifyErr
			}
			logger.Debugw("redemption_record_changed_retry",
				"business_id", input.BusinessID,
				"channel", channel,
				"attempt", attempt+1,
			)
		}
		return ErrRedemptionUpdateFailed
	})
	if err != nil {
		return nil, err
	}
	return s.finishVerify(input, channel, result), nil
}

// verifyOnce 匹配并尝试核销一次，记录在读取后被改写时返回 errRedemptionRecordChanged
func (s *RedemptionService) verifyOnce(tx *gorm.DB, repo repository.RedemptionRepository, input VerifyInput, channel VerificationChannel, code string, policy LockoutPolicy, now time.Time) (*VerifyResult, error) {
	var record *models.RedemptionRecord
	if channel.ValidFormat(code) {
		var err error
		record, err = repo.FindOutstanding(input.BusinessID, channel.Column(), code)
		if err != nil {
			return nil, ErrRedemptionFetchFailed
		}
		if record == nil {
			redeemed, err := repo.FindRedeemed(input.BusinessID, channel.Column(), code)
			if err != nil {
				return nil, ErrRedemptionFetchFailed
			}
			if redeemed != nil {
				return rejectVerify(channel, constants.RedemptionErrAlreadyRedeemed), nil
			}
		}
	}
	if record == nil {
		return s.penalizeUnmatched(repo, input.BusinessID, channel, policy, now)
	}

	decision := EvaluateLockout(policy, record.FailedAttempts, record.LockoutUntil, now)
	if decision.Action == LockoutActive {
		return lockedOut(channel, decision.RemainingMinutes), nil
	}
	if now.After(channel.ExpiresAt(record)) {
		return rejectVerify(channel, constants.RedemptionErrCodeExpired), nil
	}
	if decision.Action == LockoutTrip {
		if _, err := repo.Lock(record.ID, decision.LockUntil); err != nil {
			return nil, ErrRedemptionUpdateFailed
		}
		logger.Infow("redemption_record_locked", "record_id", record.ID, "lockout_until", decision.LockUntil)
		return lockedOut(channel, decision.RemainingMinutes), nil
	}

	staffID := input.StaffID
	var verifiedBy *uint
	if staffID != 0 {
		verifiedBy = &staffID
	}
	affected, err := repo.MarkRedeemed(record.ID, record.Version, verifiedBy, now)
	if err != nil {
		return nil, ErrRedemptionUpdateFailed
	}
	if affected == 0 {
		current, err := repo.GetByID(record.ID)
		if err != nil {
			return nil, ErrRedemptionFetchFailed
		}
		if current == nil || current.IsRedeemed {
			return rejectVerify(channel, constants.RedemptionErrAlreadyRedeemed), nil
		}
		return nil, errRedemptionRecordChanged
	}
	return s.buildVerifySuccess(tx, record, channel, now)
}

// penalizeUnmatched 未匹配任何凭证时，对商户最近签发的未兑换凭证计一次失败
func (s *RedemptionService) penalizeUnmatched(repo repository.RedemptionRepository, businessID uint, channel VerificationChannel, policy LockoutPolicy, now time.Time) (*VerifyResult, error) {
	if !s.options.PenalizeUnmatched {
		return rejectVerify(channel, constants.RedemptionErrInvalidCode), nil
	}
	target, err := repo.LatestOutstanding(businessID)
	if err != nil {
		return nil, ErrRedemptionFetchFailed
	}
	if target == nil {
		return rejectVerify(channel, constants.RedemptionErrInvalidCode), nil
	}
	decision := EvaluateLockout(policy, target.FailedAttempts, target.LockoutUntil, now)
	switch decision.Action {
	case LockoutActive:
		return lockedOut(channel, decision.RemainingMinutes), nil
	case LockoutTrip:
		if _, err := repo.Lock(target.ID, decision.LockUntil); err != nil {
			return nil, ErrRedemptionUpdateFailed
		}
		logger.Infow("redemption_record_locked", "record_id", target.ID, "lockout_until", decision.LockUntil, "unmatched", true)
		return lockedOut(channel, decision.RemainingMinutes), nil
	}
	if _, err := repo.IncrementFailedAttempts(target.ID); err != nil {
		return nil, ErrRedemptionUpdateFailed
	}
	return rejectVerify(channel, constants.RedemptionErrInvalidCode), nil
}

func (s *RedemptionService) buildVerifySuccess(tx *gorm.DB, record *models.RedemptionRecord, channel VerificationChannel, now time.Time) (*VerifyResult, error) {
	redeemedAt := now
	result := &VerifyResult{
		Success:          true,
		VerificationType: string(channel),
		RecordID:         record.ID,
		RedeemedAt:       &redeemedAt,
	}
	card, err := s.cardRepo.WithTx(tx).GetByID(record.StampCardID)
	if err != nil {
		return nil, ErrRedemptionFetchFailed
	}
	if card != nil {
		result.StampsCollected = card.StampsCollected
		program, err := s.programRepo.WithTx(tx).GetByID(card.ProgramID)
		if err != nil {
			return nil, ErrRedemptionFetchFailed
		}
		result.StampsRequired = resolveStampsRequired(program)
		if program != nil {
			value := program.RewardValue
			result.ProgramName = program.Name
			result.RewardDescription = program.RewardDescription
			result.RewardValue = &value
			result.Currency = program.Currency
		}
	}
	user, err := s.userRepo.WithTx(tx).GetByID(record.CustomerID)
	if err != nil {
		return nil, ErrRedemptionFetchFailed
	}
	if user != nil {
		result.CustomerName = user.DisplayName
		result.CustomerEmail = user.Email
	}
	return result, nil
}

func (s *RedemptionService) finishVerify(input VerifyInput, channel VerificationChannel, result *VerifyResult) *VerifyResult {
	if result == nil {
		return nil
	}
	if result.Success {
		s.metrics.Redeemed(string(channel))
		logger.Infow("redemption_verified",
			"business_id", input.BusinessID,
			"staff_id", input.StaffID,
			"record_id", result.RecordID,
			"channel", channel,
		)
		return result
	}
	s.metrics.RedemptionRejected(result.Error, string(channel))
	logger.Debugw("redemption_rejected",
		"business_id", input.BusinessID,
		"staff_id", input.StaffID,
		"channel", channel,
		"code", result.Error,
	)
	return result
}
