package service

import (
	"context"
	"errors"
	"time"

	"github.com/stampcard-next/internal/cache"
	"github.com/stampcard-next/internal/clock"
	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/metrics"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"

	"gorm.io/gorm"
)

const defaultMaxCommitRetries = 3

// errStampCASConflict 事务内检测到并发写入，整体回滚后重试
var errStampCASConflict = errors.New("stamp card version changed")

// errStampPolicyRejected 流水校验未通过，回滚事务内新开的卡
var errStampPolicyRejected = errors.New("stamp policy rejected")

// PendingStampScheduler 待审核集点超时调度
type PendingStampScheduler interface {
	EnqueueStampPendingExpire(txnID uint, delay time.Duration) error
}

// StampOptions 集点服务参数
type StampOptions struct {
	MaxCommitRetries int
	PendingExpire    time.Duration
}

// StampService 集点服务
type StampService struct {
	configSvc      *LoyaltyConfigService
	cardRepo       repository.StampCardRepository
	txnRepo        repository.StampTransactionRepository
	redemptionRepo repository.RedemptionRepository
	programRepo    repository.LoyaltyProgramRepository
	scheduler      PendingStampScheduler
	metrics        *metrics.LoyaltyMetrics
	clock          clock.Clock
	options        StampOptions
}

// NewStampService 创建集点服务
func NewStampService(
	configSvc *LoyaltyConfigService,
	cardRepo repository.StampCardRepository,
	txnRepo repository.StampTransactionRepository,
	redemptionRepo repository.RedemptionRepository,
	programRepo repository.LoyaltyProgramRepository,
	scheduler PendingStampScheduler,
	m *metrics.LoyaltyMetrics,
	c clock.Clock,
	options StampOptions,
) *StampService {
	if c == nil {
		c = clock.SystemClock{}
	}
	if options.MaxCommitRetries <= 0 {
		options.MaxCommitRetries = defaultMaxCommitRetries
	}
	return &StampService{
		configSvc:      configSvc,
		cardRepo:       cardRepo,
		txnRepo:        txnRepo,
		redemptionRepo: redemptionRepo,
		programRepo:    programRepo,
		scheduler:      scheduler,
		metrics:        m,
		clock:          c,
		options:        options,
	}
}

// AwardStampInput 集点输入
type AwardStampInput struct {
	CustomerID uint
	BusinessID uint
	Now        time.Time // 为空时取服务时钟
}

// AwardResult 集点结果；Success=false 时 Error 为策略拒绝码
type AwardResult struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	Message         string `json:"message,omitempty"`
	WaitMinutes     int    `json:"wait_minutes,omitempty"`
	Status          string `json:"status,omitempty"`
	StampsCollected int    `json:"stamps_collected"`
	StampsRequired  int    `json:"stamps_required"`
	IsCompleted     bool   `json:"is_completed"`
	CardID          uint   `json:"card_id,omitempty"`
	TransactionID   uint   `json:"transaction_id,omitempty"`
}

func rejectAward(decision PolicyDecision) *AwardResult {
	return &AwardResult{
		Success:     false,
		Error:       decision.Code,
		Message:     OutcomeMessage(decision.Code),
		WaitMinutes: decision.WaitMinutes,
	}
}

// AwardStamp 判定一次扫码能否集点并原子提交
func (s *StampService) AwardStamp(ctx context.Context, input AwardStampInput) (*AwardResult, error) {
	if input.CustomerID == 0 || input.BusinessID == 0 {
		return nil, ErrInvalidInput
	}
	now := clock.Or(s.clock, input.Now).UTC()

	snapshot, err := s.configSvc.Load(ctx, input.BusinessID)
	if err != nil {
		logger.Warnw("stamp_config_load_failed", "business_id", input.BusinessID, "error", err)
		return nil, ErrStampFetchFailed
	}
	if decision := evaluateStampConfig(snapshot, now); !decision.Allowed() {
		return s.finishRejected(input, decision), nil
	}
	program := snapshot.Program
	loc := clock.LoadLocation(snapshot.Business.Timezone)
	dayStart := clock.StartOfDay(now, loc)

	for attempt := 0; attempt <= s.options.MaxCommitRetries; attempt++ {
		result, txnErr := s.tryAward(input, program, now, dayStart)
		if errors.Is(txnErr, errStampCASConflict) {
			s.metrics.CommitConflict()
			logger.Debugw("stamp_commit_conflict_retry",
				"customer_id", input.CustomerID,
				"business_id", input.BusinessID,
				"attempt", attempt+1,
			)
			continue
		}
		if txnErr != nil {
			return nil, txnErr
		}
		if !result.Success {
			return s.finishRejected(input, PolicyDecision{Code: result.Error, WaitMinutes: result.WaitMinutes}), nil
		}
		s.afterAward(result)
		return result, nil
	}
	logger.Warnw("stamp_commit_conflict_exhausted",
		"customer_id", input.CustomerID,
		"business_id", input.BusinessID,
		"retries", s.options.MaxCommitRetries,
	)
	return nil, ErrStampCommitConflict
}

// evaluateStampConfig 依次校验商户、计划与营业时间
func evaluateStampConfig(snapshot *cache.LoyaltyConfigSnapshot, now time.Time) PolicyDecision {
	if snapshot == nil || !snapshot.Business.IsActive {
		return PolicyDecision{Code: constants.StampErrInvalidBusiness}
	}
	program := snapshot.Program
	if program == nil || !program.IsActive {
		return PolicyDecision{Code: constants.StampErrNoActiveProgram}
	}
	if program.RequireOpenHours {
		return EvaluateOpenHours(snapshot.Hours, clock.LoadLocation(snapshot.Business.Timezone), now)
	}
	return policyAllow
}

func (s *StampService) tryAward(input AwardStampInput, program *models.LoyaltyProgram, now, dayStart time.Time) (*AwardResult, error) {
	var result *AwardResult
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)

		// 先锁定当前卡（首次到店由唯一键兜底），再读流水，保证同一顾客的判定串行
		card, err := s.resolveCard(tx, input.CustomerID, input.BusinessID, program, now)
		if err != nil {
			return err
		}

		lastScanAt, err := txnRepo.LastScanAt(input.CustomerID, input.BusinessID)
		if err != nil {
			return ErrStampFetchFailed
		}
		if decision := EvaluateScanInterval(lastScanAt, program.MinScanIntervalMinutes, now); !decision.Allowed() {
			result = rejectAward(decision)
			return errStampPolicyRejected
		}
		countToday, err := txnRepo.CountSince(input.CustomerID, input.BusinessID, dayStart)
		if err != nil {
			return ErrStampFetchFailed
		}
		if decision := EvaluateDailyLimit(countToday, program.MaxScansPerDay); !decision.Allowed() {
			result = rejectAward(decision)
			return errStampPolicyRejected
		}

		status := constants.StampTxnStatusVerified
		if !program.AutoVerify {
			status = constants.StampTxnStatusPending
		}
		// pending 不累加点数，但同样推进版本号，保证同一顾客的并发扫码串行判定
		if err := s.commitCard(tx, card, program, status == constants.StampTxnStatusVerified, now); err != nil {
			return err
		}

		txn := &models.StampTransaction{
			StampCardID: card.ID,
			CustomerID:  input.CustomerID,
			BusinessID:  input.BusinessID,
			Status:      status,
			ScannedAt:   now,
		}
		if err := txnRepo.Create(txn); err != nil {
			return ErrStampUpdateFailed
		}
		result = buildAwardResult(card, program, txn)
		return nil
	})
	if errors.Is(err, errStampPolicyRejected) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveCard 获取当前集点卡；首次到店或上一张卡已兑换时开新卡
func (s *StampService) resolveCard(tx *gorm.DB, customerID, businessID uint, program *models.LoyaltyProgram, now time.Time) (*models.StampCard, error) {
	cardRepo := s.cardRepo.WithTx(tx)
	current, err := cardRepo.GetCurrent(customerID, businessID)
	if err != nil {
		return nil, ErrStampFetchFailed
	}
	nextCycle := 1
	if current != nil {
		if !current.IsCompleted {
			return current, nil
		}
		record, err := s.redemptionRepo.WithTx(tx).GetByStampCardID(current.ID)
		if err != nil {
			return nil, ErrStampFetchFailed
		}
		if record == nil || !record.IsRedeemed {
			// 已集满未兑换：继续累加但不会再次标记集满
			return current, nil
		}
		nextCycle = current.Cycle + 1
	}

	card := &models.StampCard{
		CustomerID: customerID,
		BusinessID: businessID,
		ProgramID:  program.ID,
		Cycle:      nextCycle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := cardRepo.Create(card); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, errStampCASConflict
		}
		return nil, ErrStampUpdateFailed
	}
	return card, nil
}

// commitCard 以版本号 CAS 写回卡片，increment=false 时只推进版本
func (s *StampService) commitCard(tx *gorm.DB, card *models.StampCard, program *models.LoyaltyProgram, increment bool, now time.Time) error {
	expected := card.Version
	card.ProgramID = program.ID
	if increment {
		applyStamp(card, resolveStampsRequired(program), now)
	}
	affected, err := s.cardRepo.WithTx(tx).CompareAndSwap(card, expected)
	if err != nil {
		return ErrStampUpdateFailed
	}
	if affected == 0 {
		return errStampCASConflict
	}
	return nil
}

func resolveStampsRequired(program *models.LoyaltyProgram) int {
	if program == nil || program.StampsRequired < 1 {
		return 1
	}
	return program.StampsRequired
}

func buildAwardResult(card *models.StampCard, program *models.LoyaltyProgram, txn *models.StampTransaction) *AwardResult {
	return &AwardResult{
		Success:         true,
		Status:          txn.Status,
		StampsCollected: card.StampsCollected,
		StampsRequired:  resolveStampsRequired(program),
		IsCompleted:     card.IsCompleted,
		CardID:          card.ID,
		TransactionID:   txn.ID,
	}
}

func (s *StampService) finishRejected(input AwardStampInput, decision PolicyDecision) *AwardResult {
	s.metrics.StampRejected(decision.Code)
	logger.Debugw("stamp_rejected",
		"customer_id", input.CustomerID,
		"business_id", input.BusinessID,
		"code", decision.Code,
		"wait_minutes", decision.WaitMinutes,
	)
	return rejectAward(decision)
}

func (s *StampService) afterAward(result *AwardResult) {
	s.metrics.StampAwarded(result.Status)
	logger.Infow("stamp_awarded",
		"card_id", result.CardID,
		"transaction_id", result.TransactionID,
		"status", result.Status,
		"stamps_collected", result.StampsCollected,
		"is_completed", result.IsCompleted,
	)
	if result.Status != constants.StampTxnStatusPending || s.scheduler == nil || s.options.PendingExpire <= 0 {
		return
	}
	if err := s.scheduler.EnqueueStampPendingExpire(result.TransactionID, s.options.PendingExpire); err != nil {
		logger.Warnw("stamp_pending_expire_enqueue_failed", "transaction_id", result.TransactionID, "error", err)
	}
}
