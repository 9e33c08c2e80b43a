package service

import (
	"context"
	"errors"
	"time"

	"github.com/stampcard-next/internal/clock"
	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"

	"gorm.io/gorm"
)

// ReviewStampInput 待确认流水审核输入
type ReviewStampInput struct {
	TransactionID uint
	BusinessID    uint  // 店员所属商户，0 表示系统任务不校验
	StaffID       *uint // 系统自动驳回时为空
	Now           time.Time
}

// ApprovePending 审核通过待确认集点，沿用扫码累加路径
func (s *StampService) ApprovePending(ctx context.Context, input ReviewStampInput) (*AwardResult, error) {
	if input.TransactionID == 0 || input.BusinessID == 0 {
		return nil, ErrInvalidInput
	}
	now := clock.Or(s.clock, input.Now).UTC()

	snapshot, err := s.configSvc.Load(ctx, input.BusinessID)
	if err != nil {
		return nil, ErrStampFetchFailed
	}
	if snapshot == nil || !snapshot.Business.IsActive {
		return rejectAward(PolicyDecision{Code: constants.StampErrInvalidBusiness}), nil
	}
	program := snapshot.Program
	if program == nil {
		return rejectAward(PolicyDecision{Code: constants.StampErrNoActiveProgram}), nil
	}

	for attempt := 0; attempt <= s.options.MaxCommitRetries; attempt++ {
		result, txnErr := s.tryApprove(input, program, now)
		if errors.Is(txnErr, errStampCASConflict) {
			s.metrics.CommitConflict()
			continue
		}
		if txnErr != nil {
			return nil, txnErr
		}
		s.metrics.StampAwarded(constants.StampTxnStatusVerified)
		logger.Infow("stamp_pending_approved",
			"transaction_id", input.TransactionID,
			"card_id", result.CardID,
			"stamps_collected", result.StampsCollected,
			"is_completed", result.IsCompleted,
		)
		return result, nil
	}
	return nil, ErrStampCommitConflict
}

func (s *StampService) tryApprove(input ReviewStampInput, program *models.LoyaltyProgram, now time.Time) (*AwardResult, error) {
	var result *AwardResult
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		txn, err := s.loadPendingTxn(txnRepo, input)
		if err != nil {
			return err
		}
		card, err := s.resolveCard(tx, txn.CustomerID, txn.BusinessID, program, now)
		if err != nil {
			return err
		}
		if err := s.commitCard(tx, card, program, true, now); err != nil {
			return err
		}
		affected, err := txnRepo.Review(txn.ID, repository.StampTxnReview{
			Status:      constants.StampTxnStatusVerified,
			StampCardID: card.ID,
			ReviewedBy:  input.StaffID,
			ReviewedAt:  now,
		})
		if err != nil {
			return ErrStampUpdateFailed
		}
		if affected == 0 {
			return ErrStampTxnNotPending
		}
		txn.Status = constants.StampTxnStatusVerified
		result = buildAwardResult(card, program, txn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RejectPending 驳回待确认集点；被驳回的流水不计入每日额度
func (s *StampService) RejectPending(ctx context.Context, input ReviewStampInput) error {
	if input.TransactionID == 0 {
		return ErrInvalidInput
	}
	now := clock.Or(s.clock, input.Now).UTC()
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)
		txn, err := s.loadPendingTxn(txnRepo, input)
		if err != nil {
			return err
		}
		affected, err := txnRepo.Review(txn.ID, repository.StampTxnReview{
			Status:     constants.StampTxnStatusRejected,
			ReviewedBy: input.StaffID,
			ReviewedAt: now,
		})
		if err != nil {
			return ErrStampUpdateFailed
		}
		if affected == 0 {
			return ErrStampTxnNotPending
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infow("stamp_pending_rejected",
		"transaction_id", input.TransactionID,
		"business_id", input.BusinessID,
		"auto", input.StaffID == nil,
	)
	return nil
}

func (s *StampService) loadPendingTxn(txnRepo repository.StampTransactionRepository, input ReviewStampInput) (*models.StampTransaction, error) {
	txn, err := txnRepo.GetByID(input.TransactionID)
	if err != nil {
		return nil, ErrStampFetchFailed
	}
	if txn == nil || (input.BusinessID != 0 && txn.BusinessID != input.BusinessID) {
		return nil, ErrStampTxnNotFound
	}
	if txn.Status != constants.StampTxnStatusPending {
		return nil, ErrStampTxnNotPending
	}
	return txn, nil
}

const stalePendingBatchSize = 100

// ExpireStalePending 驳回超过等待时长仍未审核的流水，返回驳回条数
func (s *StampService) ExpireStalePending(ctx context.Context, now time.Time) (int, error) {
	if s.options.PendingExpire <= 0 {
		return 0, nil
	}
	now = clock.Or(s.clock, now).UTC()
	rows, err := s.txnRepo.ListPendingBefore(now.Add(-s.options.PendingExpire), stalePendingBatchSize)
	if err != nil {
		return 0, ErrStampFetchFailed
	}
	expired := 0
	for _, row := range rows {
		err := s.RejectPending(ctx, ReviewStampInput{TransactionID: row.ID, Now: now})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrStampTxnNotPending), errors.Is(err, ErrStampTxnNotFound):
		default:
			return expired, err
		}
	}
	return expired, nil
}

// ListTransactionsInput 商户流水查询输入
type ListTransactionsInput struct {
	BusinessID uint
	Status     string
	Page       int
	PageSize   int
}

// ListTransactions 商户集点流水列表
func (s *StampService) ListTransactions(input ListTransactionsInput) ([]models.StampTransaction, int64, error) {
	if input.BusinessID == 0 {
		return nil, 0, ErrInvalidInput
	}
	rows, total, err := s.txnRepo.List(repository.StampTransactionListFilter{
		BusinessID: input.BusinessID,
		Status:     input.Status,
		Page:       input.Page,
		PageSize:   input.PageSize,
	})
	if err != nil {
		return nil, 0, ErrStampFetchFailed
	}
	return rows, total, nil
}

// CardView 顾客集点卡展示信息
type CardView struct {
	models.StampCard
	ProgramName       string       `json:"program_name"`
	RewardDescription string       `json:"reward_description"`
	RewardValue       models.Money `json:"reward_value"`
	StampsRequired    int          `json:"stamps_required"`
	IsRedeemed        bool         `json:"is_redeemed"`
}

// ListCards 顾客集点卡列表
func (s *StampService) ListCards(customerID uint, page, pageSize int) ([]CardView, int64, error) {
	if customerID == 0 {
		return nil, 0, ErrInvalidInput
	}
	cards, total, err := s.cardRepo.List(repository.StampCardListFilter{
		CustomerID: customerID,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return nil, 0, ErrStampFetchFailed
	}
	programs := make(map[uint]*models.LoyaltyProgram)
	views := make([]CardView, 0, len(cards))
	for _, card := range cards {
		program, ok := programs[card.ProgramID]
		if !ok {
			program, err = s.programRepo.GetByID(card.ProgramID)
			if err != nil {
				return nil, 0, ErrStampFetchFailed
			}
			programs[card.ProgramID] = program
		}
		view := CardView{StampCard: card, StampsRequired: resolveStampsRequired(program)}
		if program != nil {
			view.ProgramName = program.Name
			view.RewardDescription = program.RewardDescription
			view.RewardValue = program.RewardValue
		}
		if card.IsCompleted {
			record, err := s.redemptionRepo.GetByStampCardID(card.ID)
			if err != nil {
				return nil, 0, ErrStampFetchFailed
			}
			view.IsRedeemed = record != nil && record.IsRedeemed
		}
		views = append(views, view)
	}
	return views, total, nil
}
