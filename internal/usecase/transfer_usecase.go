package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// TransferUseCase moves money: transfers between accounts, withdrawals and deposits.
type TransferUseCase struct {
	txManager       TransactionManager
	directory       AccountDirectory
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	outboxRepo      OutboxRepository
	retrier         Retrier
	idGen           IDGenerator
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// TransferOption customizes a TransferUseCase.
type TransferOption func(*TransferUseCase)

// WithTransferMetrics records operation outcomes on m.
func WithTransferMetrics(m *metrics.Metrics) TransferOption {
	return func(uc *TransferUseCase) {
		uc.metrics = m
	}
}

// WithTransferLogger sets the logger used for operation outcomes.
func WithTransferLogger(logger zerolog.Logger) TransferOption {
	return func(uc *TransferUseCase) {
		uc.logger = logger
	}
}

// NewTransferUseCase creates a new TransferUseCase. A nil retrier runs every
// operation exactly once.
func NewTransferUseCase(
	txManager TransactionManager,
	directory AccountDirectory,
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	outboxRepo OutboxRepository,
	retrier Retrier,
	idGen IDGenerator,
	opts ...TransferOption,
) *TransferUseCase {
	if retrier == nil {
		retrier = runOnce{}
	}

	uc := &TransferUseCase{
		txManager:       txManager,
		directory:       directory,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		retrier:         retrier,
		idGen:           idGen,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// TransferInput represents input for a transfer to another account.
type TransferInput struct {
	SenderUserID string
	ReceiverIBAN string
	Amount       decimal.Decimal
}

// MovementInput represents input for a withdrawal or a deposit.
type MovementInput struct {
	UserID string
	Amount decimal.Decimal
}

// TransferResult holds the two records a transfer writes.
type TransferResult struct {
	Debit  *domain.Transaction
	Credit *domain.Transaction
}

// Transfer moves amount from the caller's account to the account identified by
// ReceiverIBAN. Both sides need an approved, unexpired debit card.
func (uc *TransferUseCase) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	start := time.Now()

	if strings.TrimSpace(input.ReceiverIBAN) == "" {
		err := fmt.Errorf("%w: receiver_iban is required", domain.ErrInvalidInput)
		uc.observe(OperationTransfer, input.SenderUserID, input.Amount, start, err)
		return nil, err
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		uc.observe(OperationTransfer, input.SenderUserID, input.Amount, start, err)
		return nil, err
	}

	var result *TransferResult
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.transfer(ctx, input)
		return err
	})

	uc.observe(OperationTransfer, input.SenderUserID, input.Amount, start, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *TransferUseCase) transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()

	sender, err := uc.directory.FindByOwner(txCtx, tx, input.SenderUserID)
	if err != nil {
		return nil, err
	}
	if err := uc.requireCard(txCtx, tx, sender.ID, now, domain.ErrCardRequired); err != nil {
		return nil, err
	}

	receiver, err := uc.directory.FindByExternalID(txCtx, tx, strings.TrimSpace(input.ReceiverIBAN))
	if err != nil {
		if ctxErr := txCtx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			uc.logger.Warn().Err(err).Str("receiver_iban", input.ReceiverIBAN).Msg("receiver lookup failed")
		}
		return nil, domain.ErrReceiverNotFound
	}
	if err := uc.requireCard(txCtx, tx, receiver.ID, now, domain.ErrReceiverCardRequired); err != nil {
		return nil, err
	}

	locked, err := uc.lockAccounts(txCtx, tx, sender.ID, receiver.ID)
	if err != nil {
		return nil, err
	}
	from := locked[sender.ID]
	to := locked[receiver.ID]

	if err := from.ValidateDebit(input.Amount); err != nil {
		return nil, err
	}

	debit, err := uc.post(txCtx, tx, from, domain.DirectionDebit, input.Amount)
	if err != nil {
		return nil, err
	}
	credit, err := uc.post(txCtx, tx, to, domain.DirectionCredit, input.Amount)
	if err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   from.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeTransferCompleted,
		Payload: map[string]any{
			"sender_account_id":   from.ID,
			"receiver_account_id": to.ID,
			"receiver_iban":       to.IBAN,
			"amount":              input.Amount.StringFixed(domain.AmountScale),
			"currency":            domain.LedgerCurrency,
			"debit_id":            debit.ID,
			"credit_id":           credit.ID,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &TransferResult{Debit: debit, Credit: credit}, nil
}

// Withdraw takes amount out of the caller's account. The balance may reach
// zero but never go below it.
func (uc *TransferUseCase) Withdraw(ctx context.Context, input MovementInput) (*domain.Transaction, error) {
	return uc.move(ctx, OperationWithdraw, input, domain.DirectionDebit, domain.EventTypeWithdrawalCompleted)
}

// Deposit adds amount to the caller's account.
func (uc *TransferUseCase) Deposit(ctx context.Context, input MovementInput) (*domain.Transaction, error) {
	return uc.move(ctx, OperationDeposit, input, domain.DirectionCredit, domain.EventTypeDepositCompleted)
}

func (uc *TransferUseCase) move(
	ctx context.Context,
	operation string,
	input MovementInput,
	direction domain.Direction,
	eventType string,
) (*domain.Transaction, error) {
	start := time.Now()

	if err := domain.ValidateAmount(input.Amount); err != nil {
		uc.observe(operation, input.UserID, input.Amount, start, err)
		return nil, err
	}

	var record *domain.Transaction
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		record, err = uc.moveOnce(ctx, input, direction, eventType)
		return err
	})

	uc.observe(operation, input.UserID, input.Amount, start, err)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (uc *TransferUseCase) moveOnce(
	ctx context.Context,
	input MovementInput,
	direction domain.Direction,
	eventType string,
) (*domain.Transaction, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()

	owned, err := uc.directory.FindByOwner(txCtx, tx, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := uc.requireCard(txCtx, tx, owned.ID, now, domain.ErrCardRequired); err != nil {
		return nil, err
	}

	locked, err := uc.lockAccounts(txCtx, tx, owned.ID)
	if err != nil {
		return nil, err
	}
	account := locked[owned.ID]

	if direction == domain.DirectionDebit {
		if err := account.ValidateDebit(input.Amount); err != nil {
			return nil, err
		}
	}

	record, err := uc.post(txCtx, tx, account, direction, input.Amount)
	if err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     eventType,
		Payload: map[string]any{
			"account_id":     account.ID,
			"transaction_id": record.ID,
			"amount":         input.Amount.StringFixed(domain.AmountScale),
			"currency":       domain.LedgerCurrency,
			"balance":        account.Balance.StringFixed(domain.AmountScale),
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return record, nil
}

func (uc *TransferUseCase) requireCard(ctx context.Context, tx Transaction, accountID string, at time.Time, gateErr error) error {
	ok, err := uc.directory.HasApprovedCard(ctx, tx, accountID, at)
	if err != nil {
		return err
	}
	if !ok {
		return gateErr
	}

	return nil
}

// lockAccounts locks the given accounts in ascending ID order and returns
// them keyed by ID. Duplicate IDs are locked once.
func (uc *TransferUseCase) lockAccounts(ctx context.Context, tx Transaction, ids ...string) (map[string]*domain.Account, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	accounts, err := uc.accountRepo.GetByIDsForUpdate(ctx, tx, unique)
	if err != nil {
		return nil, err
	}
	if len(accounts) != len(unique) {
		return nil, domain.ErrAccountNotFound
	}

	byID := make(map[string]*domain.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}

	return byID, nil
}

// post writes the new balance of a locked account and appends the matching
// record. The in-memory account is updated so a second post against the same
// account within the transaction builds on the first.
func (uc *TransferUseCase) post(
	ctx context.Context,
	tx Transaction,
	account *domain.Account,
	direction domain.Direction,
	amount decimal.Decimal,
) (*domain.Transaction, error) {
	now := time.Now().UTC()

	newBalance := account.ApplyCredit(amount)
	if direction == domain.DirectionDebit {
		newBalance = account.ApplyDebit(amount)
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, account.ID, newBalance, now); err != nil {
		return nil, err
	}
	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = now

	record := &domain.Transaction{
		ID:        uc.idGen.Generate(),
		AccountID: account.ID,
		Direction: direction,
		Amount:    amount,
		Currency:  domain.LedgerCurrency,
		CreatedAt: now,
	}
	if err := uc.transactionRepo.Create(ctx, tx, record); err != nil {
		return nil, err
	}

	return record, nil
}

func (uc *TransferUseCase) observe(operation, userID string, amount decimal.Decimal, start time.Time, err error) {
	outcome := Outcome(err)

	if uc.metrics != nil {
		uc.metrics.Operations.WithLabelValues(operation, outcome).Inc()
		uc.metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if err == nil {
			uc.metrics.OperationAmount.WithLabelValues(operation).Observe(amount.InexactFloat64())
		}
	}

	event := uc.logger.Info()
	if err != nil {
		event = uc.logger.Warn().Err(err)
		if outcome == "error" {
			event = uc.logger.Error().Err(err)
		}
	}
	event.
		Str("operation", operation).
		Str("user_id", userID).
		Str("amount", amount.String()).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("money movement")
}

// Outcome maps an operation error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrCardRequired):
		return "card_required"
	case errors.Is(err, domain.ErrReceiverNotFound):
		return "receiver_not_found"
	case errors.Is(err, domain.ErrReceiverCardRequired):
		return "receiver_card_required"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrStorageConflict):
		return "conflict"
	default:
		return "error"
	}
}

type runOnce struct{}

func (runOnce) Retry(_ context.Context, op func() error) error {
	return op()
}
