package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// AccountUseCase handles the plain create/read operations on accounts and
// cards that the ledger depends on.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	cardRepo    CardRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	refs        ReferenceGenerator
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	cardRepo CardRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	refs ReferenceGenerator,
	metrics *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		cardRepo:    cardRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		refs:        refs,
		metrics:     metrics,
	}
}

// OpenAccountInput represents input for opening an account.
type OpenAccountInput struct {
	OwnerID  string
	Currency string
}

// OpenAccount opens an unapproved, zero-balance account for the owner.
func (uc *AccountUseCase) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}

	currency, err := domain.NormalizeCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	if _, err := uc.accountRepo.GetByOwner(ctx, input.OwnerID); err == nil {
		return nil, domain.ErrAccountExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uc.refs.AccountID(),
		IBAN:      uc.refs.IBAN(),
		OwnerID:   input.OwnerID,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.accountRepo.Create(txCtx, tx, account); err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(txCtx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeAccountOpened,
		Payload: map[string]any{
			"account_id": account.ID,
			"iban":       account.IBAN,
			"owner_id":   account.OwnerID,
			"currency":   account.Currency,
		},
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsOpened.Inc()
	}

	return account, nil
}

// GetOwnAccount returns the account owned by the user.
func (uc *AccountUseCase) GetOwnAccount(ctx context.Context, ownerID string) (*domain.Account, error) {
	return uc.accountRepo.GetByOwner(ctx, ownerID)
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.accountRepo.List(ctx, limit, offset)
}

// ApproveAccount sets the approval flag. Approving an approved account is a no-op.
func (uc *AccountUseCase) ApproveAccount(ctx context.Context, id string) (*domain.Account, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	accounts, err := uc.accountRepo.GetByIDsForUpdate(txCtx, tx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	account := accounts[0]

	if account.IsApproved {
		return account, nil
	}

	now := time.Now().UTC()
	if err := uc.accountRepo.Approve(txCtx, tx, id, now); err != nil {
		return nil, err
	}
	account.IsApproved = true
	account.UpdatedAt = now

	if err := uc.outboxRepo.Create(txCtx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeAccountApproved,
		Payload: map[string]any{
			"account_id": account.ID,
			"owner_id":   account.OwnerID,
		},
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsApproved.Inc()
	}

	return account, nil
}

// IssueCard attaches an approved debit card to an approved account.
// An account holds at most one card.
func (uc *AccountUseCase) IssueCard(ctx context.Context, accountID string) (*domain.DebitCard, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Locking the account serializes concurrent issues for it.
	accounts, err := uc.accountRepo.GetByIDsForUpdate(txCtx, tx, []string{accountID})
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	if !accounts[0].IsApproved {
		return nil, domain.ErrAccountPending
	}

	if _, err := uc.cardRepo.GetByAccount(txCtx, accountID); err == nil {
		return nil, domain.ErrCardExists
	} else if !errors.Is(err, domain.ErrCardNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	card := &domain.DebitCard{
		ID:         uc.idGen.Generate(),
		CardNumber: uc.refs.CardNumber(),
		AccountID:  accountID,
		IsApproved: true,
		ExpiresAt:  now.Add(domain.CardValidity),
		CreatedAt:  now,
	}

	if err := uc.cardRepo.Create(txCtx, tx, card); err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(txCtx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   card.ID,
		AggregateType: domain.AggregateTypeCard,
		EventType:     domain.EventTypeCardIssued,
		Payload: map[string]any{
			"card_id":    card.ID,
			"account_id": accountID,
			"expires_at": card.ExpiresAt.Format(time.RFC3339),
		},
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.CardsIssued.Inc()
	}

	return card, nil
}

// GetCard returns the card attached to an account.
func (uc *AccountUseCase) GetCard(ctx context.Context, accountID string) (*domain.DebitCard, error) {
	return uc.cardRepo.GetByAccount(ctx, accountID)
}
