package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// AccountService manages accounts and their cards.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	GetOwnAccount(ctx context.Context, ownerID string) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
	ApproveAccount(ctx context.Context, id string) (*domain.Account, error)
	IssueCard(ctx context.Context, accountID string) (*domain.DebitCard, error)
	GetCard(ctx context.Context, accountID string) (*domain.DebitCard, error)
}

// AccountHandler serves the client and banker account endpoints.
type AccountHandler struct {
	accounts AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Open requests an account for the caller. It stays unapproved until a
// banker approves it.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.OpenAccountRequest
	if err := dto.Decode(r, &req, true); err != nil {
		writeDomainError(w, r, err)
		return
	}

	account, err := h.accounts.OpenAccount(r.Context(), req.ToUseCaseInput(user.ID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// GetOwn returns the caller's account.
func (h *AccountHandler) GetOwn(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetOwnAccount(r.Context(), user.ID)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// GetOwnCard returns the card attached to the caller's account.
func (h *AccountHandler) GetOwnCard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetOwnAccount(r.Context(), user.ID)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	h.writeCard(w, r, account.ID)
}

// List lists every account.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context(), usecase.ListAccountsInput{
		Limit:  parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Approve sets the approval flag on an account.
func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.ApproveAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// IssueCard attaches an approved debit card to an approved account.
func (h *AccountHandler) IssueCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.accounts.IssueCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CardFromDomain(card))
}

// GetCard returns the card attached to an account.
func (h *AccountHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	h.writeCard(w, r, chi.URLParam(r, "id"))
}

func (h *AccountHandler) writeCard(w http.ResponseWriter, r *http.Request, accountID string) {
	card, err := h.accounts.GetCard(r.Context(), accountID)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CardFromDomain(card))
}
