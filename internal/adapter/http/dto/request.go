package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// TransferRequest is the body of POST /transfer.
type TransferRequest struct {
	ReceiverIBAN string `json:"receiver_iban" validate:"required,max=64"`
	Amount       string `json:"amount"        validate:"required"`
}

// ToUseCaseInput converts to use case input.
func (r *TransferRequest) ToUseCaseInput(userID string) (usecase.TransferInput, error) {
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return usecase.TransferInput{}, err
	}

	return usecase.TransferInput{
		SenderUserID: userID,
		ReceiverIBAN: strings.TrimSpace(r.ReceiverIBAN),
		Amount:       amount,
	}, nil
}

// MovementRequest is the body of POST /withdraw and POST /deposit.
type MovementRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// ToUseCaseInput converts to use case input.
func (r *MovementRequest) ToUseCaseInput(userID string) (usecase.MovementInput, error) {
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return usecase.MovementInput{}, err
	}

	return usecase.MovementInput{UserID: userID, Amount: amount}, nil
}

// OpenAccountRequest is the body of POST /client/account. An empty body
// opens an EUR account.
type OpenAccountRequest struct {
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenAccountRequest) ToUseCaseInput(userID string) usecase.OpenAccountInput {
	return usecase.OpenAccountInput{OwnerID: userID, Currency: r.Currency}
}

// Decode reads a JSON body into dst and validates it. Every failure wraps
// domain.ErrInvalidInput. An empty body is accepted when allowEmpty is set.
func Decode(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
		}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describe(verrs))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	return nil
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}

	return strings.Join(parts, "; ")
}
