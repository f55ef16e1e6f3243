package service

import (
	"context"

	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// TransactionService exposes the stock movement ledger
type TransactionService struct {
	transactions *repository.TransactionRepository
	logger       *logger.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(transactions *repository.TransactionRepository, log *logger.Logger) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		logger:       log.WithComponent("transactions"),
	}
}

// List lists live transactions
func (s *TransactionService) List(ctx context.Context, f repository.TransactionFilter) ([]*repository.StockTransaction, int, error) {
	return s.transactions.List(ctx, f)
}

// SoftDelete hides a wrongly recorded transaction. Stock is not reversed.
func (s *TransactionService) SoftDelete(ctx context.Context, id string, actor *identity.Identity) error {
	if err := s.transactions.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("transaction_id", id).Str("actor", actor.String()).Msg("transaction soft deleted")
	return nil
}
