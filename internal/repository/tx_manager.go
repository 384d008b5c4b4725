package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathanjackson-1/studio-scheduler/internal/service"
)

// TxManager исполняет многошаговые мутации координатора в одной транзакции.
// Репозитории построены над base.Querier, поэтому внутри fn те же реализации
// работают поверх pgx.Tx вместо пула.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx начинает транзакцию, отдаёт fn транзакционные репозитории
// и коммитит при успехе. Ошибка fn откатывает все записи и возвращается
// вызывающему без обёртки, чтобы работали проверки errors.Is.
func (m *TxManager) WithinTx(ctx context.Context, fn func(stores service.TxStores) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = fn(service.TxStores{
		Occurrences:  NewOccurrenceRepository(tx),
		Exceptions:   NewExceptionRepository(tx),
		Negotiations: NewNegotiationRepository(tx),
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
