package repo

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Transaction outcomes recorded in db_transactions_total.
const (
	TxCommitted    = "committed"
	TxRolledBack   = "rolled_back"
	TxCommitFailed = "commit_failed"
	TxBeginFailed  = "begin_failed"
)

var txTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_transactions_total",
		Help: "Request-scoped database transactions by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(txTotal)
}

// InTx runs fn inside a transaction on db. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics; the panic is
// re-raised after the rollback. A committed transaction is never rolled back,
// and a failed commit is returned as an error. A canceled ctx resolves to a
// rollback because the driver refuses to commit on a dead context.
func InTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		txTotal.WithLabelValues(TxBeginFailed).Inc()
		return fmt.Errorf("begin tx: %w", tx.Error)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			tx.Rollback()
			txTotal.WithLabelValues(TxRolledBack).Inc()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			txTotal.WithLabelValues(TxRolledBack).Inc()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	if cerr := tx.Commit().Error; cerr != nil {
		// commit failure already released the connection; nothing to roll back
		committed = true
		txTotal.WithLabelValues(TxCommitFailed).Inc()
		return fmt.Errorf("commit tx: %w", cerr)
	}
	committed = true
	txTotal.WithLabelValues(TxCommitted).Inc()
	return nil
}
