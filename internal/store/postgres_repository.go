/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. Contains the SQL
 * queries for the `ledger_records` and `payment_method_bindings` tables.
 * Both tables are written by upstream transfer processing; everything here
 * is a plain read.
 *
 * A failed read is propagated as a wrapped error. Callers must be able to
 * distinguish "the owner has no records" (empty slice, nil error) from "the
 * store could not be read" (nil slice, non-nil error) — a zero balance and
 * an unknown balance are different answers.
 *
 * @dependencies
 * - context, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridianpay/settlement-service/internal/domain"
)

// PostgresRepository is the pgx-backed Repository implementation.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ledgerRecordColumns = `id, owner_id, transaction_type, status,
	COALESCE(source_asset, ''), COALESCE(source_network, ''), COALESCE(source_amount, ''),
	COALESCE(destination_asset, ''), COALESCE(destination_network, ''), COALESCE(destination_amount, ''),
	COALESCE(wallet_address, '')`

// ListLedgerRecordsByOwner retrieves all ledger records for one owner.
func (r *PostgresRepository) ListLedgerRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.LedgerRecord, error) {
	query := `SELECT ` + ledgerRecordColumns + ` FROM ledger_records WHERE owner_id = $1`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger records for owner %s: %w", ownerID, err)
	}
	defer rows.Close()
	return scanLedgerRecords(rows)
}

// ListLedgerRecordsByWallet retrieves all ledger records touching the given
// wallet address on either side of the movement.
func (r *PostgresRepository) ListLedgerRecordsByWallet(ctx context.Context, walletAddress string) ([]domain.LedgerRecord, error) {
	query := `SELECT ` + ledgerRecordColumns + ` FROM ledger_records
		WHERE wallet_address = $1 OR source_wallet = $1 OR destination_wallet = $1`
	rows, err := r.db.Query(ctx, query, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger records for wallet %s: %w", walletAddress, err)
	}
	defer rows.Close()
	return scanLedgerRecords(rows)
}

// ListPaymentMethodBindingsByOwner retrieves the owner's deposit bindings.
func (r *PostgresRepository) ListPaymentMethodBindingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentMethodBinding, error) {
	query := `SELECT wallet_address, owner_id, COALESCE(wallet_label, ''), COALESCE(rail, '')
		FROM payment_method_bindings WHERE owner_id = $1`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment method bindings for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	var bindings []domain.PaymentMethodBinding
	for rows.Next() {
		var b domain.PaymentMethodBinding
		if err := rows.Scan(&b.WalletAddress, &b.OwnerID, &b.WalletLabel, &b.Rail); err != nil {
			return nil, fmt.Errorf("failed to scan payment method binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payment method bindings: %w", err)
	}
	return bindings, nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanLedgerRecords(rows pgxRows) ([]domain.LedgerRecord, error) {
	var records []domain.LedgerRecord
	for rows.Next() {
		var rec domain.LedgerRecord
		if err := rows.Scan(
			&rec.ID, &rec.OwnerID, &rec.TransactionType, &rec.Status,
			&rec.SourceAsset, &rec.SourceNetwork, &rec.SourceAmount,
			&rec.DestinationAsset, &rec.DestinationNetwork, &rec.DestinationAmount,
			&rec.WalletAddress,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger records: %w", err)
	}
	return records, nil
}
