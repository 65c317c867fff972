/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the settlement-service performs. The ledger is append-only and
 * owned by upstream transfer processing; this service only ever reads it.
 * Defining an interface decouples the aggregation and settlement logic from
 * PostgreSQL and lets tests substitute in-memory fakes.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For owner identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/meridianpay/settlement-service/internal/domain"
)

// Repository defines the read-only ledger access used by the service.
type Repository interface {
	// ListLedgerRecordsByOwner returns every ledger record belonging to the
	// owner, in no particular order.
	ListLedgerRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.LedgerRecord, error)

	// ListLedgerRecordsByWallet returns every ledger record whose source,
	// destination, or deposit wallet address matches the given address. Used
	// for the treasury identity, which is addressed by wallet rather than by
	// owner.
	ListLedgerRecordsByWallet(ctx context.Context, walletAddress string) ([]domain.LedgerRecord, error)

	// ListPaymentMethodBindingsByOwner returns the owner's registered
	// deposit wallet bindings.
	ListPaymentMethodBindingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentMethodBinding, error)
}
