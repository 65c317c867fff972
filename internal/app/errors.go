/**
 * @description
 * Error taxonomy for the settlement core. Business rejections and external
 * failures are distinct sentinel errors so the API layer can map them to
 * non-5xx business responses versus retryable gateway failures.
 */

package app

import "errors"

var (
	// ErrUnsupportedAsset means the asset symbol is not in the closed
	// conversion table. Fail fast; not retryable.
	ErrUnsupportedAsset = errors.New("asset is not supported for conversion")

	// ErrPriceUnavailable means the price-reference service returned no USD
	// price for a requested identifier. External failure; safe to retry with
	// backoff.
	ErrPriceUnavailable = errors.New("price unavailable from reference service")

	// ErrInsufficientLiquidity is a business rejection: the treasury cannot
	// currently fulfil the receive side of the swap. Not a system error.
	ErrInsufficientLiquidity = errors.New("treasury has insufficient liquidity for swap")

	// ErrTransferExecution means the transfer-execution collaborator call
	// itself failed (network, timeout, rejection). Any dependent second leg
	// must not be issued after it.
	ErrTransferExecution = errors.New("transfer execution failed")

	// ErrSwapIncomplete means leg one of a swap moved funds but leg two
	// could not be issued. A compensation event has been published; the
	// outcome must be treated as pending reconciliation, never as success.
	ErrSwapIncomplete = errors.New("swap incomplete: first leg executed, second leg failed")

	// ErrAmountBelowFee is a business rejection: the requested withdrawal
	// does not cover the flat treasury fee.
	ErrAmountBelowFee = errors.New("requested amount does not cover the treasury fee")
)
