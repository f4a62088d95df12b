package market

import "errors"

// Sentinel errors surfaced by the auction engine. Every error aborts the call;
// the engine never commits a partial fund movement or listing mutation.
var (
	// ErrListingNotFound is returned when no listing exists for the requested
	// identifier, including after a terminal settlement removed it.
	ErrListingNotFound = errors.New("market: listing not found")
	// ErrAlreadySettled is returned when a listing is found mid-settlement in a
	// non-active status.
	ErrAlreadySettled = errors.New("market: listing already settled")
	// ErrListingExists is returned when a live listing already covers the
	// (asset contract, token id) pair.
	ErrListingExists = errors.New("market: listing already exists for token")
	// ErrInsufficientFunds is returned when a buyer cannot cover the redemption
	// price.
	ErrInsufficientFunds = errors.New("market: insufficient funds")
	// ErrPermissionDenied is returned when the caller lacks the required
	// identity or role for the entry point.
	ErrPermissionDenied = errors.New("market: permission denied")
	// ErrApprovalMissing is returned when the seller has not approved the
	// marketplace for the token transfer.
	ErrApprovalMissing = errors.New("market: transfer approval missing")
	// ErrInvalidPriceRelation is returned when redemption price does not exceed
	// the minimum bid, or an opening offer is below the minimum bid.
	ErrInvalidPriceRelation = errors.New("market: invalid price relation")
	// ErrInvalidDuration is returned when the auction duration is below the
	// configured floor.
	ErrInvalidDuration = errors.New("market: auction duration below minimum")
	// ErrOfferNotHigher is returned when a new offer does not strictly exceed
	// the standing bid.
	ErrOfferNotHigher = errors.New("market: offer not higher than previous")
	// ErrNoActiveOffer is returned when accepting an offer on a listing without
	// a standing bid.
	ErrNoActiveOffer = errors.New("market: no active offer")
	// ErrUnexpectedTransferAmount is returned when the defensive post-transfer
	// balance check around settlement fails.
	ErrUnexpectedTransferAmount = errors.New("market: unexpected transfer amount")
	// ErrInvalidCommissionPercent is returned when a commission percentage is
	// outside the allowed range.
	ErrInvalidCommissionPercent = errors.New("market: invalid commission percent")
	// ErrAuctionRunning is returned when finalization is attempted before the
	// auction window has elapsed.
	ErrAuctionRunning = errors.New("market: auction window not elapsed")
	// ErrSellerNotOwner is returned when settlement finds the seller no longer
	// holding the listed token.
	ErrSellerNotOwner = errors.New("market: seller no longer owns token")
)
