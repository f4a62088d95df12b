package ledger

import (
	"errors"
	"math/big"

	"nftmarket/core/state"
)

var (
	// ErrUnknownToken is returned when a token unit has never been minted.
	ErrUnknownToken = errors.New("ledger: unknown token")
	// ErrNotOwner is returned when a transfer names a sender that does not own
	// the token.
	ErrNotOwner = errors.New("ledger: sender does not own token")
)

// AssetBook is a state-backed reference implementation of the marketplace's
// non-fungible-token collaborator. Each token unit carries its owner and at
// most one approved transfer delegate, matching the approval model the engine
// checks at listing time.
type AssetBook struct {
	state *state.Manager
}

// NewAssetBook creates an asset book over the provided state manager.
func NewAssetBook(st *state.Manager) *AssetBook {
	return &AssetBook{state: st}
}

// OwnerOf resolves the current owner of the token unit.
func (b *AssetBook) OwnerOf(asset [20]byte, tokenID *big.Int) ([20]byte, bool, error) {
	record, ok, err := b.state.AssetGet(asset, tokenID)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return record.Owner, true, nil
}

// Approved resolves the transfer delegate the owner granted for the token
// unit, if any. The owner argument guards against stale approvals surviving an
// ownership change.
func (b *AssetBook) Approved(asset [20]byte, owner [20]byte, tokenID *big.Int) ([20]byte, bool, error) {
	record, ok, err := b.state.AssetGet(asset, tokenID)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	if record.Owner != owner || !record.HasApproval {
		return [20]byte{}, false, nil
	}
	return record.Approved, true, nil
}

// TransferAsset moves the token unit from its owner to the recipient and
// clears any standing approval.
func (b *AssetBook) TransferAsset(asset [20]byte, from, to [20]byte, tokenID *big.Int) error {
	record, ok, err := b.state.AssetGet(asset, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownToken
	}
	if record.Owner != from {
		return ErrNotOwner
	}
	return b.state.AssetPut(asset, tokenID, state.AssetRecord{Owner: to})
}

// Approve grants a transfer delegate for the token unit. Only the current
// owner's approval is recorded.
func (b *AssetBook) Approve(asset [20]byte, owner, delegate [20]byte, tokenID *big.Int) error {
	record, ok, err := b.state.AssetGet(asset, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownToken
	}
	if record.Owner != owner {
		return ErrNotOwner
	}
	record.Approved = delegate
	record.HasApproval = true
	return b.state.AssetPut(asset, tokenID, record)
}

// Mint records a freshly issued token unit for the owner. Used for
// bootstrapping local deployments and tests.
func (b *AssetBook) Mint(asset [20]byte, tokenID *big.Int, owner [20]byte) error {
	return b.state.AssetPut(asset, tokenID, state.AssetRecord{Owner: owner})
}
