package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/state"
	"nftmarket/core/types"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the sender's
	// balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrInsufficientAllowance is returned when a delegated transfer exceeds
	// the allowance granted to the spender.
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
)

// TokenBook is a state-backed reference implementation of the marketplace's
// fungible-token collaborator. It mirrors the transfer/approve semantics the
// engine expects from an external ledger; it is not a full token contract and
// trusts its caller to have resolved identities.
type TokenBook struct {
	state *state.Manager
}

// NewTokenBook creates a token book over the provided state manager.
func NewTokenBook(st *state.Manager) *TokenBook {
	return &TokenBook{state: st}
}

// BalanceOf returns the balance of the address. Unknown addresses hold zero.
func (b *TokenBook) BalanceOf(addr [20]byte) (*big.Int, error) {
	acc, err := b.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

// Transfer moves amount from one address to another.
func (b *TokenBook) Transfer(from, to [20]byte, amount *big.Int) error {
	return b.move(from, to, amount)
}

// TransferFrom moves amount of owner's balance to the recipient, consuming
// the allowance owner granted to spender.
func (b *TokenBook) TransferFrom(spender, owner, to [20]byte, amount *big.Int) error {
	amt := normalizeAmount(amount)
	if amt.Sign() == 0 {
		return nil
	}
	allowance, err := b.state.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amt) < 0 {
		return ErrInsufficientAllowance
	}
	if err := b.move(owner, to, amt); err != nil {
		return err
	}
	return b.state.SetAllowance(owner, spender, new(big.Int).Sub(allowance, amt))
}

// Approve grants the spender the right to move up to amount of owner's
// balance.
func (b *TokenBook) Approve(owner, spender [20]byte, amount *big.Int) error {
	return b.state.SetAllowance(owner, spender, normalizeAmount(amount))
}

// Allowance reports the remaining amount the spender may move on behalf of
// owner.
func (b *TokenBook) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return b.state.Allowance(owner, spender)
}

// Mint credits freshly issued tokens to the address. Used for bootstrapping
// local deployments and tests.
func (b *TokenBook) Mint(to [20]byte, amount *big.Int) error {
	amt := normalizeAmount(amount)
	acc, err := b.state.GetAccount(to)
	if err != nil {
		return err
	}
	acc = types.EnsureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amt)
	return b.state.PutAccount(to, acc)
}

func (b *TokenBook) move(from, to [20]byte, amount *big.Int) error {
	amt := normalizeAmount(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("ledger: negative transfer amount")
	}
	if amt.Sign() == 0 {
		return nil
	}
	fromAcc, err := b.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	toAcc, err := b.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := b.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return b.state.PutAccount(to, toAcc)
}

func normalizeAmount(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amount)
}
