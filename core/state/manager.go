package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/core/types"
	"nftmarket/native/market"
	"nftmarket/storage"
)

// Manager reads and writes marketplace state on a key-value backend. Values
// are RLP encoded; keys are keccak256 hashes of prefixed plain keys so that
// every record lives in a uniform, collision-resistant keyspace.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	listingPrefix   = []byte("market/listing:")
	accountPrefix   = []byte("market/account:")
	allowancePrefix = []byte("market/allowance:")
	assetPrefix     = []byte("market/asset:")
	rolePrefix      = []byte("market/role:")
	paramPrefix     = []byte("market/param:")
)

const (
	paramCommissionWallet  = "commission-wallet"
	paramCommissionPercent = "commission-percent"
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte(nil), prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) read(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) write(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// --- listings ---

// storedBid and storedListing are the RLP wire forms of the market types. The
// signed creation timestamp and the optional bid are flattened into
// RLP-friendly fields.
type storedBid struct {
	Bidder [20]byte
	Price  *big.Int
}

type storedListing struct {
	Seller          [20]byte
	AssetRef        [20]byte
	TokenID         *big.Int
	MinBidPrice     *big.Int
	RedemptionPrice *big.Int
	AuctionDuration uint64
	CreatedAt       uint64
	HasBid          bool
	Bid             storedBid
	Status          uint8
}

func listingKey(id [32]byte) []byte {
	return prefixedKey(listingPrefix, id[:])
}

// ListingPut validates and persists the listing under its deterministic
// identifier.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	stored := storedListing{
		Seller:          sanitized.Seller,
		AssetRef:        sanitized.AssetRef,
		TokenID:         sanitized.TokenID,
		MinBidPrice:     sanitized.MinBidPrice,
		RedemptionPrice: sanitized.RedemptionPrice,
		AuctionDuration: sanitized.AuctionDuration,
		CreatedAt:       uint64(sanitized.CreatedAt),
		Status:          uint8(sanitized.Status),
	}
	if sanitized.ActiveBid != nil {
		stored.HasBid = true
		stored.Bid = storedBid{Bidder: sanitized.ActiveBid.Bidder, Price: sanitized.ActiveBid.Price}
	} else {
		stored.Bid = storedBid{Price: big.NewInt(0)}
	}
	return m.write(listingKey(sanitized.ID), &stored)
}

// ListingGet retrieves the listing for the identifier. The boolean reports
// whether a record exists.
func (m *Manager) ListingGet(id [32]byte) (*market.Listing, bool, error) {
	var stored storedListing
	ok, err := m.read(listingKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	listing := &market.Listing{
		ID:              id,
		Seller:          stored.Seller,
		AssetRef:        stored.AssetRef,
		TokenID:         stored.TokenID,
		MinBidPrice:     stored.MinBidPrice,
		RedemptionPrice: stored.RedemptionPrice,
		AuctionDuration: stored.AuctionDuration,
		CreatedAt:       int64(stored.CreatedAt),
		Status:          market.ListingStatus(stored.Status),
	}
	if stored.HasBid {
		listing.ActiveBid = &market.Bid{Bidder: stored.Bid.Bidder, Price: stored.Bid.Price}
	}
	return listing, true, nil
}

// ListingDelete removes the listing record. Removed identifiers are
// indistinguishable from identifiers that were never listed.
func (m *Manager) ListingDelete(id [32]byte) error {
	return m.db.Delete(listingKey(id))
}

// --- accounts (fungible ledger backing) ---

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountKey(addr [20]byte) []byte {
	return prefixedKey(accountPrefix, addr[:])
}

// GetAccount loads the account for the address. Unknown addresses resolve to a
// zero-balance account.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.read(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return types.EnsureAccount(&types.Account{Nonce: stored.Nonce, Balance: stored.Balance}), nil
}

// PutAccount persists the account for the address.
func (m *Manager) PutAccount(addr [20]byte, acc *types.Account) error {
	acc = types.EnsureAccount(acc)
	if acc.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance not allowed")
	}
	return m.write(accountKey(addr), &storedAccount{Nonce: acc.Nonce, Balance: acc.Balance})
}

// --- allowances (fungible ledger backing) ---

func allowanceKey(owner, spender [20]byte) []byte {
	return prefixedKey(allowancePrefix, owner[:], spender[:])
}

// Allowance reports how much of owner's balance the spender may move.
func (m *Manager) Allowance(owner, spender [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.read(allowanceKey(owner, spender), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetAllowance stores the amount of owner's balance the spender may move.
func (m *Manager) SetAllowance(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative allowance not allowed")
	}
	return m.write(allowanceKey(owner, spender), amount)
}

// --- assets (non-fungible ledger backing) ---

// AssetRecord captures ownership and the optional single transfer approval of
// one token unit within an asset contract.
type AssetRecord struct {
	Owner       [20]byte
	Approved    [20]byte
	HasApproval bool
}

func assetKey(asset [20]byte, tokenID *big.Int) []byte {
	id := new(big.Int)
	if tokenID != nil {
		id.Set(tokenID)
	}
	return prefixedKey(assetPrefix, asset[:], id.Bytes())
}

// AssetPut persists the ownership record for a token unit.
func (m *Manager) AssetPut(asset [20]byte, tokenID *big.Int, record AssetRecord) error {
	return m.write(assetKey(asset, tokenID), &record)
}

// AssetGet retrieves the ownership record for a token unit.
func (m *Manager) AssetGet(asset [20]byte, tokenID *big.Int) (AssetRecord, bool, error) {
	var record AssetRecord
	ok, err := m.read(assetKey(asset, tokenID), &record)
	if err != nil || !ok {
		return AssetRecord{}, false, err
	}
	return record, true, nil
}

// --- roles ---

func roleKey(role string) []byte {
	return prefixedKey(rolePrefix, []byte(strings.TrimSpace(role)))
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	var members [][]byte
	if _, err := m.read(roleKey(trimmed), &members); err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr[:]...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return m.write(roleKey(trimmed), members)
}

// HasRole reports whether the provided address is associated with the
// specified role. Read errors resolve to false, matching the best-effort
// semantics the permission checks require.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	var members [][]byte
	ok, err := m.read(roleKey(role), &members)
	if err != nil || !ok {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][20]byte, error) {
	var members [][]byte
	if _, err := m.read(roleKey(role), &members); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		if len(member) != 20 {
			return nil, fmt.Errorf("state: malformed role member")
		}
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}

// --- commission params ---

func paramKey(name string) []byte {
	return prefixedKey(paramPrefix, []byte(name))
}

// CommissionWallet returns the configured commission wallet. The boolean
// reports whether an operator ever set one.
func (m *Manager) CommissionWallet() ([20]byte, bool, error) {
	var raw []byte
	ok, err := m.read(paramKey(paramCommissionWallet), &raw)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	if len(raw) != 20 {
		return [20]byte{}, false, fmt.Errorf("state: malformed commission wallet")
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, true, nil
}

// SetCommissionWallet stores the commission wallet address.
func (m *Manager) SetCommissionWallet(addr [20]byte) error {
	return m.write(paramKey(paramCommissionWallet), addr[:])
}

// CommissionPercent returns the configured commission percentage. The boolean
// reports whether an operator ever set one.
func (m *Manager) CommissionPercent() (uint32, bool, error) {
	var percent uint32
	ok, err := m.read(paramKey(paramCommissionPercent), &percent)
	if err != nil || !ok {
		return 0, false, err
	}
	return percent, true, nil
}

// SetCommissionPercent stores the commission percentage.
func (m *Manager) SetCommissionPercent(percent uint32) error {
	return m.write(paramKey(paramCommissionPercent), percent)
}
