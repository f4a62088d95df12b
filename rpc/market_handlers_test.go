package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http/httptest"
	"testing"

	"nftmarket/core/state"
	"nftmarket/ledger"
	"nftmarket/native/market"
	"nftmarket/storage"
)

type testEnv struct {
	server *Server
	tokens *ledger.TokenBook
	assets *ledger.AssetBook

	market   [20]byte
	operator [20]byte
	wallet   [20]byte
	seller   [20]byte
	asset    [20]byte
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func hexAddr(fill byte) string {
	return fmt.Sprintf("0x%x", addr(fill))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	env := &testEnv{
		tokens:   ledger.NewTokenBook(manager),
		assets:   ledger.NewAssetBook(manager),
		market:   addr(0xEE),
		operator: addr(0x0F),
		wallet:   addr(0xCC),
		seller:   addr(0x01),
		asset:    addr(0xA0),
	}
	if err := manager.SetRole(market.RoleOperator, env.operator); err != nil {
		t.Fatalf("grant role: %v", err)
	}
	if err := manager.SetCommissionWallet(env.wallet); err != nil {
		t.Fatalf("set wallet: %v", err)
	}

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetTokenLedger(env.tokens)
	engine.SetAssetLedger(env.assets)
	engine.SetMarketAddress(env.market)

	env.server = NewServer(engine)
	return env
}

func (env *testEnv) listToken(t *testing.T, tokenID int64) {
	t.Helper()
	id := big.NewInt(tokenID)
	if err := env.assets.Mint(env.asset, id, env.seller); err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if err := env.assets.Approve(env.asset, env.seller, env.market, id); err != nil {
		t.Fatalf("approve market: %v", err)
	}
}

func (env *testEnv) fund(t *testing.T, who [20]byte, amount int64) {
	t.Helper()
	if err := env.tokens.Mint(who, big.NewInt(amount)); err != nil {
		t.Fatalf("mint funds: %v", err)
	}
	if err := env.tokens.Approve(who, env.market, big.NewInt(amount)); err != nil {
		t.Fatalf("approve funds: %v", err)
	}
}

func (env *testEnv) call(t *testing.T, method string, params interface{}) RPCResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []json.RawMessage{raw},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.server.handle(rec, req)

	var resp RPCResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeListing(t *testing.T, resp RPCResponse) listingJSON {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	var listing listingJSON
	if err := json.Unmarshal(raw, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	return listing
}

func TestCreateAndGetListing(t *testing.T) {
	env := newTestEnv(t)
	env.listToken(t, 7)

	resp := env.call(t, "market_createListing", marketListingParams{
		Caller:          hexAddr(0x01),
		AssetContract:   hexAddr(0xA0),
		TokenID:         "7",
		MinBidPrice:     "30",
		RedemptionPrice: "100",
		AuctionDuration: 86400,
	})
	created := decodeListing(t, resp)
	if created.Status != "active" || created.Bid != nil {
		t.Fatalf("unexpected listing: %+v", created)
	}
	if created.EndTime != created.CreatedAt+86400 {
		t.Fatalf("end time mismatch: %+v", created)
	}

	got := decodeListing(t, env.call(t, "market_getListing", marketGetParams{ID: created.ID}))
	if got.Seller != created.Seller || got.RedemptionPrice != "100" {
		t.Fatalf("lookup mismatch: %+v", got)
	}
}

func TestOfferAndBuyFlow(t *testing.T) {
	env := newTestEnv(t)
	env.listToken(t, 7)
	env.call(t, "market_createListing", marketListingParams{
		Caller:          hexAddr(0x01),
		AssetContract:   hexAddr(0xA0),
		TokenID:         "7",
		MinBidPrice:     "30",
		RedemptionPrice: "100",
		AuctionDuration: 86400,
	})

	bidder := addr(0x11)
	buyer := addr(0x44)
	env.fund(t, bidder, 40)
	env.fund(t, buyer, 100)

	resp := env.call(t, "market_makeOffer", marketOfferParams{
		Caller:        hexAddr(0x11),
		AssetContract: hexAddr(0xA0),
		TokenID:       "7",
		Price:         "40",
	})
	withBid := decodeListing(t, resp)
	if withBid.Bid == nil || withBid.Bid.Price != "40" {
		t.Fatalf("bid not recorded: %+v", withBid)
	}

	resp = env.call(t, "market_buyListing", marketPairParams{
		Caller:        hexAddr(0x44),
		AssetContract: hexAddr(0xA0),
		TokenID:       "7",
	})
	if resp.Error != nil {
		t.Fatalf("buy failed: %+v", resp.Error)
	}

	// Default commission of 3 percent on the 100 redemption price.
	sellerBal, err := env.tokens.BalanceOf(env.seller)
	if err != nil {
		t.Fatalf("seller balance: %v", err)
	}
	if sellerBal.Cmp(big.NewInt(97)) != 0 {
		t.Fatalf("seller balance: got %s", sellerBal)
	}
	walletBal, err := env.tokens.BalanceOf(env.wallet)
	if err != nil {
		t.Fatalf("wallet balance: %v", err)
	}
	if walletBal.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("wallet balance: got %s", walletBal)
	}
	bidderBal, err := env.tokens.BalanceOf(bidder)
	if err != nil {
		t.Fatalf("bidder balance: %v", err)
	}
	if bidderBal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bidder must be refunded: got %s", bidderBal)
	}

	resp = env.call(t, "market_getListing", marketGetParams{ID: withBid.ID})
	if resp.Error == nil || resp.Error.Code != codeMarketNotFound {
		t.Fatalf("settled listing lookup: %+v", resp.Error)
	}
}

func TestCommissionAdminMethods(t *testing.T) {
	env := newTestEnv(t)

	resp := env.call(t, "market_setCommissionPercent", marketPercentParams{Caller: hexAddr(0x01), Percent: 10})
	if resp.Error == nil || resp.Error.Code != codeMarketForbidden {
		t.Fatalf("non-operator: %+v", resp.Error)
	}
	resp = env.call(t, "market_setCommissionPercent", marketPercentParams{Caller: hexAddr(0x0F), Percent: 10})
	if resp.Error != nil {
		t.Fatalf("operator set percent: %+v", resp.Error)
	}
	resp = env.call(t, "market_setCommissionPercent", marketPercentParams{Caller: hexAddr(0x0F), Percent: 90})
	if resp.Error == nil || resp.Error.Code != codeMarketInvalidParams {
		t.Fatalf("over-max percent: %+v", resp.Error)
	}

	resp = env.call(t, "market_setCommissionWallet", marketWalletParams{Caller: hexAddr(0x0F), Wallet: hexAddr(0xDD)})
	if resp.Error != nil {
		t.Fatalf("operator set wallet: %+v", resp.Error)
	}
}

func TestInvalidParams(t *testing.T) {
	env := newTestEnv(t)

	resp := env.call(t, "market_createListing", marketListingParams{Caller: "nothex"})
	if resp.Error == nil || resp.Error.Code != codeMarketInvalidParams {
		t.Fatalf("bad caller: %+v", resp.Error)
	}

	resp = env.call(t, "market_getListing", marketGetParams{ID: "0x01"})
	if resp.Error == nil || resp.Error.Code != codeMarketInvalidParams {
		t.Fatalf("short id: %+v", resp.Error)
	}

	resp = env.call(t, "market_unknown", struct{}{})
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown method: %+v", resp.Error)
	}
}

func TestAuthTokenGatesMutations(t *testing.T) {
	env := newTestEnv(t)
	env.server.authToken = "secret"
	env.listToken(t, 7)

	params := marketListingParams{
		Caller:          hexAddr(0x01),
		AssetContract:   hexAddr(0xA0),
		TokenID:         "7",
		MinBidPrice:     "30",
		RedemptionPrice: "100",
		AuctionDuration: 86400,
	}

	resp := env.call(t, "market_createListing", params)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("missing token: %+v", resp.Error)
	}

	raw, _ := json.Marshal(params)
	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "market_createListing",
		"params":  []json.RawMessage{raw},
	})
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	env.server.handle(rec, req)

	var authed RPCResponse
	if err := json.NewDecoder(rec.Body).Decode(&authed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if authed.Error != nil {
		t.Fatalf("authorized call failed: %+v", authed.Error)
	}
}
