package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
	"github.com/K-Pomian/synthetify-protocol/internal/engine"
	"github.com/K-Pomian/synthetify-protocol/internal/service"
	"github.com/K-Pomian/synthetify-protocol/internal/store"
)

const testAdminKey = "admin-secret"

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router     http.Handler
	assetSvc   *service.AssetService
	webhookSvc *service.WebhookService
	accruer    *engine.Accruer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ls := store.NewAssetsListStore()
	ws := store.NewWebhookStore()

	webhookSvc := service.NewWebhookService(ws, ls, 5*time.Second)
	assetSvc := service.NewAssetService(ls, webhookSvc, testAdminKey, 0)

	// Long interval, no accrual during tests.
	accruer, err := engine.NewAccruer(time.Hour, decimal.FromInterestRate(10_000_000_000_000_000), time.Now())
	if err != nil {
		t.Fatalf("NewAccruer: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(assetSvc, webhookSvc, accruer, logger)

	return &testEnv{
		router:     router,
		assetSvc:   assetSvc,
		webhookSvc: webhookSvc,
		accruer:    accruer,
	}
}

// do sends a request with an optional JSON body and extra headers.
func (env *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, method, path, body, nil)
}

// doAdmin sends a JSON request carrying the admin key.
func (env *testEnv) doAdmin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, method, path, body, map[string]string{adminKeyHeader: testAdminKey})
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != code {
		t.Fatalf("expected error %q, got %q (%s)", code, resp.Error, resp.Message)
	}
}

// createList creates and initializes a list holding USD, SNY and xBTC,
// priced at slot 10. It returns the list ID.
func (env *testEnv) createList(t *testing.T) string {
	t.Helper()
	rr := env.doJSON(t, "POST", "/lists", map[string]any{"length": 5})
	expectStatus(t, rr, http.StatusCreated)
	var l map[string]any
	decodeJSON(t, rr, &l)
	id := l["list_id"].(string)

	rr = env.doAdmin(t, "POST", "/lists/"+id+"/initialize", map[string]any{
		"collateral_token":      "SNY",
		"collateral_token_feed": "feed-sny",
		"usd_token":             "USD",
	})
	expectStatus(t, rr, http.StatusOK)

	rr = env.doAdmin(t, "POST", "/lists/"+id+"/assets", map[string]any{
		"feed_address":  "feed-btc",
		"asset_address": "xBTC",
		"decimals":      10,
		"max_supply":    20_000_000_000,
	})
	expectStatus(t, rr, http.StatusCreated)

	rr = env.doJSON(t, "POST", "/lists/"+id+"/prices", map[string]any{
		"slot": 10,
		"prices": []map[string]any{
			{"feed_address": "feed-btc", "price": 500_000_000},
			{"feed_address": "feed-sny", "price": 20_000},
		},
	})
	expectStatus(t, rr, http.StatusOK)
	return id
}

// --- Healthz ---

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "GET", "/healthz", nil)
	expectStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected application/json, got %s", ct)
	}
}

// --- Assets list endpoints ---

func TestList_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/lists", map[string]any{"length": 3})
	expectStatus(t, rr, http.StatusCreated)

	var created map[string]any
	decodeJSON(t, rr, &created)
	id, _ := created["list_id"].(string)
	if id == "" {
		t.Fatal("expected list_id")
	}
	if created["initialized"] != false || created["capacity"] != float64(3) {
		t.Fatalf("unexpected list: %v", created)
	}
	if _, err := time.Parse(time.RFC3339, created["created_at"].(string)); err != nil {
		t.Fatalf("created_at not RFC 3339: %v", err)
	}

	rr = env.doJSON(t, "GET", "/lists/"+id, nil)
	expectStatus(t, rr, http.StatusOK)

	expectError(t, env.doJSON(t, "GET", "/lists/missing", nil), http.StatusNotFound, "assets_list_not_found")
	expectError(t, env.doJSON(t, "POST", "/lists", map[string]any{"length": 1}), http.StatusBadRequest, "validation_error")
}

func TestList_InitializedAssets(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doJSON(t, "GET", "/lists/"+id, nil)
	expectStatus(t, rr, http.StatusOK)

	var resp struct {
		Initialized bool `json:"initialized"`
		LastSlot    int  `json:"last_slot"`
		Assets      []struct {
			AssetAddress string `json:"asset_address"`
			Price        string `json:"price"`
			MaxSupply    string `json:"max_supply"`
		} `json:"assets"`
	}
	decodeJSON(t, rr, &resp)

	if !resp.Initialized || resp.LastSlot != 10 {
		t.Fatalf("unexpected list: %+v", resp)
	}
	want := []struct{ address, price string }{
		{"SNY", "2.0000"},
		{"USD", "1.0000"},
		{"xBTC", "50000.0000"},
	}
	if len(resp.Assets) != len(want) {
		t.Fatalf("expected %d assets, got %d", len(want), len(resp.Assets))
	}
	for i, w := range want {
		if resp.Assets[i].AssetAddress != w.address || resp.Assets[i].Price != w.price {
			t.Errorf("asset %d = %+v, want %s at %s", i, resp.Assets[i], w.address, w.price)
		}
	}
	if resp.Assets[1].MaxSupply != "18446744073709.551615" {
		t.Errorf("usd max_supply = %s", resp.Assets[1].MaxSupply)
	}
}

func TestAdminRoutes_RequireKey(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   map[string]any
	}{
		{"initialize", "POST", "/lists/" + id + "/initialize", map[string]any{
			"collateral_token": "SNY", "collateral_token_feed": "feed-sny", "usd_token": "USD",
		}},
		{"add asset", "POST", "/lists/" + id + "/assets", map[string]any{
			"feed_address": "feed-eth", "asset_address": "xETH", "decimals": 9, "max_supply": 1,
		}},
		{"max supply", "PUT", "/lists/" + id + "/assets/xBTC/max-supply", map[string]any{"max_supply": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body, map[string]string{adminKeyHeader: "wrong"})
			expectError(t, rr, http.StatusForbidden, "unauthorized")

			rr = env.doJSON(t, tt.method, tt.path, tt.body)
			expectError(t, rr, http.StatusForbidden, "unauthorized")
		})
	}
}

func TestAsset_Get(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doJSON(t, "GET", "/lists/"+id+"/assets/xBTC", nil)
	expectStatus(t, rr, http.StatusOK)
	var a map[string]any
	decodeJSON(t, rr, &a)
	if a["asset_address"] != "xBTC" {
		t.Fatalf("asset_address = %v, want xBTC", a["asset_address"])
	}
	if a["price"] != "50000.0000" {
		t.Fatalf("price = %v, want 50000.0000", a["price"])
	}
	if a["max_supply"] != "2.0000000000" {
		t.Fatalf("max_supply = %v, want 2.0000000000", a["max_supply"])
	}

	expectError(t, env.doJSON(t, "GET", "/lists/"+id+"/assets/xETH", nil), http.StatusNotFound, "asset_not_found")
	expectError(t, env.doJSON(t, "GET", "/lists/missing/assets/xBTC", nil), http.StatusNotFound, "assets_list_not_found")
}

func TestList_InitializeTwice(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doAdmin(t, "POST", "/lists/"+id+"/initialize", map[string]any{
		"collateral_token": "SNY", "collateral_token_feed": "feed-sny", "usd_token": "USD",
	})
	expectError(t, rr, http.StatusConflict, "assets_list_already_initialized")
}

func TestAsset_AddDuplicateAndFull(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doAdmin(t, "POST", "/lists/"+id+"/assets", map[string]any{
		"feed_address": "feed-btc2", "asset_address": "xBTC", "decimals": 10, "max_supply": 1,
	})
	expectError(t, rr, http.StatusConflict, "asset_already_exists")

	rr = env.doAdmin(t, "POST", "/lists/"+id+"/assets", map[string]any{
		"feed_address": "feed-eth", "asset_address": "xETH", "decimals": 9, "max_supply": 1,
	})
	expectStatus(t, rr, http.StatusCreated)

	rr = env.doAdmin(t, "POST", "/lists/"+id+"/assets", map[string]any{
		"feed_address": "feed-sol", "asset_address": "xSOL", "decimals": 9, "max_supply": 1,
	})
	expectStatus(t, rr, http.StatusCreated)

	rr = env.doAdmin(t, "POST", "/lists/"+id+"/assets", map[string]any{
		"feed_address": "feed-ada", "asset_address": "xADA", "decimals": 6, "max_supply": 1,
	})
	expectError(t, rr, http.StatusConflict, "assets_list_full")
}

func TestAsset_SetMaxSupply(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doAdmin(t, "PUT", "/lists/"+id+"/assets/xBTC/max-supply", map[string]any{"max_supply": 5_000_000_000})
	expectStatus(t, rr, http.StatusOK)

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["max_supply"] != "0.5000000000" {
		t.Fatalf("max_supply = %v, want \"0.5000000000\"", resp["max_supply"])
	}

	rr = env.doAdmin(t, "PUT", "/lists/"+id+"/assets/xETH/max-supply", map[string]any{"max_supply": 1})
	expectError(t, rr, http.StatusNotFound, "asset_not_found")
}

func TestPrices_UnknownFeedRejectsAll(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doJSON(t, "POST", "/lists/"+id+"/prices", map[string]any{
		"slot": 11,
		"prices": []map[string]any{
			{"feed_address": "feed-btc", "price": 1},
			{"feed_address": "feed-nope", "price": 1},
		},
	})
	expectError(t, rr, http.StatusNotFound, "asset_not_found")

	rr = env.doJSON(t, "GET", "/lists/"+id+"/assets/xBTC/value?amount=10000000000", nil)
	expectStatus(t, rr, http.StatusOK)
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["price"] != "50000.0000" {
		t.Fatalf("price changed by rejected update: %v", resp["price"])
	}
}

func TestSupply_MintAndBurn(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doJSON(t, "POST", "/lists/"+id+"/assets/xBTC/mint", map[string]any{"amount": 15_000_000_000})
	expectStatus(t, rr, http.StatusOK)
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["supply"] != "1.5000000000" {
		t.Fatalf("supply = %v, want \"1.5000000000\"", resp["supply"])
	}

	rr = env.doJSON(t, "POST", "/lists/"+id+"/assets/xBTC/mint", map[string]any{"amount": 6_000_000_000})
	expectError(t, rr, http.StatusUnprocessableEntity, "max_supply_exceeded")

	rr = env.doJSON(t, "POST", "/lists/"+id+"/assets/xBTC/burn", map[string]any{"amount": 16_000_000_000})
	expectError(t, rr, http.StatusUnprocessableEntity, "insufficient_supply")

	rr = env.doJSON(t, "POST", "/lists/"+id+"/assets/xBTC/burn", map[string]any{"amount": 15_000_000_000})
	expectStatus(t, rr, http.StatusOK)
}

func TestValue(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doJSON(t, "GET", "/lists/"+id+"/assets/xBTC/value?amount=1", nil)
	expectStatus(t, rr, http.StatusOK)

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["amount"] != "0.0000000001" || resp["usd_value"] != "0.000005" {
		t.Fatalf("unexpected valuation: %v", resp)
	}

	expectError(t, env.doJSON(t, "GET", "/lists/"+id+"/assets/xBTC/value", nil), http.StatusBadRequest, "validation_error")
	expectError(t, env.doJSON(t, "GET", "/lists/"+id+"/assets/xBTC/value?amount=-1", nil), http.StatusBadRequest, "validation_error")
}

func TestQuote(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doJSON(t, "GET", "/lists/"+id+"/quote?from=xBTC&to=SNY&amount=10000000000&fee=30", nil)
	expectStatus(t, rr, http.StatusOK)

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["usd_value"] != "50000.000000" || resp["fee"] != "150.000000" || resp["amount_out"] != "24925.000000" {
		t.Fatalf("unexpected quote: %v", resp)
	}

	expectError(t, env.doJSON(t, "GET", "/lists/"+id+"/quote?from=xBTC&amount=1", nil), http.StatusBadRequest, "validation_error")
	expectError(t, env.doJSON(t, "GET", "/lists/"+id+"/quote?from=xBTC&to=SNY&amount=1&fee=70000", nil), http.StatusBadRequest, "validation_error")
}

func TestQuote_UnpricedAssetIsArithmeticError(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doAdmin(t, "POST", "/lists/"+id+"/assets", map[string]any{
		"feed_address": "feed-eth", "asset_address": "xETH", "decimals": 9, "max_supply": 1,
	})
	expectStatus(t, rr, http.StatusCreated)

	rr = env.doJSON(t, "GET", "/lists/"+id+"/quote?from=USD&to=xETH&amount=1000000", nil)
	expectError(t, rr, http.StatusUnprocessableEntity, "arithmetic_error")
}

// --- Debt endpoints ---

func TestDebt_BorrowAndRepay(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/debt/borrow", map[string]any{"amount": "12.5"})
	expectStatus(t, rr, http.StatusOK)
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["debt"] != "12.500000" || resp["rate"] != "0.010000000000000000" {
		t.Fatalf("unexpected pool: %v", resp)
	}

	rr = env.doJSON(t, "POST", "/debt/repay", map[string]any{"amount": "2.5"})
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "GET", "/debt", nil)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &resp)
	if resp["debt"] != "10.000000" {
		t.Fatalf("debt = %v, want \"10.000000\"", resp["debt"])
	}

	rr = env.doJSON(t, "POST", "/debt/repay", map[string]any{"amount": "10.000001"})
	expectError(t, rr, http.StatusUnprocessableEntity, "arithmetic_error")
}

func TestDebt_InvalidAmount(t *testing.T) {
	env := newTestEnv(t)

	for _, amount := range []string{"", "1.0000001", "-1", "abc", "1e6"} {
		rr := env.doJSON(t, "POST", "/debt/borrow", map[string]any{"amount": amount})
		expectError(t, rr, http.StatusBadRequest, "validation_error")
	}
}

// --- Webhook endpoints ---

func TestWebhook_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)
	path := "/lists/" + id + "/webhooks"

	body := map[string]any{
		"url":    "https://example.com/hooks",
		"events": []string{"price.updated", "max_supply.changed"},
	}
	rr := env.doJSON(t, "POST", path, body)
	expectStatus(t, rr, http.StatusCreated)

	// Same registration again is idempotent.
	rr = env.doJSON(t, "POST", path, body)
	expectStatus(t, rr, http.StatusOK)

	rr = env.doJSON(t, "GET", path, nil)
	expectStatus(t, rr, http.StatusOK)
	var subs subscriptionsResponse
	decodeJSON(t, rr, &subs)
	if subs.ListID != id {
		t.Fatalf("list_id = %q, want %q", subs.ListID, id)
	}
	if len(subs.Webhooks) != 2 {
		t.Fatalf("expected 2 webhooks, got %d", len(subs.Webhooks))
	}

	rr = env.doJSON(t, "DELETE", path+"/"+subs.Webhooks[0].WebhookID, nil)
	expectStatus(t, rr, http.StatusNoContent)

	rr = env.doJSON(t, "DELETE", path+"/"+subs.Webhooks[0].WebhookID, nil)
	expectError(t, rr, http.StatusNotFound, "webhook_not_found")

	rr = env.doJSON(t, "GET", path, nil)
	decodeJSON(t, rr, &subs)
	if len(subs.Webhooks) != 1 {
		t.Fatalf("expected 1 webhook after delete, got %d", len(subs.Webhooks))
	}
}

func TestWebhook_EmptyListRendersArray(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	rr := env.doJSON(t, "GET", "/lists/"+id+"/webhooks", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"webhooks":[]`) {
		t.Fatalf("expected empty webhooks array, got %s", rr.Body.String())
	}
}

func TestWebhook_DeleteFromOtherList(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createList(t)
	other := env.createList(t)

	rr := env.doJSON(t, "POST", "/lists/"+owner+"/webhooks", map[string]any{
		"url":    "https://example.com/hooks",
		"events": []string{"price.updated"},
	})
	expectStatus(t, rr, http.StatusCreated)
	var subs subscriptionsResponse
	decodeJSON(t, rr, &subs)
	webhookID := subs.Webhooks[0].WebhookID

	rr = env.doJSON(t, "DELETE", "/lists/"+other+"/webhooks/"+webhookID, nil)
	expectError(t, rr, http.StatusNotFound, "webhook_not_found")

	rr = env.doJSON(t, "DELETE", "/lists/"+owner+"/webhooks/"+webhookID, nil)
	expectStatus(t, rr, http.StatusNoContent)
}

func TestWebhook_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.createList(t)

	expectError(t, env.doJSON(t, "GET", "/lists/missing/webhooks", nil), http.StatusNotFound, "assets_list_not_found")

	rr := env.doJSON(t, "POST", "/lists/missing/webhooks", map[string]any{
		"url":    "https://example.com/hooks",
		"events": []string{"price.updated"},
	})
	expectError(t, rr, http.StatusNotFound, "assets_list_not_found")

	rr = env.doJSON(t, "POST", "/lists/"+id+"/webhooks", map[string]any{
		"url":    "http://example.com/hooks",
		"events": []string{"price.updated"},
	})
	expectError(t, rr, http.StatusBadRequest, "validation_error")

	rr = env.doJSON(t, "POST", "/lists/"+id+"/webhooks", map[string]any{
		"url":    "https://example.com/hooks",
		"events": []string{"trade.executed"},
	})
	expectError(t, rr, http.StatusBadRequest, "validation_error")

	// The list comes from the path, a body field is rejected.
	rr = env.doJSON(t, "POST", "/lists/"+id+"/webhooks", map[string]any{
		"list_id": id,
		"url":     "https://example.com/hooks",
		"events":  []string{"price.updated"},
	})
	expectError(t, rr, http.StatusBadRequest, "invalid_request")
}

// --- Middleware ---

func TestContentType_Required(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doRaw(t, "POST", "/lists", "text/plain", `{"length":3}`)
	expectError(t, rr, http.StatusBadRequest, "invalid_request")

	rr = env.doRaw(t, "POST", "/lists", "application/json", `{"length":3,"extra":true}`)
	expectError(t, rr, http.StatusBadRequest, "invalid_request")
}
