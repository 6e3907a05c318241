package api_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/bcnelson/activation-key-server/internal/api"
	"github.com/bcnelson/activation-key-server/internal/api/handler"
	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/keygen"
	"github.com/bcnelson/activation-key-server/internal/logging"
	"github.com/bcnelson/activation-key-server/internal/metrics"
	"github.com/bcnelson/activation-key-server/internal/service"
	"github.com/bcnelson/activation-key-server/internal/storage/memory"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

// testServer creates a test server with in-memory storage
type testServer struct {
	handler      http.Handler
	store        *memory.Store
	bootstrapKey string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	bootstrapKey := "test-bootstrap-key"
	logger := logging.Discard()
	m := metrics.New()

	admins := service.NewAdminService(store, logger, bcrypt.MinCost)
	if err := admins.Bootstrap(context.Background(), service.BootstrapConfig{
		APIKey:   bootstrapKey,
		Password: "admin",
	}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	auth, err := service.NewAuthService(store, m, logger, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	router := api.NewRouter(api.Services{
		Keys:    service.NewKeyService(store, keygen.New(), m, logger, 1000),
		Auth:    auth,
		Reports: service.NewReportService(store, logger),
		Catalog: service.NewCatalogService(store, logger),
		Admins:  admins,
	}, handler.KeyDefaults{Prefix: "ECP", KeyType: "month"}, m, logger)

	return &testServer{
		handler:      router,
		store:        store,
		bootstrapKey: bootstrapKey,
	}
}

func (ts *testServer) request(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = strings.NewReader(b)
	default:
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-KEY", apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var resp envelope[T]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return resp
}

func (ts *testServer) generate(t *testing.T, body any) domain.GenerateKeysResponse {
	t.Helper()
	rr := ts.request("POST", "/api/keys/generate", body, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	return decode[domain.GenerateKeysResponse](t, rr).Data
}

func expectFailure(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Errorf("Expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	resp := decode[json.RawMessage](t, rr)
	if resp.Success {
		t.Error("Expected success false")
	}
	if resp.Message != message {
		t.Errorf("Expected message %q, got %q", message, resp.Message)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/api/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	resp := decode[domain.HealthStatus](t, rr)
	if !resp.Success || resp.Data.Store != "ok" {
		t.Errorf("Unexpected health response: %s", rr.Body.String())
	}
	if resp.Data.Timestamp.IsZero() {
		t.Error("Expected timestamp")
	}

	ts.store.SetPingError(errors.New("connection refused"))
	rr = ts.request("GET", "/api/health", nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	// Request without key
	rr := ts.request("GET", "/api/keys", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"success":false,"message":"Unauthorized"}` {
		t.Errorf("Unexpected body: %s", got)
	}

	// Request with invalid key
	rr = ts.request("GET", "/api/keys", nil, "invalid-key")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Bearer token is accepted as well
	req := httptest.NewRequest("GET", "/api/keys", nil)
	req.Header.Set("Authorization", "Bearer "+ts.bootstrapKey)
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer token, got %d", rr.Code)
	}

	// Public endpoints need no key
	for _, path := range []string{"/api/key-types", "/api/health"} {
		if rr := ts.request("GET", path, nil, ""); rr.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, rr.Code)
		}
	}
}

func TestSuperadminRequired(t *testing.T) {
	ts := newTestServer(t)

	// Missing key is forbidden, not unauthorized
	expectFailure(t, ts.request("GET", "/api/admins", nil, ""), http.StatusForbidden, domain.MsgSuperadminRequired)

	rr := ts.request("POST", "/api/admins", domain.CreateAdminRequest{
		Username: "operator",
		Password: "password123",
	}, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	operator := decode[domain.CreateAdminResponse](t, rr).Data
	if operator.APIKey == "" {
		t.Fatal("Expected API key to be returned on creation")
	}

	// Regular admins can use admin routes but not superadmin routes
	if rr := ts.request("GET", "/api/keys", nil, operator.APIKey); rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	expectFailure(t, ts.request("GET", "/api/admins", nil, operator.APIKey), http.StatusForbidden, domain.MsgSuperadminRequired)
	expectFailure(t, ts.request("POST", "/api/key-types", domain.CreateKeyTypeRequest{Name: "x", DurationDays: 1}, operator.APIKey),
		http.StatusForbidden, domain.MsgSuperadminRequired)
}

func TestGenerateKeys(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.generate(t, map[string]any{"prefix": "TST", "key_type": "month", "count": 5, "customer_name": "Acme"})
	if resp.Count != 5 || len(resp.Keys) != 5 {
		t.Fatalf("Expected 5 keys, got %d", len(resp.Keys))
	}
	pattern := regexp.MustCompile(`^TST-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
	for _, k := range resp.Keys {
		if !pattern.MatchString(k) {
			t.Errorf("Key %q does not match format", k)
		}
		stored, err := ts.store.FindKeyByValue(context.Background(), k)
		if err != nil {
			t.Fatalf("key %s not stored: %v", k, err)
		}
		if stored.KeyType != "month" || stored.ExpiryDate == nil {
			t.Errorf("Unexpected stored key: %+v", stored)
		}
		if stored.ExpiryDate.Sub(stored.CreatedAt).Hours() != 30*24 {
			t.Errorf("Expected 30 day expiry, got %v", stored.ExpiryDate.Sub(stored.CreatedAt))
		}
	}
	if resp.CustomerName == nil || *resp.CustomerName != "Acme" {
		t.Error("Expected customer name to be echoed")
	}
}

func TestGenerateKeys_Defaults(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.generate(t, nil)
	if resp.Count != 1 || resp.KeyType != "month" {
		t.Errorf("Expected 1 month key, got %d %s", resp.Count, resp.KeyType)
	}
	if !strings.HasPrefix(resp.Keys[0], "ECP-") {
		t.Errorf("Expected default prefix, got %s", resp.Keys[0])
	}

	// Count may be a numeric string
	resp = ts.generate(t, `{"count":"3"}`)
	if resp.Count != 3 {
		t.Errorf("Expected 3 keys, got %d", resp.Count)
	}
}

func TestGenerateKeys_UncataloguedType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.generate(t, map[string]any{"key_type": "Gold Plan", "prefix": "MY_APP", "count": 1})
	if resp.Count != 1 || resp.KeyType != "Gold Plan" {
		t.Fatalf("Expected 1 Gold Plan key, got %d %q", resp.Count, resp.KeyType)
	}
	if !strings.HasPrefix(resp.Keys[0], "MY_APP-") {
		t.Errorf("Expected MY_APP prefix, got %s", resp.Keys[0])
	}

	rr := ts.request("GET", "/api/keys/"+resp.Keys[0], nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var raw struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got := string(raw.Data["expiry_date"]); got != "null" {
		t.Errorf("Expected expiry_date null, got %s", got)
	}
	if got := string(raw.Data["type"]); got != `"Gold Plan"` {
		t.Errorf("Expected type \"Gold Plan\", got %s", got)
	}
}

func TestGenerateKeys_Rejected(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"count not integer", `{"count":"abc"}`, http.StatusBadRequest, domain.MsgCountNotInteger},
		{"count fractional", `{"count":2.5}`, http.StatusBadRequest, domain.MsgCountNotInteger},
		{"count too large", `{"count":1001}`, http.StatusBadRequest, domain.MsgBatchTooLarge},
		{"count zero", `{"count":0}`, http.StatusBadRequest, "Count must be at least 1"},
		{"bad prefix", `{"prefix":"no spaces"}`, http.StatusBadRequest, "Prefix cannot contain whitespace or control characters"},
		{"blank key type", `{"key_type":" "}`, http.StatusBadRequest, "Key type must not be empty"},
		{"malformed", `{"count":`, http.StatusBadRequest, domain.MsgInvalidBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request("POST", "/api/keys/generate", tt.body, ts.bootstrapKey)
			expectFailure(t, rr, tt.status, tt.message)
		})
	}

	n, _ := ts.store.CountKeys(context.Background(), domain.KeyFilter{})
	if n != 0 {
		t.Errorf("Expected no keys stored, got %d", n)
	}
}

func TestActivation(t *testing.T) {
	ts := newTestServer(t)
	keys := ts.generate(t, map[string]any{"count": 2}).Keys

	expectFailure(t, ts.request("POST", "/api/activate", map[string]string{"key": "ECP-0000-0000-0000"}, ""),
		http.StatusBadRequest, domain.MsgKeyNotFound)
	expectFailure(t, ts.request("POST", "/api/activate", map[string]string{}, ""),
		http.StatusBadRequest, domain.MsgKeyRequired)

	rr := ts.request("POST", "/api/activate", map[string]string{
		"key":        keys[0],
		"hwid":       "HW-1",
		"machine_id": "M-1",
		"email":      "user@example.com",
	}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[domain.KeyView](t, rr)
	if resp.Message != domain.MsgKeyActivated {
		t.Errorf("Expected %q, got %q", domain.MsgKeyActivated, resp.Message)
	}
	if !resp.Data.IsValid || resp.Data.ActivationDate == nil {
		t.Errorf("Expected activated valid key: %s", rr.Body.String())
	}

	expectFailure(t, ts.request("POST", "/api/activate", map[string]string{"key": keys[0]}, ""),
		http.StatusBadRequest, domain.MsgKeyAlreadyActivated)

	if rr := ts.request("POST", "/api/keys/"+keys[1]+"/ban", nil, ts.bootstrapKey); rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	expectFailure(t, ts.request("POST", "/api/activate", map[string]string{"key": keys[1]}, ""),
		http.StatusBadRequest, domain.MsgKeyBanned)
}

func TestKeyStatusAndBan(t *testing.T) {
	ts := newTestServer(t)
	key := ts.generate(t, nil).Keys[0]

	expectFailure(t, ts.request("GET", "/api/keys/ECP-0000-0000-0000", nil, ""), http.StatusNotFound, domain.MsgKeyNotFound)
	expectFailure(t, ts.request("POST", "/api/keys/ECP-0000-0000-0000/ban", nil, ts.bootstrapKey), http.StatusNotFound, domain.MsgKeyNotFound)
	expectFailure(t, ts.request("POST", "/api/keys/ECP-0000-0000-0000/unban", nil, ts.bootstrapKey), http.StatusNotFound, domain.MsgKeyNotFound)

	status := func() domain.KeyView {
		rr := ts.request("GET", "/api/keys/"+key, nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		return decode[domain.KeyView](t, rr).Data
	}

	if v := status(); !v.IsValid || v.Key != key || v.Type != "month" {
		t.Errorf("Unexpected status: %+v", v)
	}

	rr := ts.request("POST", "/api/keys/"+key+"/ban", nil, ts.bootstrapKey)
	if msg := decode[json.RawMessage](t, rr).Message; msg != domain.MsgKeyBannedOK {
		t.Errorf("Expected %q, got %q", domain.MsgKeyBannedOK, msg)
	}
	if v := status(); v.IsValid || !v.IsBanned || v.IsActive {
		t.Errorf("Expected banned key: %+v", v)
	}

	rr = ts.request("POST", "/api/keys/"+key+"/unban", nil, ts.bootstrapKey)
	if msg := decode[json.RawMessage](t, rr).Message; msg != domain.MsgKeyUnbannedOK {
		t.Errorf("Expected %q, got %q", domain.MsgKeyUnbannedOK, msg)
	}
	if v := status(); !v.IsValid || v.IsBanned || !v.IsActive {
		t.Errorf("Expected restored key: %+v", v)
	}
}

func TestListKeys(t *testing.T) {
	ts := newTestServer(t)
	ts.generate(t, map[string]any{"count": 3, "key_type": "1year", "customer_name": "Acme Corp"})
	ts.generate(t, map[string]any{"count": 2, "key_type": "7day", "product_name": "Widget"})

	rr := ts.request("GET", "/api/keys?per_page=2&page=2", nil, ts.bootstrapKey)
	page := decode[domain.KeyPage](t, rr).Data
	if page.Total != 5 || page.TotalPages != 3 || page.Page != 2 || len(page.Keys) != 2 {
		t.Errorf("Unexpected page: total=%d pages=%d page=%d len=%d", page.Total, page.TotalPages, page.Page, len(page.Keys))
	}

	rr = ts.request("GET", "/api/keys?customer_name=acme&key_type=1year", nil, ts.bootstrapKey)
	page = decode[domain.KeyPage](t, rr).Data
	if page.Total != 3 || page.PerPage != 25 {
		t.Errorf("Expected 3 keys with default page size, got %d/%d", page.Total, page.PerPage)
	}

	rr = ts.request("GET", "/api/keys?is_banned=true", nil, ts.bootstrapKey)
	if page := decode[domain.KeyPage](t, rr).Data; page.Total != 0 {
		t.Errorf("Expected no banned keys, got %d", page.Total)
	}

	rr = ts.request("GET", "/api/keys?per_page=0", nil, ts.bootstrapKey)
	if page := decode[domain.KeyPage](t, rr).Data; page.PerPage != 1 || page.TotalPages != 5 || len(page.Keys) != 1 {
		t.Errorf("Expected per_page clamped to 1, got per_page=%d pages=%d len=%d", page.PerPage, page.TotalPages, len(page.Keys))
	}

	expectFailure(t, ts.request("GET", "/api/keys?page=abc", nil, ts.bootstrapKey),
		http.StatusBadRequest, "Page must be a valid integer")
}

func TestReports(t *testing.T) {
	ts := newTestServer(t)
	keys := ts.generate(t, map[string]any{"count": 2, "customer_name": "Acme", "product_name": "Widget"}).Keys
	ts.generate(t, map[string]any{"count": 1, "key_type": "lifetime"})

	ts.request("POST", "/api/activate", map[string]string{"key": keys[0]}, "")
	ts.request("POST", "/api/keys/"+keys[1]+"/ban", nil, ts.bootstrapKey)

	stats := decode[domain.Stats](t, ts.request("GET", "/api/statistics", nil, ts.bootstrapKey)).Data
	if stats.TotalKeys != 3 || stats.ActiveKeys != 2 || stats.BannedKeys != 1 || stats.ActivatedKeys != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.KeyTypes["month"] != 2 || stats.KeyTypes["lifetime"] != 1 {
		t.Errorf("Unexpected distribution: %v", stats.KeyTypes)
	}

	customers := decode[[]domain.CustomerSummary](t, ts.request("GET", "/api/customers", nil, ts.bootstrapKey)).Data
	if len(customers) != 2 || customers[0].Name != "Acme" || customers[1].Name != domain.UnknownBucket {
		t.Fatalf("Unexpected customers: %+v", customers)
	}
	if customers[0].TotalKeys != 2 || customers[0].ActiveKeys != 1 || customers[0].ActivatedKeys != 1 {
		t.Errorf("Unexpected Acme rollup: %+v", customers[0])
	}

	products := decode[[]domain.ProductSummary](t, ts.request("GET", "/api/products", nil, ts.bootstrapKey)).Data
	if len(products) != 2 || products[0].Name != domain.UnknownBucket || products[1].Name != "Widget" {
		t.Fatalf("Unexpected products: %+v", products)
	}
	if len(products[1].KeyTypes) != 1 || products[1].KeyTypes[0] != "month" {
		t.Errorf("Unexpected product key types: %v", products[1].KeyTypes)
	}
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t)
	keys := ts.generate(t, map[string]any{"count": 3, "notes": "batch, one"}).Keys

	rr := ts.request("GET", "/api/export/keys", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %s", ct)
	}
	disposition := regexp.MustCompile(`^attachment; filename="activation_keys_\d{8}_\d{6}\.csv"$`)
	if cd := rr.Header().Get("Content-Disposition"); !disposition.MatchString(cd) {
		t.Errorf("Unexpected Content-Disposition: %s", cd)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parsing csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d", len(records))
	}
	wantHeader := "key_value,key_type,is_active,is_banned,activation_date,expiry_date,hwid,machine_id,email,customer_name,product_name,notes,created_at"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("Unexpected header: %s", got)
	}
	exported := map[string]bool{}
	for _, rec := range records[1:] {
		exported[rec[0]] = true
		if rec[11] != "batch, one" || rec[2] != "true" || rec[4] != "" {
			t.Errorf("Unexpected row: %v", rec)
		}
	}
	for _, k := range keys {
		if !exported[k] {
			t.Errorf("Key %s missing from export", k)
		}
	}
}

func TestExportXLSX(t *testing.T) {
	ts := newTestServer(t)
	ts.generate(t, map[string]any{"count": 2})

	rr := ts.request("GET", "/api/export/keys.xlsx", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Keys")
	if err != nil {
		t.Fatalf("reading rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "key_value" || rows[0][12] != "created_at" {
		t.Errorf("Unexpected header: %v", rows[0])
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/auth/login", domain.LoginRequest{Username: "admin", Password: "admin"}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	login := decode[domain.LoginResponse](t, rr).Data
	if login.APIKey != ts.bootstrapKey || !login.IsSuperadmin {
		t.Errorf("Unexpected login response: %+v", login)
	}

	expectFailure(t, ts.request("POST", "/api/auth/login", domain.LoginRequest{Username: "admin", Password: "wrong"}, ""),
		http.StatusUnauthorized, domain.MsgInvalidCredentials)
	expectFailure(t, ts.request("POST", "/api/auth/login", domain.LoginRequest{Username: "admin"}, ""),
		http.StatusBadRequest, "Password is required")
}

func TestAdmins(t *testing.T) {
	ts := newTestServer(t)

	req := domain.CreateAdminRequest{Username: "support", Password: "password123"}
	if rr := ts.request("POST", "/api/admins", req, ts.bootstrapKey); rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr := ts.request("POST", "/api/admins", req, ts.bootstrapKey); rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}

	rr := ts.request("GET", "/api/admins", nil, ts.bootstrapKey)
	admins := decode[[]map[string]any](t, rr).Data
	if len(admins) != 2 {
		t.Fatalf("Expected 2 admins, got %d", len(admins))
	}
	for _, a := range admins {
		if _, ok := a["api_key"]; ok {
			t.Error("API key must not be listed")
		}
		if _, ok := a["password_hash"]; ok {
			t.Error("Password digest must not be listed")
		}
	}
}

func TestKeyTypes(t *testing.T) {
	ts := newTestServer(t)

	types := decode[[]domain.KeyType](t, ts.request("GET", "/api/key-types", nil, "")).Data
	if len(types) != 5 || types[0].Name != "7day" || types[4].Name != "lifetime" {
		t.Fatalf("Unexpected catalog: %+v", types)
	}

	rr := ts.request("POST", "/api/key-types", domain.CreateKeyTypeRequest{Name: "2week", DurationDays: 14}, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr := ts.request("POST", "/api/key-types", domain.CreateKeyTypeRequest{Name: "2week", DurationDays: 14}, ts.bootstrapKey); rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}

	resp := ts.generate(t, map[string]any{"key_type": "2week"})
	stored, _ := ts.store.FindKeyByValue(context.Background(), resp.Keys[0])
	if got := stored.ExpiryDate.Sub(stored.CreatedAt).Hours(); got != 14*24 {
		t.Errorf("Expected 14 day expiry, got %v hours", got)
	}

	rr = ts.request("PUT", "/api/key-types/2week", `{"is_available":false}`, ts.bootstrapKey)
	if kt := decode[domain.KeyType](t, rr).Data; kt.IsAvailable || kt.DurationDays != 14 {
		t.Errorf("Unexpected update result: %+v", kt)
	}
	expectFailure(t, ts.request("PUT", "/api/key-types/decade", `{"duration_days":3650}`, ts.bootstrapKey),
		http.StatusNotFound, "Key type not found")

	rr = ts.request("PUT", "/api/key-types/month", `{"clear_price":true}`, ts.bootstrapKey)
	if kt := decode[domain.KeyType](t, rr).Data; kt.Price != nil || kt.DurationDays != 30 {
		t.Errorf("Expected price cleared, got %+v", kt)
	}
	expectFailure(t, ts.request("PUT", "/api/key-types/month", `{"price":5,"clear_price":true}`, ts.bootstrapKey),
		http.StatusBadRequest, "Price cannot be set and cleared in one request")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.generate(t, map[string]any{"count": 2})

	rr := ts.request("GET", "/metrics", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`activation_keys_generated_total{key_type="month"} 2`,
		`activation_http_request_duration_seconds_count{method="POST",route="/api/keys/generate",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}

func TestKeyTypeETag(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/api/key-types/month", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if !strings.HasPrefix(etag, `"keytype-month-`) {
		t.Fatalf("Unexpected ETag: %q", etag)
	}

	update := func(ifMatch, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PUT", "/api/key-types/month", strings.NewReader(body))
		req.Header.Set("X-API-KEY", ts.bootstrapKey)
		req.Header.Set("If-Match", ifMatch)
		rr := httptest.NewRecorder()
		ts.handler.ServeHTTP(rr, req)
		return rr
	}

	rr = update(etag, `{"duration_days":31}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	newETag := rr.Header().Get("ETag")
	if newETag == etag {
		t.Error("Expected ETag to change after update")
	}

	// The stale ETag is now rejected
	rr = update(etag, `{"duration_days":32}`)
	if rr.Code != http.StatusPreconditionFailed {
		t.Errorf("Expected status 412, got %d", rr.Code)
	}
	if got := rr.Header().Get("ETag"); got != newETag {
		t.Errorf("Expected current ETag %q, got %q", newETag, got)
	}

	expectFailure(t, ts.request("GET", "/api/key-types/decade", nil, ""), http.StatusNotFound, "Key type not found")
}
