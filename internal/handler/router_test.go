package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/config"
	"github.com/ken860819/loan-ai-system/internal/decision"
	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/handler"
	"github.com/ken860819/loan-ai-system/internal/infra/cache"
	"github.com/ken860819/loan-ai-system/internal/infra/observability"
	"github.com/ken860819/loan-ai-system/internal/infra/sqlite"
	"github.com/ken860819/loan-ai-system/internal/scoring"
	"github.com/ken860819/loan-ai-system/internal/service"
)

// lowPDPredictor makes every applicant land in the approve bucket so flow
// tests can provision deterministically.
type lowPDPredictor struct{}

func (lowPDPredictor) PredictDefault(domain.FeatureVector) (float64, error) { return 0.05, nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	featureCfg := config.FeatureConfig{
		SimulateCreditScore: true,
		SimulateDelay:       true,
		SimulateUsage:       true,
	}
	rng := rand.New(rand.NewSource(1))
	scorer := scoring.NewEngine(featureCfg, lowPDPredictor{}, rng, logger)

	decider, err := decision.NewEngine(
		config.ThresholdConfig{Reject: 0.3, Review: 0.1},
		config.LimitRuleConfig{BaseAmount: 10000, VariableAmount: 20000},
	)
	if err != nil {
		t.Fatalf("decision engine: %v", err)
	}

	metrics := observability.NewMetrics()
	pipeline := service.NewPipeline(store, scorer, decider, metrics, logger)

	sessions := cache.New[*domain.Evaluation](time.Minute)
	t.Cleanup(sessions.Stop)

	srv := httptest.NewServer(handler.NewRouter(pipeline, sessions, store, metrics, logger))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

var kycBody = map[string]any{
	"name":              "lin",
	"national_id_last4": "9876",
	"age":               34,
	"monthly_income":    60000,
	"job_type":          "employed",
	"region":            "north",
}

func TestFullFlow_EvaluateDecideProvisionBorrowRepay(t *testing.T) {
	srv := newTestServer(t)

	// 1. Submit KYC.
	resp := postJSON(t, srv.URL+"/v1/evaluations", kycBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("evaluate: expected 201, got %d", resp.StatusCode)
	}
	var eval domain.Evaluation
	decodeJSON(t, resp, &eval)
	if eval.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if eval.PD != 0.05 {
		t.Fatalf("expected pd 0.05 from test predictor, got %v", eval.PD)
	}

	// 2. Decide. PD 0.05 <= review threshold 0.1, so approve with
	// limit 10000 + floor(0.95 * 20000) = 29000.
	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/decision", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decision: expected 200, got %d", resp.StatusCode)
	}
	var decided struct {
		Decision domain.Decision `json:"decision"`
		Limit    int64           `json:"limit"`
	}
	decodeJSON(t, resp, &decided)
	if decided.Decision != domain.DecisionApprove {
		t.Fatalf("expected approve, got %s", decided.Decision)
	}
	if decided.Limit != 29000 {
		t.Fatalf("expected limit 29000, got %d", decided.Limit)
	}

	// 3. Provision the account.
	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/provision", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("provision: expected 201, got %d", resp.StatusCode)
	}
	var account domain.Account
	decodeJSON(t, resp, &account)
	if account.UserID != "lin_00001_9876" {
		t.Fatalf("unexpected user id '%s'", account.UserID)
	}
	if account.AvailableCredit != 29000 {
		t.Fatalf("expected available credit 29000, got %d", account.AvailableCredit)
	}

	// 4. Re-posting provision returns the same account, no duplicate.
	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/provision", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-provision: expected 200, got %d", resp.StatusCode)
	}
	var again domain.Account
	decodeJSON(t, resp, &again)
	if again.UserID != account.UserID {
		t.Fatalf("re-provision created a new account: %s", again.UserID)
	}

	// 5. Borrow and repay.
	resp = postJSON(t, srv.URL+"/v1/accounts/"+account.UserID+"/borrow", map[string]int64{"amount": 9000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("borrow: expected 200, got %d", resp.StatusCode)
	}
	decodeJSON(t, resp, &account)
	if account.AvailableCredit != 20000 || account.OutstandingBalance != 9000 {
		t.Fatalf("after borrow: %+v", account)
	}

	resp = postJSON(t, srv.URL+"/v1/accounts/"+account.UserID+"/repay", map[string]int64{"amount": 4000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repay: expected 200, got %d", resp.StatusCode)
	}
	decodeJSON(t, resp, &account)
	if account.OutstandingBalance != 5000 {
		t.Fatalf("after repay: %+v", account)
	}

	// 6. Transaction history, newest first.
	resp, err := http.Get(srv.URL + "/v1/accounts/" + account.UserID + "/transactions")
	if err != nil {
		t.Fatalf("GET transactions: %v", err)
	}
	var txList struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeJSON(t, resp, &txList)
	if len(txList.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txList.Transactions))
	}
	if txList.Transactions[0].Type != domain.TransactionRepay {
		t.Fatalf("expected repay first, got %s", txList.Transactions[0].Type)
	}

	// 7. Engine metrics reflect the flow.
	resp, err = http.Get(srv.URL + "/v1/metrics/engine")
	if err != nil {
		t.Fatalf("GET engine metrics: %v", err)
	}
	var snapshot domain.EngineMetrics
	decodeJSON(t, resp, &snapshot)
	if snapshot.Approved != 1 || snapshot.AccountsProvisioned != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.BorrowsTotal != 1 || snapshot.RepaysTotal != 1 {
		t.Fatalf("unexpected transition counts: %+v", snapshot)
	}
}

func TestCreateEvaluation_InvalidKYC(t *testing.T) {
	srv := newTestServer(t)

	bad := map[string]any{}
	for k, v := range kycBody {
		bad[k] = v
	}
	bad["age"] = 17

	resp := postJSON(t, srv.URL+"/v1/evaluations", bad)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateEvaluation_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/evaluations", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetEvaluation_UnknownSession(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/evaluations/does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestProvision_RequiresDecision(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/evaluations", kycBody)
	var eval domain.Evaluation
	decodeJSON(t, resp, &eval)

	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/provision", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before decision, got %d", resp.StatusCode)
	}
}

func TestGetAccount_NotProvisioned(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/accounts/ghost_00001_0000")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestBorrow_InsufficientCreditReturns422(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/evaluations", kycBody)
	var eval domain.Evaluation
	decodeJSON(t, resp, &eval)

	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/decision", nil)
	resp.Body.Close()
	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/provision", nil)
	var account domain.Account
	decodeJSON(t, resp, &account)

	resp = postJSON(t, srv.URL+"/v1/accounts/"+account.UserID+"/borrow",
		map[string]int64{"amount": account.AvailableCredit + 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestRepay_OverRepaymentReturns422(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/evaluations", kycBody)
	var eval domain.Evaluation
	decodeJSON(t, resp, &eval)

	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/decision", nil)
	resp.Body.Close()
	resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/provision", nil)
	var account domain.Account
	decodeJSON(t, resp, &account)

	resp = postJSON(t, srv.URL+"/v1/accounts/"+account.UserID+"/repay", map[string]int64{"amount": 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for repay with nothing outstanding, got %d", resp.StatusCode)
	}
}

func TestBorrow_NegativeAmountReturns400(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/accounts/any/borrow", map[string]int64{"amount": -5})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRepeatedSubmissionsCreateDistinctAccounts(t *testing.T) {
	srv := newTestServer(t)

	userIDs := map[string]bool{}
	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/v1/evaluations", kycBody)
		var eval domain.Evaluation
		decodeJSON(t, resp, &eval)

		resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/decision", nil)
		resp.Body.Close()
		resp = postJSON(t, srv.URL+"/v1/evaluations/"+eval.SessionID+"/provision", nil)
		var account domain.Account
		decodeJSON(t, resp, &account)

		if userIDs[account.UserID] {
			t.Fatalf("duplicate user id across submissions: %s", account.UserID)
		}
		userIDs[account.UserID] = true
	}
	if want := fmt.Sprintf("lin_%05d_9876", 2); !userIDs[want] {
		t.Fatalf("expected second serial '%s', got %v", want, userIDs)
	}
}
