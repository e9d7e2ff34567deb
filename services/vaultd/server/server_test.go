package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"cantorfi/config"
	"cantorfi/core/events"
	"cantorfi/core/protocol"
	"cantorfi/core/state"
	"cantorfi/core/types"
	"cantorfi/gateway/middleware"
	"cantorfi/services/vaultd/journal"
	"cantorfi/storage"
)

const testGenesis = `
Admin = "0x00000000000000000000000000000000000000ad"
Treasury = "0x00000000000000000000000000000000000000f1"

[[Tokens]]
Name = "USD Coin"
Symbol = "USDC"
Decimals = 6
[Tokens.Balances]
"0x00000000000000000000000000000000000000a1" = "20_000_000_000"
"0x00000000000000000000000000000000000000b2" = "20_000_000_000"

[[Vaults]]
Token = "USDC"
Staking = true
`

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	usdc  = config.DeriveTokenAddress("USDC")
)

type testAPI struct {
	t     *testing.T
	srv   *httptest.Server
	hub   *Hub
	vault protocol.VaultDeployment
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	g, err := config.ParseGenesis([]byte(testGenesis))
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	j, err := journal.New(db, nil)
	require.NoError(t, err)

	hub := NewHub(nil)
	rt := protocol.New(state.NewManager(storage.NewMemDB()), protocol.DefaultAddresses(),
		protocol.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
		protocol.WithEmitter(events.Fanout{hub, j}))
	deployed, err := rt.Bootstrap(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, deployed, 1)

	srv, err := New(Config{
		Runtime:       rt,
		Journal:       j,
		Hub:           hub,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{Enabled: false}, nil),
		RateLimiter:   middleware.NewRateLimiter(nil, nil),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true}, prometheus.NewRegistry(), nil),
	})
	require.NoError(t, err)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		httpSrv.Close()
		_ = j.Close()
	})
	return &testAPI{t: t, srv: httpSrv, hub: hub, vault: deployed[0]}
}

func (a *testAPI) do(method, path string, caller common.Address, body any) (int, map[string]any) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != (common.Address{}) {
		req.Header.Set("X-Caller", caller.Hex())
	}
	res, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer res.Body.Close()
	out := map[string]any{}
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func (a *testAPI) vaultPath(suffix string) string {
	return "/v1/vaults/" + a.vault.Vault.Hex() + suffix
}

func field(t *testing.T, m map[string]any, path ...string) any {
	t.Helper()
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		require.Truef(t, ok, "expected object at %q", key)
		cur = obj[key]
	}
	return cur
}

func TestHealthAndListing(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(http.MethodGet, "/healthz", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := api.do(http.MethodGet, "/v1/vaults", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	vaults := body["vaults"].([]any)
	require.Len(t, vaults, 1)
	first := vaults[0].(map[string]any)
	require.Equal(t, "USDC", first["symbol"])
	require.Equal(t, api.vault.Pool.Hex(), first["stakingContract"])
	require.Equal(t, "100000000", field(t, first, "maxLiquidity", "display"))

	code, body = api.do(http.MethodGet, "/v1/vaults/1", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, api.vault.Vault.Hex(), body["address"])

	code, body = api.do(http.MethodGet, "/v1/protocol", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, admin.Hex(), body["admin"])
	require.EqualValues(t, 1, body["vaultCount"])

	code, body = api.do(http.MethodGet, "/v1/tokens", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["tokens"], 2)
}

func TestSupplyFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(http.MethodPost, "/v1/tokens/"+usdc.Hex()+"/approve", alice, map[string]any{
		"spender": api.vault.Vault.Hex(),
		"amount":  "max",
	})
	require.Equal(t, http.StatusOK, code)

	code, body := api.do(http.MethodPost, api.vaultPath("/supply"), alice, map[string]any{"display": "1000.5"})
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "1000.5", field(t, body, "cvtMinted", "display"))

	code, body = api.do(http.MethodGet, api.vaultPath("/positions/"+alice.Hex()), common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1000500000", field(t, body, "amount", "raw"))
	require.Equal(t, "1000.5", field(t, body, "amount", "display"))
	require.Equal(t, false, body["liquidatable"])

	code, body = api.do(http.MethodGet, "/v1/tokens/"+usdc.Hex()+"/balances/"+alice.Hex()+"?spender="+api.vault.Vault.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "18999.5", field(t, body, "balance", "display"))

	code, body = api.do(http.MethodGet, "/v1/events?type="+events.TypeVaultSupplied, common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	list := body["events"].([]any)
	require.Len(t, list, 1)
	require.Equal(t, "1000500000", field(t, list[0].(map[string]any), "attributes", "amount"))

	code, body = api.do(http.MethodGet, "/v1/pools/"+api.vault.Pool.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 6000, body["maxProtocolBorrowRatio"])
}

func TestCrossCollateralOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodPost, api.vaultPath("/cross-collateral"), admin, map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, code, body)
	code, body = api.do(http.MethodPost, "/v1/collateral/prices/"+usdc.Hex(), alice, map[string]any{"display": "1"})
	require.Equal(t, http.StatusForbidden, code, body)
	code, body = api.do(http.MethodPost, "/v1/collateral/prices/"+usdc.Hex(), admin, map[string]any{"display": "1"})
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "100000000", field(t, body, "price", "raw"))

	code, body = api.do(http.MethodGet, "/v1/collateral", common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 7000, body["maxLtv"])
	require.Equal(t, []any{api.vault.Vault.Hex()}, body["vaults"])

	code, _ = api.do(http.MethodPost, "/v1/tokens/"+usdc.Hex()+"/approve", alice, map[string]any{
		"spender": api.vault.Vault.Hex(),
		"amount":  "max",
	})
	require.Equal(t, http.StatusOK, code)
	code, body = api.do(http.MethodPost, api.vaultPath("/supply"), alice, map[string]any{"display": "1000"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = api.do(http.MethodGet, "/v1/collateral/accounts/"+alice.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1000", field(t, body, "collateralUsd", "display"))
	require.Equal(t, "700", field(t, body, "maxBorrowUsd", "display"))
	require.Equal(t, "max", body["healthFactor"])

	code, body = api.do(http.MethodGet, api.vaultPath("/max-borrow/"+alice.Hex()), common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "700", field(t, body, "maxBorrow", "display"))
	require.Equal(t, true, body["crossCollateral"])

	code, body = api.do(http.MethodPost, api.vaultPath("/cross-borrow"), alice, map[string]any{"display": "800"})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "failed_precondition", body["code"])

	code, body = api.do(http.MethodPost, api.vaultPath("/cross-borrow"), alice, map[string]any{"display": "500"})
	require.Equal(t, http.StatusOK, code, body)
	code, body = api.do(http.MethodGet, "/v1/collateral/accounts/"+alice.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1.6000", body["healthFactor"])
	require.Equal(t, false, body["liquidatable"])

	code, body = api.do(http.MethodPost, api.vaultPath("/cross-liquidate"), bob, map[string]any{"user": alice.Hex()})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "failed_precondition", body["code"])

	code, body = api.do(http.MethodPost, api.vaultPath("/cross-repay"), alice, map[string]any{"display": "500"})
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "500", field(t, body, "repaid", "display"))
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodPost, "/v1/protocol", alice, map[string]any{"setting": "pause"})
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "unauthorized", body["code"])

	code, body = api.do(http.MethodPost, api.vaultPath("/supply"), common.Address{}, map[string]any{"amount": "1"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "bad_request", body["code"])

	code, _ = api.do(http.MethodPost, api.vaultPath("/supply"), alice, map[string]any{"amount": "1", "display": "1"})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, api.vaultPath("/supply"), alice, map[string]any{"bogus": true})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = api.do(http.MethodGet, "/v1/vaults/0x000000000000000000000000000000000000dead", common.Address{}, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "not_found", body["code"])

	code, _ = api.do(http.MethodPost, "/v1/tokens/"+usdc.Hex()+"/approve", bob, map[string]any{
		"spender": api.vault.Vault.Hex(),
		"amount":  "max",
	})
	require.Equal(t, http.StatusOK, code)
	code, body = api.do(http.MethodPost, api.vaultPath("/supply"), bob, map[string]any{"display": "30000"})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "failed_precondition", body["code"])

	code, _ = api.do(http.MethodPost, "/v1/protocol", admin, map[string]any{"setting": "pause"})
	require.Equal(t, http.StatusOK, code)
	code, body = api.do(http.MethodPost, api.vaultPath("/supply"), bob, map[string]any{"display": "1"})
	require.Equal(t, http.StatusLocked, code)
	require.Equal(t, "paused", body["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do(http.MethodGet, "/v1/vaults", common.Address{}, nil)

	res, err := api.srv.Client().Get(api.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `vaultd_http_requests_total{method="GET",route="/v1/vaults",status="200"}`)
}

func TestStreamDeliversCommittedEvents(t *testing.T) {
	api := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/v1/stream?type=vault."
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return api.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	code, _ := api.do(http.MethodPost, "/v1/tokens/"+usdc.Hex()+"/approve", alice, map[string]any{
		"spender": api.vault.Vault.Hex(),
		"amount":  "max",
	})
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodPost, api.vaultPath("/supply"), alice, map[string]any{"amount": "5000000"})
	require.Equal(t, http.StatusOK, code)

	var evt types.Event
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	require.Equal(t, events.TypeVaultSupplied, evt.Type)
	require.Equal(t, "5000000", evt.Attributes["amount"])
}
