package routes

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"rewardvault/core/types"
	"rewardvault/crypto"
	"rewardvault/gateway/middleware"
	"rewardvault/native/donation"
)

type stubViews struct {
	view *donation.View
	err  error
}

func (s stubViews) Views(ctx context.Context) (*donation.View, error) { return s.view, s.err }

type stubBalances map[types.AssetRef]*big.Int

func (s stubBalances) Balance(ctx context.Context, owner [20]byte, asset types.AssetRef) (*big.Int, error) {
	if bal, ok := s[asset]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func newTestRouter(t *testing.T, views ViewSource) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	obs, err := middleware.NewObservability(middleware.ObservabilityConfig{}, reg, nil)
	require.NoError(t, err)
	return New(Config{
		Views: views,
		Balances: stubBalances{
			{TokenID: "DONATE-0a0b0c", Nonce: 1}: big.NewInt(3),
		},
		Observability:  obs,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestViewsEndpoints(t *testing.T) {
	view := &donation.View{
		Status:         donation.StatusMinted,
		AmountRaised:   big.NewInt(150),
		UnitsGranted:   3,
		UnitsRemaining: 997,
		TokenID:        "DONATE-0a0b0c",
		UnitNonce:      1,
		Batch: &donation.RewardBatch{
			ProvenanceHash: [32]byte{0xab},
			ResourceURI:    "ipfs://image",
			TotalUnits:     1000,
		},
	}
	h := newTestRouter(t, stubViews{view: view})

	res := get(t, h, "/v1/views/amountRaised")
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"amount":"150"}`, res.Body.String())

	res = get(t, h, "/v1/views/nftBought")
	require.JSONEq(t, `{"count":3}`, res.Body.String())

	res = get(t, h, "/v1/views/nftLeft")
	require.JSONEq(t, `{"count":997}`, res.Body.String())

	res = get(t, h, "/v1/views/assetClass")
	require.Equal(t, http.StatusOK, res.Code)
	var asset assetClassResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &asset))
	require.Equal(t, donation.StatusMinted, asset.Status)
	require.Equal(t, "DONATE-0a0b0c", asset.TokenID)
	require.Equal(t, uint32(1000), asset.TotalUnits)
	require.Len(t, asset.ProvenanceHash, 64)

	res = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "rewardvault_gateway_requests_total")
	require.Contains(t, res.Body.String(), `route="/v1/views/nftLeft"`)
}

func TestViewsError(t *testing.T) {
	h := newTestRouter(t, stubViews{err: errors.New("state offline")})
	res := get(t, h, "/v1/views/nftLeft")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Contains(t, res.Body.String(), "state offline")
}

func TestBalanceEndpoint(t *testing.T) {
	h := newTestRouter(t, stubViews{view: &donation.View{AmountRaised: big.NewInt(0)}})
	addr := crypto.FormatAddress(crypto.DeriveAddress("donor"))

	res := get(t, h, "/v1/accounts/"+addr+"/balances/donate-0A0B0C?nonce=1")
	require.Equal(t, http.StatusOK, res.Code)
	var bal balanceResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &bal))
	require.Equal(t, "3", bal.Amount)
	require.Equal(t, "DONATE-0a0b0c", bal.Token)
	require.Equal(t, addr, bal.Address)

	res = get(t, h, "/v1/accounts/garbage/balances/EGLD")
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = get(t, h, "/v1/accounts/"+addr+"/balances/EGLD?nonce=x")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t, stubViews{})
	res := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "ok", res.Body.String())
}

func TestRateLimitedRoutes(t *testing.T) {
	h := New(Config{
		Views:       stubViews{view: &donation.View{AmountRaised: big.NewInt(1)}},
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{RatePerSecond: 1, Burst: 1}, nil),
	})
	require.Equal(t, http.StatusOK, get(t, h, "/v1/views/amountRaised").Code)
	require.Equal(t, http.StatusTooManyRequests, get(t, h, "/v1/views/amountRaised").Code)
	require.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}
