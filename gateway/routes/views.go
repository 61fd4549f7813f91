package routes

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rewardvault/core/types"
	"rewardvault/crypto"
	"rewardvault/native/donation"
)

// ViewSource exposes the engine snapshot.
type ViewSource interface {
	Views(ctx context.Context) (*donation.View, error)
}

// BalanceSource exposes settlement balances.
type BalanceSource interface {
	Balance(ctx context.Context, owner [20]byte, asset types.AssetRef) (*big.Int, error)
}

type viewRoutes struct {
	views    ViewSource
	balances BalanceSource
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type countResponse struct {
	Count uint32 `json:"count"`
}

type assetClassResponse struct {
	Status         donation.Status `json:"status"`
	TokenID        string          `json:"tokenId,omitempty"`
	UnitNonce      uint64          `json:"unitNonce,omitempty"`
	PendingRequest string          `json:"pendingRequest,omitempty"`
	ProvenanceHash string          `json:"provenanceHash,omitempty"`
	ResourceURI    string          `json:"resourceUri,omitempty"`
	TotalUnits     uint32          `json:"totalUnits,omitempty"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Nonce   uint64 `json:"nonce"`
	Amount  string `json:"amount"`
}

func (v *viewRoutes) mount(r chi.Router) {
	r.Get("/views/amountRaised", v.handleAmountRaised)
	r.Get("/views/nftBought", v.handleUnitsGranted)
	r.Get("/views/nftLeft", v.handleUnitsRemaining)
	r.Get("/views/assetClass", v.handleAssetClass)
	r.Get("/accounts/{address}/balances/{token}", v.handleBalance)
}

func (v *viewRoutes) snapshot(w http.ResponseWriter, r *http.Request) (*donation.View, bool) {
	if v.views == nil {
		writeError(w, http.StatusServiceUnavailable, "views unavailable")
		return nil, false
	}
	view, err := v.views.Views(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return view, true
}

func (v *viewRoutes) handleAmountRaised(w http.ResponseWriter, r *http.Request) {
	view, ok := v.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: view.AmountRaised.String()})
}

func (v *viewRoutes) handleUnitsGranted(w http.ResponseWriter, r *http.Request) {
	view, ok := v.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: view.UnitsGranted})
}

func (v *viewRoutes) handleUnitsRemaining(w http.ResponseWriter, r *http.Request) {
	view, ok := v.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: view.UnitsRemaining})
}

func (v *viewRoutes) handleAssetClass(w http.ResponseWriter, r *http.Request) {
	view, ok := v.snapshot(w, r)
	if !ok {
		return
	}
	resp := assetClassResponse{
		Status:         view.Status,
		TokenID:        view.TokenID,
		UnitNonce:      view.UnitNonce,
		PendingRequest: view.PendingRequest,
	}
	if view.Batch != nil {
		resp.ProvenanceHash = hex.EncodeToString(view.Batch.ProvenanceHash[:])
		resp.ResourceURI = view.Batch.ResourceURI
		resp.TotalUnits = view.Batch.TotalUnits
	}
	writeJSON(w, http.StatusOK, resp)
}

func (v *viewRoutes) handleBalance(w http.ResponseWriter, r *http.Request) {
	if v.balances == nil {
		writeError(w, http.StatusServiceUnavailable, "balances unavailable")
		return
	}
	owner, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset := types.AssetRef{TokenID: types.NormalizeTokenID(chi.URLParam(r, "token"))}
	if raw := r.URL.Query().Get("nonce"); raw != "" {
		nonce, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid nonce")
			return
		}
		asset.Nonce = nonce
	}
	amount, err := v.balances.Balance(r.Context(), owner, asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Address: crypto.FormatAddress(owner),
		Token:   asset.TokenID,
		Nonce:   asset.Nonce,
		Amount:  amount.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
