package handlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/relaynet/txrelay/internal/models"
	"github.com/relaynet/txrelay/internal/relay"
)

// submitRequest is the wire shape of spec §6.1's POST /transaction body.
type submitRequest struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data,omitempty"`
	Chain string `json:"chain"`
}

// statusResponse is the wire shape of GET /transaction/{id}.
type statusResponse struct {
	Mined bool   `json:"mined"`
	Hash  string `json:"hash"`
}

// ChainResolver resolves the HTTP-facing chain tag to a models.ChainID.
// This is the "chain allow-list" validation spec §6.1 assigns to the
// front-end: unknown tags are a 400, not a panic or a silent default.
type ChainResolver func(tag string) (models.ChainID, bool)

// SubmitTransaction handles POST /transaction.
func SubmitTransaction(facade *relay.Facade, resolve ChainResolver, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body submitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		chainID, ok := resolve(body.Chain)
		if !ok {
			writeError(w, http.StatusBadRequest, "unsupported chain")
			return
		}

		intent, err := parseIntent(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		id, err := facade.Submit(r.Context(), intent, chainID)
		switch {
		case errors.Is(err, relay.ErrUnsupportedChain):
			writeError(w, http.StatusBadRequest, "unsupported chain")
		case err != nil:
			logger.Error().Err(err).Msg("submission failed")
			writeError(w, http.StatusInternalServerError, "submission failed")
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(id) //nolint:errcheck
		}
	}
}

// GetTransactionStatus handles GET /transaction/{id}.
func GetTransactionStatus(facade *relay.Facade, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing id")
			return
		}

		req, err := facade.Status(r.Context(), id)
		if err != nil {
			logger.Error().Err(err).Str("id", id).Msg("status lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if req == nil {
			writeError(w, http.StatusNotFound, "unknown request id")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(statusResponse{Mined: req.Mined, Hash: req.Hash}) //nolint:errcheck
	}
}

func parseIntent(body submitRequest) (models.TxIntent, error) {
	if !common.IsHexAddress(body.To) {
		return models.TxIntent{}, errors.New("to: invalid address")
	}

	value := new(big.Int)
	if body.Value != "" {
		if _, ok := value.SetString(body.Value, 10); !ok {
			return models.TxIntent{}, errors.New("value: invalid integer")
		}
	}

	var data []byte
	if body.Data != "" {
		if !common.IsHex(body.Data) {
			return models.TxIntent{}, errors.New("data: must be 0x-prefixed hex")
		}
		data = common.FromHex(body.Data)
	}

	return models.TxIntent{
		To:    common.HexToAddress(body.To),
		Value: value,
		Data:  data,
	}, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
