package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/model"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("Failed to encode response")
	}
}

// parseAddress validates and decodes a hex account address.
func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", model.ErrValidation, raw)
	}
	return common.HexToAddress(raw), nil
}

// parseBig decodes a decimal string amount. Amounts travel as strings on
// the wire to survive JSON number precision.
func parseBig(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: amount required", model.ErrValidation)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", model.ErrValidation, raw)
	}
	return v, nil
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
