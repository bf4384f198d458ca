package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/treasury"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/go-chi/chi/v5"
)

const maxRequestBytes = 1 << 16

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.confirmationContext(r)
	defer cancel()

	wallet, err := s.treasury.CreateWallet(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.CreateWalletResponse{
		Address:     wallet.Address.Hex(),
		OperationID: wallet.OperationID,
	})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req types.MintRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := s.confirmationContext(r)
	defer cancel()

	result, err := s.treasury.Mint(ctx, req.Amount.String(), req.WalletAddress)
	s.writeTransaction(w, r, result, err)
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req types.CollectRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := s.confirmationContext(r)
	defer cancel()

	result, err := s.treasury.Collect(ctx, req.From, req.To)
	s.writeTransaction(w, r, result, err)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req types.BurnRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := s.confirmationContext(r)
	defer cancel()

	result, err := s.treasury.Burn(ctx, req.Amount.String())
	s.writeTransaction(w, r, result, err)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	wallet, err := s.treasury.GetWallet(address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wallet == nil {
		s.writeJSON(w, http.StatusNotFound, types.ErrorResponse{Kind: "NotFound", Message: fmt.Sprintf("wallet %s is not known", address)})
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op, err := s.treasury.GetOperation(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if op == nil {
		s.writeJSON(w, http.StatusNotFound, types.ErrorResponse{Kind: "NotFound", Message: fmt.Sprintf("operation %s is not known", id)})
		return
	}
	s.writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:          "ok",
		TreasuryAddress: s.treasury.TreasuryAddress().Hex(),
		ChainID:         s.config.ChainID,
		Token:           s.config.TokenAddress.Hex(),
	}
	status := http.StatusOK
	if s.config.HealthCheck != nil {
		if err := s.config.HealthCheck(); err != nil {
			s.logger.Sugar().Warnw("Health check failed", "error", err)
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, status, resp)
}

// confirmationContext bounds a transaction request. The context still ends
// early if the client goes away.
func (s *Server) confirmationContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.ConfirmationTimeout)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(into); err != nil {
		s.writeJSON(w, http.StatusBadRequest, types.ErrorResponse{
			Kind:    string(treasury.KindValidation),
			Message: fmt.Sprintf("failed to parse request: %v", err),
		})
		return false
	}
	return true
}

func (s *Server) writeTransaction(w http.ResponseWriter, r *http.Request, result *treasury.Result, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.TransactionResponse{
		TransactionHash: result.Hash.Hex(),
		BlockNumber:     result.BlockNumber,
		OperationID:     result.OperationID,
	})
}

func statusForKind(kind treasury.ErrorKind) int {
	switch kind {
	case treasury.KindValidation, treasury.KindInsufficientBalance, treasury.KindTransaction:
		return http.StatusBadRequest
	case treasury.KindProvisioning, treasury.KindAuthorization:
		return http.StatusBadGateway
	case treasury.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := treasury.KindOf(err)
	status := statusForKind(kind)
	if kind == "" {
		kind = "InternalError"
	}

	s.logger.Sugar().Infow("Request failed",
		"path", r.URL.Path,
		"status", status,
		"kind", kind,
		"error", err,
	)
	s.writeJSON(w, status, types.ErrorResponse{Kind: string(kind), Message: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}
