package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/ledger"
	"github.com/CamberLoid/tzama/internal/restfulpayload"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

// statusOf 将错误类别映射为 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, ledger.ErrTransactionNotFound), errors.Is(err, types.ErrUnknownHandle):
		return http.StatusNotFound
	case errors.Is(err, types.ErrDecryptionUnauthorized), errors.Is(err, types.ErrGrantExpired):
		return http.StatusForbidden
	case errors.Is(err, types.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrInvalidAmount), errors.Is(err, types.ErrInvalidProof),
		errors.Is(err, types.ErrInvalidHandle), errors.Is(err, types.ErrValueOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrTransportFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Generic failure
func (s *Server) returnFailure(w http.ResponseWriter, req *http.Request, err error, statusCode int) {
	s.writeJSON(w, statusCode, restfulpayload.Failure{
		Status: restfulpayload.StatusFailed,
		Err:    err.Error(),
		Kind:   types.KindOf(err),
	})
	level := slog.LevelInfo
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.log.Log(req.Context(), level, "request failed",
		slog.String("request_id", chimw.GetReqID(req.Context())),
		slog.String("path", req.URL.Path),
		slog.Any("error", err))
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response", slog.Any("error", err))
	}
}

func decode(w http.ResponseWriter, req *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode request")
	}
	return nil
}

func (s *Server) HandleNotFound(w http.ResponseWriter, req *http.Request) {
	s.returnFailure(w, req, fmt.Errorf("function not found: %s", req.RequestURI), http.StatusNotFound)
}

// Handle /version request
func (s *Server) HandleVersion(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, restfulpayload.VersionResp{Status: restfulpayload.StatusOK, Version: Version})
}

// Handle /address request
func (s *Server) HandleAddress(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, restfulpayload.AddressResp{
		Status:      restfulpayload.StatusOK,
		ChainID:     s.cfg.ChainID,
		Ledger:      s.ledger.Address(),
		KMS:         s.kms.Domain().VerifyingContract,
		Coprocessor: s.cfg.Coprocessor,
	})
}

// Handle /ledger/faucet request
func (s *Server) HandleFaucet(w http.ResponseWriter, req *http.Request) {
	var body restfulpayload.FaucetReq
	if err := decode(w, req, &body); err != nil {
		s.returnFailure(w, req, err, http.StatusBadRequest)
		return
	}
	amount := s.cfg.DefaultFaucetAmount
	if body.Amount != nil {
		amount = *body.Amount
	}
	tx, err := s.ledger.Faucet(req.Context(), body.To, amount)
	s.respondTx(w, req, tx, err)
}

// Handle /ledger/stake request
func (s *Server) HandleStake(w http.ResponseWriter, req *http.Request) {
	s.handleMove(w, req, transaction.KindStake)
}

// Handle /ledger/unstake request
func (s *Server) HandleUnstake(w http.ResponseWriter, req *http.Request) {
	s.handleMove(w, req, transaction.KindUnstake)
}

func (s *Server) handleMove(w http.ResponseWriter, req *http.Request, kind transaction.Kind) {
	var body restfulpayload.TxReq
	if err := decode(w, req, &body); err != nil {
		s.returnFailure(w, req, err, http.StatusBadRequest)
		return
	}
	if err := transaction.VerifyRequest(kind, body.Input, body.Caller, body.Signature); err != nil {
		s.returnFailure(w, req, err, statusOf(err))
		return
	}

	var (
		tx  *transaction.Transaction
		err error
	)
	if kind == transaction.KindStake {
		tx, err = s.ledger.Stake(req.Context(), body.Caller, body.Input)
	} else {
		tx, err = s.ledger.Unstake(req.Context(), body.Caller, body.Input)
	}
	s.respondTx(w, req, tx, err)
}

func (s *Server) respondTx(w http.ResponseWriter, req *http.Request, tx *transaction.Transaction, err error) {
	if err != nil {
		s.returnFailure(w, req, err, statusOf(err))
		return
	}
	s.writeJSON(w, http.StatusOK, restfulpayload.TxResp{Status: restfulpayload.StatusOK, Transaction: tx})
}

// Handle /input/encrypt request
func (s *Server) HandleEncrypt(w http.ResponseWriter, req *http.Request) {
	var body restfulpayload.EncryptReq
	if err := decode(w, req, &body); err != nil {
		s.returnFailure(w, req, err, http.StatusBadRequest)
		return
	}
	if body.Contract == (types.Principal{}) {
		body.Contract = s.ledger.Address()
	}
	in, err := s.gateway.Encrypt(req.Context(), body.Value, body.Contract, body.Submitter)
	if err != nil {
		s.returnFailure(w, req, err, statusOf(err))
		return
	}
	s.writeJSON(w, http.StatusOK, restfulpayload.EncryptResp{Status: restfulpayload.StatusOK, Input: in})
}

func (s *Server) owner(w http.ResponseWriter, req *http.Request) (types.Principal, bool) {
	owner, err := types.ParsePrincipal(chi.URLParam(req, "owner"))
	if err != nil {
		s.returnFailure(w, req, err, http.StatusBadRequest)
		return owner, false
	}
	return owner, true
}

func (s *Server) writeHandle(w http.ResponseWriter, h types.Handle) {
	s.writeJSON(w, http.StatusOK, restfulpayload.HandleResp{
		Status:   restfulpayload.StatusOK,
		Handle:   h,
		Contract: s.ledger.Address(),
	})
}

// Handle /ledger/balance/{owner} request
func (s *Server) HandleBalance(w http.ResponseWriter, req *http.Request) {
	if owner, ok := s.owner(w, req); ok {
		s.writeHandle(w, s.ledger.ConfidentialBalanceOf(owner))
	}
}

// Handle /ledger/staked/{owner} request
func (s *Server) HandleStaked(w http.ResponseWriter, req *http.Request) {
	if owner, ok := s.owner(w, req); ok {
		s.writeHandle(w, s.ledger.GetStakedBalance(owner))
	}
}

// Handle /ledger/total request
func (s *Server) HandleTotal(w http.ResponseWriter, req *http.Request) {
	s.writeHandle(w, s.ledger.GetTotalStaked())
}

// Handle /ledger/tx/{uuid} request
func (s *Server) HandleTransaction(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(chi.URLParam(req, "uuid"))
	if err != nil {
		s.returnFailure(w, req, errors.Wrap(err, "parse uuid"), http.StatusBadRequest)
		return
	}
	tx, err := s.ledger.Transaction(req.Context(), id)
	if err != nil {
		s.returnFailure(w, req, err, statusOf(err))
		return
	}
	s.writeJSON(w, http.StatusOK, restfulpayload.TxResp{Status: restfulpayload.StatusOK, Transaction: tx})
}

// Handle /decrypt request
func (s *Server) HandleDecrypt(w http.ResponseWriter, req *http.Request) {
	var body restfulpayload.DecryptReq
	if err := decode(w, req, &body); err != nil {
		s.returnFailure(w, req, err, http.StatusBadRequest)
		return
	}
	sealed, err := s.kms.UserDecrypt(req.Context(), &body)
	if err != nil {
		s.returnFailure(w, req, err, statusOf(err))
		return
	}
	s.writeJSON(w, http.StatusOK, restfulpayload.DecryptResp{Status: restfulpayload.StatusOK, Sealed: sealed})
}
