package routes

import (
	"errors"
	"net/http"
	"strings"

	"satvault/crypto"
)

type authorizeOracleRequest struct {
	Candidate string `json:"candidate"`
}

type submitPriceRequest struct {
	Price     uint64 `json:"price"`
	Timestamp uint64 `json:"timestamp"`
}

type oracleResponse struct {
	Oracle     string `json:"oracle"`
	Authorized bool   `json:"authorized"`
}

func (s *server) authorizeOracle(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req authorizeOracleRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	candidate, err := crypto.DecodeAddress(strings.TrimSpace(req.Candidate))
	if err != nil {
		writeBadRequest(w, errors.New("invalid candidate address"))
		return
	}
	if err := s.ledger.AuthorizeOracle(caller, candidate); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, oracleResponse{Oracle: candidate.String(), Authorized: true})
}

func (s *server) revokeOracle(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	candidate, err := pathAddress(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.ledger.RevokeOracle(caller, candidate); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, oracleResponse{Oracle: candidate.String(), Authorized: false})
}

func (s *server) submitPrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req submitPriceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.ledger.SubmitPrice(caller, req.Price, req.Timestamp); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) latestPrice(w http.ResponseWriter, r *http.Request) {
	obs, err := s.ledger.LatestPrice()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}
