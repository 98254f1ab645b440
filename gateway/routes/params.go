package routes

import (
	"net/http"

	"satvault/crypto"
	"satvault/native/params"
)

type ratioRequest struct {
	Ratio uint64 `json:"ratio"`
}

type limitRequest struct {
	Limit uint64 `json:"limit"`
}

type feesRequest struct {
	MintFeeBps       uint64 `json:"mint_fee_bps"`
	RedemptionFeeBps uint64 `json:"redemption_fee_bps"`
}

type maxAgeRequest struct {
	Blocks uint64 `json:"blocks"`
}

type pausesRequest struct {
	Create    bool `json:"create"`
	Mint      bool `json:"mint"`
	Redeem    bool `json:"redeem"`
	Liquidate bool `json:"liquidate"`
}

func (s *server) params(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.Params()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// updateParams decodes a governance request into req, applies it and responds
// with the resulting parameter view.
func (s *server) updateParams(w http.ResponseWriter, r *http.Request, req interface{}, apply func(caller crypto.Address) error) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := apply(caller); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.params(w, r)
}

func (s *server) setCollateralizationRatio(w http.ResponseWriter, r *http.Request) {
	var req ratioRequest
	s.updateParams(w, r, &req, func(caller crypto.Address) error {
		return s.ledger.SetCollateralizationRatio(caller, req.Ratio)
	})
}

func (s *server) setMaxMintLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	s.updateParams(w, r, &req, func(caller crypto.Address) error {
		return s.ledger.SetMaxMintLimit(caller, req.Limit)
	})
}

func (s *server) setFees(w http.ResponseWriter, r *http.Request) {
	var req feesRequest
	s.updateParams(w, r, &req, func(caller crypto.Address) error {
		return s.ledger.SetFees(caller, req.MintFeeBps, req.RedemptionFeeBps)
	})
}

func (s *server) setOracleMaxAge(w http.ResponseWriter, r *http.Request) {
	var req maxAgeRequest
	s.updateParams(w, r, &req, func(caller crypto.Address) error {
		return s.ledger.SetOracleMaxAge(caller, req.Blocks)
	})
}

func (s *server) setPauses(w http.ResponseWriter, r *http.Request) {
	var req pausesRequest
	s.updateParams(w, r, &req, func(caller crypto.Address) error {
		return s.ledger.SetPauses(caller, params.Pauses{
			Create:    req.Create,
			Mint:      req.Mint,
			Redeem:    req.Redeem,
			Liquidate: req.Liquidate,
		})
	})
}
