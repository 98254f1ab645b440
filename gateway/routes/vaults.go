package routes

import (
	"net/http"

	"satvault/core/types"
	"satvault/crypto"
	"satvault/native/vault"
)

type createVaultRequest struct {
	Collateral uint64 `json:"collateral"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type vaultResponse struct {
	*types.Vault
	CollateralBTC string `json:"collateralBtc"`
}

type vaultListResponse struct {
	Owner  string          `json:"owner"`
	Vaults []vaultResponse `json:"vaults"`
}

type supplyResponse struct {
	Token string `json:"token"`
	Total string `json:"total"`
}

func renderVault(v *types.Vault) vaultResponse {
	return vaultResponse{Vault: v, CollateralBTC: vault.FormatSats(v.Collateral)}
}

func (s *server) createVault(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req createVaultRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := s.ledger.CreateVault(caller, req.Collateral)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.respondVault(w, r, caller, id, http.StatusCreated)
}

func (s *server) respondVault(w http.ResponseWriter, r *http.Request, owner crypto.Address, id uint64, status int) {
	v, err := s.ledger.GetVault(owner, id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if v == nil {
		writeNotFound(w, "vault not found")
		return
	}
	writeJSON(w, status, renderVault(v))
}

func (s *server) listVaults(w http.ResponseWriter, r *http.Request) {
	owner, err := pathAddress(r, "owner")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	vaults, err := s.ledger.ListVaults(owner)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	resp := vaultListResponse{Owner: owner.String(), Vaults: make([]vaultResponse, 0, len(vaults))}
	for _, v := range vaults {
		resp.Vaults = append(resp.Vaults, renderVault(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) getVault(w http.ResponseWriter, r *http.Request) {
	owner, id, err := pathVault(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.respondVault(w, r, owner, id, http.StatusOK)
}

func (s *server) vaultPosition(w http.ResponseWriter, r *http.Request) {
	owner, id, err := pathVault(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pos, err := s.ledger.VaultPosition(owner, id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *server) mint(w http.ResponseWriter, r *http.Request) {
	s.adjustDebt(w, r, s.ledger.Mint)
}

func (s *server) redeem(w http.ResponseWriter, r *http.Request) {
	s.adjustDebt(w, r, s.ledger.Redeem)
}

func (s *server) adjustDebt(w http.ResponseWriter, r *http.Request, apply func(caller, owner crypto.Address, id, amount uint64) error) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	owner, id, err := pathVault(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := apply(caller, owner, id, req.Amount); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.respondVault(w, r, owner, id, http.StatusOK)
}

func (s *server) liquidate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	owner, id, err := pathVault(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	result, err := s.ledger.Liquidate(caller, owner, id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) vaultHistory(w http.ResponseWriter, r *http.Request) {
	owner, id, err := pathVault(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if s.history == nil {
		writeIndexerUnavailable(w)
		return
	}
	ctx, cancel := requestContext(r.Context())
	defer cancel()
	events, err := s.history.VaultHistory(ctx, owner, id, queryLimit(r, 100, 1000))
	s.writeEvents(w, r, events, err)
}

// recentEvents lists the newest indexed events first.
func (s *server) recentEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeIndexerUnavailable(w)
		return
	}
	ctx, cancel := requestContext(r.Context())
	defer cancel()
	events, err := s.history.Recent(ctx, queryLimit(r, 100, 1000))
	s.writeEvents(w, r, events, err)
}

func writeIndexerUnavailable(w http.ResponseWriter) {
	writeJSONError(w, http.StatusServiceUnavailable, "IndexerUnavailable", "event indexer disabled")
}

func (s *server) writeEvents(w http.ResponseWriter, r *http.Request, events []types.Event, err error) {
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *server) totalSupply(w http.ResponseWriter, r *http.Request) {
	total, err := s.ledger.TotalSupply()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplyResponse{Token: s.ledger.Symbol(), Total: total.String()})
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
