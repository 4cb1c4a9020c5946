package node

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/cors"
	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/ledger"
	"github.com/starcasthq/starcast/referral"
	"github.com/starcasthq/starcast/utils"
	"github.com/starcasthq/starcast/validator"
	"github.com/starcasthq/starcast/voting"
)

type api struct {
	votes *voting.Service
	log   utils.SimpleLogger
}

func makeAPI(port uint16, votes *voting.Service, log utils.SimpleLogger) (*httpService, error) {
	return makeHTTPService(port, apiHandler(votes, log))
}

func apiHandler(votes *voting.Service, log utils.SimpleLogger) http.Handler {
	a := &api{votes: votes, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/votes", a.castVote)
	mux.HandleFunc("POST /v1/purchases", a.processPurchase)
	mux.HandleFunc("GET /v1/purchases/{id}/votes", a.votesByPurchase)
	mux.HandleFunc("GET /v1/competitions/{id}/contestants/{contestant}/count", a.voteCount)
	mux.HandleFunc("GET /v1/competitions/{id}/total", a.totalVotes)
	mux.HandleFunc("POST /v1/competitions/{id}/contestants/{contestant}/sync-count", a.syncCount)
	mux.HandleFunc("DELETE /v1/competitions/{id}", a.deleteCompetition)
	mux.HandleFunc("POST /v1/referrals", a.generateReferralCode)
	mux.HandleFunc("GET /v1/referrals/stats", a.referralStats)
	mux.HandleFunc("GET /v1/referrals/{code}", a.referralCode)
	mux.HandleFunc("DELETE /v1/referrals/{code}", a.deleteReferralCode)

	return cors.Default().Handler(mux)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Errorw("Failed to write response", "err", err)
	}
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, voting.ErrCompetitionNotFound),
		errors.Is(err, voting.ErrContestantNotInCompetition),
		errors.Is(err, referral.ErrCodeNotFound),
		errors.Is(err, ledger.ErrVoteNotFound),
		errors.Is(err, ledger.ErrPurchaseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, voting.ErrVotingClosed):
		status = http.StatusConflict
	case errors.Is(err, voting.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, voting.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	}
	if status == http.StatusInternalServerError {
		a.log.Errorw("Request failed", "err", err)
	}
	a.writeJSON(w, status, &errorResponse{Error: err.Error()})
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	if err := validator.Validator().Struct(req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(name), 10, 64)
}

type castVoteRequest struct {
	CompetitionID uint64 `json:"competition_id" validate:"required"`
	ContestantID  uint64 `json:"contestant_id" validate:"required"`
	VoterIP       string `json:"voter_ip,omitempty"`
	AccountID     uint64 `json:"account_id,omitempty"`
	TerminalToken string `json:"terminal_token,omitempty"`
	Source        string `json:"source" validate:"required,vote_source"`
	ReferralCode  string `json:"referral_code,omitempty"`
}

type voteResponse struct {
	ID            uint64 `json:"id"`
	CompetitionID uint64 `json:"competition_id"`
	ContestantID  uint64 `json:"contestant_id"`
	PurchaseID    uint64 `json:"purchase_id,omitempty"`
	Source        string `json:"source"`
	ReferralCode  string `json:"referral_code,omitempty"`
	CastAt        int64  `json:"cast_at"`
}

func makeVoteResponse(vote *core.Vote) *voteResponse {
	return &voteResponse{
		ID:            vote.ID,
		CompetitionID: vote.CompetitionID,
		ContestantID:  vote.ContestantID,
		PurchaseID:    vote.PurchaseID,
		Source:        vote.Source.String(),
		ReferralCode:  vote.ReferralCode,
		CastAt:        vote.CastAt.Unix(),
	}
}

func (a *api) castVote(w http.ResponseWriter, r *http.Request) {
	req := new(castVoteRequest)
	if !a.decode(w, r, req) {
		return
	}
	var source core.VoteSource
	if err := source.Set(req.Source); err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}

	vote, err := a.votes.CastVote(r.Context(), &voting.CastRequest{
		CompetitionID: req.CompetitionID,
		ContestantID:  req.ContestantID,
		VoterIP:       req.VoterIP,
		AccountID:     req.AccountID,
		TerminalToken: req.TerminalToken,
		Source:        source,
		ReferralCode:  req.ReferralCode,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, makeVoteResponse(vote))
}

type purchaseRequest struct {
	PayerAccountID uint64 `json:"payer_account_id,omitempty"`
	GuestEmail     string `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestName      string `json:"guest_name,omitempty"`
	CompetitionID  uint64 `json:"competition_id" validate:"required"`
	ContestantID   uint64 `json:"contestant_id" validate:"required"`
	VoteCount      uint64 `json:"vote_count" validate:"required,min=1"`
	AmountDue      int64  `json:"amount_due" validate:"min=0"`
	ReferralCode   string `json:"referral_code,omitempty"`
}

type purchaseResponse struct {
	ID               uint64 `json:"id"`
	CompetitionID    uint64 `json:"competition_id"`
	ContestantID     uint64 `json:"contestant_id"`
	VoteCount        uint64 `json:"vote_count"`
	AmountCharged    int64  `json:"amount_charged"`
	PaymentReference string `json:"payment_reference"`
}

func (a *api) processPurchase(w http.ResponseWriter, r *http.Request) {
	req := new(purchaseRequest)
	if !a.decode(w, r, req) {
		return
	}
	if req.PayerAccountID == 0 && req.GuestEmail == "" {
		a.writeJSON(w, http.StatusBadRequest,
			&errorResponse{Error: "either payer_account_id or guest_email is required"})
		return
	}

	purchase, err := a.votes.ProcessPurchase(r.Context(), &voting.PurchaseRequest{
		PayerAccountID: req.PayerAccountID,
		GuestEmail:     req.GuestEmail,
		GuestName:      req.GuestName,
		CompetitionID:  req.CompetitionID,
		ContestantID:   req.ContestantID,
		VoteCount:      req.VoteCount,
		AmountDue:      req.AmountDue,
		ReferralCode:   req.ReferralCode,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, &purchaseResponse{
		ID:               purchase.ID,
		CompetitionID:    purchase.CompetitionID,
		ContestantID:     purchase.ContestantID,
		VoteCount:        purchase.VoteCount,
		AmountCharged:    purchase.AmountCharged,
		PaymentReference: purchase.PaymentReference,
	})
}

func (a *api) votesByPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := pathID(r, "id")
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid purchase id"})
		return
	}
	votes, err := a.votes.GetVotesByPurchase(purchaseID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	res := make([]*voteResponse, 0, len(votes))
	for _, vote := range votes {
		res = append(res, makeVoteResponse(vote))
	}
	a.writeJSON(w, http.StatusOK, res)
}

type countResponse struct {
	CompetitionID uint64 `json:"competition_id"`
	ContestantID  uint64 `json:"contestant_id,omitempty"`
	Count         uint64 `json:"count"`
}

func (a *api) voteCount(w http.ResponseWriter, r *http.Request) {
	competitionID, err := pathID(r, "id")
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid competition id"})
		return
	}
	contestantID, err := pathID(r, "contestant")
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid contestant id"})
		return
	}
	count, err := a.votes.GetVoteCount(competitionID, contestantID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, &countResponse{
		CompetitionID: competitionID,
		ContestantID:  contestantID,
		Count:         count,
	})
}

func (a *api) totalVotes(w http.ResponseWriter, r *http.Request) {
	competitionID, err := pathID(r, "id")
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid competition id"})
		return
	}
	total, err := a.votes.GetTotalVotes(competitionID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, &countResponse{CompetitionID: competitionID, Count: total})
}

type aggregateResponse struct {
	CompetitionID uint64 `json:"competition_id"`
	ContestantID  uint64 `json:"contestant_id"`
	OnlineCount   uint64 `json:"online_count"`
	InPersonCount uint64 `json:"in_person_count"`
	TotalCount    uint64 `json:"total_count"`
	UpdatedAt     int64  `json:"updated_at"`
}

func (a *api) syncCount(w http.ResponseWriter, r *http.Request) {
	competitionID, err := pathID(r, "id")
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid competition id"})
		return
	}
	contestantID, err := pathID(r, "contestant")
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid contestant id"})
		return
	}
	aggregate, err := a.votes.SyncCount(competitionID, contestantID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, &aggregateResponse{
		CompetitionID: aggregate.CompetitionID,
		ContestantID:  aggregate.ContestantID,
		OnlineCount:   aggregate.OnlineCount,
		InPersonCount: aggregate.InPersonCount,
		TotalCount:    aggregate.TotalCount,
		UpdatedAt:     aggregate.UpdatedAt.Unix(),
	})
}

func (a *api) deleteCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, err := pathID(r, "id")
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid competition id"})
		return
	}
	if err := a.votes.DeleteCompetition(competitionID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type referralCodeRequest struct {
	OwnerID            uint64 `json:"owner_id" validate:"required"`
	OwnerType          string `json:"owner_type" validate:"required,oneof=talent host admin custom"`
	OwnerName          string `json:"owner_name,omitempty"`
	CompetitionID      uint64 `json:"competition_id,omitempty"`
	ContestantID       uint64 `json:"contestant_id,omitempty"`
	SkipDuplicateCheck bool   `json:"skip_duplicate_check,omitempty"`
}

type referralCodeResponse struct {
	Code          string `json:"code"`
	OwnerID       uint64 `json:"owner_id"`
	OwnerType     string `json:"owner_type"`
	OwnerName     string `json:"owner_name,omitempty"`
	CompetitionID uint64 `json:"competition_id,omitempty"`
	ContestantID  uint64 `json:"contestant_id,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

func makeReferralCodeResponse(code *core.ReferralCode) *referralCodeResponse {
	return &referralCodeResponse{
		Code:          code.Code,
		OwnerID:       code.OwnerID,
		OwnerType:     code.OwnerType.String(),
		OwnerName:     code.OwnerName,
		CompetitionID: code.CompetitionID,
		ContestantID:  code.ContestantID,
		CreatedAt:     code.CreatedAt.Unix(),
	}
}

func (a *api) generateReferralCode(w http.ResponseWriter, r *http.Request) {
	req := new(referralCodeRequest)
	if !a.decode(w, r, req) {
		return
	}
	var ownerType core.OwnerType
	if err := ownerType.Set(req.OwnerType); err != nil {
		a.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}

	code, err := a.votes.GenerateReferralCode(&referral.CodeRequest{
		OwnerID:            req.OwnerID,
		OwnerType:          ownerType,
		OwnerName:          req.OwnerName,
		CompetitionID:      req.CompetitionID,
		ContestantID:       req.ContestantID,
		SkipDuplicateCheck: req.SkipDuplicateCheck,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, makeReferralCodeResponse(code))
}

type referralStatsResponse struct {
	Code             string `json:"code"`
	TotalVotesDriven uint64 `json:"total_votes_driven"`
	UniqueVoters     uint64 `json:"unique_voters"`
}

func (a *api) referralStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.votes.GetReferralStats()
	if err != nil {
		a.writeError(w, err)
		return
	}
	res := make([]*referralStatsResponse, 0, len(stats))
	for _, s := range stats {
		res = append(res, &referralStatsResponse{
			Code:             s.Code,
			TotalVotesDriven: s.TotalVotesDriven,
			UniqueVoters:     s.UniqueVoters,
		})
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *api) referralCode(w http.ResponseWriter, r *http.Request) {
	code, err := a.votes.GetReferralCode(r.PathValue("code"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, makeReferralCodeResponse(code))
}

func (a *api) deleteReferralCode(w http.ResponseWriter, r *http.Request) {
	if err := a.votes.DeleteReferralCode(r.PathValue("code")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
