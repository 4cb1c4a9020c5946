// Package voting orchestrates vote casting: validation against competition
// state, rate limiting, id issuance, the vote log append, the aggregate
// increment and referral attribution. The log append is the commit point of a
// cast; counter and referral failures after it are logged for reconciliation
// and never rolled back, so partial failure under-counts rather than
// over-counts.
package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/ledger"
	"github.com/starcasthq/starcast/referral"
	"github.com/starcasthq/starcast/sequencer"
	"github.com/starcasthq/starcast/utils"
)

type Service struct {
	directory CompetitionDirectory
	payments  PaymentClient
	seq       *sequencer.Sequencer
	votes     *ledger.Ledger
	referrals *referral.Tracker
	log       utils.SimpleLogger

	now func() time.Time
}

func New(seq *sequencer.Sequencer, votes *ledger.Ledger, referrals *referral.Tracker,
	directory CompetitionDirectory, payments PaymentClient, log utils.SimpleLogger,
) *Service {
	return &Service{
		directory: directory,
		payments:  payments,
		seq:       seq,
		votes:     votes,
		referrals: referrals,
		log:       log,
		now:       time.Now,
	}
}

// WithClock replaces the service's clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CastRequest is a single free or in-person vote. Exactly one of VoterIP,
// AccountID or TerminalToken identifies the voter: the terminal token is the
// venue-supplied identity for in-person collection, which bypasses the
// per-IP cap but stays subject to the same daily ceiling.
type CastRequest struct {
	CompetitionID uint64
	ContestantID  uint64
	VoterIP       string
	AccountID     uint64
	TerminalToken string
	Source        core.VoteSource
	ReferralCode  string
}

func (r *CastRequest) identity() core.VoterIdentity {
	switch {
	case r.Source == core.SourceInPerson && r.TerminalToken != "":
		return core.VoterIdentity(r.TerminalToken)
	case r.AccountID != 0:
		return core.AccountIdentity(r.AccountID)
	default:
		return core.VoterIdentity(r.VoterIP)
	}
}

// CastVote validates the request, appends one vote row and updates derived
// state. The returned vote is valid whenever the error is nil, even if a
// derived-state update failed after the append.
func (s *Service) CastVote(ctx context.Context, req *CastRequest) (*core.Vote, error) {
	competition, err := s.competition(ctx, req.CompetitionID, req.ContestantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	identity := req.identity()
	if competition.MaxVotesPerDay > 0 {
		votesToday, err := s.votes.VotesToday(req.CompetitionID, identity, now)
		if err != nil {
			return nil, err
		}
		if votesToday >= competition.MaxVotesPerDay {
			incCounter(&rateLimitRejections)
			return nil, fmt.Errorf("%w: %d votes today, cap is %d",
				ErrRateLimitExceeded, votesToday, competition.MaxVotesPerDay)
		}
	}

	voteID, err := s.seq.Next(sequencer.Votes)
	if err != nil {
		return nil, err
	}
	// The stored row must carry the same identity the rate limit was checked
	// under: terminal tokens ride in the IP slot, and authenticated casts drop
	// any caller-supplied IP so the vote-day index is keyed by the account.
	voterIP := req.VoterIP
	switch {
	case req.Source == core.SourceInPerson && req.TerminalToken != "":
		voterIP = req.TerminalToken
	case req.AccountID != 0:
		voterIP = ""
	}
	vote := &core.Vote{
		ID:            voteID,
		CompetitionID: req.CompetitionID,
		ContestantID:  req.ContestantID,
		VoterIP:       voterIP,
		AccountID:     req.AccountID,
		Source:        req.Source,
		ReferralCode:  req.ReferralCode,
		CastAt:        now,
	}

	// Commit point.
	if err := s.votes.Append(vote); err != nil {
		return nil, err
	}
	incCounter(&freeVotesCast)

	if _, err := s.votes.IncrementAggregate(
		vote.CompetitionID, vote.ContestantID, vote.Source, 1, now); err != nil {
		incCounter(&derivedStateFailures)
		s.log.Errorw("aggregate increment failed after log append, run sync-count to repair",
			"competition", vote.CompetitionID, "contestant", vote.ContestantID,
			"vote", vote.ID, "err", err)
	}

	s.creditReferral(vote.ReferralCode, identity, 1)
	return vote, nil
}

// CastBulkVotes casts exactly purchase.VoteCount rows, each linked to the
// purchase. Purchased votes skip the rate limiter. The log still gains one
// row per unit; only the aggregate is incremented by the batch total.
func (s *Service) CastBulkVotes(ctx context.Context, purchase *core.Purchase, referralCode string) error {
	if purchase.VoteCount == 0 {
		return nil
	}

	firstID, err := s.seq.NextBlock(sequencer.Votes, purchase.VoteCount)
	if err != nil {
		return err
	}

	now := s.now()
	rows := make([]*core.Vote, 0, purchase.VoteCount)
	for i := uint64(0); i < purchase.VoteCount; i++ {
		rows = append(rows, &core.Vote{
			ID:            firstID + i,
			CompetitionID: purchase.CompetitionID,
			ContestantID:  purchase.ContestantID,
			AccountID:     purchase.PayerAccountID,
			PurchaseID:    purchase.ID,
			Source:        core.SourceOnline,
			ReferralCode:  referralCode,
			CastAt:        now,
		})
	}

	// Commit point.
	if err := s.votes.AppendBatch(rows); err != nil {
		return err
	}
	addCounter(&purchasedVotesCast, purchase.VoteCount)

	if _, err := s.votes.IncrementAggregate(purchase.CompetitionID, purchase.ContestantID,
		core.SourceOnline, purchase.VoteCount, now); err != nil {
		incCounter(&derivedStateFailures)
		s.log.Errorw("aggregate increment failed after bulk append, run sync-count to repair",
			"competition", purchase.CompetitionID, "contestant", purchase.ContestantID,
			"purchase", purchase.ID, "err", err)
	}

	s.creditReferral(referralCode, purchaseIdentity(purchase), purchase.VoteCount)
	return nil
}

// PurchaseRequest is a confirmed intent to buy VoteCount vote units,
// bonus already included. PayerAccountID is zero for guest checkouts.
type PurchaseRequest struct {
	PayerAccountID uint64
	GuestEmail     string
	GuestName      string
	CompetitionID  uint64
	ContestantID   uint64
	VoteCount      uint64
	AmountDue      int64
	ReferralCode   string
}

// ProcessPurchase charges the payer, records the purchase and bulk casts its
// votes. The charge completes before any vote-casting transaction begins and
// a payment failure is surfaced before anything is written.
func (s *Service) ProcessPurchase(ctx context.Context, req *PurchaseRequest) (*core.Purchase, error) {
	if _, err := s.competition(ctx, req.CompetitionID, req.ContestantID); err != nil {
		return nil, err
	}

	charge, err := s.payments.Charge(ctx, &ChargeRequest{
		PayerAccountID: req.PayerAccountID,
		GuestEmail:     req.GuestEmail,
		GuestName:      req.GuestName,
		CompetitionID:  req.CompetitionID,
		ContestantID:   req.ContestantID,
		VoteCount:      req.VoteCount,
		AmountDue:      req.AmountDue,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	purchaseID, err := s.seq.Next(sequencer.Purchases)
	if err != nil {
		return nil, err
	}
	purchase := &core.Purchase{
		ID:               purchaseID,
		PayerAccountID:   req.PayerAccountID,
		GuestEmail:       req.GuestEmail,
		GuestName:        req.GuestName,
		CompetitionID:    req.CompetitionID,
		ContestantID:     req.ContestantID,
		VoteCount:        req.VoteCount,
		AmountCharged:    charge.AmountCharged,
		PaymentReference: charge.Reference,
		PurchasedAt:      s.now(),
	}
	if err := s.votes.StorePurchase(purchase); err != nil {
		return nil, err
	}

	if err := s.CastBulkVotes(ctx, purchase, req.ReferralCode); err != nil {
		return nil, err
	}
	return purchase, nil
}

// GetVoteCount returns a contestant's cached total.
func (s *Service) GetVoteCount(competitionID, contestantID uint64) (uint64, error) {
	return s.votes.VoteCount(competitionID, contestantID)
}

// GetTotalVotes returns the cached total across all contestants of a
// competition.
func (s *Service) GetTotalVotes(competitionID uint64) (uint64, error) {
	return s.votes.TotalVotes(competitionID)
}

// SyncCount recomputes a contestant's aggregate from the vote log. Operator
// triggered; see ledger.Ledger.SyncCount.
func (s *Service) SyncCount(competitionID, contestantID uint64) (*core.AggregateCount, error) {
	return s.votes.SyncCount(competitionID, contestantID, s.now())
}

// GenerateReferralCode creates (or returns) a referral code for the owner.
func (s *Service) GenerateReferralCode(req *referral.CodeRequest) (*core.ReferralCode, error) {
	return s.referrals.GenerateCode(req, s.now())
}

// TrackReferralVote credits count votes to a code outside the casting path.
func (s *Service) TrackReferralVote(code string, identity core.VoterIdentity, count uint64) error {
	return s.referrals.TrackVote(code, identity, count)
}

// GetReferralStats returns the aggregates of every referral code.
func (s *Service) GetReferralStats() ([]*core.ReferralStats, error) {
	return s.referrals.AllStats()
}

// GetReferralCode looks up a single referral code.
func (s *Service) GetReferralCode(code string) (*core.ReferralCode, error) {
	return s.referrals.Code(code)
}

// DeleteReferralCode removes a code along with its stats and voter set.
func (s *Service) DeleteReferralCode(code string) error {
	return s.referrals.DeleteCode(code)
}

// DeleteCompetition tears down a competition's vote log and derived state.
// Purchases are financial history and survive the teardown.
func (s *Service) DeleteCompetition(competitionID uint64) error {
	return s.votes.DeleteCompetition(competitionID)
}

// GetVotesByPurchase lists the individual vote rows a purchase produced.
func (s *Service) GetVotesByPurchase(purchaseID uint64) ([]*core.Vote, error) {
	return s.votes.VotesByPurchase(purchaseID)
}

func (s *Service) competition(ctx context.Context, competitionID, contestantID uint64) (*core.Competition, error) {
	competition, err := s.directory.Competition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if !competition.Status.VotingOpen() {
		return nil, fmt.Errorf("%w: competition is %s", ErrVotingClosed, competition.Status)
	}
	if !competition.HasContestant(contestantID) {
		return nil, fmt.Errorf("%w: contestant %d in competition %d",
			ErrContestantNotInCompetition, contestantID, competitionID)
	}
	return competition, nil
}

// creditReferral is best-effort derived state: failures are logged, never
// rolled back.
func (s *Service) creditReferral(code string, identity core.VoterIdentity, count uint64) {
	if code == "" {
		return
	}
	switch err := s.referrals.TrackVote(code, identity, count); {
	case err == nil:
		addCounter(&referralCredits, count)
	case errors.Is(err, referral.ErrCodeNotFound):
		s.log.Debugw("vote carried an unknown referral code", "code", code)
	default:
		incCounter(&derivedStateFailures)
		s.log.Errorw("referral credit failed after log append",
			"code", code, "err", err)
	}
}

func purchaseIdentity(purchase *core.Purchase) core.VoterIdentity {
	if purchase.PayerAccountID != 0 {
		return core.AccountIdentity(purchase.PayerAccountID)
	}
	return core.VoterIdentity("guest:" + purchase.GuestEmail)
}
