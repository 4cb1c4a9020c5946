package db

import "slices"

type Bucket byte

// Pebble does not support buckets to differentiate between groups of keys
// like Bolt or MDBX does. We use a global prefix list as a poor man's bucket
// alternative.
const (
	Counter              Bucket = iota // (namespace) -> last issued id
	Votes                              // (competitionID, voteID) -> Vote
	VotesByPurchase                    // (purchaseID, voteID) -> competitionID
	VoterDayIndex                      // (competitionID, day, identityHash, voteID) -> ()
	Aggregates                         // (competitionID, contestantID) -> AggregateCount
	Purchases                          // (purchaseID) -> Purchase
	ReferralCodes                      // (code) -> ReferralCode
	ReferralCodesByOwner               // (ownerID) -> code
	ReferralStats                      // (code) -> ReferralStats
	ReferralVoters                     // (code, identityHash) -> ()
)

// Key flattens a prefix and series of byte arrays into a single []byte.
func (b Bucket) Key(key ...[]byte) []byte {
	return append([]byte{byte(b)}, slices.Concat(key...)...)
}
