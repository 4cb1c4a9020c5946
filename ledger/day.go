package ledger

import "time"

// dayNumber buckets a timestamp by wall-clock midnight in the server's
// reference timezone, encoded as YYYYMMDD so index keys sort by day. Voters
// near timezone boundaries may see slightly inconsistent caps; accepted as a
// product-level simplification.
func dayNumber(t time.Time) uint64 {
	year, month, day := t.Local().Date()
	return uint64(year)*10000 + uint64(month)*100 + uint64(day)
}
