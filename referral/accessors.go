package referral

import (
	"bytes"
	"encoding/binary"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/encoder"
)

func codeKey(code string) []byte {
	return db.ReferralCodes.Key([]byte(code))
}

func ownerKey(ownerID uint64) []byte {
	ownerBin := make([]byte, 8)
	binary.BigEndian.PutUint64(ownerBin, ownerID)
	return db.ReferralCodesByOwner.Key(ownerBin)
}

func statsKey(code string) []byte {
	return db.ReferralStats.Key([]byte(code))
}

func voterKey(code string, identity core.VoterIdentity) []byte {
	hash := identity.Hash()
	return db.ReferralVoters.Key([]byte(code), hash[:])
}

func getCode(txn db.Transaction, code string) (*core.ReferralCode, error) {
	resolved := new(core.ReferralCode)
	if err := txn.Get(codeKey(code), func(val []byte) error {
		return encoder.Unmarshal(val, resolved)
	}); err != nil {
		return nil, err
	}
	return resolved, nil
}

func storeCode(txn db.Transaction, code *core.ReferralCode) error {
	codeBytes, err := encoder.Marshal(code)
	if err != nil {
		return err
	}
	return txn.Set(codeKey(code.Code), codeBytes)
}

func ownerCode(txn db.Transaction, ownerID uint64) (code string, err error) {
	err = txn.Get(ownerKey(ownerID), func(val []byte) error {
		code = string(val)
		return nil
	})
	return code, err
}

func getStats(txn db.Transaction, code string) (*core.ReferralStats, error) {
	stats := new(core.ReferralStats)
	if err := txn.Get(statsKey(code), func(val []byte) error {
		return encoder.Unmarshal(val, stats)
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

func storeStats(txn db.Transaction, stats *core.ReferralStats) error {
	statsBytes, err := encoder.Marshal(stats)
	if err != nil {
		return err
	}
	return txn.Set(statsKey(stats.Code), statsBytes)
}

func deleteVoterSet(txn db.Transaction, code string) error {
	it, err := txn.NewIterator()
	if err != nil {
		return err
	}
	defer it.Close()

	prefix := db.ReferralVoters.Key([]byte(code))
	var keys [][]byte
	for it.Seek(prefix); it.Valid(); it.Next() {
		if !bytes.HasPrefix(it.Key(), prefix) {
			break
		}
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
