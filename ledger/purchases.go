package ledger

import (
	"errors"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/encoder"
)

var ErrPurchaseNotFound = errors.New("purchase not found")

// StorePurchase writes a purchase record. Purchases are immutable once
// created; the bulk cast that follows links every vote row back via the
// purchase id.
func (l *Ledger) StorePurchase(purchase *core.Purchase) error {
	return db.UpdateWithRetry(l.database, func(txn db.Transaction) error {
		purchaseBytes, err := encoder.Marshal(purchase)
		if err != nil {
			return err
		}
		return txn.Set(purchaseKey(purchase.ID), purchaseBytes)
	})
}

// Purchase returns a purchase record by id.
func (l *Ledger) Purchase(purchaseID uint64) (*core.Purchase, error) {
	purchase := new(core.Purchase)
	err := l.database.View(func(txn db.Transaction) error {
		return txn.Get(purchaseKey(purchaseID), func(val []byte) error {
			return encoder.Unmarshal(val, purchase)
		})
	})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return purchase, nil
}
