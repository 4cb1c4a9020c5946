// Package encoder provides the canonical CBOR encoding used for every record
// the ledger persists.
package encoder

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	initOnce sync.Once
)

func initModes() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		// Reasonably high ceiling to reject corrupt records early.
		MaxArrayElements: 10485760,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) {
	initOnce.Do(initModes)
	return encMode.Marshal(v)
}

// Unmarshal decodes b into v.
func Unmarshal(b []byte, v any) error {
	initOnce.Do(initModes)
	return decMode.Unmarshal(b, v)
}
