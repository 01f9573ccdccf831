// Package codec holds the CBOR configuration shared by every wire format
// exchanged between peers (tickets and room messages).
//
// Encoding uses Core Deterministic Encoding so the same value always
// produces the same bytes. Decoding is strict about structure: trailing
// bytes, duplicate map keys and oversized containers are rejected since
// every payload arrives from an untrusted peer.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 4096,
		MaxMapPairs:      256,
		MaxNestedLevels:  16,
		UTF8:             cbor.UTF8RejectInvalid,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes a single CBOR data item into v. Data left over after
// the item is an error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders data in CBOR diagnostic notation, used when logging
// payloads that failed to decode.
func Diagnose(data []byte) string {
	out, err := cbor.Diagnose(data)
	if err != nil {
		return "<invalid cbor>"
	}
	return out
}
