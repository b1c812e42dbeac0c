package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// maxEventNesting bounds how deep a decoded trace record may nest. An Event
// is three levels deep; anything deeper is not a trace written by this package.
const maxEventNesting = 8

// Trace files use RFC 3339 timestamps with nanoseconds so events from one
// run sort and diff exactly.
var (
	traceEncMode cbor.EncMode
	traceDecMode cbor.DecMode
)

func init() {
	var err error

	traceEncMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace encoder mode: %v", err))
	}

	// Unknown keys are skipped so older analyzers can read newer traces.
	traceDecMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		MaxNestedLevels:   maxEventNesting,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace decoder mode: %v", err))
	}
}

// EncodeEvent encodes one trace record.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEncMode.Marshal(event)
}

// NewDecoder reads consecutive trace records from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDecMode.NewDecoder(r)
}
