package consumer

import (
	"encoding/json"
	"errors"
	"fmt"

	"skatestock/internal/model"
)

// ErrDecode marks payloads that are not valid encoded data. Non-retriable:
// a payload that will never parse is skipped, not replayed.
var ErrDecode = errors.New("decode payload")

// Decoder turns message bytes into a RawEvent. Pluggable so an Avro
// decoder backed by a schema registry can replace the JSON default.
type Decoder interface {
	Decode(value []byte) (model.RawEvent, error)
}

// JSONDecoder decodes UTF-8 JSON payloads. Unknown fields are ignored.
type JSONDecoder struct{}

func (JSONDecoder) Decode(value []byte) (model.RawEvent, error) {
	var ev model.RawEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return model.RawEvent{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return ev, nil
}
