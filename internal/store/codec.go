package store

import (
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/rotisserie/eris"

	"github.com/sells-group/valuegrid/internal/engine"
)

// encodeResult serializes a result as snappy-compressed JSON.
func encodeResult(res *engine.Result) ([]byte, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal result")
	}
	return snappy.Encode(nil, raw), nil
}

func decodeResult(payload []byte) (*engine.Result, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, eris.Wrap(err, "store: decompress result")
	}
	var res engine.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal result")
	}
	return &res, nil
}
