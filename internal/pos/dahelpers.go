package pos

import (
	"encoding/json"
	"errors"

	"github.com/aquamarinepk/aqm"
)

// decodeSuccessResponse copies the dynamic response payload into dest.
func decodeSuccessResponse(resp *aqm.SuccessResponse, dest interface{}) error {
	if resp == nil {
		return errors.New("nil success response")
	}

	return rehydrate(resp.Data, dest)
}

// rehydrate round-trips a dynamic payload through JSON into a typed value.
// It is the single normalization step at the service boundary: some backends
// return payloads as already-parsed objects, others as string-encoded JSON.
// Business logic never branches on payload shape; it always receives typed
// values from here.
func rehydrate(data interface{}, dest interface{}) error {
	if raw, ok := data.(string); ok {
		return json.Unmarshal([]byte(raw), dest)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// decodeEnvelope decodes a raw response body into dest. Services wrap
// payloads as {"data": ...}; a few endpoints answer bare objects, so the
// bare shape is the fallback. Either way dest receives a typed value.
func decodeEnvelope(body []byte, dest interface{}) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, dest)
	}
	return json.Unmarshal(body, dest)
}

// rehydrateCollection is rehydrate with an array-shape guarantee: a nil or
// absent payload becomes an empty slice and a single object becomes a
// one-element slice, so callers always iterate.
func rehydrateCollection(data interface{}, dest interface{}) error {
	if data == nil {
		return rehydrate([]interface{}{}, dest)
	}

	if raw, ok := data.(string); ok {
		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return err
		}
		data = parsed
	}

	if _, ok := data.([]interface{}); !ok {
		data = []interface{}{data}
	}

	return rehydrate(data, dest)
}
