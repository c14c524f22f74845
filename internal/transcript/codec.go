package transcript

import "encoding/json"

// decodeKnown unmarshals raw into known (an alias type without custom JSON
// methods) and returns the wire fields that the known schema did not consume.
// The split keeps raw data round-trippable: encode re-emits known fields from
// the struct and everything else from the returned map.
func decodeKnown(raw []byte, known any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(raw, known); err != nil {
		return nil, err
	}
	return splitExtra(raw, known)
}

// splitExtra returns the fields of raw that are not produced by marshaling
// known. A field that marshals as absent (omitempty with a zero value) is
// left in the extra map, preserving its original raw form.
func splitExtra(raw []byte, known any) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	knownJSON, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	var knownKeys map[string]json.RawMessage
	if err := json.Unmarshal(knownJSON, &knownKeys); err != nil {
		return nil, err
	}
	for key := range knownKeys {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeExtra marshals known and overlays the extra fields. Known fields win
// on collision, which cannot happen for maps produced by splitExtra.
func mergeExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}
