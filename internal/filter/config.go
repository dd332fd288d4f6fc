package filter

import "encoding/json"

// unmarshalJSON decodes a filter's opaque config string into a fixed-shape
// struct. Each filter's config is a known Go type (spec.md §6's filter
// configuration payload table), so a direct struct-tag decode is the
// natural fit; gjson/sjson earn their keep elsewhere in the wider gateway
// ecosystem for dynamic field-path get/set against arbitrary untyped JSON
// bodies (request/response transformation, field encryption) — a concern
// this module's Non-goals place out of scope, so there is no fixed-shape
// decode here that gjson would improve on over encoding/json.
func unmarshalJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
