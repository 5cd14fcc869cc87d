package wire

import "encoding/json"

// Features is the feature-negotiation payload carried in AnnounceFeatures.
// The zero value is the minimal set
// (vectors unsupported), the degraded set a peer falls back to when its
// remote's JSON fails to parse.
type Features struct {
	Vectors bool `json:"vectors"`
}

// DefaultFeatures is this side's advertised feature set.
func DefaultFeatures() Features {
	return Features{Vectors: true}
}

// Encode renders f as the features_json payload.
func (f Features) Encode() string {
	b, _ := json.Marshal(f)
	return string(b)
}

// ParseFeatures decodes a remote's features_json. A parse failure degrades
// the remote to the minimal feature set rather than erroring.
func ParseFeatures(featuresJSON string) Features {
	var f Features
	if err := json.Unmarshal([]byte(featuresJSON), &f); err != nil {
		return Features{}
	}
	return f
}

// Supports reports whether f's peer can receive values of a vector kind
// (isVector true) or a non-vector kind (isVector false), gating
// AddItem/ChangeItem population and propagation.
func (f Features) Supports(isVector bool) bool {
	if isVector {
		return f.Vectors
	}
	return true
}
