package snapshot

import (
	"encoding/json"
)

// NewJSONCodec creates a new codec using json encoding
func NewJSONCodec() ICodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the ICodec interface using json encoding
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see snapshot.ICodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl) Encode(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

func (j jsonCodecImpl) Decode(b []byte, doc *Document) error {
	return json.Unmarshal(b, doc)
}
