package replay

import (
	"encoding/json"
	"fmt"
)

// Codec turns a state document into the value handed to subscribers. Decode
// must return a value that shares no mutable memory with doc.
type Codec[T any] interface {
	Decode(doc Doc) (T, error)
}

// JSONCodec decodes documents by round-tripping them through encoding/json,
// so T may use json tags and custom unmarshalers.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Decode(doc Doc) (T, error) {
	var out T
	data, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("encode state: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode state: %w", err)
	}
	return out, nil
}

// DocCodec hands subscribers a deep copy of the raw document.
type DocCodec struct{}

var _ Codec[Doc] = DocCodec{}

func (DocCodec) Decode(doc Doc) (Doc, error) {
	out, _ := DeepCopy(doc).(Doc)
	if out == nil {
		out = Doc{}
	}
	return out, nil
}
