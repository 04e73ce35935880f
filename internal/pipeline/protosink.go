package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ResultStruct converts r into a protobuf Struct with the same field names
// as its JSON form.
func ResultStruct(r Result) (*structpb.Struct, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to convert result: %w", err)
	}
	return s, nil
}

// ProtoDelimSink writes each Result to w as a varint length-prefixed
// google.protobuf.Struct message, readable with protodelim.UnmarshalFrom.
func ProtoDelimSink(w io.Writer) Sink {
	var mu sync.Mutex
	return func(r Result) error {
		s, err := ResultStruct(r)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := protodelim.MarshalTo(w, s); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		return nil
	}
}
