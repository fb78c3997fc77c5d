package adminrpc

import "encoding/json"

// jsonCodec replaces connect's protobuf-only JSON codec so plain Go structs
// can travel as messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
