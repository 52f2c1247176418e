package payload

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes payload values.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Codec names.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return MsgpackCodec{}
	default:
		return JSONCodec{}
	}
}

// JSONCodec encodes payloads as JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return CodecNameJSON }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec encodes payloads as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string                       { return CodecNameMsgpack }
func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
