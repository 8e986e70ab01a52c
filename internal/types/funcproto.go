package types

import (
	"slices"

	"coregraph/internal/source"
)

// Param describes a single function-prototype parameter.
type Param struct {
	Name source.StringID
	Type TypeID
}

// FuncProtoInfo stores metadata for function prototype types.
type FuncProtoInfo struct {
	Result TypeID
	Params []Param
}

// RegisterFuncProto creates or finds a function prototype type.
func (in *Interner) RegisterFuncProto(result TypeID, params []Param) TypeID {
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindFuncProto || int(tt.Payload) >= len(in.protos) {
			continue
		}
		info := in.protos[tt.Payload]
		if info.Result == result && slices.Equal(info.Params, params) {
			return id
		}
	}
	slot := in.appendProto(FuncProtoInfo{
		Result: result,
		Params: append([]Param(nil), params...),
	})
	return in.internRaw(Type{Kind: KindFuncProto, Payload: slot})
}

// FuncProtoInfo returns metadata for a function prototype TypeID.
func (in *Interner) FuncProtoInfo(id TypeID) (*FuncProtoInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFuncProto {
		return nil, false
	}
	if int(tt.Payload) >= len(in.protos) {
		return nil, false
	}
	return &in.protos[tt.Payload], true
}
