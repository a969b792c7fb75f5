package encoding

import (
	"encoding/binary"
	"math"

	"github.com/zeusync/enginedb/pkg/vector"
)

// Layout: little-endian, no padding, vector fields in X, Y, Z order.
const (
	BoolSize    = 1
	Int32Size   = 4
	Float32Size = 4
	Vec2Size    = 2 * Float32Size
	Vec3Size    = 3 * Float32Size
	Vec2IntSize = 2 * Int32Size
	Vec3IntSize = 3 * Int32Size
)

var (
	Bool    Codec[bool]              = boolCodec{}
	Int32   Codec[int32]             = int32Codec{}
	Float32 Codec[float32]           = float32Codec{}
	Vec2    Codec[vector.Vector2]    = vec2Codec{}
	Vec3    Codec[vector.Vector3]    = vec3Codec{}
	Vec2Int Codec[vector.Vector2Int] = vec2IntCodec{}
	Vec3Int Codec[vector.Vector3Int] = vec3IntCodec{}
)

func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBool treats any non-zero byte as true.
func DecodeBool(b []byte) bool { return b[0] != 0 }

func EncodeInt32(v int32) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, Int32Size), uint32(v))
}

func DecodeInt32(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }

func EncodeFloat32(v float32) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, Float32Size), math.Float32bits(v))
}

func DecodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func EncodeVector2(v vector.Vector2) []byte {
	return Concat(EncodeFloat32(v.X), EncodeFloat32(v.Y))
}

func DecodeVector2(b []byte) vector.Vector2 {
	return vector.Vector2{X: DecodeFloat32(b[0:]), Y: DecodeFloat32(b[4:])}
}

func EncodeVector3(v vector.Vector3) []byte {
	return Concat(EncodeFloat32(v.X), EncodeFloat32(v.Y), EncodeFloat32(v.Z))
}

func DecodeVector3(b []byte) vector.Vector3 {
	return vector.Vector3{X: DecodeFloat32(b[0:]), Y: DecodeFloat32(b[4:]), Z: DecodeFloat32(b[8:])}
}

func EncodeVector2Int(v vector.Vector2Int) []byte {
	return Concat(EncodeInt32(v.X), EncodeInt32(v.Y))
}

func DecodeVector2Int(b []byte) vector.Vector2Int {
	return vector.Vector2Int{X: DecodeInt32(b[0:]), Y: DecodeInt32(b[4:])}
}

func EncodeVector3Int(v vector.Vector3Int) []byte {
	return Concat(EncodeInt32(v.X), EncodeInt32(v.Y), EncodeInt32(v.Z))
}

func DecodeVector3Int(b []byte) vector.Vector3Int {
	return vector.Vector3Int{X: DecodeInt32(b[0:]), Y: DecodeInt32(b[4:]), Z: DecodeInt32(b[8:])}
}

type boolCodec struct{}

func (boolCodec) Size() int            { return BoolSize }
func (boolCodec) Encode(v bool) []byte { return EncodeBool(v) }
func (boolCodec) Decode(b []byte) bool { return DecodeBool(b) }

type int32Codec struct{}

func (int32Codec) Size() int             { return Int32Size }
func (int32Codec) Encode(v int32) []byte { return EncodeInt32(v) }
func (int32Codec) Decode(b []byte) int32 { return DecodeInt32(b) }

type float32Codec struct{}

func (float32Codec) Size() int               { return Float32Size }
func (float32Codec) Encode(v float32) []byte { return EncodeFloat32(v) }
func (float32Codec) Decode(b []byte) float32 { return DecodeFloat32(b) }

type vec2Codec struct{}

func (vec2Codec) Size() int                      { return Vec2Size }
func (vec2Codec) Encode(v vector.Vector2) []byte { return EncodeVector2(v) }
func (vec2Codec) Decode(b []byte) vector.Vector2 { return DecodeVector2(b) }

type vec3Codec struct{}

func (vec3Codec) Size() int                      { return Vec3Size }
func (vec3Codec) Encode(v vector.Vector3) []byte { return EncodeVector3(v) }
func (vec3Codec) Decode(b []byte) vector.Vector3 { return DecodeVector3(b) }

type vec2IntCodec struct{}

func (vec2IntCodec) Size() int                         { return Vec2IntSize }
func (vec2IntCodec) Encode(v vector.Vector2Int) []byte { return EncodeVector2Int(v) }
func (vec2IntCodec) Decode(b []byte) vector.Vector2Int { return DecodeVector2Int(b) }

type vec3IntCodec struct{}

func (vec3IntCodec) Size() int                         { return Vec3IntSize }
func (vec3IntCodec) Encode(v vector.Vector3Int) []byte { return EncodeVector3Int(v) }
func (vec3IntCodec) Decode(b []byte) vector.Vector3Int { return DecodeVector3Int(b) }
