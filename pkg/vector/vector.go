// Package vector holds the fixed-width vector value types of the primitive
// codecs.
package vector

// Vector2 is a pair of 32-bit floats.
type Vector2 struct {
	X float32
	Y float32
}

// Vector3 is a triple of 32-bit floats.
type Vector3 struct {
	X float32
	Y float32
	Z float32
}

// Vector2Int is a pair of 32-bit signed integers.
type Vector2Int struct {
	X int32
	Y int32
}

// Vector3Int is a triple of 32-bit signed integers.
type Vector3Int struct {
	X int32
	Y int32
	Z int32
}
