package encoding

// Serializable provides a clean, simple interface for serializing and deserializing values.
type Serializable interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

// Codec encodes values of T into a fixed number of bytes.
// Decode reads exactly Size() bytes from the front of the buffer and does not
// check the length; callers own the size contract.
type Codec[T any] interface {
	Size() int
	Encode(T) []byte
	Decode([]byte) T
}

// Concat joins byte slices in order into one freshly allocated slice.
func Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
