package models

// Behaviour is a named unit of entity logic attached at load time.
type Behaviour interface {
	BehaviourName() string
}

// FieldApplier is implemented by behaviours whose fields can be restored from
// persisted metadata. ApplyField returns false when the field is unknown or
// the value has the wrong type.
type FieldApplier interface {
	ApplyField(name string, value any) bool
}

// ScriptRef points at a behaviour type by name and the source file it came from.
type ScriptRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}
