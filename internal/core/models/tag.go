package models

import "fmt"

// TagSlots is the fixed number of tag slots on every entity.
const TagSlots = 4

// Tag is a one-byte classification slot, similar to a layer flag.
type Tag uint8

const (
	TagNone Tag = iota
	TagPlayer
	TagEnemy
	TagGround
	TagTrigger
	TagCamera
	TagLight
)

var tagNames = map[Tag]string{
	TagNone:    "None",
	TagPlayer:  "Player",
	TagEnemy:   "Enemy",
	TagGround:  "Ground",
	TagTrigger: "Trigger",
	TagCamera:  "Camera",
	TagLight:   "Light",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Tags holds the entity's tag slots. A zero value means every slot is TagNone.
type Tags [TagSlots]Tag

// Has reports whether any slot holds t.
func (ts Tags) Has(t Tag) bool {
	for _, v := range ts {
		if v == t {
			return true
		}
	}
	return false
}
