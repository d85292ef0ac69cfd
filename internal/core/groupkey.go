package core

import (
	"encoding/json"
	"strconv"
)

// KeyTag discriminates the three GroupKey variants.
type KeyTag uint8

const (
	KeyEntity KeyTag = iota + 1
	KeyCategory
	KeyKind
)

// GroupKey identifies a node in the report tree: a single entity, a category
// roll-up within a kind, or a kind-level total. It is a comparable value
// type, so structural equality and map keying work without string parsing.
type GroupKey struct {
	Tag        KeyTag
	Kind       Kind
	EntityID   int64
	CategoryID int64 // 0 means the uncategorized bucket
}

func EntityKey(kind Kind, entityID int64) GroupKey {
	return GroupKey{Tag: KeyEntity, Kind: kind, EntityID: entityID}
}

func CategoryKey(kind Kind, categoryID int64) GroupKey {
	return GroupKey{Tag: KeyCategory, Kind: kind, CategoryID: categoryID}
}

func KindKey(kind Kind) GroupKey {
	return GroupKey{Tag: KeyKind, Kind: kind}
}

func (k GroupKey) IsCategory() bool { return k.Tag == KeyCategory }

func (k GroupKey) IsZero() bool { return k.Tag == 0 }

// String renders a stable textual form for JSON payloads and cache keys.
func (k GroupKey) String() string {
	switch k.Tag {
	case KeyEntity:
		return string(k.Kind) + "/" + strconv.FormatInt(k.EntityID, 10)
	case KeyCategory:
		return string(k.Kind) + "/category/" + strconv.FormatInt(k.CategoryID, 10)
	case KeyKind:
		return string(k.Kind)
	}
	return ""
}

func (k GroupKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Less orders keys deterministically: by kind, then categories before
// entities before kind totals, then by id.
func (k GroupKey) Less(o GroupKey) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	if k.Tag != o.Tag {
		return tagRank(k.Tag) < tagRank(o.Tag)
	}
	if k.CategoryID != o.CategoryID {
		return k.CategoryID < o.CategoryID
	}
	return k.EntityID < o.EntityID
}

func tagRank(t KeyTag) int {
	switch t {
	case KeyCategory:
		return 0
	case KeyEntity:
		return 1
	default:
		return 2
	}
}
