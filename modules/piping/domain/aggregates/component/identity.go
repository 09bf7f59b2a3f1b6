package component

import (
	"fmt"
	"strings"

	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/docid"
)

// IdentityKey identifies one physical component within a project and type.
// Exact-class keys carry a single natural key. Grouped-class keys carry the
// group triple (drawing, commodity code, size) plus a 1-based sequence number.
type IdentityKey struct {
	Class      comptype.IdentityClass
	NaturalKey string
	Drawing    string
	Commodity  string
	Size       string
	Sequence   int
}

// NewExactKey builds a Class-A key from a natural identifier such as a weld
// number or valve tag. The key is normalized so cosmetic variants collide.
func NewExactKey(naturalKey string) (IdentityKey, error) {
	norm := docid.Normalize(naturalKey)
	if norm == "" {
		return IdentityKey{}, fmt.Errorf("empty natural key")
	}
	return IdentityKey{Class: comptype.ClassExact, NaturalKey: norm}, nil
}

// NewGroupKey builds the group portion of a Class-B key. Sequence stays zero
// until instances are expanded.
func NewGroupKey(rawDrawing, commodity, size string) (IdentityKey, error) {
	drawing := docid.Normalize(rawDrawing)
	if drawing == "" {
		return IdentityKey{}, fmt.Errorf("empty drawing number")
	}
	code := docid.Normalize(commodity)
	if code == "" {
		return IdentityKey{}, fmt.Errorf("empty commodity code")
	}
	return IdentityKey{
		Class:     comptype.ClassGrouped,
		Drawing:   drawing,
		Commodity: code,
		Size:      docid.Normalize(size),
	}, nil
}

// GroupKey returns the canonical group identifier shared by all instances of
// one grouped-quantity line item. Empty for exact-class keys.
func (k IdentityKey) GroupKey() string {
	if k.Class != comptype.ClassGrouped {
		return ""
	}
	return strings.Join([]string{k.Drawing, k.Commodity, k.Size}, "|")
}

// String is the canonical textual form used for uniqueness checks.
func (k IdentityKey) String() string {
	if k.Class == comptype.ClassExact {
		return k.NaturalKey
	}
	return fmt.Sprintf("%s#%d", k.GroupKey(), k.Sequence)
}

// WithSequence returns a copy carrying the given instance number.
func (k IdentityKey) WithSequence(seq int) IdentityKey {
	k.Sequence = seq
	return k
}

// ExpandGroup materializes keys for instances firstSeq..lastSeq of a group.
// Sequence numbers are contiguous: callers pass the current maximum assigned
// sequence (existing dataset plus earlier rows of the same batch).
func ExpandGroup(group IdentityKey, currentMax, count int) []IdentityKey {
	if count <= 0 {
		return nil
	}
	keys := make([]IdentityKey, 0, count)
	for seq := currentMax + 1; seq <= currentMax+count; seq++ {
		keys = append(keys, group.WithSequence(seq))
	}
	return keys
}
