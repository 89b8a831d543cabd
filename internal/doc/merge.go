package doc

// Merge overlays override onto base and returns the combined value.
//
//   - an absent override yields base unchanged
//   - null yields null, so an override can deliberately null out a field
//   - scalars and lists replace base wholesale; lists are never merged
//     element-wise
//   - a map merged onto a map is merged key by key with these same rules
//   - any other combination lets override win outright
//
// Neither input is mutated and the result shares no mutable node with
// override.
func Merge(base, override Value) Value {
	switch override.kind {
	case KindAbsent:
		return base
	case KindNull:
		return Null()
	case KindList:
		return override.Clone()
	case KindMap:
		if base.kind != KindMap {
			return override.Clone()
		}
		return FromMap(MergeMaps(base.m, override.m))
	default:
		return override
	}
}

// MergeMaps merges override onto base. Keys keep base order, with keys only
// present in override appended in override order.
func MergeMaps(base, override *Map) *Map {
	out := base.ShallowCopy()
	override.Range(func(key string, value Value) bool {
		existing, ok := out.Get(key)
		if !ok {
			out.Set(key, Merge(Value{}, value))
			return true
		}
		out.Set(key, Merge(existing, value))
		return true
	})
	return out
}
