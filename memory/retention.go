package memory

import "time"

const millisPerDay = int64(24 * time.Hour / time.Millisecond)

// TTLNever is the retention for memories that should not expire (profiles).
// A century in milliseconds, which keeps the expiry predicate uniform instead
// of special-casing infinity.
const TTLNever = 100 * 365 * millisPerDay

// RetentionPolicy maps a memory type to its default time-to-live in
// milliseconds. Callers may still override the TTL per memory at creation.
type RetentionPolicy map[Type]int64

// DefaultRetention holds the standard lifespans per type.
var DefaultRetention = RetentionPolicy{
	TypeProfile:    TTLNever,
	TypePreference: 365 * millisPerDay,
	TypeGlossary:   365 * millisPerDay,
	TypeFact:       180 * millisPerDay,
	TypeProject:    90 * millisPerDay,
	TypeTask:       7 * millisPerDay,
}

// TTL returns the default lifespan for the given type. Unknown types fall
// back to the fact lifespan.
func (p RetentionPolicy) TTL(typ Type) int64 {
	if ms, ok := p[typ]; ok {
		return ms
	}
	return DefaultRetention[TypeFact]
}
