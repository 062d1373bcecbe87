package access

import (
	"sort"
	"strconv"
	"strings"
)

// Refusal is sent to senders that are not on the allowlist.
const Refusal = "🚫 I don't know you. If you think I should, please reach out to the admin."

// Guard holds the static set of authorized sender ids. It is never mutated
// after construction and is safe for concurrent use.
type Guard struct {
	allowed map[uint64]struct{}
}

// ParseAllowlist builds a Guard from a comma-separated list of integer ids.
// Entries that are not unsigned integers are dropped.
func ParseAllowlist(raw string) *Guard {
	g := &Guard{allowed: make(map[uint64]struct{})}
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		g.allowed[id] = struct{}{}
	}
	return g
}

// IsAuthorized reports whether senderID is on the allowlist.
func (g *Guard) IsAuthorized(senderID string) bool {
	id, err := strconv.ParseUint(strings.TrimSpace(senderID), 10, 64)
	if err != nil {
		return false
	}
	_, ok := g.allowed[id]
	return ok
}

// Len returns the number of authorized ids.
func (g *Guard) Len() int {
	return len(g.allowed)
}

// IDs returns the authorized ids in ascending order.
func (g *Guard) IDs() []string {
	ids := make([]uint64, 0, len(g.allowed))
	for id := range g.allowed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(id, 10)
	}
	return out
}
