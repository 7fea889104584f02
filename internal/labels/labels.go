package labels

// TagReward is the reserved tag for reward/cashback program sources.
// Inbound native transfers from a tagged address are booked as rewards
// rather than deposits. Every other tag is a free-text label.
const TagReward = "reward"

// Resolver maps counterparty addresses to semantic tags. Implementations
// must be read-only; the aggregator consults it per event.
type Resolver interface {
	Resolve(address string) (tag string, ok bool)
}

// Registry is an immutable in-memory Resolver built from a static mapping.
type Registry struct {
	tags map[string]string
}

func NewRegistry(tags map[string]string) *Registry {
	m := make(map[string]string, len(tags))
	for addr, tag := range tags {
		m[addr] = tag
	}
	return &Registry{tags: m}
}

// Empty returns a Registry that resolves nothing.
func Empty() *Registry {
	return &Registry{tags: map[string]string{}}
}

func (r *Registry) Resolve(address string) (string, bool) {
	tag, ok := r.tags[address]
	return tag, ok
}

func (r *Registry) Len() int { return len(r.tags) }
