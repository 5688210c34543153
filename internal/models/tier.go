package models

// Tier is a user's content/media tier.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// TierPolicy bundles every per-tier limit consulted by the post and media
// paths. Limits always come from here, never from inline checks.
type TierPolicy struct {
	MaxContentLength int
	MaxMediaCount    int
	MaxImageBytes    int64
	MaxVideoBytes    int64
}

var tierPolicies = map[Tier]TierPolicy{
	TierBasic: {
		MaxContentLength: 200,
		MaxMediaCount:    4,
		MaxImageBytes:    5 << 20,
		MaxVideoBytes:    50 << 20,
	},
	TierPremium: {
		MaxContentLength: 500,
		MaxMediaCount:    4,
		MaxImageBytes:    10 << 20,
		MaxVideoBytes:    100 << 20,
	},
}

// PolicyFor returns the limits for the given tier. Unknown tiers fall back
// to basic.
func PolicyFor(t Tier) TierPolicy {
	if p, ok := tierPolicies[t]; ok {
		return p
	}
	return tierPolicies[TierBasic]
}
