package settlement

import "github.com/afiliapay/AfiliaPay/app/models"

// ChainLink is one ancestor in a referral chain. Level 1 is the affiliate
// who directly recruited the payer.
type ChainLink struct {
	AffiliateID uint
	Level       int
}

// BuildReferralChain resolves the payer's ancestor chain from the edge set,
// ordered by level ascending and capped at maxDepth. The edge set is loaded
// once per settlement, so the walk is pure in-memory traversal.
//
// The data model intends a forest, but the walk still guards against cycles:
// an edge pointing back into the visited set terminates the chain.
func BuildReferralChain(edges []models.SubAffiliate, affiliateID uint, maxDepth int) []ChainLink {
	parent := make(map[uint]uint, len(edges))
	for _, e := range edges {
		parent[e.SubAffiliateID] = e.ParentAffiliateID
	}

	visited := map[uint]bool{affiliateID: true}
	var chain []ChainLink
	current := affiliateID
	for level := 1; level <= maxDepth; level++ {
		p, ok := parent[current]
		if !ok {
			break
		}
		if visited[p] {
			break
		}
		visited[p] = true
		chain = append(chain, ChainLink{AffiliateID: p, Level: level})
		current = p
	}
	return chain
}
