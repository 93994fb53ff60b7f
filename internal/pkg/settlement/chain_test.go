package settlement

import (
	"testing"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/stretchr/testify/assert"
)

func edge(parent, sub uint) models.SubAffiliate {
	return models.SubAffiliate{ParentAffiliateID: parent, SubAffiliateID: sub}
}

func TestBuildReferralChain(t *testing.T) {
	// 4 <- 3 <- 2 <- 1
	edges := []models.SubAffiliate{edge(4, 3), edge(3, 2), edge(2, 1)}

	chain := BuildReferralChain(edges, 1, 3)
	assert.Equal(t, []ChainLink{
		{AffiliateID: 2, Level: 1},
		{AffiliateID: 3, Level: 2},
		{AffiliateID: 4, Level: 3},
	}, chain)
}

func TestBuildReferralChain_DepthCap(t *testing.T) {
	edges := []models.SubAffiliate{edge(4, 3), edge(3, 2), edge(2, 1)}

	chain := BuildReferralChain(edges, 1, 2)
	assert.Len(t, chain, 2)
	assert.Equal(t, uint(3), chain[1].AffiliateID)
}

func TestBuildReferralChain_NoParent(t *testing.T) {
	edges := []models.SubAffiliate{edge(2, 1)}

	assert.Empty(t, BuildReferralChain(edges, 99, 3))
	assert.Empty(t, BuildReferralChain(nil, 1, 3))
}

func TestBuildReferralChain_CycleGuard(t *testing.T) {
	// 1 -> 2 -> 3 -> 1 corrupt cycle must terminate.
	edges := []models.SubAffiliate{edge(2, 1), edge(3, 2), edge(1, 3)}

	chain := BuildReferralChain(edges, 1, 10)
	assert.Equal(t, []ChainLink{
		{AffiliateID: 2, Level: 1},
		{AffiliateID: 3, Level: 2},
	}, chain)
}

func TestBuildReferralChain_SelfReference(t *testing.T) {
	edges := []models.SubAffiliate{edge(1, 1)}

	assert.Empty(t, BuildReferralChain(edges, 1, 3))
}
