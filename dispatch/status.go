package dispatch

import "github.com/tunelink/tunelink-push-api/models"

// finalStatus is the single place the terminal campaign status is computed
// from the aggregated counters, so call sites cannot drift apart.
//
//	no targets           -> no_targets
//	every send delivered -> sent
//	nothing delivered    -> failed
//	anything in between  -> partial
func finalStatus(totalTargets, sentCount, failedCount int) models.CampaignStatus {
	switch {
	case totalTargets == 0:
		return models.CampaignStatusNoTargets
	case failedCount == 0:
		return models.CampaignStatusSent
	case sentCount == 0:
		return models.CampaignStatusFailed
	default:
		return models.CampaignStatusPartial
	}
}

// successRate is sentCount/totalTargets, defined as 0 for an empty target set
func successRate(totalTargets, sentCount int) float64 {
	if totalTargets == 0 {
		return 0
	}
	return float64(sentCount) / float64(totalTargets)
}

// truncateToken shortens a push token for logs and external responses
func truncateToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
