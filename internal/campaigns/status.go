package campaigns

import "github.com/foodrelief/relief-backend/pkg/enums"

// DeriveStatus rolls phase statuses up into the campaign status. A campaign
// is COMPLETED only when it has phases and every one of them completed, and
// CANCELLED only when none did. Any other mix stays IN_PROGRESS; a follow-up
// phase can still be added to finish the campaign.
func DeriveStatus(phases []enums.PhaseStatus) enums.CampaignStatus {
	if len(phases) == 0 {
		return enums.CampaignStatusActive
	}
	completed, ended, started := 0, 0, false
	for _, status := range phases {
		switch {
		case status == enums.PhaseStatusCompleted:
			completed++
		case status.IsSideState():
			ended++
		}
		if status.IsTerminal() || status.Rank() > 0 {
			started = true
		}
	}
	switch {
	case completed == len(phases):
		return enums.CampaignStatusCompleted
	case ended == len(phases):
		return enums.CampaignStatusCancelled
	case started:
		return enums.CampaignStatusInProgress
	default:
		return enums.CampaignStatusActive
	}
}
