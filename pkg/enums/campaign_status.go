package enums

import "slices"

// CampaignStatus is derived from the statuses of a campaign's phases.
type CampaignStatus string

const (
	CampaignStatusActive     CampaignStatus = "ACTIVE"
	CampaignStatusInProgress CampaignStatus = "IN_PROGRESS"
	CampaignStatusCompleted  CampaignStatus = "COMPLETED"
	CampaignStatusCancelled  CampaignStatus = "CANCELLED"
)

var validCampaignStatuses = []CampaignStatus{
	CampaignStatusActive,
	CampaignStatusInProgress,
	CampaignStatusCompleted,
	CampaignStatusCancelled,
}

func (s CampaignStatus) String() string {
	return string(s)
}

func (s CampaignStatus) IsValid() bool {
	return slices.Contains(validCampaignStatuses, s)
}
