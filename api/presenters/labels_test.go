package presenters

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

func TestFromRequestNegotiatesLanguage(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"default vietnamese", "", "", "vi"},
		{"english header", "en-US,en;q=0.9", "", "en"},
		{"vietnamese preferred", "vi-VN, en;q=0.5", "", "vi"},
		{"unsupported falls back", "fr-FR", "", "vi"},
		{"query overrides header", "vi", "en", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/v1/phases/x"
			if tt.query != "" {
				target += "?lang=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			require.Equal(t, tt.want, FromRequest(req).Language())
		})
	}
}

func TestLabelsCoverEveryStatus(t *testing.T) {
	for _, tag := range supportedTags {
		l := NewLabeler(tag)
		for _, status := range append(enums.PhaseSequence(), enums.PhaseStatusCancelled, enums.PhaseStatusFailed) {
			require.NotEqual(t, string(status), l.Phase(status), "%s missing %s", tag, status)
		}
	}
}

func TestLabelValues(t *testing.T) {
	vi := NewLabeler(language.Vietnamese)
	en := NewLabeler(language.English)

	require.Equal(t, "Đang nấu ăn", vi.Phase(enums.PhaseStatusCooking))
	require.Equal(t, "Cooking", en.Phase(enums.PhaseStatusCooking))
	require.Equal(t, "Đang triển khai", vi.Campaign(enums.CampaignStatusInProgress))
	require.Equal(t, "Delivery failed", en.DeliveryTask(enums.DeliveryTaskFailed))
	require.Equal(t, "Đã nấu xong", vi.MealBatch(enums.MealBatchReady))
}

func TestUnknownStatusFallsBackToCanonicalValue(t *testing.T) {
	require.Equal(t, "ARCHIVED", NewLabeler(language.English).Phase(enums.PhaseStatus("ARCHIVED")))
}

func TestRoleLabels(t *testing.T) {
	roles := []enums.ActorRole{
		enums.ActorRoleAdmin,
		enums.ActorRoleFundraiser,
		enums.ActorRoleKitchenStaff,
		enums.ActorRoleDeliveryStaff,
		enums.ActorRoleDonor,
	}
	for _, tag := range supportedTags {
		l := NewLabeler(tag)
		for _, role := range roles {
			require.NotEqual(t, string(role), l.Role(role), "%s missing %s", tag, role)
		}
	}
	require.Equal(t, "Nhà hảo tâm", NewLabeler(language.Vietnamese).Role(enums.ActorRoleDonor))
	require.Equal(t, "unknown", NewLabeler(language.English).Role(enums.ActorRole("unknown")))
}
