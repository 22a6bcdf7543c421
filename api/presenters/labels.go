package presenters

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// LangParam overrides Accept-Language when present.
const LangParam = "lang"

var (
	supportedTags = []language.Tag{language.Vietnamese, language.English}
	matcher       = language.NewMatcher(supportedTags)
)

// catalog keys are "<kind>.<canonical value>".
var catalog = map[language.Tag]map[string]string{
	language.Vietnamese: {
		"phase.PLANNING":                         "Lập kế hoạch",
		"phase.AWAITING_INGREDIENT_DISBURSEMENT": "Chờ giải ngân nguyên liệu",
		"phase.INGREDIENT_PURCHASE":              "Đang mua nguyên liệu",
		"phase.AWAITING_AUDIT":                   "Chờ kiểm duyệt chứng từ",
		"phase.AWAITING_COOKING_DISBURSEMENT":    "Chờ giải ngân nấu ăn",
		"phase.COOKING":                          "Đang nấu ăn",
		"phase.AWAITING_DELIVERY_DISBURSEMENT":   "Chờ giải ngân vận chuyển",
		"phase.DELIVERY":                         "Đang giao hàng",
		"phase.COMPLETED":                        "Hoàn thành",
		"phase.CANCELLED":                        "Đã hủy",
		"phase.FAILED":                           "Thất bại",

		"campaign.ACTIVE":      "Đang gây quỹ",
		"campaign.IN_PROGRESS": "Đang triển khai",
		"campaign.COMPLETED":   "Hoàn thành",
		"campaign.CANCELLED":   "Đã hủy",

		"batch.PENDING":   "Đang chuẩn bị",
		"batch.READY":     "Đã nấu xong",
		"batch.COMPLETED": "Đã phân phát",

		"task.PENDING":          "Chờ nhận",
		"task.ACCEPTED":         "Đã nhận",
		"task.REJECTED":         "Từ chối",
		"task.OUT_FOR_DELIVERY": "Đang giao",
		"task.COMPLETED":        "Đã giao",
		"task.FAILED":           "Giao thất bại",

		"role.admin":          "Quản trị viên",
		"role.fundraiser":     "Người gây quỹ",
		"role.kitchen_staff":  "Nhân viên bếp",
		"role.delivery_staff": "Nhân viên giao hàng",
		"role.donor":          "Nhà hảo tâm",
	},
	language.English: {
		"phase.PLANNING":                         "Planning",
		"phase.AWAITING_INGREDIENT_DISBURSEMENT": "Awaiting ingredient funds",
		"phase.INGREDIENT_PURCHASE":              "Buying ingredients",
		"phase.AWAITING_AUDIT":                   "Awaiting audit",
		"phase.AWAITING_COOKING_DISBURSEMENT":    "Awaiting cooking funds",
		"phase.COOKING":                          "Cooking",
		"phase.AWAITING_DELIVERY_DISBURSEMENT":   "Awaiting delivery funds",
		"phase.DELIVERY":                         "Delivering",
		"phase.COMPLETED":                        "Completed",
		"phase.CANCELLED":                        "Cancelled",
		"phase.FAILED":                           "Failed",

		"campaign.ACTIVE":      "Fundraising",
		"campaign.IN_PROGRESS": "In progress",
		"campaign.COMPLETED":   "Completed",
		"campaign.CANCELLED":   "Cancelled",

		"batch.PENDING":   "Preparing",
		"batch.READY":     "Cooked",
		"batch.COMPLETED": "Distributed",

		"task.PENDING":          "Awaiting pickup",
		"task.ACCEPTED":         "Accepted",
		"task.REJECTED":         "Declined",
		"task.OUT_FOR_DELIVERY": "Out for delivery",
		"task.COMPLETED":        "Delivered",
		"task.FAILED":           "Delivery failed",

		"role.admin":          "Administrator",
		"role.fundraiser":     "Fundraiser",
		"role.kitchen_staff":  "Kitchen staff",
		"role.delivery_staff": "Delivery staff",
		"role.donor":          "Donor",
	},
}

func init() {
	for tag, messages := range catalog {
		for key, value := range messages {
			_ = message.SetString(tag, key, value)
		}
	}
}

// Labeler renders canonical statuses in one language.
type Labeler struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLabeler returns a labeler for the closest supported match of tag.
func NewLabeler(tag language.Tag) Labeler {
	_, index, _ := matcher.Match(tag)
	resolved := supportedTags[index]
	return Labeler{tag: resolved, printer: message.NewPrinter(resolved)}
}

// FromRequest resolves the caller language from ?lang= or Accept-Language.
// Vietnamese is the default.
func FromRequest(r *http.Request) Labeler {
	if r == nil {
		return NewLabeler(supportedTags[0])
	}
	if raw := strings.TrimSpace(r.URL.Query().Get(LangParam)); raw != "" {
		if tag, err := language.Parse(raw); err == nil {
			return NewLabeler(tag)
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		tag, _ := language.MatchStrings(matcher, accept)
		return NewLabeler(tag)
	}
	return NewLabeler(supportedTags[0])
}

// Language reports the resolved BCP 47 tag.
func (l Labeler) Language() string {
	base, _ := l.tag.Base()
	return base.String()
}

func (l Labeler) Phase(status enums.PhaseStatus) string {
	return l.lookup("phase", string(status))
}

func (l Labeler) Campaign(status enums.CampaignStatus) string {
	return l.lookup("campaign", string(status))
}

func (l Labeler) MealBatch(status enums.MealBatchStatus) string {
	return l.lookup("batch", string(status))
}

func (l Labeler) DeliveryTask(status enums.DeliveryTaskStatus) string {
	return l.lookup("task", string(status))
}

func (l Labeler) Role(role enums.ActorRole) string {
	return l.lookup("role", string(role))
}

// lookup falls back to the canonical value for unknown statuses.
func (l Labeler) lookup(kind, value string) string {
	key := kind + "." + value
	if _, ok := catalog[l.tag][key]; !ok {
		return value
	}
	if l.printer == nil {
		return catalog[l.tag][key]
	}
	return l.printer.Sprintf(key)
}
