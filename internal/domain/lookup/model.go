package lookup

// Value is one entry of a fixed enumeration exposed to clients.
type Value struct {
	Category  string `json:"category"`
	Code      string `json:"code"`
	Label     string `json:"label"`
	SortOrder int    `json:"sort_order"`
}

const (
	CategoryRole                 = "role"
	CategoryGender               = "gender"
	CategoryServiceRequestStatus = "service_request_status"
	CategoryPaymentMethod        = "payment_method"
	CategoryPaymentStatus        = "payment_status"
	CategoryNotificationType     = "notification_type"
	CategoryWeekday              = "weekday"
	CategoryBloodType            = "blood_type"
)

var categoryOrder = []string{
	CategoryRole,
	CategoryGender,
	CategoryServiceRequestStatus,
	CategoryPaymentMethod,
	CategoryPaymentStatus,
	CategoryNotificationType,
	CategoryWeekday,
	CategoryBloodType,
}

type entry struct{ code, label string }

var catalog = map[string][]entry{
	CategoryRole: {
		{"admin", "Administrator"},
		{"provider", "Provider"},
		{"patient", "Patient"},
	},
	CategoryGender: {
		{"male", "Male"},
		{"female", "Female"},
		{"other", "Other"},
	},
	CategoryServiceRequestStatus: {
		{"pending", "Pending"},
		{"approved", "Approved"},
		{"in_progress", "In progress"},
		{"done", "Done"},
		{"rejected", "Rejected"},
	},
	CategoryPaymentMethod: {
		{"cash", "Cash"},
		{"card", "Card"},
		{"online", "Online"},
		{"insurance", "Insurance"},
	},
	CategoryPaymentStatus: {
		{"pending", "Pending"},
		{"paid", "Paid"},
		{"failed", "Failed"},
		{"refunded", "Refunded"},
	},
	CategoryNotificationType: {
		{"service_request", "Service request"},
		{"result", "Result"},
		{"payment", "Payment"},
		{"system", "System"},
	},
	// Weekday codes follow time.Weekday: 0 is Sunday.
	CategoryWeekday: {
		{"0", "Sunday"},
		{"1", "Monday"},
		{"2", "Tuesday"},
		{"3", "Wednesday"},
		{"4", "Thursday"},
		{"5", "Friday"},
		{"6", "Saturday"},
	},
	CategoryBloodType: {
		{"A+", "A+"}, {"A-", "A-"},
		{"B+", "B+"}, {"B-", "B-"},
		{"AB+", "AB+"}, {"AB-", "AB-"},
		{"O+", "O+"}, {"O-", "O-"},
	},
}

// Categories returns the enumeration names in display order.
func Categories() []string {
	out := make([]string, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Values returns the entries of category, or nil if it is unknown.
func Values(category string) []Value {
	entries, ok := catalog[category]
	if !ok {
		return nil
	}
	out := make([]Value, len(entries))
	for i, e := range entries {
		out[i] = Value{Category: category, Code: e.code, Label: e.label, SortOrder: i + 1}
	}
	return out
}

// Codes returns the codes of category.
func Codes(category string) []string {
	entries := catalog[category]
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.code
	}
	return out
}

// All returns every entry of every category.
func All() []Value {
	var out []Value
	for _, c := range categoryOrder {
		out = append(out, Values(c)...)
	}
	return out
}
