package domain

type Location struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Area     string `json:"area,omitempty"`
	IsActive bool   `json:"isActive"`
}

type SearchSuggestion struct {
	ID       string `json:"_id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Image    string `json:"image,omitempty"`
	Type     string `json:"type,omitempty"`
}

type SelectedArea struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
}

// SelectedPlan identifies the subscription package used for payment init.
type SelectedPlan struct {
	PackageID string `json:"packageId"`
	Name      string `json:"name"`
	Slots     int    `json:"slots,omitempty"`
}
