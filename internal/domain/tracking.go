package domain

import "time"

type TrackingUpdate struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type DeliveryPartner struct {
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	PhotoURL      string `json:"photoUrl,omitempty"`
}

// TrackingSnapshot is replaced as a whole on every successful poll.
type TrackingSnapshot struct {
	OrderID         string           `json:"orderId"`
	Status          string           `json:"status"`
	TrackingUpdates []TrackingUpdate `json:"trackingUpdates"`
	DeliveryPartner *DeliveryPartner `json:"deliveryPartner,omitempty"`
	DeliveryInfo    DeliveryInfo     `json:"deliveryInfo"`
}
