package models

// DeviceRecord is a device row missing coordinates, as read from the device store.
// Keys holds extra device columns that identify the same device in mirror tables.
type DeviceRecord struct {
	ID       string            `json:"id"`
	Province string            `json:"province"`
	City     string            `json:"city"`
	District string            `json:"district"`
	Keys     map[string]string `json:"keys,omitempty"`
}

// CoordinateUpdate is the coordinate pair to write back for one device.
type CoordinateUpdate struct {
	ID        string            `json:"id"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Keys      map[string]string `json:"keys,omitempty"`
}
