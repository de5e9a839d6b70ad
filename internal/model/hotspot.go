package model

// Hotspot is a region with its post count and the mean coordinates of the
// posts in it that carry both lat and lng.
type Hotspot struct {
	Key   string   `json:"key"`
	Count int      `json:"count"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
}

type HotspotListResponse struct {
	Hotspots []Hotspot `json:"hotspots"`
}
