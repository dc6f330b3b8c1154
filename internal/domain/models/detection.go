package models

// Detection is a single object found by the model on one frame.
type Detection struct {
	Class string    `json:"class"`
	Score float64   `json:"score"`
	Box   []float64 `json:"box"` // [x1, y1, x2, y2]
}

// HasBox reports whether the detection carries a usable bounding box.
func (d Detection) HasBox() bool {
	return len(d.Box) >= 4
}
