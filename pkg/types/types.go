package types

import "math"

// Box represents a normalized bounding box annotation.
// CenterX, CenterY, Width and Height are in [0,1] relative to the image size.
type Box struct {
	ClassID        int     `json:"cls"`
	CenterX        float64 `json:"x_center"`
	CenterY        float64 `json:"y_center"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	IsTruePositive bool    `json:"is_tp"`
}

// NewBox returns a true-positive box of the given class
func NewBox(cls int, cx, cy, w, h float64) Box {
	return Box{ClassID: cls, CenterX: cx, CenterY: cy, Width: w, Height: h, IsTruePositive: true}
}

// Valid reports whether the box has finite coordinates and a positive size
func (b Box) Valid() bool {
	for _, v := range []float64{b.CenterX, b.CenterY, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.ClassID >= 0 && b.Width > 0 && b.Height > 0
}

// PixelRect is an axis-aligned rectangle in canvas pixels, top-left origin.
type PixelRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether p lies inside the rectangle, edges included
func (r PixelRect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Point is a position in canvas pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClientRect is the on-screen bounding rectangle of the canvas element
type ClientRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Label is the wire representation exchanged with the persistence service.
// IsTP is a pointer so an absent field can be told apart from an explicit false.
type Label struct {
	Cls     int     `json:"cls"`
	XCenter float64 `json:"x_center"`
	YCenter float64 `json:"y_center"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	IsTP    *bool   `json:"is_tp,omitempty"`
}

// ToBox converts a wire label into a Box. A missing is_tp means true positive.
func (l Label) ToBox() Box {
	tp := true
	if l.IsTP != nil {
		tp = *l.IsTP
	}
	return Box{
		ClassID:        l.Cls,
		CenterX:        l.XCenter,
		CenterY:        l.YCenter,
		Width:          l.Width,
		Height:         l.Height,
		IsTruePositive: tp,
	}
}

// LabelFromBox converts a Box into its wire form with an explicit is_tp
func LabelFromBox(b Box) Label {
	tp := b.IsTruePositive
	return Label{
		Cls:     b.ClassID,
		XCenter: b.CenterX,
		YCenter: b.CenterY,
		Width:   b.Width,
		Height:  b.Height,
		IsTP:    &tp,
	}
}

// BoxesFromLabels normalizes a wire label list into boxes
func BoxesFromLabels(labels []Label) []Box {
	boxes := make([]Box, 0, len(labels))
	for _, l := range labels {
		boxes = append(boxes, l.ToBox())
	}
	return boxes
}

// LabelsFromBoxes converts boxes into wire labels
func LabelsFromBoxes(boxes []Box) []Label {
	labels := make([]Label, 0, len(boxes))
	for _, b := range boxes {
		labels = append(labels, LabelFromBox(b))
	}
	return labels
}

// GetLabelsResponse is the body of GET /get_labels
type GetLabelsResponse struct {
	Status  string  `json:"status"`
	Labels  []Label `json:"labels"`
	Message string  `json:"message,omitempty"`
}

// SaveLabelsRequest is the body of POST /save_labels
type SaveLabelsRequest struct {
	Image  string  `json:"image"`
	Labels []Label `json:"labels"`
}

// StatusResponse is the generic {status, message} reply
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Metadata holds the sensor fields attached to an uploaded image
type Metadata struct {
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Humidity    *float64 `json:"humidity"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	UserComment string   `json:"user_comment"`
}

// ImageEntry is one gallery listing row
type ImageEntry struct {
	Filename    string   `json:"filename"`
	UploadTS    float64  `json:"upload_ts"`
	UploadTime  string   `json:"upload_time"`
	Metadata    Metadata `json:"metadata"`
	LabelsCount int      `json:"labels_count"`
	IsLabeled   bool     `json:"is_labeled"`
}
