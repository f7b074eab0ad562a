package catalog

import (
	"encoding/json"
	"time"
)

// Session is one contiguous capture burst.
type Session struct {
	ID               int64
	BurstID          string
	SessionNumber    int
	SessionDate      string
	StartedAt        *time.Time
	EndedAt          *time.Time
	Source           string
	PhotoCount       int
	Visible          bool
	HeroPhotoID      *int64
	Quality          string
	GenderAnalysis   json.RawMessage
	GenderAnalyzedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Photo is one image owned by exactly one session.
type Photo struct {
	ID             int64
	SessionID      int64
	Filename       string
	RawPath        string
	Position       int
	Rejected       bool
	Metadata       map[string]any
	ExifData       map[string]map[string]any
	FaceData       *FaceData
	FaceDetectedAt *time.Time
	PortraitCrop   *Rect
	AssetKey       string
	ContentType    string
	TakenAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Attached reports whether the original image has been stored.
func (p *Photo) Attached() bool {
	return p != nil && p.AssetKey != ""
}

// HasExif reports whether EXIF extraction already populated the photo.
func (p *Photo) HasExif() bool {
	return p != nil && len(p.ExifData) > 0
}

// FacesDetected reports whether face detection already ran.
func (p *Photo) FacesDetected() bool {
	return p != nil && p.FaceDetectedAt != nil
}

// FaceBox is a face bounding box in EXIF-oriented, top-left-origin pixels.
type FaceBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// FaceData is the persisted face detection result. Faces is never nil once
// stored so the column always holds a JSON array.
type FaceData struct {
	ImageWidth  int       `json:"image_width"`
	ImageHeight int       `json:"image_height"`
	Faces       []FaceBox `json:"faces"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Rect is an integer pixel rectangle.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Sitting correlates a visitor with a session via an optional hero photo.
type Sitting struct {
	ID          int64
	SessionID   int64
	HeroPhotoID *int64
	Visitor     string
	CreatedAt   time.Time
}

// NewSession describes a session created by ingestion.
type NewSession struct {
	BurstID       string
	SessionNumber int
	SessionDate   string
	StartedAt     *time.Time
	EndedAt       *time.Time
	Source        string
	Visible       bool
	Quality       string
	Photos        []NewPhoto
}

// NewPhoto describes an ingested photo. Positions are assigned in slice order.
type NewPhoto struct {
	Filename string
	RawPath  string
	TakenAt  *time.Time
	Metadata map[string]any
}

// MergeResult reports what a merge moved.
type MergeResult struct {
	TargetID int64
	SourceID int64
	Moved    int
	// PreviousMaxPosition is the target's highest position before the merge,
	// or -1 when the target had no photos.
	PreviousMaxPosition int
	PhotoCount          int
	SittingsMoved       int
}
