package models

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnimalRecord is one captured animal with its body measurements
type AnimalRecord struct {
	ID         int64     `json:"id"`
	AnimalID   string    `json:"animalId"`
	Date       time.Time `json:"date"`
	ImagePath  string    `json:"imagePath"`
	BodyLength float64   `json:"bodyLength"`
	Height     float64   `json:"height"`
	ChestWidth float64   `json:"chestWidth"`
	RumpAngle  float64   `json:"rumpAngle"`
	ATCScore   int       `json:"atcScore"`
	Synced     bool      `json:"synced"`
}

// Measurements are the scored body dimensions of an animal
type Measurements struct {
	BodyLength float64 `json:"bodyLength"`
	Height     float64 `json:"height"`
	ChestWidth float64 `json:"chestWidth"`
	RumpAngle  float64 `json:"rumpAngle"`
	ATCScore   int     `json:"atcScore"`
}

// PlaceholderMeasurements stands in for real scoring until image analysis exists.
// Values are whole numbers in body 100..150, height 120..150, chest 50..70,
// rump 10..25 and score 70..100.
func PlaceholderMeasurements() Measurements {
	return Measurements{
		BodyLength: 100 + float64(rand.Intn(51)),
		Height:     120 + float64(rand.Intn(31)),
		ChestWidth: 50 + float64(rand.Intn(21)),
		RumpAngle:  10 + float64(rand.Intn(16)),
		ATCScore:   70 + rand.Intn(31),
	}
}

// NewAnimalID returns a tag like ANIMAL_1A2B3C4D
func NewAnimalID() string {
	return "ANIMAL_" + strings.ToUpper(uuid.New().String()[:8])
}

// NewAnimalRecord builds an unsynced record for an image captured at capturedAt.
// The date is stored in UTC at second precision.
func NewAnimalRecord(imagePath string, capturedAt time.Time, m Measurements) (*AnimalRecord, error) {
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	rec := &AnimalRecord{
		AnimalID:   NewAnimalID(),
		Date:       capturedAt.UTC().Truncate(time.Second),
		ImagePath:  strings.TrimSpace(imagePath),
		BodyLength: m.BodyLength,
		Height:     m.Height,
		ChestWidth: m.ChestWidth,
		RumpAngle:  m.RumpAngle,
		ATCScore:   m.ATCScore,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate checks the fields every stored record must satisfy
func (r *AnimalRecord) Validate() error {
	if strings.TrimSpace(r.AnimalID) == "" {
		return ErrEmptyAnimalID
	}
	if r.ImagePath == "" {
		return ErrEmptyImagePath
	}
	if r.Date.IsZero() {
		return ErrMissingDate
	}
	if r.BodyLength < 0 || r.Height < 0 || r.ChestWidth < 0 || r.RumpAngle < 0 {
		return ErrInvalidMeasurement
	}
	if r.ATCScore < 0 || r.ATCScore > 100 {
		return ErrInvalidATCScore
	}
	return nil
}

// Measurements returns the record's scored dimensions
func (r *AnimalRecord) Measurements() Measurements {
	return Measurements{
		BodyLength: r.BodyLength,
		Height:     r.Height,
		ChestWidth: r.ChestWidth,
		RumpAngle:  r.RumpAngle,
		ATCScore:   r.ATCScore,
	}
}

// CreateRecordRequest creates a record for an already stored image
type CreateRecordRequest struct {
	ImagePath    string        `json:"imagePath"`
	Date         *time.Time    `json:"date,omitempty"`
	Measurements *Measurements `json:"measurements,omitempty"`
}

// UpdateRecordRequest replaces the editable fields of a record
type UpdateRecordRequest struct {
	AnimalID   string    `json:"animalId"`
	Date       time.Time `json:"date"`
	ImagePath  string    `json:"imagePath"`
	BodyLength float64   `json:"bodyLength"`
	Height     float64   `json:"height"`
	ChestWidth float64   `json:"chestWidth"`
	RumpAngle  float64   `json:"rumpAngle"`
	ATCScore   int       `json:"atcScore"`
	Synced     bool      `json:"synced"`
}

// Apply copies the request onto rec. Synced never goes back to false.
func (u UpdateRecordRequest) Apply(rec *AnimalRecord) {
	rec.AnimalID = strings.TrimSpace(u.AnimalID)
	if !u.Date.IsZero() {
		rec.Date = u.Date.UTC().Truncate(time.Second)
	}
	if u.ImagePath != "" {
		rec.ImagePath = u.ImagePath
	}
	rec.BodyLength = u.BodyLength
	rec.Height = u.Height
	rec.ChestWidth = u.ChestWidth
	rec.RumpAngle = u.RumpAngle
	rec.ATCScore = u.ATCScore
	rec.Synced = rec.Synced || u.Synced
}

// MarkSyncedRequest flips a batch of records to synced
type MarkSyncedRequest struct {
	IDs []int64 `json:"ids"`
}

// Errors
type RecordError struct {
	Message string
}

func (e RecordError) Error() string {
	return e.Message
}

var (
	ErrRecordNotFound     = RecordError{"record not found"}
	ErrImageInUse         = RecordError{"image is already used by another record"}
	ErrEmptyAnimalID      = RecordError{"animal id cannot be empty"}
	ErrEmptyImagePath     = RecordError{"image path cannot be empty"}
	ErrMissingDate        = RecordError{"record date is required"}
	ErrInvalidMeasurement = RecordError{"measurements cannot be negative"}
	ErrInvalidATCScore    = RecordError{"ATC score must be between 0 and 100"}
)
