package models

import "time"

// Wire types shared with the remote admin API. Only the ones the server
// produces carry conversion helpers.

type UserRole string

const (
	RoleFarmer       UserRole = "FARMER"
	RoleVeterinarian UserRole = "VETERINARIAN"
	RoleAdmin        UserRole = "ADMIN"
	RoleFieldOfficer UserRole = "FIELD_OFFICER"
)

// LoginResponse answers a successful OTP verification
type LoginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *AuthData `json:"data"`
}

type AuthData struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	User         ApiUser  `json:"user"`
	Permissions  []string `json:"permissions"`
}

type ApiUser struct {
	ID          string   `json:"id"`
	PhoneNumber string   `json:"phoneNumber"`
	Name        *string  `json:"name"`
	FarmName    *string  `json:"farmName"`
	Location    *string  `json:"location"`
	IsVerified  bool     `json:"isVerified"`
	Role        UserRole `json:"role"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToApiUser maps a local user onto the admin API shape. Local users are always farmers.
func (u *User) ToApiUser() ApiUser {
	return ApiUser{
		ID:          u.PhoneNumber,
		PhoneNumber: u.PhoneNumber,
		Name:        optional(u.FarmerName),
		FarmName:    optional(u.FarmName),
		Location:    optional(u.Location),
		IsVerified:  u.IsVerified,
		Role:        RoleFarmer,
		CreatedAt:   u.RegistrationDate.UTC().Format(time.RFC3339),
		UpdatedAt:   u.LastLoginDate.UTC().Format(time.RFC3339),
	}
}

// FarmerPermissions are granted to every phone-verified user
var FarmerPermissions = []string{"records:read", "records:write", "records:export"}

// SyncAnimalRecordsRequest is the batch a device pushes to the admin API
type SyncAnimalRecordsRequest struct {
	Records           []AnimalRecordDto `json:"records"`
	LastSyncTimestamp *int64            `json:"lastSyncTimestamp"`
}

type SyncAnimalRecordsResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *SyncData `json:"data"`
}

type SyncData struct {
	SyncedRecords     []string          `json:"syncedRecords"`
	Conflicts         []ConflictRecord  `json:"conflicts"`
	ServerRecords     []AnimalRecordDto `json:"serverRecords"`
	DeletedRecords    []string          `json:"deletedRecords"`
	LastSyncTimestamp int64             `json:"lastSyncTimestamp"`
}

type ConflictType string

const (
	ConflictModifiedOnBoth  ConflictType = "MODIFIED_ON_BOTH"
	ConflictDeletedOnServer ConflictType = "DELETED_ON_SERVER"
	ConflictNewerOnServer   ConflictType = "NEWER_ON_SERVER"
)

type ConflictRecord struct {
	LocalRecord  AnimalRecordDto `json:"localRecord"`
	ServerRecord AnimalRecordDto `json:"serverRecord"`
	ConflictType ConflictType    `json:"conflictType"`
}

// AnimalRecordDto is a record as exchanged with the admin API
type AnimalRecordDto struct {
	ID         *string        `json:"id"`
	LocalID    *int64         `json:"localId"`
	AnimalID   string         `json:"animalId"`
	UserID     string         `json:"userId"`
	ImagePath  *string        `json:"imagePath"`
	ImageURL   *string        `json:"imageUrl"`
	Date       string         `json:"date"`
	BodyLength float64        `json:"bodyLength"`
	Height     float64        `json:"height"`
	ChestWidth float64        `json:"chestWidth"`
	RumpAngle  float64        `json:"rumpAngle"`
	ATCScore   int            `json:"atcScore"`
	Synced     bool           `json:"synced"`
	AIAnalysis *AIAnalysisDto `json:"aiAnalysis"`
	Location   *LocationDto   `json:"location"`
	Notes      *string        `json:"notes"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
	Version    int            `json:"version"`
}

type AIAnalysisDto struct {
	BreedClassification *string  `json:"breedClassification"`
	Confidence          float32  `json:"confidence"`
	HealthScore         *float32 `json:"healthScore"`
	QualityGrade        *string  `json:"qualityGrade"`
	Recommendations     []string `json:"recommendations"`
	ProviderID          string   `json:"providerId"`
	ModelVersion        string   `json:"modelVersion"`
	ProcessingTime      int64    `json:"processingTime"`
}

type LocationDto struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   *string  `json:"address"`
	FarmName  *string  `json:"farmName"`
}

// ToDTO converts a local record for upload on behalf of userID
func (r *AnimalRecord) ToDTO(userID string, loc *LocationDto) AnimalRecordDto {
	localID := r.ID
	date := r.Date.UTC().Format(time.RFC3339)
	return AnimalRecordDto{
		LocalID:    &localID,
		AnimalID:   r.AnimalID,
		UserID:     userID,
		ImagePath:  optional(r.ImagePath),
		Date:       date,
		BodyLength: r.BodyLength,
		Height:     r.Height,
		ChestWidth: r.ChestWidth,
		RumpAngle:  r.RumpAngle,
		ATCScore:   r.ATCScore,
		Synced:     r.Synced,
		Location:   loc,
		CreatedAt:  date,
		UpdatedAt:  date,
		Version:    1,
	}
}

// AnalyticsData summarises the local records of one farm
type AnalyticsData struct {
	TotalAnimals      int                `json:"totalAnimals"`
	AverageATCScore   float64            `json:"averageAtcScore"`
	BreedDistribution map[string]int     `json:"breedDistribution"`
	HealthTrends      []HealthTrendData  `json:"healthTrends"`
	Performance       PerformanceMetrics `json:"performanceMetrics"`
	Recommendations   []string           `json:"recommendations"`
}

// HealthTrendData is the per-day average score
type HealthTrendData struct {
	Date          string  `json:"date"`
	AverageHealth float64 `json:"averageHealth"`
	AnimalCount   int     `json:"animalCount"`
}

type PerformanceMetrics struct {
	ProductivityScore      float64        `json:"productivityScore"`
	ImprovementSuggestions []string       `json:"improvementSuggestions"`
	BenchmarkComparison    *BenchmarkData `json:"benchmarkComparison"`
}

type BenchmarkData struct {
	RegionalAverage float64 `json:"regionalAverage"`
	NationalAverage float64 `json:"nationalAverage"`
	Ranking         string  `json:"ranking"`
}

// ApiError is the error envelope of the admin API
type ApiError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
