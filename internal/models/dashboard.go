package models

// YearType selects calendar (Jan-Dec) or financial (Apr-Mar) years
type YearType string

const (
	YearCalendar  YearType = "Calendar"
	YearFinancial YearType = "Financial"
)

const (
	MinDashboardYear     = 2020
	MaxDashboardYear     = 2025
	DefaultDashboardYear = 2024
)

// ATSRow is the Animal Type Score summary of one state or district
type ATSRow struct {
	Name           string `json:"name"`
	TotalEvaluated int    `json:"totalEvaluated"`
	Cattle         int    `json:"cattle"`
	Buffalo        int    `json:"buffalo"`
	AvgScore       int    `json:"avgScore"`
	AvgRange       string `json:"avgRange"`
	Low            int    `json:"low"`
	High           int    `json:"high"`
}

// ATSState is a state row plus its districts
type ATSState struct {
	ATSRow
	Districts []ATSRow `json:"districts"`
}

// DashboardFilter narrows the dashboard view
type DashboardFilter struct {
	State    string   `json:"state,omitempty"`
	District string   `json:"district,omitempty"`
	Year     int      `json:"year"`
	YearType YearType `json:"yearType"`
}

// Normalize fills defaults and validates the filter
func (f *DashboardFilter) Normalize() error {
	if f.Year == 0 {
		f.Year = DefaultDashboardYear
	}
	if f.Year < MinDashboardYear || f.Year > MaxDashboardYear {
		return ErrInvalidYear
	}
	switch f.YearType {
	case "":
		f.YearType = YearCalendar
	case YearCalendar, YearFinancial:
	default:
		return ErrInvalidYearType
	}
	if f.District != "" && f.State == "" {
		return ErrDistrictWithoutState
	}
	return nil
}

// DashboardSummary holds the national figures over all states
type DashboardSummary struct {
	NationalLow   int     `json:"nationalLow"`
	NationalHigh  int     `json:"nationalHigh"`
	NationalRange string  `json:"nationalRange"`
	Highest       *ATSRow `json:"highest"`
	Lowest        *ATSRow `json:"lowest"`
	TotalAnimals  int     `json:"totalAnimals"`
}

// DashboardView is the dashboard payload for one filter
type DashboardView struct {
	Filter  DashboardFilter  `json:"filter"`
	Rows    []ATSRow         `json:"rows"`
	Summary DashboardSummary `json:"summary"`
}

// ColorBand is one choropleth bucket
type ColorBand struct {
	MinScore int    `json:"minScore"`
	Color    string `json:"color"`
}

type DashboardError struct {
	Message string
}

func (e DashboardError) Error() string {
	return e.Message
}

var (
	ErrStateNotFound        = DashboardError{"state not found"}
	ErrDistrictNotFound     = DashboardError{"district not found"}
	ErrDistrictWithoutState = DashboardError{"district filter requires a state"}
	ErrInvalidYear          = DashboardError{"year must be between 2020 and 2025"}
	ErrInvalidYearType      = DashboardError{"year type must be Calendar or Financial"}
	ErrInvalidScore         = DashboardError{"score must be a number"}
)

// ColorResult is the colour for one score together with the legend
type ColorResult struct {
	Score *int        `json:"score"`
	Color string      `json:"color"`
	Bands []ColorBand `json:"bands"`
}
