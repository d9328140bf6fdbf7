package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cattlebreed/server/internal/models"
)

// IndianStates are the states and union territories shown on the dashboard
var IndianStates = []string{
	"Andaman and Nicobar Islands",
	"Andhra Pradesh",
	"Arunachal Pradesh",
	"Assam",
	"Bihar",
	"Chandigarh",
	"Chhattisgarh",
	"Dadra and Nagar Haveli and Daman and Diu",
	"Delhi",
	"Goa",
	"Gujarat",
	"Haryana",
	"Himachal Pradesh",
	"Jammu and Kashmir",
	"Jharkhand",
	"Karnataka",
	"Kerala",
	"Ladakh",
	"Lakshadweep",
	"Madhya Pradesh",
	"Maharashtra",
	"Manipur",
	"Meghalaya",
	"Mizoram",
	"Nagaland",
	"Odisha",
	"Puducherry",
	"Punjab",
	"Rajasthan",
	"Sikkim",
	"Tamil Nadu",
	"Telangana",
	"Tripura",
	"Uttar Pradesh",
	"Uttarakhand",
	"West Bengal",
}

const missingScoreColor = "#E5F4EA"

var colorBands = []models.ColorBand{
	{MinScore: 85, Color: "#1f9254"},
	{MinScore: 75, Color: "#2bb673"},
	{MinScore: 65, Color: "#66cdaa"},
	{MinScore: 55, Color: "#a8e7cc"},
	{MinScore: 0, Color: "#dff6ea"},
}

// DashboardService serves deterministic ATS (animal type score) figures for
// every state. The dataset is derived from the state names alone, so it is
// built once and never changes.
type DashboardService struct {
	states  []models.ATSState
	summary models.DashboardSummary
}

// NewDashboardService builds the dataset for IndianStates
func NewDashboardService() *DashboardService {
	return NewDashboardServiceFor(IndianStates)
}

// NewDashboardServiceFor builds the dataset for the given state names
func NewDashboardServiceFor(names []string) *DashboardService {
	states := make([]models.ATSState, 0, len(names))
	for _, name := range names {
		states = append(states, generateState(name))
	}
	return &DashboardService{states: states, summary: summarize(states)}
}

// nameHash folds h*31+c over the name starting from 7, modulo 2^32
func nameHash(s string) uint32 {
	h := uint32(7)
	for _, c := range s {
		h = h*31 + uint32(c)
	}
	return h
}

// roundHalfUp rounds .5 towards +Inf
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func scoreRange(low, high int) string {
	return fmt.Sprintf("%d–%d", low, high)
}

func generateState(name string) models.ATSState {
	h := nameHash(name)
	mid := 55 + int(h%36)
	width := 4 + int((h/101)%8)
	low := max(0, roundHalfUp(float64(mid)-float64(width)/2))
	high := min(100, roundHalfUp(float64(mid)+float64(width)/2))
	total := 50000 + int(h%1950000)
	cattle := roundHalfUp(float64(total) * float64(50+h%30) / 100)
	buffalo := total - cattle

	n := 2 + int(h%2)
	prefix := strings.Fields(name)[0]
	districts := make([]models.ATSRow, 0, n)
	for i := 1; i <= n; i++ {
		share := 0.8 + 0.4*(float64(i)/3)
		districts = append(districts, models.ATSRow{
			Name:           fmt.Sprintf("%s Dist %d", prefix, i),
			TotalEvaluated: roundHalfUp(float64(total) / float64(n) * share),
			Cattle:         roundHalfUp(float64(cattle) / float64(n) * share),
			Buffalo:        roundHalfUp(float64(buffalo) / float64(n) * share),
			AvgScore:       mid + (i-2)*2,
			AvgRange:       scoreRange(low, high),
			Low:            low,
			High:           high,
		})
	}

	return models.ATSState{
		ATSRow: models.ATSRow{
			Name:           name,
			TotalEvaluated: total,
			Cattle:         cattle,
			Buffalo:        buffalo,
			AvgScore:       mid,
			AvgRange:       scoreRange(low, high),
			Low:            low,
			High:           high,
		},
		Districts: districts,
	}
}

// summarize computes national figures. Ties on the average score go to the
// state listed later.
func summarize(states []models.ATSState) models.DashboardSummary {
	var sum models.DashboardSummary
	if len(states) == 0 {
		return sum
	}

	highest, lowest := states[0].ATSRow, states[0].ATSRow
	sum.NationalLow, sum.NationalHigh = states[0].Low, states[0].High
	for i, s := range states {
		sum.TotalAnimals += s.TotalEvaluated
		sum.NationalLow = min(sum.NationalLow, s.Low)
		sum.NationalHigh = max(sum.NationalHigh, s.High)
		if i == 0 {
			continue
		}
		if !(highest.AvgScore > s.AvgScore) {
			highest = s.ATSRow
		}
		if !(lowest.AvgScore < s.AvgScore) {
			lowest = s.ATSRow
		}
	}
	sum.NationalRange = scoreRange(sum.NationalLow, sum.NationalHigh)
	sum.Highest = &highest
	sum.Lowest = &lowest
	return sum
}

// States returns every state with its districts, in list order
func (s *DashboardService) States() []models.ATSState {
	out := make([]models.ATSState, len(s.states))
	copy(out, s.states)
	return out
}

// StateNames returns the state names sorted alphabetically
func (s *DashboardService) StateNames() []string {
	names := make([]string, 0, len(s.states))
	for _, st := range s.states {
		names = append(names, st.Name)
	}
	sort.Strings(names)
	return names
}

// State looks a state up by name, ignoring case
func (s *DashboardService) State(name string) (*models.ATSState, error) {
	name = strings.TrimSpace(name)
	for i := range s.states {
		if strings.EqualFold(s.states[i].Name, name) {
			st := s.states[i]
			return &st, nil
		}
	}
	return nil, models.ErrStateNotFound
}

// Summary returns the national figures
func (s *DashboardService) Summary() models.DashboardSummary {
	return s.summary
}

// NationalAverage is the mean state average score
func (s *DashboardService) NationalAverage() float64 {
	if len(s.states) == 0 {
		return 0
	}
	total := 0
	for _, st := range s.states {
		total += st.AvgScore
	}
	return float64(total) / float64(len(s.states))
}

// View returns the rows for filter: all states, the districts of one state,
// or a single district. The summary is always national.
func (s *DashboardService) View(filter models.DashboardFilter) (*models.DashboardView, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	view := &models.DashboardView{Summary: s.summary}
	switch {
	case filter.State == "":
		view.Rows = make([]models.ATSRow, 0, len(s.states))
		for _, st := range s.states {
			view.Rows = append(view.Rows, st.ATSRow)
		}

	default:
		st, err := s.State(filter.State)
		if err != nil {
			return nil, err
		}
		filter.State = st.Name
		if filter.District == "" {
			view.Rows = append([]models.ATSRow{}, st.Districts...)
			break
		}
		for _, d := range st.Districts {
			if strings.EqualFold(d.Name, strings.TrimSpace(filter.District)) {
				filter.District = d.Name
				view.Rows = []models.ATSRow{d}
			}
		}
		if view.Rows == nil {
			return nil, models.ErrDistrictNotFound
		}
	}

	view.Filter = filter
	return view, nil
}

// Color maps an average score to its choropleth colour; nil means no data
func Color(score *int) string {
	if score == nil {
		return missingScoreColor
	}
	for _, b := range colorBands {
		if *score >= b.MinScore {
			return b.Color
		}
	}
	return colorBands[len(colorBands)-1].Color
}

// ColorBands returns the colour legend, highest band first
func ColorBands() []models.ColorBand {
	return append([]models.ColorBand{}, colorBands...)
}
