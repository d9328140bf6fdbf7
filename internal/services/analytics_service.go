package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/repository"
)

// AnalyticsService summarises the local records against the dashboard figures
type AnalyticsService struct {
	repo      repository.AnimalRecordRepo
	dashboard *DashboardService
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(repo repository.AnimalRecordRepo, dashboard *DashboardService) *AnalyticsService {
	return &AnalyticsService{repo: repo, dashboard: dashboard}
}

// Analytics computes score trends and a benchmark. When region names a
// dashboard state its average is the regional benchmark, otherwise the
// national average is used for both.
func (s *AnalyticsService) Analytics(ctx context.Context, region string) (*models.AnalyticsData, error) {
	records, err := s.repo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	data := &models.AnalyticsData{
		TotalAnimals:      len(records),
		BreedDistribution: map[string]int{},
		HealthTrends:      []models.HealthTrendData{},
		Recommendations:   []string{},
	}

	type day struct {
		sum   int
		count int
	}
	days := make(map[string]*day)
	total, unsynced := 0, 0
	for _, r := range records {
		total += r.ATCScore
		if !r.Synced {
			unsynced++
		}
		key := r.Date.UTC().Format("2006-01-02")
		if days[key] == nil {
			days[key] = &day{}
		}
		days[key].sum += r.ATCScore
		days[key].count++
	}
	if len(records) > 0 {
		data.AverageATCScore = round1(float64(total) / float64(len(records)))
	}
	for date, d := range days {
		data.HealthTrends = append(data.HealthTrends, models.HealthTrendData{
			Date:          date,
			AverageHealth: round1(float64(d.sum) / float64(d.count)),
			AnimalCount:   d.count,
		})
	}
	sort.Slice(data.HealthTrends, func(i, j int) bool {
		return data.HealthTrends[i].Date < data.HealthTrends[j].Date
	})

	national := round1(s.dashboard.NationalAverage())
	regional := national
	if st, err := s.dashboard.State(region); err == nil {
		regional = float64(st.AvgScore)
	}

	data.Performance = models.PerformanceMetrics{
		ProductivityScore:      data.AverageATCScore,
		ImprovementSuggestions: suggestions(data.AverageATCScore, len(records)),
		BenchmarkComparison: &models.BenchmarkData{
			RegionalAverage: regional,
			NationalAverage: national,
			Ranking:         ranking(data.AverageATCScore, national, len(records)),
		},
	}

	if unsynced > 0 {
		data.Recommendations = append(data.Recommendations,
			fmt.Sprintf("%d records are waiting to be synced", unsynced))
	}
	if len(records) < 10 {
		data.Recommendations = append(data.Recommendations,
			"Capture more animals for a reliable average")
	}
	return data, nil
}

func suggestions(avg float64, n int) []string {
	switch {
	case n == 0:
		return []string{"No animals recorded yet"}
	case avg < 65:
		return []string{"Review feeding and housing for low scoring animals", "Consult a veterinarian about body condition"}
	case avg < 80:
		return []string{"Track animals below 70 for follow-up captures"}
	default:
		return []string{}
	}
}

func ranking(avg, national float64, n int) string {
	switch {
	case n == 0:
		return "Not ranked"
	case avg > national:
		return "Above national average"
	case avg < national:
		return "Below national average"
	default:
		return "At national average"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
