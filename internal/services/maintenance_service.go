package services

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cattlebreed/server/internal/observability"
	"github.com/cattlebreed/server/internal/repository"
)

// MaintenanceStatus represents the current status of maintenance tasks
type MaintenanceStatus struct {
	Running           bool      `json:"running"`
	LastRun           time.Time `json:"lastRun,omitempty"`
	LastRunDuration   string    `json:"lastRunDuration,omitempty"`
	OrphanImages      int       `json:"orphanImagesRemoved"`
	OrphanPreviews    int       `json:"orphanPreviewsRemoved"`
	PreviewsGenerated int       `json:"previewsGenerated"`
	BytesReclaimed    int64     `json:"bytesReclaimed"`
	Errors            []string  `json:"errors,omitempty"`
	NextScheduledRun  time.Time `json:"nextScheduledRun,omitempty"`
}

// MaintenanceOptions tunes the sweep
type MaintenanceOptions struct {
	Interval time.Duration
	// Unreferenced images younger than this are left alone; a capture may
	// still be between storing the file and inserting the record.
	OrphanGrace time.Duration
	Clock       Clock
}

// MaintenanceService keeps the image folder consistent with the record store
type MaintenanceService struct {
	repo     repository.AnimalRecordRepo
	images   *ImageStorageService
	previews *PreviewService
	exif     *EXIFService
	interval time.Duration
	grace    time.Duration
	clock    Clock

	mu      sync.Mutex
	running bool
	status  MaintenanceStatus
}

// NewMaintenanceService creates a new MaintenanceService. previews may be nil.
func NewMaintenanceService(repo repository.AnimalRecordRepo, images *ImageStorageService, previews *PreviewService, opts MaintenanceOptions) *MaintenanceService {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.OrphanGrace <= 0 {
		opts.OrphanGrace = 10 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &MaintenanceService{
		repo:     repo,
		images:   images,
		previews: previews,
		exif:     NewEXIFService(),
		interval: opts.Interval,
		grace:    opts.OrphanGrace,
		clock:    opts.Clock,
	}
}

// Start runs maintenance now and then every interval until ctx is done
func (s *MaintenanceService) Start(ctx context.Context) {
	observability.Infof("Maintenance service started (runs every %s)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.schedule()
	s.RunNow(ctx)
	for {
		select {
		case <-ctx.Done():
			observability.Info("Maintenance service stopped")
			return
		case <-ticker.C:
			s.schedule()
			s.RunNow(ctx)
		}
	}
}

func (s *MaintenanceService) schedule() {
	s.mu.Lock()
	s.status.NextScheduledRun = s.clock.Now().Add(s.interval)
	s.mu.Unlock()
}

// Status returns the result of the last run
func (s *MaintenanceService) Status() MaintenanceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Running = s.running
	st.Errors = append([]string(nil), s.status.Errors...)
	return st
}

// RunNow performs one sweep and returns its status. A sweep already in
// progress is not repeated; its last known status is returned instead.
func (s *MaintenanceService) RunNow(ctx context.Context) MaintenanceStatus {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		observability.Debug("Maintenance already running, skipping")
		return s.Status()
	}
	s.running = true
	s.mu.Unlock()

	ctx, span := observability.StartServiceSpan(ctx, "MaintenanceService", "RunNow")
	defer span.End()

	start := s.clock.Now()
	run := MaintenanceStatus{LastRun: start}

	referenced, err := s.referencedImages(ctx)
	if err != nil {
		run.Errors = append(run.Errors, "Failed to load records: "+err.Error())
	} else {
		s.cleanupOrphanImages(referenced, &run)
		s.generateMissingPreviews(ctx, referenced, &run)
	}
	s.cleanupOrphanPreviews(&run)

	run.LastRunDuration = s.clock.Now().Sub(start).Round(time.Millisecond).String()

	s.mu.Lock()
	run.NextScheduledRun = s.status.NextScheduledRun
	s.status = run
	s.running = false
	s.mu.Unlock()

	logger := observability.WithContext(ctx).WithFields(map[string]interface{}{
		"orphan_images":      run.OrphanImages,
		"orphan_previews":    run.OrphanPreviews,
		"previews_generated": run.PreviewsGenerated,
		"bytes_reclaimed":    run.BytesReclaimed,
	})
	if len(run.Errors) > 0 {
		logger.WithField("errors", len(run.Errors)).Warn("Maintenance completed with errors")
	} else {
		logger.Debug("Maintenance completed")
		observability.SetSuccess(span)
	}
	return s.Status()
}

func (s *MaintenanceService) referencedImages(ctx context.Context) (map[string]bool, error) {
	records, err := s.repo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool, len(records))
	for _, r := range records {
		refs[r.ImagePath] = true
	}
	return refs, nil
}

// cleanupOrphanImages removes image files no record points at
func (s *MaintenanceService) cleanupOrphanImages(referenced map[string]bool, run *MaintenanceStatus) {
	files, err := s.images.ListImages()
	if err != nil {
		run.Errors = append(run.Errors, "Failed to list images: "+err.Error())
		return
	}

	cutoff := s.clock.Now().Add(-s.grace)
	for _, f := range files {
		if referenced[f.Path] || f.ModTime.After(cutoff) {
			continue
		}
		if !s.images.Delete(f.Path) {
			run.Errors = append(run.Errors, "Failed to delete image "+f.Path)
			continue
		}
		if s.previews != nil {
			s.previews.Delete(f.Path)
		}
		run.OrphanImages++
		run.BytesReclaimed += f.Size
	}
}

// cleanupOrphanPreviews removes previews whose source image is gone
func (s *MaintenanceService) cleanupOrphanPreviews(run *MaintenanceStatus) {
	if s.previews == nil {
		return
	}
	previews, err := s.previews.ListPreviews()
	if err != nil {
		run.Errors = append(run.Errors, "Failed to list previews: "+err.Error())
		return
	}
	files, err := s.images.ListImages()
	if err != nil {
		return
	}

	stems := make(map[string]bool, len(files))
	for _, f := range files {
		stems[imageStem(f.Path)] = true
	}
	for _, p := range previews {
		stem := strings.TrimSuffix(path.Base(p), "_preview.jpg")
		if stems[stem] {
			continue
		}
		if err := s.previews.RemovePreview(p); err != nil {
			run.Errors = append(run.Errors, "Failed to delete preview "+p+": "+err.Error())
			continue
		}
		run.OrphanPreviews++
	}
}

// generateMissingPreviews renders previews for records that have none
func (s *MaintenanceService) generateMissingPreviews(ctx context.Context, referenced map[string]bool, run *MaintenanceStatus) {
	if s.previews == nil {
		return
	}
	for stored := range referenced {
		if ctx.Err() != nil {
			return
		}
		if fileExists(s.previews.FullPath(stored)) || !s.images.Exists(stored) {
			continue
		}

		f, err := s.images.Open(stored)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			continue
		}
		if _, err := s.previews.Generate(data, stored, s.exif.Extract(data).Orientation); err != nil {
			// undecodable images are not worth reporting on every run
			observability.WithField("image", stored).WithError(err).Debug("Preview generation failed")
			continue
		}
		run.PreviewsGenerated++
	}
}

func imageStem(stored string) string {
	file := path.Base(stored)
	return strings.TrimSuffix(file, path.Ext(file))
}
