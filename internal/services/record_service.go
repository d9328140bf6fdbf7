package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/observability"
	"github.com/cattlebreed/server/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Scorer derives measurements from a captured image
type Scorer func(image []byte) models.Measurements

// PlaceholderScorer ignores the image and returns random plausible values
func PlaceholderScorer(_ []byte) models.Measurements {
	return models.PlaceholderMeasurements()
}

// RecordOptions wires the optional collaborators of RecordService
type RecordOptions struct {
	Previews *PreviewService
	EXIF     *EXIFService
	Scorer   Scorer
	Clock    Clock
	Metrics  *observability.BusinessMetrics
	Events   EventPublisher
}

// RecordService owns animal records and their images
type RecordService struct {
	repo     repository.AnimalRecordRepo
	images   *ImageStorageService
	previews *PreviewService
	exif     *EXIFService
	score    Scorer
	clock    Clock
	metrics  *observability.BusinessMetrics
	events   EventPublisher
}

// NewRecordService creates a new RecordService
func NewRecordService(repo repository.AnimalRecordRepo, images *ImageStorageService, opts RecordOptions) *RecordService {
	if opts.EXIF == nil {
		opts.EXIF = NewEXIFService()
	}
	if opts.Scorer == nil {
		opts.Scorer = PlaceholderScorer
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &RecordService{
		repo:     repo,
		images:   images,
		previews: opts.Previews,
		exif:     opts.EXIF,
		score:    opts.Scorer,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		events:   opts.Events,
	}
}

// Capture stores a photo, scores it and saves a new unsynced record. The
// record date is the EXIF capture time when present and not in the future.
func (s *RecordService) Capture(ctx context.Context, r io.Reader, filename, source string) (*models.CaptureResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecordService", "Capture")
	defer span.End()

	data, err := io.ReadAll(io.LimitReader(r, s.images.MaxFileSize()+1))
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, models.ErrEmptyImage
	}
	if int64(len(data)) > s.images.MaxFileSize() {
		return nil, models.ErrFileTooLarge
	}

	now := s.clock.Now()
	meta := s.exif.Extract(data)
	capturedAt, fromEXIF := now, false
	if meta.DateTaken != nil && !meta.DateTaken.After(now) {
		capturedAt, fromEXIF = *meta.DateTaken, true
	}

	storedPath, size, err := s.images.Store(bytes.NewReader(data), filename, capturedAt)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	hasPreview := false
	if s.previews != nil {
		if _, err := s.previews.Generate(data, storedPath, meta.Orientation); err != nil {
			observability.WithContext(ctx).WithError(err).WithField("path", storedPath).Warn("Preview generation failed")
		} else {
			hasPreview = true
		}
	}

	rec, err := models.NewAnimalRecord(storedPath, capturedAt, s.score(data))
	if err == nil {
		_, err = s.repo.Add(ctx, rec)
	}
	if err != nil {
		s.removeImage(ctx, storedPath)
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	span.SetAttributes(
		observability.RecordID(rec.ID),
		observability.AnimalID(rec.AnimalID),
		attribute.Int64("image.size", size),
		attribute.Bool("image.exif_date", fromEXIF),
	)
	s.metrics.RecordCapture(ctx, source, size)
	publish(s.events, TopicRecords, WSTypeRecordCreated, rec)
	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"record_id": rec.ID,
		"animal_id": rec.AnimalID,
		"size":      size,
	}).Info("Animal record captured")
	observability.SetSuccess(span)

	result := &models.CaptureResult{
		Record:       rec,
		ImageSize:    size,
		HasPreview:   hasPreview,
		Message:      "Animal record saved successfully!",
		DateFromEXIF: fromEXIF,
	}
	if meta.HasLocation() {
		result.Location = &models.LocationDto{Latitude: meta.Latitude, Longitude: meta.Longitude}
	}
	return result, nil
}

// Create saves a record for an image that is already stored. The image must
// be an existing capture under images/ that no other record uses. Missing
// date or measurements are filled with the current time and placeholder scores.
func (s *RecordService) Create(ctx context.Context, req models.CreateRecordRequest) (*models.AnimalRecord, error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecordService", "Create")
	defer span.End()

	imagePath, err := s.claimImage(ctx, req.ImagePath, "")
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	capturedAt := s.clock.Now()
	if req.Date != nil {
		capturedAt = *req.Date
	}
	m := models.PlaceholderMeasurements()
	if req.Measurements != nil {
		m = *req.Measurements
	}

	rec, err := models.NewAnimalRecord(imagePath, capturedAt, m)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if _, err := s.repo.Add(ctx, rec); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	s.metrics.RecordCapture(ctx, "manual", 0)
	publish(s.events, TopicRecords, WSTypeRecordCreated, rec)
	observability.SetSuccess(span)
	return rec, nil
}

// Get returns one record or ErrRecordNotFound
func (s *RecordService) Get(ctx context.Context, id int64) (*models.AnimalRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, models.ErrRecordNotFound
	}
	return rec, nil
}

// List returns a page of records, newest first. page is 1-based.
func (s *RecordService) List(ctx context.Context, page, perPage int) (*models.RecordListResponse, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	total, err := s.repo.GetCount(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.GetAll(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*models.AnimalRecord{}
	}

	return &models.RecordListResponse{
		Records:    records,
		Pagination: models.NewPaginationInfo(page, perPage, total),
	}, nil
}

// Update replaces the editable fields of record id
func (s *RecordService) Update(ctx context.Context, id int64, req models.UpdateRecordRequest) (*models.AnimalRecord, error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecordService", "Update")
	defer span.End()
	span.SetAttributes(observability.RecordID(id))

	rec, err := s.Get(ctx, id)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	previous := rec.ImagePath
	req.Apply(rec)
	if rec.ImagePath != previous {
		if rec.ImagePath, err = s.claimImage(ctx, rec.ImagePath, previous); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}
	if err := rec.Validate(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	ok, err := s.repo.Update(ctx, rec)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	if rec.ImagePath != previous {
		s.removeImage(ctx, previous)
	}

	publish(s.events, TopicRecords, WSTypeRecordUpdated, rec)
	observability.SetSuccess(span)
	return rec, nil
}

// Delete removes record id together with its image and preview
func (s *RecordService) Delete(ctx context.Context, id int64) error {
	ctx, span := observability.StartServiceSpan(ctx, "RecordService", "Delete")
	defer span.End()
	span.SetAttributes(observability.RecordID(id))

	rec, err := s.Get(ctx, id)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if !ok {
		return models.ErrRecordNotFound
	}

	freed := s.removeImage(ctx, rec.ImagePath)
	s.metrics.RecordDelete(ctx, 1, freed)
	publish(s.events, TopicRecords, WSTypeRecordDeleted, map[string]int64{"id": id})
	observability.SetSuccess(span)
	return nil
}

// DeleteAll removes every record and its image
func (s *RecordService) DeleteAll(ctx context.Context) (int64, error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecordService", "DeleteAll")
	defer span.End()

	records, err := s.repo.GetAll(ctx, 0, 0)
	if err != nil {
		observability.RecordError(span, err)
		return 0, err
	}

	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}

	var freed int64
	for _, rec := range records {
		freed += s.removeImage(ctx, rec.ImagePath)
	}

	s.metrics.RecordDelete(ctx, n, freed)
	publish(s.events, TopicRecords, WSTypeRecordsCleared, map[string]int64{"deleted": n})
	observability.WithContext(ctx).WithField("count", n).Info("All animal records deleted")
	observability.SetSuccess(span)
	return n, nil
}

// Unsynced returns the records not yet uploaded
func (s *RecordService) Unsynced(ctx context.Context) ([]*models.AnimalRecord, error) {
	records, err := s.repo.GetUnsynced(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*models.AnimalRecord{}
	}
	return records, nil
}

// MarkSynced flags ids as uploaded and returns how many changed
func (s *RecordService) MarkSynced(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, span := observability.StartServiceSpan(ctx, "RecordService", "MarkSynced")
	defer span.End()

	n, err := s.repo.MarkSynced(ctx, ids)
	if err != nil {
		observability.RecordError(span, err)
		return 0, fmt.Errorf("failed to mark records synced: %w", err)
	}

	s.metrics.RecordSync(ctx, int(n))
	publish(s.events, TopicRecords, WSTypeRecordsSynced, map[string]interface{}{"ids": ids, "updated": n})
	observability.SetSuccess(span)
	return n, nil
}

// PendingSyncBatch builds the upload batch of all unsynced records on behalf
// of user. A nil user uploads as a guest without farm location.
func (s *RecordService) PendingSyncBatch(ctx context.Context, user *models.User) (*models.SyncAnimalRecordsRequest, error) {
	records, err := s.Unsynced(ctx)
	if err != nil {
		return nil, err
	}

	userID := "guest"
	var loc *models.LocationDto
	if user != nil {
		userID = user.PhoneNumber
		if user.FarmName != "" || user.Location != "" {
			loc = &models.LocationDto{}
			if user.FarmName != "" {
				farm := user.FarmName
				loc.FarmName = &farm
			}
			if user.Location != "" {
				addr := user.Location
				loc.Address = &addr
			}
		}
	}

	batch := &models.SyncAnimalRecordsRequest{Records: make([]models.AnimalRecordDto, 0, len(records))}
	for _, rec := range records {
		batch.Records = append(batch.Records, rec.ToDTO(userID, loc))
	}
	return batch, nil
}

// Image opens the stored image of a record
func (s *RecordService) Image(ctx context.Context, id int64) (*models.AnimalRecord, string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	full, err := s.images.GetFullPath(rec.ImagePath)
	if err != nil {
		return nil, "", err
	}
	if !s.images.Exists(rec.ImagePath) {
		return nil, "", models.ErrImageNotFound
	}
	return rec, full, nil
}

// Preview returns the preview path of a record's image, generating it when
// it is missing
func (s *RecordService) Preview(ctx context.Context, id int64) (string, error) {
	rec, full, err := s.Image(ctx, id)
	if err != nil {
		return "", err
	}
	if s.previews == nil {
		return full, nil
	}

	preview := s.previews.FullPath(rec.ImagePath)
	if fileExists(preview) {
		return preview, nil
	}

	f, err := s.images.Open(rec.ImagePath)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return "", err
	}
	if _, err := s.previews.Generate(data, rec.ImagePath, s.exif.Extract(data).Orientation); err != nil {
		return "", err
	}
	return preview, nil
}

// Ping checks the record store
func (s *RecordService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.repo.Ping(ctx)
}

// claimImage resolves raw to a stored capture that only the record currently
// holding `current` may use
func (s *RecordService) claimImage(ctx context.Context, raw, current string) (string, error) {
	imagePath, err := s.images.ResolveStored(raw)
	if err != nil {
		return "", err
	}
	if imagePath == current {
		return imagePath, nil
	}
	n, err := s.repo.CountByImagePath(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to check image references: %w", err)
	}
	if n > 0 {
		return "", models.ErrImageInUse
	}
	return imagePath, nil
}

// removeImage deletes a capture and its preview once no record references it.
// Paths that are not stored captures are never touched.
func (s *RecordService) removeImage(ctx context.Context, storedPath string) int64 {
	imagePath, err := s.images.ResolveStored(storedPath)
	if err != nil {
		return 0
	}
	n, err := s.repo.CountByImagePath(ctx, imagePath)
	if err != nil || n > 0 {
		return 0
	}

	size := s.images.Size(imagePath)
	if !s.images.Delete(imagePath) {
		return 0
	}
	if s.previews != nil {
		s.previews.Delete(imagePath)
	}
	return size
}
