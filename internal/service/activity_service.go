package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"veloplan/training-app/internal/domain"
	gpximport "veloplan/training-app/internal/gpx"
	"veloplan/training-app/internal/repository"
	"veloplan/training-app/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrActivityNotFound         = errors.New("activity not found")
	ErrActivityValidationFailed = errors.New("activity validation failed")
	ErrInvalidGPXFile           = errors.New("invalid GPX file")
	ErrNoFileAttached           = errors.New("activity has no file attached")
	ErrUploadURLError           = errors.New("failed to generate upload URL")
	ErrDownloadURLError         = errors.New("failed to generate download URL")
	ErrUploadNotFound           = errors.New("uploaded object not found in storage")
	ErrObjectKeyMismatch        = errors.New("object key does not belong to this activity")
)

// ActivityInput carries the fields of a manually recorded activity.
type ActivityInput struct {
	Name         string
	Sport        domain.Sport
	StartTime    time.Time
	DurationSec  int
	DistanceKM   float64
	AverageWatts *int
	TSS          *float64
}

// UploadURLResponse returns the presigned URL and the key the client must
// report back when confirming the upload.
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// --- Service Interface ---
type ActivityService interface {
	Create(ctx context.Context, userID primitive.ObjectID, input ActivityInput) (*domain.Activity, error)
	// ImportGPX parses a GPX track and records it as an activity, deriving
	// start time, duration, and distance from the track points.
	ImportGPX(ctx context.Context, userID primitive.ObjectID, name string, sport domain.Sport, data []byte) (*domain.Activity, error)
	List(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error)
	Get(ctx context.Context, userID, activityID primitive.ObjectID) (*domain.Activity, error)
	// Delete removes the activity, detaches it from any matched workout,
	// and deletes its stored file.
	Delete(ctx context.Context, userID, activityID primitive.ObjectID) error

	// FIT file attachment. The client PUTs the file to the presigned URL,
	// then confirms; download URLs are minted per request.
	RequestFileUpload(ctx context.Context, userID, activityID primitive.ObjectID, contentType string) (*UploadURLResponse, error)
	ConfirmFileUpload(ctx context.Context, userID, activityID primitive.ObjectID, objectKey, fileName string) (*domain.Activity, error)
	FileDownloadURL(ctx context.Context, userID, activityID primitive.ObjectID) (string, error)
	DeleteFile(ctx context.Context, userID, activityID primitive.ObjectID) error
}

// --- Service Implementation ---

// activityService implements the ActivityService interface.
type activityService struct {
	activityRepo repository.ActivityRepository
	fileRepo     repository.FileRepository
	fileStorage  storage.FileStorage
	schedule     ScheduleService
	logger       *zap.Logger
}

// NewActivityService creates a new instance of activityService.
func NewActivityService(
	activityRepo repository.ActivityRepository,
	fileRepo repository.FileRepository,
	fileStorage storage.FileStorage,
	schedule ScheduleService,
	logger *zap.Logger,
) ActivityService {
	return &activityService{
		activityRepo: activityRepo,
		fileRepo:     fileRepo,
		fileStorage:  fileStorage,
		schedule:     schedule,
		logger:       logger,
	}
}

// Create records a manually entered activity and tries to match it against
// the calendar.
func (s *activityService) Create(ctx context.Context, userID primitive.ObjectID, input ActivityInput) (*domain.Activity, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required to create an activity")
	}
	if input.Name == "" || !domain.ValidSport(input.Sport) {
		return nil, ErrActivityValidationFailed
	}
	if input.StartTime.IsZero() || input.DurationSec <= 0 || input.DistanceKM < 0 {
		return nil, ErrActivityValidationFailed
	}

	activity := &domain.Activity{
		UserID:       userID,
		Source:       domain.SourceManual,
		Name:         input.Name,
		Sport:        input.Sport,
		StartTime:    input.StartTime.UTC(),
		DurationSec:  input.DurationSec,
		DistanceKM:   input.DistanceKM,
		AverageWatts: input.AverageWatts,
		TSS:          input.TSS,
	}

	activityID, err := s.activityRepo.Create(ctx, activity)
	if err != nil {
		return nil, err
	}
	activity.ID = activityID

	if _, err := s.schedule.MatchActivity(ctx, activity); err != nil {
		// The activity exists either way; matching can be retried by the
		// nightly sweep.
		s.logger.Warn("auto-match failed after create", zap.String("activityId", activityID.Hex()), zap.Error(err))
	}

	return s.activityRepo.GetByID(ctx, activityID)
}

// ImportGPX records an activity from an uploaded GPX track.
func (s *activityService) ImportGPX(ctx context.Context, userID primitive.ObjectID, name string, sport domain.Sport, data []byte) (*domain.Activity, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required to import an activity")
	}
	if !domain.ValidSport(sport) {
		return nil, ErrActivityValidationFailed
	}
	if len(data) == 0 {
		return nil, ErrInvalidGPXFile
	}

	summary, err := gpximport.Summarize(data)
	if err != nil {
		return nil, ErrInvalidGPXFile
	}
	if summary.StartTime.IsZero() || summary.DurationSec <= 0 {
		// A track without timestamps cannot be placed on the calendar.
		return nil, ErrInvalidGPXFile
	}

	if name == "" {
		name = summary.Name
	}
	if name == "" {
		name = fmt.Sprintf("Imported %s", summary.StartTime.Format("2006-01-02"))
	}

	activity := &domain.Activity{
		UserID:      userID,
		Source:      domain.SourceGPX,
		Name:        name,
		Sport:       sport,
		StartTime:   summary.StartTime,
		DurationSec: summary.DurationSec,
		DistanceKM:  summary.DistanceKM,
	}

	activityID, err := s.activityRepo.Create(ctx, activity)
	if err != nil {
		return nil, err
	}
	activity.ID = activityID

	if _, err := s.schedule.MatchActivity(ctx, activity); err != nil {
		s.logger.Warn("auto-match failed after import", zap.String("activityId", activityID.Hex()), zap.Error(err))
	}

	return s.activityRepo.GetByID(ctx, activityID)
}

// List retrieves the user's activities with start times in [from, to).
func (s *activityService) List(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID cannot be nil")
	}
	if !to.After(from) {
		return nil, ErrInvalidDateRange
	}
	return s.activityRepo.GetByUserAndTimeRange(ctx, userID, from, to)
}

// Get retrieves a single activity, enforcing ownership.
func (s *activityService) Get(ctx context.Context, userID, activityID primitive.ObjectID) (*domain.Activity, error) {
	return s.getOwnedActivity(ctx, userID, activityID)
}

// Delete removes an activity along with its match link and stored file.
func (s *activityService) Delete(ctx context.Context, userID, activityID primitive.ObjectID) error {
	activity, err := s.getOwnedActivity(ctx, userID, activityID)
	if err != nil {
		return err
	}

	if activity.IsMatched() {
		if err := s.schedule.UnmatchActivity(ctx, activityID); err != nil {
			return err
		}
	}

	if activity.FileID != nil {
		if err := s.removeFile(ctx, *activity.FileID); err != nil {
			return err
		}
	}

	if err := s.activityRepo.Delete(ctx, activityID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrActivityNotFound
		}
		return err
	}
	return nil
}

// RequestFileUpload mints a presigned PUT URL for the activity's FIT file.
func (s *activityService) RequestFileUpload(ctx context.Context, userID, activityID primitive.ObjectID, contentType string) (*UploadURLResponse, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.getOwnedActivity(ctx, userID, activityID); err != nil {
		return nil, err
	}

	objectKey := path.Join("activities", userID.Hex(), activityID.Hex(), fmt.Sprintf("%s.fit", uuid.NewString()))

	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, ErrUploadURLError
	}

	return &UploadURLResponse{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
	}, nil
}

// ConfirmFileUpload verifies the object landed in storage and records it.
// Replacing an existing file deletes the previous object.
func (s *activityService) ConfirmFileUpload(ctx context.Context, userID, activityID primitive.ObjectID, objectKey, fileName string) (*domain.Activity, error) {
	if objectKey == "" {
		return nil, errors.New("object key is required")
	}

	activity, err := s.getOwnedActivity(ctx, userID, activityID)
	if err != nil {
		return nil, err
	}

	// Keys are minted per activity; confirming a key from another user or
	// activity would let someone attach files they do not own.
	expectedPrefix := path.Join("activities", userID.Hex(), activityID.Hex()) + "/"
	if !strings.HasPrefix(objectKey, expectedPrefix) {
		return nil, ErrObjectKeyMismatch
	}

	info, err := s.fileStorage.StatObject(ctx, objectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}

	file := &domain.FileObject{
		UserID:      userID,
		ActivityID:  &activity.ID,
		ObjectKey:   objectKey,
		FileName:    fileName,
		ContentType: info.ContentType,
		Size:        info.Size,
	}

	fileID, err := s.fileRepo.Create(ctx, file)
	if err != nil {
		return nil, err
	}

	// Swap in the new file before removing the old one so the activity
	// never points at a deleted object.
	previousFileID := activity.FileID
	if err := s.activityRepo.SetFile(ctx, activityID, &fileID); err != nil {
		return nil, err
	}
	if previousFileID != nil {
		if err := s.removeFile(ctx, *previousFileID); err != nil {
			s.logger.Warn("failed to remove replaced file", zap.String("fileId", previousFileID.Hex()), zap.Error(err))
		}
	}

	return s.activityRepo.GetByID(ctx, activityID)
}

// FileDownloadURL mints a presigned GET URL for the activity's file.
func (s *activityService) FileDownloadURL(ctx context.Context, userID, activityID primitive.ObjectID) (string, error) {
	activity, err := s.getOwnedActivity(ctx, userID, activityID)
	if err != nil {
		return "", err
	}
	if activity.FileID == nil {
		return "", ErrNoFileAttached
	}

	file, err := s.fileRepo.GetByID(ctx, *activity.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNoFileAttached
		}
		return "", err
	}

	downloadURL, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, file.ObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", ErrDownloadURLError
	}
	return downloadURL, nil
}

// DeleteFile detaches and removes the activity's stored file.
func (s *activityService) DeleteFile(ctx context.Context, userID, activityID primitive.ObjectID) error {
	activity, err := s.getOwnedActivity(ctx, userID, activityID)
	if err != nil {
		return err
	}
	if activity.FileID == nil {
		return ErrNoFileAttached
	}

	if err := s.activityRepo.SetFile(ctx, activityID, nil); err != nil {
		return err
	}
	return s.removeFile(ctx, *activity.FileID)
}

// removeFile deletes the stored object first, then its metadata record.
func (s *activityService) removeFile(ctx context.Context, fileID primitive.ObjectID) error {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.fileStorage.DeleteObject(ctx, file.ObjectKey); err != nil {
		return err
	}
	return s.fileRepo.Delete(ctx, fileID)
}

// getOwnedActivity loads an activity and enforces ownership.
func (s *activityService) getOwnedActivity(ctx context.Context, userID, activityID primitive.ObjectID) (*domain.Activity, error) {
	activity, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	if activity.UserID != userID {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}
