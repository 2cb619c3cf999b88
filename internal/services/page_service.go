package services

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"mangashelf-backend/internal/apperrors"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/repository"
	"mangashelf-backend/internal/storage"
)

type PageService struct {
	store   repository.Store
	objects storage.Store
	staging *storage.Staging
	limits  ArchiveLimits
	events  eventSink
	logger  *zap.Logger
	now     func() time.Time
}

func NewPageService(
	store repository.Store,
	objects storage.Store,
	staging *storage.Staging,
	limits ArchiveLimits,
	publisher events.Publisher,
	logger *zap.Logger,
) *PageService {
	logger = logger.With(zap.String("component", "PageService"))
	return &PageService{
		store:   store,
		objects: objects,
		staging: staging,
		limits:  limits,
		events:  eventSink{publisher: publisher, logger: logger},
		logger:  logger,
		now:     time.Now,
	}
}

type stagedPage struct {
	filename string
	key      string
}

// ExtractPagesFromArchive replaces the pages of a volume with the images of a
// zip archive, numbered 1..N in archive order. Entries are staged on local
// disk, the page rows are swapped in one transaction, and only then are the
// images published and the previous set's leftovers removed.
func (s *PageService) ExtractPagesFromArchive(ctx context.Context, volumeID int64, archive io.ReaderAt, size int64) ([]models.Page, error) {
	if _, err := s.store.Volumes().GetByID(ctx, volumeID); err != nil {
		return nil, lookupError(err, "volume", volumeID)
	}

	zr, err := openArchive(archive, size)
	if err != nil {
		return nil, err
	}
	if err := s.limits.check(zr); err != nil {
		return nil, err
	}

	now := s.now()
	batch, err := s.staging.NewBatch(now)
	if err != nil {
		return nil, apperrors.IO(err, "failed to prepare staging area")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := batch.Discard(); err != nil {
			s.logger.Warn("Failed to discard staging batch", zap.String("dir", batch.Dir()), zap.Error(err))
		}
	}()

	var (
		pages  []models.Page
		staged []stagedPage
		total  int64
	)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.IO(err, "archive ingestion interrupted")
		}
		if !isImageEntry(f) {
			continue
		}

		pageNumber := len(pages) + 1
		filename := fmt.Sprintf("page_%03d%s", pageNumber, strings.ToLower(path.Ext(f.Name)))

		n, err := s.stageEntry(batch, filename, f)
		if err != nil {
			return nil, err
		}
		total += n
		if s.limits.MaxArchiveBytes > 0 && total > s.limits.MaxArchiveBytes {
			return nil, apperrors.Validation("archive expands to more than %d bytes", s.limits.MaxArchiveBytes)
		}

		key := storage.PageKey(volumeID, filename)
		staged = append(staged, stagedPage{filename: filename, key: key})
		pages = append(pages, models.Page{
			VolumeID:   volumeID,
			PageNumber: pageNumber,
			ImagePath:  s.objects.PublicPath(key),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	var previous []models.Page
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Volumes().GetForUpdate(ctx, volumeID); err != nil {
			return lookupError(err, "volume", volumeID)
		}
		var err error
		if previous, err = tx.Pages().ListByVolume(ctx, volumeID); err != nil {
			return err
		}
		if _, err := tx.Pages().DeleteByVolume(ctx, volumeID); err != nil {
			return err
		}
		for i := range pages {
			if err := tx.Pages().Create(ctx, &pages[i]); err != nil {
				return err
			}
		}
		return tx.Volumes().UpdatePageCount(ctx, volumeID, len(pages), now)
	})
	if err != nil {
		return nil, passThrough(err, "failed to save pages of volume %d", volumeID)
	}
	committed = true

	if err := s.publishBatch(ctx, batch, staged); err != nil {
		s.logger.Error("Pages saved but publishing images failed; staging batch kept",
			zap.Int64("volume_id", volumeID),
			zap.String("dir", batch.Dir()),
			zap.Error(err))
		return nil, apperrors.IO(err, "failed to publish page images of volume %d", volumeID)
	}
	s.removeStale(ctx, volumeID, previous, staged)
	if err := batch.Discard(); err != nil {
		s.logger.Warn("Failed to discard staging batch", zap.String("dir", batch.Dir()), zap.Error(err))
	}

	s.logger.Info("Archive ingested",
		zap.Int64("volume_id", volumeID),
		zap.Int("page_count", len(pages)),
		zap.Int("replaced", len(previous)),
		zap.Int64("bytes", total))
	s.events.publish(ctx, events.New(events.PagesIngested, events.VolumeKey(volumeID), now,
		events.PagesIngestedPayload(volumeID, len(pages))))

	if pages == nil {
		pages = []models.Page{}
	}
	return pages, nil
}

func (s *PageService) stageEntry(batch *storage.Batch, filename string, f *zip.File) (int64, error) {
	out, err := batch.Create(filename)
	if err != nil {
		return 0, apperrors.IO(err, "failed to stage %s", filename)
	}
	n, copyErr := copyEntry(out, f, s.limits.MaxEntryBytes)
	if err := out.Close(); err != nil && copyErr == nil {
		return n, apperrors.IO(err, "failed to stage %s", filename)
	}
	return n, copyErr
}

func (s *PageService) publishBatch(ctx context.Context, batch *storage.Batch, staged []stagedPage) error {
	for _, p := range staged {
		f, err := batch.Open(p.filename)
		if err != nil {
			return err
		}
		err = s.objects.Put(ctx, p.key, f, storage.ContentType(p.filename))
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// removeStale deletes objects of the previous page set that the new set did
// not overwrite. Failures only leave orphaned objects behind.
func (s *PageService) removeStale(ctx context.Context, volumeID int64, previous []models.Page, staged []stagedPage) {
	current := make(map[string]bool, len(staged))
	for _, p := range staged {
		current[p.key] = true
	}

	var stale []string
	for _, page := range previous {
		key, ok := storage.KeyForImagePath(volumeID, page.ImagePath)
		if ok && !current[key] {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := s.objects.Remove(ctx, stale...); err != nil {
		s.logger.Warn("Failed to remove stale page images", zap.Int64("volume_id", volumeID), zap.Strings("keys", stale), zap.Error(err))
	}
}

func (s *PageService) ListPages(ctx context.Context, volumeID int64) ([]models.Page, error) {
	if _, err := s.store.Volumes().GetByID(ctx, volumeID); err != nil {
		return nil, lookupError(err, "volume", volumeID)
	}
	pages, err := s.store.Pages().ListByVolume(ctx, volumeID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list pages of volume %d", volumeID)
	}
	return pages, nil
}

func (s *PageService) GetPage(ctx context.Context, id int64) (*models.Page, error) {
	page, err := s.store.Pages().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "page", id)
	}
	return page, nil
}

type CreatePageParams struct {
	VolumeID   int64
	PageNumber int
	ImagePath  string
	FrameData  json.RawMessage
}

func (s *PageService) CreatePage(ctx context.Context, params CreatePageParams) (*models.Page, error) {
	if params.PageNumber < 1 {
		return nil, apperrors.Validation("page number must be at least 1")
	}
	if strings.TrimSpace(params.ImagePath) == "" {
		return nil, apperrors.Validation("image path is required")
	}
	if err := validateFrameData(params.FrameData); err != nil {
		return nil, err
	}

	now := s.now()
	page := &models.Page{
		VolumeID:   params.VolumeID,
		PageNumber: params.PageNumber,
		ImagePath:  params.ImagePath,
		FrameData:  params.FrameData,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Volumes().GetForUpdate(ctx, params.VolumeID); err != nil {
			return lookupError(err, "volume", params.VolumeID)
		}
		if err := ensureNumberFree(ctx, tx, params.VolumeID, params.PageNumber, 0); err != nil {
			return err
		}
		if err := tx.Pages().Create(ctx, page); err != nil {
			return err
		}
		return syncPageCount(ctx, tx, params.VolumeID, now)
	})
	if err != nil {
		return nil, passThrough(err, "failed to create page in volume %d", params.VolumeID)
	}
	return page, nil
}

type UpdatePageParams struct {
	ImagePath *string
	FrameData json.RawMessage
}

func (s *PageService) UpdatePage(ctx context.Context, id int64, params UpdatePageParams) (*models.Page, error) {
	if params.ImagePath != nil && strings.TrimSpace(*params.ImagePath) == "" {
		return nil, apperrors.Validation("image path cannot be empty")
	}
	if err := validateFrameData(params.FrameData); err != nil {
		return nil, err
	}

	var page *models.Page
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if page, err = tx.Pages().GetByID(ctx, id); err != nil {
			return lookupError(err, "page", id)
		}
		if params.ImagePath != nil {
			page.ImagePath = *params.ImagePath
		}
		if len(params.FrameData) > 0 {
			page.FrameData = params.FrameData
		}
		page.UpdatedAt = s.now()
		return tx.Pages().Update(ctx, page)
	})
	if err != nil {
		return nil, passThrough(err, "failed to update page %d", id)
	}
	return page, nil
}

func (s *PageService) DeletePage(ctx context.Context, id int64) error {
	var page *models.Page
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if page, err = tx.Pages().GetByID(ctx, id); err != nil {
			return lookupError(err, "page", id)
		}
		if _, err := tx.Volumes().GetForUpdate(ctx, page.VolumeID); err != nil {
			return lookupError(err, "volume", page.VolumeID)
		}
		if err := tx.Pages().Delete(ctx, id); err != nil {
			return err
		}
		return syncPageCount(ctx, tx, page.VolumeID, s.now())
	})
	if err != nil {
		return passThrough(err, "failed to delete page %d", id)
	}

	if key, ok := storage.KeyForImagePath(page.VolumeID, page.ImagePath); ok {
		if err := s.objects.Remove(ctx, key); err != nil {
			s.logger.Warn("Failed to remove page image", zap.Int64("page_id", id), zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// ReorderPage moves a page to a free page number in its volume.
func (s *PageService) ReorderPage(ctx context.Context, id int64, newPageNumber int) (*models.Page, error) {
	if newPageNumber < 1 {
		return nil, apperrors.Validation("page number must be at least 1")
	}

	var page *models.Page
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if page, err = tx.Pages().GetByID(ctx, id); err != nil {
			return lookupError(err, "page", id)
		}
		if page.PageNumber == newPageNumber {
			return nil
		}
		if _, err := tx.Volumes().GetForUpdate(ctx, page.VolumeID); err != nil {
			return lookupError(err, "volume", page.VolumeID)
		}
		if err := ensureNumberFree(ctx, tx, page.VolumeID, newPageNumber, page.ID); err != nil {
			return err
		}
		page.PageNumber = newPageNumber
		page.UpdatedAt = s.now()
		return tx.Pages().Update(ctx, page)
	})
	if err != nil {
		return nil, passThrough(err, "failed to reorder page %d", id)
	}
	return page, nil
}

func (s *PageService) DeleteAllPages(ctx context.Context, volumeID int64) error {
	var removed int64
	now := s.now()
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Volumes().GetForUpdate(ctx, volumeID); err != nil {
			return lookupError(err, "volume", volumeID)
		}
		var err error
		if removed, err = tx.Pages().DeleteByVolume(ctx, volumeID); err != nil {
			return err
		}
		return tx.Volumes().UpdatePageCount(ctx, volumeID, 0, now)
	})
	if err != nil {
		return passThrough(err, "failed to delete pages of volume %d", volumeID)
	}

	if err := s.objects.RemovePrefix(ctx, storage.VolumePrefix(volumeID)); err != nil {
		s.logger.Warn("Failed to remove volume images", zap.Int64("volume_id", volumeID), zap.Error(err))
	}
	s.logger.Info("Pages deleted", zap.Int64("volume_id", volumeID), zap.Int64("removed", removed))
	s.events.publish(ctx, events.New(events.PagesDeleted, events.VolumeKey(volumeID), now,
		events.PagesDeletedPayload(volumeID, removed)))
	return nil
}

func ensureNumberFree(ctx context.Context, tx repository.Store, volumeID int64, pageNumber int, ownerID int64) error {
	existing, err := tx.Pages().GetByNumber(ctx, volumeID, pageNumber)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != ownerID:
		return apperrors.BusinessRule("page %d already exists in volume %d", pageNumber, volumeID)
	}
	return nil
}

func syncPageCount(ctx context.Context, tx repository.Store, volumeID int64, at time.Time) error {
	count, err := tx.Pages().CountByVolume(ctx, volumeID)
	if err != nil {
		return err
	}
	return tx.Volumes().UpdatePageCount(ctx, volumeID, count, at)
}

func validateFrameData(raw json.RawMessage) error {
	if len(raw) > 0 && !json.Valid(raw) {
		return apperrors.Validation("frame data must be valid JSON")
	}
	return nil
}
