package service

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/jklovins/mediagen/internal/models"
	"github.com/jklovins/mediagen/internal/store"
)

// BatchService manufactures the daily batch of work groups. The last
// run date on the settings row keeps it to at most one batch per UTC
// calendar day no matter how often Run is triggered.
type BatchService struct {
	store    *store.Store
	composer *PromptComposer
	rng      *rand.Rand
	logger   *zap.Logger
}

func NewBatchService(st *store.Store, composer *PromptComposer, rng *rand.Rand, logger *zap.Logger) *BatchService {
	return &BatchService{
		store:    st,
		composer: composer,
		rng:      rng,
		logger:   logger,
	}
}

// Run creates the day's work groups. Missing settings and an empty
// base image pool are no-ops with a warning; both fail closed rather
// than producing a partial batch.
func (s *BatchService) Run() error {
	settings, err := s.store.Settings()
	if err != nil {
		return err
	}
	if settings == nil {
		s.logger.Warn("No generation settings found, skipping batch creation")
		return nil
	}

	now := time.Now().UTC()
	if settings.RanOn(now) {
		s.logger.Info("Batch already created for today")
		return nil
	}

	baseImages, err := s.store.ActiveBaseImages()
	if err != nil {
		return err
	}
	if len(baseImages) == 0 {
		s.logger.Warn("No active base images found, skipping batch creation")
		return nil
	}

	options, err := s.store.ActiveParameterOptions()
	if err != nil {
		return err
	}

	lastOrder, err := s.store.MaxGroupDisplayOrder()
	if err != nil {
		return err
	}

	groups := make([]*models.WorkGroup, 0, settings.DailyGroupCount)
	totalItems := 0
	for groupIndex := 0; groupIndex < settings.DailyGroupCount; groupIndex++ {
		group := &models.WorkGroup{
			DisplayOrder: lastOrder + groupIndex + 1,
			IsActive:     true,
		}

		itemCount := s.itemsPerGroup(settings)
		for itemIndex := 0; itemIndex < itemCount; itemIndex++ {
			baseImage := baseImages[s.rng.Intn(len(baseImages))]
			baseImageID := baseImage.ID
			prompt, params := s.composer.Compose(options, settings)

			group.Items = append(group.Items, models.WorkItem{
				MediaType:    "image",
				DisplayOrder: itemIndex,
				IsActive:     true,
				BaseImageID:  &baseImageID,
				Prompt:       prompt,
				Status:       models.StatusPending,
				RetryCount:   0,
				Parameters:   params,
			})
		}

		totalItems += itemCount
		groups = append(groups, group)
	}

	settings.LastRunDate = now
	settings.ModifiedDate = now

	if err := s.store.CreateBatch(groups, settings); err != nil {
		return fmt.Errorf("failed to persist batch: %w", err)
	}

	s.logger.Info("Created new work groups",
		zap.Int("groups", len(groups)),
		zap.Int("items", totalItems))
	return nil
}

func (s *BatchService) itemsPerGroup(settings *models.GenerationSettings) int {
	min, max := settings.ItemsPerGroupMin, settings.ItemsPerGroupMax
	if min < 1 {
		min = 1
	}
	if max < min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}
