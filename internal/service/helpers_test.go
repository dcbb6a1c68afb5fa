package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jklovins/mediagen/internal/models"
	"github.com/jklovins/mediagen/internal/store"
)

// newTestStore opens a private in-memory database per test. A single
// connection keeps all queries on the same in-memory instance.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, store.Migrate(db))
	return store.New(db)
}

func seedSettings(t *testing.T, st *store.Store, settings *models.GenerationSettings) *models.GenerationSettings {
	t.Helper()
	require.NoError(t, st.SaveSettings(settings))
	return settings
}

func seedBaseImage(t *testing.T, st *store.Store, name string) *models.BaseImage {
	t.Helper()
	image := &models.BaseImage{
		Name:       name,
		StorageURL: "https://blobs.example.com/base/" + name + ".jpg",
		IsActive:   true,
	}
	require.NoError(t, st.DB().Create(image).Error)
	return image
}

func seedOption(t *testing.T, st *store.Store, category models.ParameterCategory, value string, weight int) {
	t.Helper()
	require.NoError(t, st.DB().Create(&models.ParameterOption{
		Category: category,
		Value:    value,
		IsActive: true,
		Weight:   weight,
	}).Error)
}

// seedWorkItem creates a group owning the given item and returns the
// item with its database identity filled in.
func seedWorkItem(t *testing.T, st *store.Store, item *models.WorkItem) *models.WorkItem {
	t.Helper()
	group := &models.WorkGroup{DisplayOrder: 1, IsActive: true}
	require.NoError(t, st.DB().Create(group).Error)
	item.WorkGroupID = group.ID
	require.NoError(t, st.DB().Create(item).Error)
	return item
}

func reloadItem(t *testing.T, st *store.Store, id uint) *models.WorkItem {
	t.Helper()
	item, err := st.WorkItemByID(id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

// fakeProvider records submissions and returns a canned job id or
// error.
type fakeProvider struct {
	jobID string
	err   error

	calls      int
	prompts    []string
	baseImages []string
}

func (f *fakeProvider) SubmitJob(_ context.Context, prompt, baseImageURL string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.baseImages = append(f.baseImages, baseImageURL)
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

// classifiedError is a submission failure with an explicit retryable
// classification.
type classifiedError struct {
	msg       string
	retryable bool
}

func (e *classifiedError) Error() string   { return e.msg }
func (e *classifiedError) Retryable() bool { return e.retryable }

// fakeUploader records uploads and returns a canned stored URL or
// error.
type fakeUploader struct {
	url string
	err error

	calls   int
	sources []string
	objects []string
}

func (f *fakeUploader) UploadFromURL(_ context.Context, sourceURL, objectName string) (string, error) {
	f.calls++
	f.sources = append(f.sources, sourceURL)
	f.objects = append(f.objects, objectName)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}
