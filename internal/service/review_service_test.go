package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type reviewStore struct {
	mu       sync.Mutex
	statuses map[string]models.ReviewStatus
	lastList models.ApplicationFilter
	audits   []*models.AuditLog
}

func newReviewStore(ids ...string) *reviewStore {
	store := &reviewStore{statuses: map[string]models.ReviewStatus{}}
	for _, id := range ids {
		store.statuses[id] = models.ReviewPending
	}
	return store
}

func (r *reviewStore) SetStatus(ctx context.Context, id string, status models.ReviewStatus, now time.Time) (models.ReviewStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, ok := r.statuses[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	r.statuses[id] = status
	return previous, nil
}

func (r *reviewStore) BulkSetStatus(ctx context.Context, ids []string, status models.ReviewStatus, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := 0
	for _, id := range ids {
		if previous, ok := r.statuses[id]; ok && previous != status {
			r.statuses[id] = status
			changed++
		}
	}
	return changed, nil
}

func (r *reviewStore) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, int, error) {
	r.lastList = filter
	return []models.ApplicationListItem{{ID: "a", ApplicationNumber: "CHSTH/2025/0001", Status: models.ReviewPending}}, 41, nil
}

func (r *reviewStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

const (
	reviewAppA = "9b2d7c1e-8a4f-4f3e-9c1d-2a6b5e4f3d21"
	reviewAppB = "1f0e9d8c-7b6a-4c5d-8e4f-3a2b1c0d9e87"
)

func TestReviewSetStatus(t *testing.T) {
	store := newReviewStore(reviewAppA)
	svc := NewReviewService(store, store, nil, NewMetricsService(), nil, nil)
	actor := Actor{AccountID: "staff-1", Meta: models.RequestMeta{IP: "10.0.0.1"}}

	previous, err := svc.SetStatus(context.Background(), reviewAppA, models.SetReviewStatusRequest{Status: models.ReviewApproved}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPending, previous)
	assert.Equal(t, models.ReviewApproved, store.statuses[reviewAppA])
	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionReviewStatus, store.audits[0].Action)
	assert.Equal(t, "staff-1", *store.audits[0].AccountID)
	assert.JSONEq(t, `{"status":"approved"}`, string(store.audits[0].NewValues))

	_, err = svc.SetStatus(context.Background(), reviewAppA, models.SetReviewStatusRequest{Status: models.ReviewApproved}, actor)
	require.NoError(t, err)
	assert.Len(t, store.audits, 1, "unchanged status is not audited")

	_, err = svc.SetStatus(context.Background(), reviewAppA, models.SetReviewStatusRequest{Status: "waitlisted"}, actor)
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, err = svc.SetStatus(context.Background(), "missing", models.SetReviewStatusRequest{Status: models.ReviewRejected}, actor)
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))
}

func TestReviewBulkSetStatus(t *testing.T) {
	store := newReviewStore(reviewAppA, reviewAppB)
	store.statuses[reviewAppB] = models.ReviewRejected
	svc := NewReviewService(store, store, nil, nil, nil, nil)

	changed, err := svc.BulkSetStatus(context.Background(), models.BulkReviewStatusRequest{
		ApplicationIDs: []string{reviewAppA, reviewAppA, reviewAppB},
		Status:         models.ReviewRejected,
	}, Actor{AccountID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, models.ReviewRejected, store.statuses[reviewAppA])
	assert.Len(t, store.audits, 1)

	_, err = svc.BulkSetStatus(context.Background(), models.BulkReviewStatusRequest{ApplicationIDs: []string{"not-a-uuid"}, Status: models.ReviewApproved}, Actor{})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, err = svc.BulkSetStatus(context.Background(), models.BulkReviewStatusRequest{Status: models.ReviewApproved}, Actor{})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
}

func TestReviewList(t *testing.T) {
	store := newReviewStore()
	svc := NewReviewService(store, store, nil, nil, nil, nil)

	status := models.ReviewPending
	items, pagination, err := svc.List(context.Background(), models.ApplicationFilter{Status: &status, FirstChoice: "diploma_xray", PageSize: 10, Page: 2})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 10, TotalCount: 41}, pagination)
	assert.Equal(t, "diploma_xray", store.lastList.FirstChoice)

	bad := models.ReviewStatus("archived")
	_, _, err = svc.List(context.Background(), models.ApplicationFilter{Status: &bad})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, _, err = svc.List(context.Background(), models.ApplicationFilter{FirstChoice: "astrology"})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
}
