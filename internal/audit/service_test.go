package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows    []TimelineRow
	lastQ   TimelineQuery
	failErr error
}

func (s *stubRepo) Timeline(ctx context.Context, q TimelineQuery) ([]TimelineRow, error) {
	s.lastQ = q
	if s.failErr != nil {
		return nil, s.failErr
	}
	start := q.Offset
	if start > len(s.rows) {
		start = len(s.rows)
	}
	end := start + q.Limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[start:end], nil
}

func seedRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{
			ActorID:  "root",
			Action:   fmt.Sprintf("tenant.updated.%d", i),
			Entity:   "tenant",
			EntityID: "t-1",
			At:       time.Now().Add(-time.Duration(i) * time.Minute),
		}
	}
	return rows
}

func TestTimelineDefaultsAndHasNext(t *testing.T) {
	repo := &stubRepo{rows: seedRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 20)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	// One extra row requested so a next page is detectable.
	assert.Equal(t, 21, repo.lastQ.Limit)
}

func TestTimelineLastPage(t *testing.T) {
	repo := &stubRepo{rows: seedRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
	assert.Equal(t, 20, repo.lastQ.Offset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{rows: seedRows(60)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 50)
	assert.Equal(t, 50, result.Paging.PageSize)
}

func TestTimelineTrimsFilters(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{Actor: " root ", Entity: "tenant"})
	require.NoError(t, err)
	assert.Equal(t, "root", repo.lastQ.Actor)
	assert.Equal(t, "tenant", repo.lastQ.Entity)
}

func TestTimelineWithoutRepository(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
}
