package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type stubTimelineRepo struct {
	rows     []TimelineRow
	lastCall WindowParams
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, arg WindowParams) ([]TimelineRow, error) {
	s.lastCall = arg
	if int(arg.LimitRows) < len(s.rows) {
		return s.rows[:arg.LimitRows], nil
	}
	return s.rows, nil
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		mockRow("2026-03-10T10:00:00Z", "ADMIN", "UPDATE", "role", "CLERK"),
		mockRow("2026-03-09T09:00:00Z", "JSMITH", "LOGIN_SUCCESS", "user", "JSMITH"),
		mockRow("2026-03-08T08:00:00Z", "JSMITH", "LOGIN_FAIL", "user", "JSMITH"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Actor:    "jsmith",
		Page:     2,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 3 || result.Paging.PrevPage != 1 {
		t.Fatalf("unexpected paging: %+v", result.Paging)
	}
	if repo.lastCall.LimitRows != 3 || repo.lastCall.OffsetRows != 2 {
		t.Fatalf("unexpected window: limit %d offset %d", repo.lastCall.LimitRows, repo.lastCall.OffsetRows)
	}
	if repo.lastCall.Actor.String != "JSMITH" {
		t.Fatalf("expected upper-cased actor filter, got %q", repo.lastCall.Actor.String)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastCall.LimitRows != maxPageSize+1 {
		t.Fatalf("expected limit %d, got %d", maxPageSize+1, repo.lastCall.LimitRows)
	}
	if result.Rows == nil || result.Paging.Page != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestServiceExportUsesCap(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{mockRow("2026-03-10T10:00:00Z", "ADMIN", "INSERT", "user", "OPS1")}}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if repo.lastCall.LimitRows != MaxExportRows {
		t.Fatalf("expected export cap, got %d", repo.lastCall.LimitRows)
	}
	if repo.lastCall.Actor != (pgtype.Text{}) {
		t.Fatalf("expected actor filter empty")
	}
}

func mockRow(ts, actor, action, entity, entityID string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: at, Actor: actor, Action: action, Entity: entity, EntityID: entityID}
}
