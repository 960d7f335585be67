package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/facegate/facegate/internal/recognize"
)

func TestStatsHandler_Get(t *testing.T) {
	model, s := testFixtures(t)
	ctx := context.Background()

	id, _ := s.CreateUser(ctx, "Alice", "EMP-001")
	s.CreateUser(ctx, "Bob", "EMP-002")
	s.LogAttendance(ctx, id, "Alice")
	model.Update([]recognize.TrainingSample{{Region: facePattern(100, 120), Label: id}})

	handler := NewStatsHandler(s, model)
	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)
	if stats.TotalUsers != 2 {
		t.Errorf("total_users = %d, want 2", stats.TotalUsers)
	}
	if stats.TodaysAttendance != 1 {
		t.Errorf("todays_attendance = %d, want 1", stats.TodaysAttendance)
	}
	if !stats.ModelTrained || stats.TrainingSamples != 1 {
		t.Errorf("model stats = %+v", stats)
	}
}

func TestStatsHandler_Get_EmptySystem(t *testing.T) {
	model, s := testFixtures(t)
	handler := NewStatsHandler(s, model)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)
	if stats.TotalUsers != 0 || stats.TodaysAttendance != 0 || stats.ModelTrained {
		t.Errorf("unexpected stats for empty system: %+v", stats)
	}
}

func TestEventsHandler_List(t *testing.T) {
	_, s := testFixtures(t)
	ctx := context.Background()

	id1, _ := s.CreateUser(ctx, "Alice", "EMP-001")
	id2, _ := s.CreateUser(ctx, "Bob", "EMP-002")
	s.LogAttendance(ctx, id1, "Alice")
	s.LogAttendance(ctx, id2, "Bob")

	handler := NewEventsHandler(s)
	req := httptest.NewRequest("GET", "/api/v1/events", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var events []EventResponse
	parseJSONResponse(t, recorder, &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, evt := range events {
		if evt.Timestamp == "" || evt.Name == "" {
			t.Errorf("incomplete event %+v", evt)
		}
	}
}

func TestEventsHandler_List_Limit(t *testing.T) {
	_, s := testFixtures(t)
	ctx := context.Background()
	for i, name := range []string{"Alice", "Bob", "Carol"} {
		id, _ := s.CreateUser(ctx, name, "EMP-00"+string(rune('1'+i)))
		s.LogAttendance(ctx, id, name)
	}

	handler := NewEventsHandler(s)
	req := httptest.NewRequest("GET", "/api/v1/events?limit=2", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	var events []EventResponse
	parseJSONResponse(t, recorder, &events)
	if len(events) != 2 {
		t.Errorf("limit ignored, got %d events", len(events))
	}
}

func TestEventsHandler_List_BadLimit(t *testing.T) {
	_, s := testFixtures(t)
	handler := NewEventsHandler(s)

	for _, limit := range []string{"0", "-5", "9999", "abc"} {
		req := httptest.NewRequest("GET", "/api/v1/events?limit="+limit, nil)
		recorder := httptest.NewRecorder()
		handler.List(recorder, req)
		assertStatusCode(t, recorder, http.StatusBadRequest)
	}
}

func TestEventsHandler_List_Empty(t *testing.T) {
	_, s := testFixtures(t)
	handler := NewEventsHandler(s)

	req := httptest.NewRequest("GET", "/api/v1/events", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var events []EventResponse
	parseJSONResponse(t, recorder, &events)
	if len(events) != 0 {
		t.Errorf("expected empty list, got %d events", len(events))
	}
}
