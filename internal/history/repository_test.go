package history

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/mqttconnect/internal/infrastructure/database"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttconnect/migrations"
)

// newTestRepository opens a migrated database in a temp dir.
func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func record(t *testing.T, repo *SQLiteRepository, a mqtt.Attempt) {
	t.Helper()
	if err := repo.RecordAttempt(context.Background(), a); err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}
}

func TestRecordAndList(t *testing.T) {
	repo := newTestRepository(t)

	want := mqtt.Attempt{
		ID:         "att-fixed",
		ClientID:   "c1",
		ServerURI:  "tcp://localhost:1883",
		ServerURIs: []string{"tcp://a:1883", "tcp://b:1883"},
		Code:       mqtt.CodeIdentifierRejected,
		Outcome:    mqtt.OutcomeRejected,
		Message:    "identifier rejected",
		Duration:   42 * time.Millisecond,
		At:         baseTime.Add(123456789 * time.Nanosecond),
	}
	record(t, repo, want)

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Attempts) != 1 {
		t.Fatalf("List() total=%d len=%d, want 1/1", result.Total, len(result.Attempts))
	}

	got := result.Attempts[0]
	if !got.At.Equal(want.At) {
		t.Errorf("At = %v, want %v", got.At, want.At)
	}
	got.At = want.At
	if !reflect.DeepEqual(got, want) {
		t.Errorf("attempt = %+v\nwant      %+v", got, want)
	}
}

func TestRecordGeneratesIDAndTime(t *testing.T) {
	repo := newTestRepository(t)

	record(t, repo, mqtt.Attempt{ClientID: "c1", ServerURI: "tcp://h:1883", Outcome: mqtt.OutcomeConnected})

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := result.Attempts[0]
	if !strings.HasPrefix(got.ID, "att-") {
		t.Errorf("ID = %q, want att- prefix", got.ID)
	}
	if got.At.IsZero() || time.Since(got.At) > time.Minute {
		t.Errorf("At = %v, want about now", got.At)
	}
	if got.ServerURIs != nil {
		t.Errorf("ServerURIs = %v, want nil", got.ServerURIs)
	}
}

func TestRecordRejectsUnknownOutcome(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.RecordAttempt(context.Background(), mqtt.Attempt{ClientID: "c1", ServerURI: "tcp://h:1883", Outcome: "maybe"})
	if err == nil {
		t.Error("RecordAttempt() error = nil, want CHECK constraint failure")
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepository(t)

	seed := []mqtt.Attempt{
		{ClientID: "c1", Outcome: mqtt.OutcomeRejected, Code: 3},
		{ClientID: "c1", Outcome: mqtt.OutcomeConnected},
		{ClientID: "c2", Outcome: mqtt.OutcomeUnmapped, Code: 6},
		{ClientID: "c2", Outcome: mqtt.OutcomeInvalidConfig},
		{ClientID: "c1", Outcome: mqtt.OutcomeConnected},
	}
	for i, a := range seed {
		a.ServerURI = "tcp://localhost:1883"
		a.At = baseTime.Add(time.Duration(i) * time.Minute)
		record(t, repo, a)
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantCodes []mqtt.ReturnCode
	}{
		{"all newest first", Filter{}, 5, []mqtt.ReturnCode{0, 0, 6, 0, 3}},
		{"client", Filter{ClientID: "c1"}, 3, []mqtt.ReturnCode{0, 0, 3}},
		{"outcome", Filter{Outcome: mqtt.OutcomeUnmapped}, 1, []mqtt.ReturnCode{6}},
		{"client and outcome", Filter{ClientID: "c1", Outcome: mqtt.OutcomeRejected}, 1, []mqtt.ReturnCode{3}},
		{"since", Filter{Since: baseTime.Add(3 * time.Minute)}, 2, []mqtt.ReturnCode{0, 0}},
		{"page", Filter{Limit: 2, Offset: 1}, 5, []mqtt.ReturnCode{0, 6}},
		{"past the end", Filter{Offset: 10}, 5, []mqtt.ReturnCode{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			codes := make([]mqtt.ReturnCode, 0, len(result.Attempts))
			for _, a := range result.Attempts {
				codes = append(codes, a.Code)
			}
			if !reflect.DeepEqual(codes, tt.wantCodes) {
				t.Errorf("codes = %v, want %v", codes, tt.wantCodes)
			}
		})
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := newTestRepository(t)

	tests := []struct {
		in, want int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{10, 10},
		{1000, maxLimit},
	}
	for _, tt := range tests {
		result, err := repo.List(context.Background(), Filter{Limit: tt.in, Offset: -3})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Limit != tt.want {
			t.Errorf("Limit(%d) = %d, want %d", tt.in, result.Limit, tt.want)
		}
		if result.Offset != 0 {
			t.Errorf("Offset = %d, want 0", result.Offset)
		}
	}
}

func TestCountByOutcome(t *testing.T) {
	repo := newTestRepository(t)

	for _, a := range []mqtt.Attempt{
		{ClientID: "c1", Outcome: mqtt.OutcomeRejected},
		{ClientID: "c1", Outcome: mqtt.OutcomeRejected},
		{ClientID: "c1", Outcome: mqtt.OutcomeConnected},
		{ClientID: "c2", Outcome: mqtt.OutcomeConnected},
	} {
		a.ServerURI = "tcp://localhost:1883"
		record(t, repo, a)
	}

	counts, err := repo.CountByOutcome(context.Background(), "c1")
	if err != nil {
		t.Fatalf("CountByOutcome() error = %v", err)
	}
	want := map[string]int{mqtt.OutcomeRejected: 2, mqtt.OutcomeConnected: 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("CountByOutcome(c1) = %v, want %v", counts, want)
	}

	all, err := repo.CountByOutcome(context.Background(), "")
	if err != nil {
		t.Fatalf("CountByOutcome() error = %v", err)
	}
	if all[mqtt.OutcomeConnected] != 2 {
		t.Errorf("CountByOutcome(all)[connected] = %d, want 2", all[mqtt.OutcomeConnected])
	}
}

// A client wired with the repository leaves one row per connect call.
func TestRepositoryAsClientRecorder(t *testing.T) {
	repo := newTestRepository(t)

	client, err := mqtt.Create("tcp://localhost:1883", "c1", mqtt.WithRecorder(repo))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer client.Close()

	// Rejected before the engine is contacted.
	_ = client.Connect(mqtt.Options{"mqttVersion": 7})

	result, err := repo.List(context.Background(), Filter{ClientID: "c1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || result.Attempts[0].Outcome != mqtt.OutcomeInvalidConfig {
		t.Errorf("attempts = %+v, want one invalid_config", result.Attempts)
	}
}
