package audit

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
	"github.com/healthvolt/healthvolt/internal/platform/middleware"
)

// =========== Mock Repository ===========

type mockEntryRepo struct {
	entries []*Entry
}

func newMockEntryRepo() *mockEntryRepo {
	return &mockEntryRepo{}
}

func (m *mockEntryRepo) Create(_ context.Context, e *Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockEntryRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Entry, int, error) {
	var result []*Entry
	for _, e := range m.entries {
		if filter.ActorID != nil && (e.ActorID == nil || *e.ActorID != *filter.ActorID) {
			continue
		}
		if filter.PatientID != nil && (e.PatientID == nil || *e.PatientID != *filter.PatientID) {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		result = append(result, e)
	}
	return result, len(result), nil
}

func testService(repo EntryRepository) *Service {
	return NewService(repo, zerolog.New(os.Stderr))
}

// =========== Tests ===========

func TestRecord_AssignsID(t *testing.T) {
	repo := newMockEntryRepo()
	svc := testService(repo)

	actor := auth.Principal{ID: uuid.New(), Role: auth.RolePatient}
	patientID := actor.ID
	e := ActorEntry(actor, ActionRecordCreate, "record", nil, &patientID, "uploaded lab report")

	if err := svc.Record(context.Background(), e); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].ID == uuid.Nil {
		t.Error("expected assigned id")
	}
	if repo.entries[0].Action != ActionRecordCreate {
		t.Errorf("unexpected action %s", repo.entries[0].Action)
	}
}

func TestRecord_RequiresAction(t *testing.T) {
	svc := testService(newMockEntryRepo())
	if err := svc.Record(context.Background(), Entry{EntityType: "record"}); err != ErrMissingAction {
		t.Errorf("expected ErrMissingAction, got %v", err)
	}
}

func TestList_FiltersByPatient(t *testing.T) {
	repo := newMockEntryRepo()
	svc := testService(repo)
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()
	for _, pid := range []uuid.UUID{p1, p1, p2} {
		id := pid
		svc.Log(ctx, Entry{Action: ActionGrantApprove, EntityType: "grant", PatientID: &id})
	}

	items, total, err := svc.List(ctx, ListFilter{PatientID: &p1}, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 entries for patient, got total=%d len=%d", total, len(items))
	}
}

func TestRecordAccess_AdaptsHTTPEvent(t *testing.T) {
	repo := newMockEntryRepo()
	svc := testService(repo)

	actorID := uuid.New()
	err := svc.RecordAccess(middleware.AccessEvent{
		ActorID:   actorID.String(),
		ActorRole: "hospital",
		Method:    "GET",
		Path:      "/api/v1/records/abc",
		RequestID: "req-9",
	})
	if err != nil {
		t.Fatalf("record access: %v", err)
	}

	e := repo.entries[0]
	if e.Action != ActionHTTPAccess {
		t.Errorf("expected http.access, got %s", e.Action)
	}
	if e.ActorID == nil || *e.ActorID != actorID {
		t.Error("expected actor id parsed from event")
	}
	if e.Detail != "GET /api/v1/records/abc" {
		t.Errorf("unexpected detail %q", e.Detail)
	}
}

func TestRecordAccess_AnonymousActor(t *testing.T) {
	repo := newMockEntryRepo()
	svc := testService(repo)

	if err := svc.RecordAccess(middleware.AccessEvent{Path: "/api/v1/hospitals", Method: "GET"}); err != nil {
		t.Fatalf("record access: %v", err)
	}
	if repo.entries[0].ActorID != nil {
		t.Error("expected nil actor for anonymous access")
	}
}
