package grants

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthvolt/healthvolt/internal/domain/records"
	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestIsLiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		grant *AccessGrant
		want  bool
	}{
		{"nil grant", nil, false},
		{"approved no expiry", &AccessGrant{Status: StatusApproved}, true},
		{"approved future expiry", &AccessGrant{Status: StatusApproved, ExpiresAt: timePtr(now.Add(time.Hour))}, true},
		{"approved past expiry", &AccessGrant{Status: StatusApproved, ExpiresAt: timePtr(now.Add(-time.Minute))}, false},
		{"approved expiry exactly now", &AccessGrant{Status: StatusApproved, ExpiresAt: timePtr(now)}, false},
		{"pending", &AccessGrant{Status: StatusPending}, false},
		{"rejected", &AccessGrant{Status: StatusRejected}, false},
		{"revoked", &AccessGrant{Status: StatusRevoked, ExpiresAt: timePtr(now.Add(time.Hour))}, false},
		{"expired", &AccessGrant{Status: StatusExpired}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.grant.IsLiveAt(now); got != tc.want {
				t.Errorf("IsLiveAt = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	g := &AccessGrant{Status: StatusApproved, ExpiresAt: timePtr(now.Add(-time.Hour))}
	if got := g.EffectiveStatus(now); got != StatusExpired {
		t.Errorf("approved-and-past should read expired, got %s", got)
	}

	g = &AccessGrant{Status: StatusApproved, ExpiresAt: timePtr(now.Add(time.Hour))}
	if got := g.EffectiveStatus(now); got != StatusApproved {
		t.Errorf("live grant should read approved, got %s", got)
	}

	g = &AccessGrant{Status: StatusRevoked}
	if got := g.EffectiveStatus(now); got != StatusRevoked {
		t.Errorf("revoked should stay revoked, got %s", got)
	}
}

func TestScopeCovers(t *testing.T) {
	cases := []struct {
		scope Scope
		op    Operation
		want  bool
	}{
		{ScopeRead, OpRead, true},
		{ScopeRead, OpWrite, false},
		{ScopeRead, OpManage, false},
		{ScopeWrite, OpRead, true},
		{ScopeWrite, OpWrite, true},
		{ScopeWrite, OpManage, false},
		{ScopeAdmin, OpRead, true},
		{ScopeAdmin, OpWrite, true},
		{ScopeAdmin, OpManage, true},
	}
	for _, tc := range cases {
		if got := tc.scope.Covers(tc.op); got != tc.want {
			t.Errorf("%s covers op %d = %v, want %v", tc.scope, tc.op, got, tc.want)
		}
	}
}

func TestCoversType(t *testing.T) {
	g := &AccessGrant{}
	if !g.CoversType(records.TypeDICOM) {
		t.Error("empty allow-list must cover every type")
	}

	g = &AccessGrant{RecordTypes: []records.RecordType{records.TypeLabReport, records.TypeImaging}}
	if !g.CoversType(records.TypeImaging) {
		t.Error("listed type should be covered")
	}
	if g.CoversType(records.TypeNote) {
		t.Error("unlisted type must not be covered")
	}
}

func TestDecide(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	patientID := uuid.New()
	hospitalID := uuid.New()

	patient := auth.Principal{ID: patientID, Role: auth.RolePatient}
	otherPatient := auth.Principal{ID: uuid.New(), Role: auth.RolePatient}
	hospital := auth.Principal{ID: hospitalID, Role: auth.RoleHospital}
	otherHospital := auth.Principal{ID: uuid.New(), Role: auth.RoleHospital}

	live := &AccessGrant{
		PatientID: patientID, HospitalID: hospitalID,
		Status: StatusApproved, Scope: ScopeRead,
		ExpiresAt: timePtr(now.Add(time.Hour)),
	}
	liveWrite := &AccessGrant{
		PatientID: patientID, HospitalID: hospitalID,
		Status: StatusApproved, Scope: ScopeWrite,
	}
	scoped := &AccessGrant{
		PatientID: patientID, HospitalID: hospitalID,
		Status: StatusApproved, Scope: ScopeRead,
		RecordTypes: []records.RecordType{records.TypeLabReport},
	}
	pastExpiry := &AccessGrant{
		PatientID: patientID, HospitalID: hospitalID,
		Status: StatusApproved, Scope: ScopeAdmin,
		ExpiresAt: timePtr(now.Add(-time.Minute)),
	}
	pending := &AccessGrant{
		PatientID: patientID, HospitalID: hospitalID,
		Status: StatusPending, Scope: ScopeAdmin,
	}

	cases := []struct {
		name  string
		actor auth.Principal
		op    Operation
		rt    records.RecordType
		grant *AccessGrant
		want  bool
	}{
		{"owner reads without any grant", patient, OpRead, records.TypeNote, nil, true},
		{"owner writes despite revoked grant", patient, OpWrite, records.TypeNote, &AccessGrant{PatientID: patientID, Status: StatusRevoked}, true},
		{"other patient denied", otherPatient, OpRead, records.TypeNote, nil, false},
		{"hospital with live read grant reads", hospital, OpRead, records.TypeNote, live, true},
		{"hospital read grant cannot write", hospital, OpWrite, records.TypeNote, live, false},
		{"hospital write grant writes", hospital, OpWrite, records.TypeNote, liveWrite, true},
		{"hospital without grant denied", hospital, OpRead, records.TypeNote, nil, false},
		{"wrong hospital on grant denied", otherHospital, OpRead, records.TypeNote, live, false},
		{"past expiry denied even before sweep", hospital, OpRead, records.TypeNote, pastExpiry, false},
		{"pending grant confers nothing", hospital, OpRead, records.TypeNote, pending, false},
		{"type in allow-list allowed", hospital, OpRead, records.TypeLabReport, scoped, true},
		{"type outside allow-list denied", hospital, OpRead, records.TypeImaging, scoped, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.actor, tc.op, patientID, tc.rt, tc.grant, now)
			if d.Allowed != tc.want {
				t.Errorf("Decide = %v (%s), want %v", d.Allowed, d.Reason, tc.want)
			}
			if !d.Allowed && d.Reason == "" {
				t.Error("denials must carry a reason")
			}
		})
	}
}

func TestParseScope(t *testing.T) {
	for _, s := range []string{"read", "write", "admin"} {
		if _, ok := ParseScope(s); !ok {
			t.Errorf("expected %q to parse", s)
		}
	}
	if _, ok := ParseScope("root"); ok {
		t.Error("unknown scope must not parse")
	}
}
