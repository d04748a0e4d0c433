package identity

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

// =========== Mock Repository ===========

type mockPrincipalRepo struct {
	store map[uuid.UUID]*Principal
}

func newMockPrincipalRepo() *mockPrincipalRepo {
	return &mockPrincipalRepo{store: make(map[uuid.UUID]*Principal)}
}

func (m *mockPrincipalRepo) Create(_ context.Context, p *Principal) error {
	for _, existing := range m.store {
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	m.store[p.ID] = p
	return nil
}

func (m *mockPrincipalRepo) GetByID(_ context.Context, id uuid.UUID) (*Principal, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPrincipalRepo) GetByEmail(_ context.Context, email string) (*Principal, error) {
	for _, p := range m.store {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPrincipalRepo) Update(_ context.Context, p *Principal) error {
	if _, ok := m.store[p.ID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.store {
		if existing.ID != p.ID && existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	m.store[p.ID] = p
	return nil
}

func (m *mockPrincipalRepo) ListHospitals(_ context.Context, limit, offset int) ([]*Principal, int, error) {
	var result []*Principal
	for _, p := range m.store {
		if p.Role == auth.RoleHospital {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, len(result), nil
}

// =========== Tests ===========

func TestRegister_Patient(t *testing.T) {
	svc := NewService(newMockPrincipalRepo())

	p, err := svc.Register(context.Background(), RegisterInput{
		Role:  auth.RolePatient,
		Name:  "Asha Rao",
		Email: "Asha.Rao@Example.com",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected assigned id")
	}
	if p.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", p.Role)
	}
	if p.Email != "asha.rao@example.com" {
		t.Errorf("expected normalized email, got %s", p.Email)
	}
}

func TestRegister_HospitalRequiresRegistrationNo(t *testing.T) {
	svc := NewService(newMockPrincipalRepo())

	_, err := svc.Register(context.Background(), RegisterInput{
		Role:  auth.RoleHospital,
		Name:  "City General",
		Email: "admin@citygeneral.org",
	})
	if err != ErrMissingRegNo {
		t.Errorf("expected ErrMissingRegNo, got %v", err)
	}

	p, err := svc.Register(context.Background(), RegisterInput{
		Role:           auth.RoleHospital,
		Name:           "City General",
		Email:          "admin@citygeneral.org",
		RegistrationNo: "HOSP-2291",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.RegistrationNo == nil || *p.RegistrationNo != "HOSP-2291" {
		t.Errorf("expected registration number kept, got %v", p.RegistrationNo)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(newMockPrincipalRepo())
	ctx := context.Background()

	cases := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"unknown role", RegisterInput{Role: "superadmin", Name: "X", Email: "x@y.z"}, ErrInvalidRole},
		{"empty name", RegisterInput{Role: auth.RolePatient, Email: "x@y.z"}, ErrMissingName},
		{"empty email", RegisterInput{Role: auth.RolePatient, Name: "X"}, ErrMissingEmail},
		{"malformed email", RegisterInput{Role: auth.RolePatient, Name: "X", Email: "not-an-email"}, ErrMissingEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.in); err != tc.want {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := NewService(newMockPrincipalRepo())
	ctx := context.Background()

	in := RegisterInput{Role: auth.RolePatient, Name: "Asha", Email: "asha@example.com"}
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, in); err != ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUpdateProfile_OwnerOnly(t *testing.T) {
	repo := newMockPrincipalRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterInput{Role: auth.RolePatient, Name: "Asha", Email: "asha@example.com"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	stranger := auth.Principal{ID: uuid.New(), Role: auth.RolePatient}
	if _, err := svc.UpdateProfile(ctx, stranger, p.ID, UpdateProfileInput{Name: "Mallory"}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign profile, got %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, p.AsAuth(), p.ID, UpdateProfileInput{Name: "Asha R."})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Asha R." {
		t.Errorf("expected updated name, got %s", updated.Name)
	}
	if updated.Role != auth.RolePatient {
		t.Error("role must never change on profile update")
	}
}

func TestListHospitals_FiltersPatients(t *testing.T) {
	svc := NewService(newMockPrincipalRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Role: auth.RolePatient, Name: "Asha", Email: "asha@example.com"}); err != nil {
		t.Fatalf("register patient: %v", err)
	}
	for _, h := range []string{"City General", "Apollo North"} {
		if _, err := svc.Register(ctx, RegisterInput{
			Role: auth.RoleHospital, Name: h,
			Email: h + "@example.org", RegistrationNo: "R-1",
		}); err != nil {
			t.Fatalf("register hospital %s: %v", h, err)
		}
	}

	items, total, err := svc.ListHospitals(ctx, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 hospitals, got total=%d len=%d", total, len(items))
	}
	for _, p := range items {
		if p.Role != auth.RoleHospital {
			t.Errorf("directory leaked a %s", p.Role)
		}
	}
}
