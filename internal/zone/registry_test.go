package zone

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu    sync.Mutex
	zones map[string]*Zone
}

func NewMockRepository() *MockRepository {
	return &MockRepository{zones: make(map[string]*Zone)}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if z, ok := m.zones[id]; ok {
		return z.DeepCopy(), nil
	}
	return nil, ErrZoneNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	zones := make([]Zone, 0, len(m.zones))
	for _, z := range m.zones {
		zones = append(zones, *z.DeepCopy())
	}
	return zones, nil
}

func (m *MockRepository) Create(_ context.Context, zone *Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.zones[zone.ID]; exists {
		return ErrZoneExists
	}
	m.zones[zone.ID] = zone.DeepCopy()
	return nil
}

func (m *MockRepository) Update(_ context.Context, zone *Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.zones[zone.ID]; !ok {
		return ErrZoneNotFound
	}
	m.zones[zone.ID] = zone.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.zones[id]; !ok {
		return ErrZoneNotFound
	}
	delete(m.zones, id)
	return nil
}

func testZone(id string, members ...string) *Zone {
	return &Zone{
		ID:        id,
		Name:      "Zone " + id,
		Slug:      "zone-" + id,
		MemberIDs: members,
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	if err := registry.CreateZone(ctx, testZone("z1", "d1", "d2")); err != nil {
		t.Fatalf("CreateZone() error = %v", err)
	}

	got, err := registry.GetZone(ctx, "z1")
	if err != nil {
		t.Fatalf("GetZone() error = %v", err)
	}
	if len(got.MemberIDs) != 2 {
		t.Errorf("MemberIDs = %v, want 2 members", got.MemberIDs)
	}

	// Returned copy must be isolated from the cache
	got.MemberIDs[0] = "mutated"
	again, _ := registry.GetZone(ctx, "z1")
	if again.MemberIDs[0] != "d1" {
		t.Error("cache was mutated through a returned copy")
	}
}

func TestRegistry_GetZone_NotFound(t *testing.T) {
	registry := NewRegistry(NewMockRepository())

	_, err := registry.GetZone(context.Background(), "missing")
	if !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("GetZone() error = %v, want ErrZoneNotFound", err)
	}
}

func TestRegistry_MemberDeviceIDs_PreservesOrder(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	if err := registry.CreateZone(ctx, testZone("z1", "d3", "d1", "d2")); err != nil {
		t.Fatalf("CreateZone() error = %v", err)
	}

	ids, err := registry.MemberDeviceIDs(ctx, "z1")
	if err != nil {
		t.Fatalf("MemberDeviceIDs() error = %v", err)
	}
	want := []string{"d3", "d1", "d2"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("MemberDeviceIDs() = %v, want %v", ids, want)
		}
	}
}

func TestRegistry_MemberDeviceIDs_UnknownZone(t *testing.T) {
	registry := NewRegistry(NewMockRepository())

	_, err := registry.MemberDeviceIDs(context.Background(), "ghost")
	if !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("MemberDeviceIDs() error = %v, want ErrZoneNotFound", err)
	}
}

func TestRegistry_UpdateZone_ReplacesMembership(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	zone := testZone("z1", "d1")
	if err := registry.CreateZone(ctx, zone); err != nil {
		t.Fatalf("CreateZone() error = %v", err)
	}

	zone.MemberIDs = []string{"d2", "d3"}
	if err := registry.UpdateZone(ctx, zone); err != nil {
		t.Fatalf("UpdateZone() error = %v", err)
	}

	ids, _ := registry.MemberDeviceIDs(ctx, "z1")
	if len(ids) != 2 || ids[0] != "d2" {
		t.Errorf("MemberDeviceIDs() = %v, want [d2 d3]", ids)
	}
}

func TestRegistry_DeleteZone(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	if err := registry.CreateZone(ctx, testZone("z1")); err != nil {
		t.Fatalf("CreateZone() error = %v", err)
	}
	if err := registry.DeleteZone(ctx, "z1"); err != nil {
		t.Fatalf("DeleteZone() error = %v", err)
	}
	if _, err := registry.GetZone(ctx, "z1"); !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("GetZone() after delete error = %v, want ErrZoneNotFound", err)
	}
}

func TestValidateZone(t *testing.T) {
	tests := []struct {
		name    string
		zone    *Zone
		wantErr bool
	}{
		{"valid", &Zone{ID: "z1", Name: "Floor One", Slug: "floor-one"}, false},
		{"empty name", &Zone{ID: "z1", Slug: "floor-one"}, true},
		{"bad slug", &Zone{ID: "z1", Name: "Floor One", Slug: "Floor One!"}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateZone(tt.zone)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateZone() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidZone) {
				t.Errorf("error %v should wrap ErrInvalidZone", err)
			}
		})
	}
}
