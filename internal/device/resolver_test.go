package device

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// mockZoneLookup is a test implementation of ZoneLookup.
type mockZoneLookup struct {
	members map[string][]string
	err     error
}

var errZoneMissing = errors.New("zone: not found")

func (m *mockZoneLookup) MemberDeviceIDs(_ context.Context, zoneID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	members, ok := m.members[zoneID]
	if !ok {
		return nil, errZoneMissing
	}
	return members, nil
}

func resolverFixture(t *testing.T) (*Resolver, *Registry) {
	t.Helper()
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "d3"} {
		if err := registry.CreateDevice(ctx, testDevice(id, KindLightingDimmer, nil)); err != nil {
			t.Fatalf("CreateDevice(%s) error = %v", id, err)
		}
	}

	zones := &mockZoneLookup{members: map[string][]string{
		"z1": {"d2", "d1"},
		"z2": {"d3", "d9"}, // d9 is a stale membership row
	}}

	return NewResolver(registry, zones), registry
}

func TestResolveTargets_Device(t *testing.T) {
	resolver, _ := resolverFixture(t)

	got, err := resolver.ResolveTargets(context.Background(), Target{DeviceID: "d1"})
	if err != nil {
		t.Fatalf("ResolveTargets() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"d1"}) {
		t.Errorf("ResolveTargets() = %v, want [d1]", got)
	}
}

func TestResolveTargets_UnknownDevice(t *testing.T) {
	resolver, _ := resolverFixture(t)

	_, err := resolver.ResolveTargets(context.Background(), Target{DeviceID: "ghost"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("ResolveTargets() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestResolveTargets_ZonePreservesOrder(t *testing.T) {
	resolver, _ := resolverFixture(t)

	got, err := resolver.ResolveTargets(context.Background(), Target{ZoneID: "z1"})
	if err != nil {
		t.Fatalf("ResolveTargets() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"d2", "d1"}) {
		t.Errorf("ResolveTargets() = %v, want zone member order [d2 d1]", got)
	}
}

func TestResolveTargets_ZoneSkipsStaleMembers(t *testing.T) {
	resolver, _ := resolverFixture(t)

	got, err := resolver.ResolveTargets(context.Background(), Target{ZoneID: "z2"})
	if err != nil {
		t.Fatalf("ResolveTargets() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"d3"}) {
		t.Errorf("ResolveTargets() = %v, want [d3]", got)
	}
}

func TestResolveTargets_UnknownZone(t *testing.T) {
	resolver, _ := resolverFixture(t)

	_, err := resolver.ResolveTargets(context.Background(), Target{ZoneID: "ghost"})
	if !errors.Is(err, errZoneMissing) {
		t.Errorf("ResolveTargets() error = %v, want zone lookup error", err)
	}
}

func TestResolveTargets_All(t *testing.T) {
	resolver, _ := resolverFixture(t)

	got, err := resolver.ResolveTargets(context.Background(), Target{All: true})
	if err != nil {
		t.Fatalf("ResolveTargets() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"d1", "d2", "d3"}) {
		t.Errorf("ResolveTargets() = %v, want sorted [d1 d2 d3]", got)
	}
}

func TestResolveTargets_Empty(t *testing.T) {
	resolver, _ := resolverFixture(t)

	_, err := resolver.ResolveTargets(context.Background(), Target{})
	if err == nil {
		t.Error("ResolveTargets() with empty target expected error")
	}
}

func TestResolveUnion(t *testing.T) {
	resolver, _ := resolverFixture(t)

	got, err := resolver.ResolveUnion(context.Background(), []string{"d3"}, []string{"z1"}, false)
	if err != nil {
		t.Fatalf("ResolveUnion() error = %v", err)
	}
	// Explicit devices first, then zone members, deduplicated
	if !reflect.DeepEqual(got, []string{"d3", "d2", "d1"}) {
		t.Errorf("ResolveUnion() = %v, want [d3 d2 d1]", got)
	}
}

func TestResolveUnion_AllDeduplicates(t *testing.T) {
	resolver, _ := resolverFixture(t)

	got, err := resolver.ResolveUnion(context.Background(), []string{"d2"}, nil, true)
	if err != nil {
		t.Fatalf("ResolveUnion() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"d2", "d1", "d3"}) {
		t.Errorf("ResolveUnion() = %v, want [d2 d1 d3]", got)
	}
}
