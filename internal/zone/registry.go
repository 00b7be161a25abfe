package zone

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides zone management with caching and thread safety.
//
// Zone membership is read on every zone-targeted command to resolve the
// member device list, so lookups come from an in-memory cache refreshed
// on startup and invalidated by the CRUD operations. Membership changes
// are administrative events, never part of dispatch itself.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Zone // Cached zones by ID
	cacheMu sync.RWMutex     // Protects cache
	logger  Logger
}

// NewRegistry creates a new zone registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Zone),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all zones from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	zones, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Zone, len(zones))
	for i := range zones {
		z := zones[i]
		r.cache[z.ID] = z.DeepCopy()
	}

	r.logger.Info("zone cache refreshed", "count", len(zones))
	return nil
}

// GetZone retrieves a zone by ID.
// Returns ErrZoneNotFound if the zone does not exist.
// The returned zone is a deep copy; callers can safely modify it.
func (r *Registry) GetZone(ctx context.Context, id string) (*Zone, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	zone, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = zone.DeepCopy()
	r.cacheMu.Unlock()

	return zone, nil
}

// MemberDeviceIDs returns the ordered member device IDs of a zone.
// This is the lookup used during target resolution.
func (r *Registry) MemberDeviceIDs(ctx context.Context, zoneID string) ([]string, error) {
	zone, err := r.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	return zone.MemberIDs, nil
}

// ListZones retrieves all zones.
// The returned zones are deep copies; callers can safely modify them.
func (r *Registry) ListZones(ctx context.Context) ([]Zone, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		zones := make([]Zone, 0, len(r.cache))
		for _, z := range r.cache {
			zones = append(zones, *z.DeepCopy())
		}
		return zones, nil
	}

	return r.repo.List(ctx)
}

// CreateZone creates a new zone.
// It validates the zone, generates ID and slug if needed, and persists it.
func (r *Registry) CreateZone(ctx context.Context, zone *Zone) error {
	if zone.ID == "" {
		zone.ID = GenerateID()
	}
	if zone.Slug == "" {
		zone.Slug = GenerateSlug(zone.Name)
	}

	if err := ValidateZone(zone); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, zone); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[zone.ID] = zone.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("zone created", "id", zone.ID, "name", zone.Name, "members", len(zone.MemberIDs))
	return nil
}

// UpdateZone updates an existing zone, replacing its membership.
func (r *Registry) UpdateZone(ctx context.Context, zone *Zone) error {
	existing, err := r.GetZone(ctx, zone.ID)
	if err != nil {
		return err
	}
	if zone.Name != existing.Name && zone.Slug == existing.Slug {
		zone.Slug = GenerateSlug(zone.Name)
	}

	if err := ValidateZone(zone); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, zone); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[zone.ID] = zone.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("zone updated", "id", zone.ID, "name", zone.Name, "members", len(zone.MemberIDs))
	return nil
}

// DeleteZone removes a zone.
func (r *Registry) DeleteZone(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("zone deleted", "id", id)
	return nil
}

// GetZoneCount returns the number of cached zones.
func (r *Registry) GetZoneCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
