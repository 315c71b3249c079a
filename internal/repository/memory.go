package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"journey-risk-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewMemoryStore returns a Store kept entirely in process memory.
func NewMemoryStore() *Store {
	return &Store{
		Users:     &memUsers{byID: map[primitive.ObjectID]models.User{}},
		Routes:    &memRoutes{byID: map[string]models.Route{}},
		RiskData:  &memRiskData{byRoute: map[string]models.RiskData{}},
		Vehicles:  &memVehicles{byID: map[primitive.ObjectID]models.Vehicle{}},
		Telemetry: &memTelemetry{},
	}
}

// --- users ---

type memUsers struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.User
}

func (s *memUsers) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.byID[user.ID] = *user
	return nil
}

func (s *memUsers) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.find(func(u models.User) bool { return u.ID == oid })
}

func (s *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *memUsers) modify(id string, fn func(u *models.User) error) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[oid]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	s.byID[oid] = u
	return nil
}

func (s *memUsers) UpdateProfile(_ context.Context, id string, upd ProfileUpdate) error {
	return s.modify(id, func(u *models.User) error {
		if upd.Email != nil {
			for other, o := range s.byID {
				if other != u.ID && o.Email == *upd.Email {
					return ErrDuplicate
				}
			}
			u.Email = *upd.Email
		}
		if upd.Company != nil {
			c := *upd.Company
			u.Company = &c
		}
		if upd.Preferences != nil {
			u.Preferences = *upd.Preferences
		}
		return nil
	})
}

func (s *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return s.modify(id, func(u *models.User) error {
		u.LastLogin = &at
		return nil
	})
}

func (s *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return s.modify(id, func(u *models.User) error {
		u.PasswordHash = hash
		return nil
	})
}

// --- routes ---

type memRoutes struct {
	mu   sync.RWMutex
	byID map[string]models.Route
}

func (s *memRoutes) Create(_ context.Context, route *models.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route.ID.IsZero() {
		route.ID = primitive.NewObjectID()
	}
	s.byID[route.RouteID] = *route
	return nil
}

func (s *memRoutes) Get(_ context.Context, routeID string) (*models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[routeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (f RouteFilter) matches(r models.Route) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.CreatedSince.IsZero() && r.CreatedAt.Before(f.CreatedSince) {
		return false
	}
	if !f.UpdatedSince.IsZero() && r.LastUpdated.Before(f.UpdatedSince) {
		return false
	}
	if f.RouteIDs != nil {
		found := false
		for _, id := range f.RouteIDs {
			if id == r.RouteID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *memRoutes) List(_ context.Context, f RouteFilter, skip, limit int64) ([]models.Route, int64, error) {
	s.mu.RLock()
	all := make([]models.Route, 0, len(s.byID))
	for _, r := range s.byID {
		if f.matches(r) {
			all = append(all, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if skip > 0 {
		if skip >= total {
			return []models.Route{}, total, nil
		}
		all = all[skip:]
	}
	if limit > 0 && int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *memRoutes) Update(_ context.Context, routeID string, u RouteUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[routeID]
	if !ok {
		return ErrNotFound
	}
	if u.ExpectStatus != "" && r.Status != u.ExpectStatus {
		return ErrStatusConflict
	}
	if u.ExpectRun != nil && r.Run != *u.ExpectRun {
		return ErrStatusConflict
	}
	if u.ResetResults {
		r.Run++
		r.Polyline, r.Distance, r.Duration, r.OptimizedDuration = nil, nil, nil, nil
		r.RiskScore, r.RiskLevel, r.Error = nil, nil, nil
		r.Waypoints = []models.Location{}
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Error != nil {
		e := *u.Error
		r.Error = &e
	}
	if u.Polyline != nil {
		r.Polyline = strPtr(*u.Polyline)
	}
	if u.Distance != nil {
		r.Distance = strPtr(*u.Distance)
	}
	if u.Duration != nil {
		r.Duration = strPtr(*u.Duration)
	}
	if u.OptimizedDuration != nil {
		r.OptimizedDuration = strPtr(*u.OptimizedDuration)
	}
	if u.Waypoints != nil {
		r.Waypoints = append([]models.Location(nil), u.Waypoints...)
	}
	if u.RiskScore != nil {
		v := *u.RiskScore
		r.RiskScore = &v
	}
	if u.RiskLevel != nil {
		r.RiskLevel = strPtr(*u.RiskLevel)
	}
	r.LastUpdated = time.Now().UTC()
	s.byID[routeID] = r
	return nil
}

func (s *memRoutes) Delete(_ context.Context, routeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[routeID]; !ok {
		return ErrNotFound
	}
	delete(s.byID, routeID)
	return nil
}

func strPtr(s string) *string { return &s }

// --- risk data ---

type memRiskData struct {
	mu      sync.RWMutex
	byRoute map[string]models.RiskData
}

func (s *memRiskData) Create(_ context.Context, rd *models.RiskData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rd.ID.IsZero() {
		rd.ID = primitive.NewObjectID()
	}
	s.byRoute[rd.RouteID] = *rd
	return nil
}

func (s *memRiskData) Get(_ context.Context, routeID string) (*models.RiskData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.byRoute[routeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rd, nil
}

func (s *memRiskData) GetMany(_ context.Context, routeIDs []string) (map[string]*models.RiskData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.RiskData, len(routeIDs))
	for _, id := range routeIDs {
		if rd, ok := s.byRoute[id]; ok {
			out[id] = &rd
		}
	}
	return out, nil
}

func (s *memRiskData) modify(routeID string, fn func(rd *models.RiskData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.byRoute[routeID]
	if !ok {
		return ErrNotFound
	}
	fn(&rd)
	rd.LastUpdated = time.Now().UTC()
	s.byRoute[routeID] = rd
	return nil
}

func (s *memRiskData) SetRiskPoints(_ context.Context, routeID string, cat models.Category, points []models.RiskPoint) error {
	cp := append([]models.RiskPoint{}, points...)
	return s.modify(routeID, func(rd *models.RiskData) { rd.SetPoints(cat, cp) })
}

func (s *memRiskData) SetFacilities(_ context.Context, routeID string, facilities models.NearbyFacilities) error {
	cp := make(models.NearbyFacilities, len(facilities))
	for k, v := range facilities {
		cp[k] = append([]models.Facility{}, v...)
	}
	return s.modify(routeID, func(rd *models.RiskData) { rd.NearbyFacilities = cp })
}

func (s *memRiskData) SetRiskScore(_ context.Context, routeID string, score float64, level string) error {
	return s.modify(routeID, func(rd *models.RiskData) {
		rd.OverallRiskScore = &score
		rd.RiskLevel = &level
	})
}

func (s *memRiskData) Reset(_ context.Context, routeID string) error {
	return s.modify(routeID, func(rd *models.RiskData) {
		for _, c := range models.Categories {
			rd.SetPoints(c, nil)
		}
		rd.NearbyFacilities = models.NewNearbyFacilities()
		rd.OverallRiskScore = nil
		rd.RiskLevel = nil
	})
}

func (s *memRiskData) Delete(_ context.Context, routeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byRoute, routeID)
	return nil
}

// --- vehicles ---

type memVehicles struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Vehicle
}

func (s *memVehicles) Create(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	s.byID[v.ID] = *v
	return nil
}

func (s *memVehicles) Get(_ context.Context, id string) (*models.Vehicle, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[oid]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *memVehicles) ListByUser(_ context.Context, userID string) ([]models.Vehicle, error) {
	s.mu.RLock()
	out := []models.Vehicle{}
	for _, v := range s.byID {
		if userID == "" || v.UserID == userID {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memVehicles) modify(id string, fn func(v *models.Vehicle)) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[oid]
	if !ok {
		return ErrNotFound
	}
	fn(&v)
	v.LastUpdated = time.Now().UTC()
	s.byID[oid] = v
	return nil
}

func (s *memVehicles) Update(_ context.Context, id string, u VehicleUpdate) error {
	return s.modify(id, func(v *models.Vehicle) {
		if u.Name != nil {
			v.Name = *u.Name
		}
		if u.Type != nil {
			v.Type = *u.Type
		}
		if u.Make != nil {
			v.Make = *u.Make
		}
		if u.Model != nil {
			v.Model = *u.Model
		}
		if u.Year != nil {
			y := *u.Year
			v.Year = &y
		}
		if u.Registration != nil {
			v.Registration = *u.Registration
		}
		if u.FuelType != nil {
			v.FuelType = *u.FuelType
		}
		if u.TankCapacity != nil {
			c := *u.TankCapacity
			v.TankCapacity = &c
		}
		if u.AverageMileage != nil {
			m := *u.AverageMileage
			v.AverageMileage = &m
		}
		if u.NextServiceDate != nil {
			d := *u.NextServiceDate
			v.Maintenance.NextServiceDate = &d
		}
	})
}

func (s *memVehicles) Delete(_ context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[oid]; !ok {
		return ErrNotFound
	}
	delete(s.byID, oid)
	return nil
}

func (s *memVehicles) AddMaintenanceRecord(_ context.Context, id string, rec models.MaintenanceRecord) error {
	return s.modify(id, func(v *models.Vehicle) {
		v.Maintenance.History = append(append([]models.MaintenanceRecord{}, v.Maintenance.History...), rec)
		d := rec.Date
		v.Maintenance.LastServiceDate = &d
		if rec.Mileage != nil {
			m := *rec.Mileage
			v.Maintenance.LastServiceMileage = &m
		}
	})
}

// --- telemetry ---

type memTelemetry struct {
	mu      sync.RWMutex
	records []models.Telemetry
}

func (s *memTelemetry) Add(_ context.Context, t *models.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	s.records = append(s.records, *t)
	return nil
}

func (s *memTelemetry) filter(match func(models.Telemetry) bool, newestFirst bool) []models.Telemetry {
	s.mu.RLock()
	out := []models.Telemetry{}
	for _, t := range s.records {
		if match(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func page(all []models.Telemetry, limit, skip int64) []models.Telemetry {
	if skip > 0 {
		if skip >= int64(len(all)) {
			return []models.Telemetry{}
		}
		all = all[skip:]
	}
	if limit > 0 && int64(len(all)) > limit {
		all = all[:limit]
	}
	return all
}

func (s *memTelemetry) ListByVehicle(_ context.Context, vehicleID string, limit, skip int64) ([]models.Telemetry, error) {
	all := s.filter(func(t models.Telemetry) bool { return t.VehicleID == vehicleID }, true)
	return page(all, limit, skip), nil
}

func (s *memTelemetry) CountByVehicle(_ context.Context, vehicleID string) (int64, error) {
	return int64(len(s.filter(func(t models.Telemetry) bool { return t.VehicleID == vehicleID }, true))), nil
}

func (s *memTelemetry) ListByRoute(_ context.Context, routeID string, limit int64) ([]models.Telemetry, error) {
	all := s.filter(func(t models.Telemetry) bool { return t.RouteID != nil && *t.RouteID == routeID }, false)
	return page(all, limit, 0), nil
}

func (s *memTelemetry) LatestByVehicle(_ context.Context, vehicleID string) (*models.Telemetry, error) {
	all := s.filter(func(t models.Telemetry) bool { return t.VehicleID == vehicleID }, true)
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return &all[0], nil
}
