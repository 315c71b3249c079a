package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"journey-risk-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	UsersCollection     = "users"
	RoutesCollection    = "routes"
	RiskDataCollection  = "risk_data"
	VehiclesCollection  = "vehicles"
	TelemetryCollection = "telemetry"
)

// NewMongoStore wires every store to its collection in db.
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:     &mongoUsers{coll: db.Collection(UsersCollection)},
		Routes:    &mongoRoutes{coll: db.Collection(RoutesCollection)},
		RiskData:  &mongoRiskData{coll: db.Collection(RiskDataCollection)},
		Vehicles:  &mongoVehicles{coll: db.Collection(VehiclesCollection)},
		Telemetry: &mongoTelemetry{coll: db.Collection(TelemetryCollection)},
	}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

// --- users ---

type mongoUsers struct {
	coll *mongo.Collection
}

func (s *mongoUsers) Create(ctx context.Context, user *models.User) error {
	n, err := s.coll.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"username": user.Username},
		bson.M{"email": user.Email},
	}})
	if err != nil {
		return fmt.Errorf("check user uniqueness: %w", err)
	}
	if n > 0 {
		return ErrDuplicate
	}
	res, err := s.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

func (s *mongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *mongoUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *mongoUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *mongoUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *mongoUsers) updateByID(ctx context.Context, id string, set bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoUsers) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	set := bson.M{}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Company != nil {
		set["company"] = *upd.Company
	}
	if upd.Preferences != nil {
		set["preferences"] = *upd.Preferences
	}
	if len(set) == 0 {
		return nil
	}
	return s.updateByID(ctx, id, set)
}

func (s *mongoUsers) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateByID(ctx, id, bson.M{"last_login": at})
}

func (s *mongoUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	return s.updateByID(ctx, id, bson.M{"password_hash": hash})
}

// --- routes ---

type mongoRoutes struct {
	coll *mongo.Collection
}

func (s *mongoRoutes) Create(ctx context.Context, route *models.Route) error {
	res, err := s.coll.InsertOne(ctx, route)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		route.ID = oid
	}
	return nil
}

func (s *mongoRoutes) Get(ctx context.Context, routeID string) (*models.Route, error) {
	var r models.Route
	if err := s.coll.FindOne(ctx, bson.M{"route_id": routeID}).Decode(&r); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func routeFilter(f RouteFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.CreatedSince.IsZero() {
		filter["created_at"] = bson.M{"$gte": f.CreatedSince}
	}
	if !f.UpdatedSince.IsZero() {
		filter["last_updated"] = bson.M{"$gte": f.UpdatedSince}
	}
	if f.RouteIDs != nil {
		filter["route_id"] = bson.M{"$in": f.RouteIDs}
	}
	return filter
}

func (s *mongoRoutes) List(ctx context.Context, f RouteFilter, skip, limit int64) ([]models.Route, int64, error) {
	filter := routeFilter(f)
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count routes: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("query routes: %w", err)
	}
	defer cursor.Close(ctx)

	routes := []models.Route{}
	if err := cursor.All(ctx, &routes); err != nil {
		return nil, 0, fmt.Errorf("decode routes: %w", err)
	}
	return routes, total, nil
}

func (s *mongoRoutes) Update(ctx context.Context, routeID string, u RouteUpdate) error {
	set := bson.M{"last_updated": time.Now().UTC()}
	unset := bson.M{}
	if u.ResetResults {
		for _, f := range []string{"polyline", "distance", "duration", "optimized_duration", "risk_score", "risk_level"} {
			set[f] = nil
		}
		set["waypoints"] = []models.Location{}
		unset["error"] = ""
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Error != nil {
		set["error"] = *u.Error
		delete(unset, "error")
	}
	if u.Polyline != nil {
		set["polyline"] = *u.Polyline
	}
	if u.Distance != nil {
		set["distance"] = *u.Distance
	}
	if u.Duration != nil {
		set["duration"] = *u.Duration
	}
	if u.OptimizedDuration != nil {
		set["optimized_duration"] = *u.OptimizedDuration
	}
	if u.Waypoints != nil {
		set["waypoints"] = u.Waypoints
	}
	if u.RiskScore != nil {
		set["risk_score"] = *u.RiskScore
	}
	if u.RiskLevel != nil {
		set["risk_level"] = *u.RiskLevel
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if u.ResetResults {
		update["$inc"] = bson.M{"run": 1}
	}

	filter := bson.M{"route_id": routeID}
	if u.ExpectStatus != "" {
		filter["status"] = u.ExpectStatus
	}
	if u.ExpectRun != nil {
		if *u.ExpectRun == 0 {
			// documents written before the counter existed have no run field
			filter["run"] = bson.M{"$in": bson.A{0, nil}}
		} else {
			filter["run"] = *u.ExpectRun
		}
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update route: %w", err)
	}
	if res.MatchedCount == 0 {
		if u.ExpectStatus == "" && u.ExpectRun == nil {
			return ErrNotFound
		}
		if _, err := s.Get(ctx, routeID); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *mongoRoutes) Delete(ctx context.Context, routeID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"route_id": routeID})
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- risk data ---

type mongoRiskData struct {
	coll *mongo.Collection
}

func (s *mongoRiskData) Create(ctx context.Context, rd *models.RiskData) error {
	res, err := s.coll.InsertOne(ctx, rd)
	if err != nil {
		return fmt.Errorf("insert risk data: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rd.ID = oid
	}
	return nil
}

func (s *mongoRiskData) Get(ctx context.Context, routeID string) (*models.RiskData, error) {
	var rd models.RiskData
	if err := s.coll.FindOne(ctx, bson.M{"route_id": routeID}).Decode(&rd); err != nil {
		return nil, notFound(err)
	}
	return &rd, nil
}

func (s *mongoRiskData) GetMany(ctx context.Context, routeIDs []string) (map[string]*models.RiskData, error) {
	out := make(map[string]*models.RiskData, len(routeIDs))
	if len(routeIDs) == 0 {
		return out, nil
	}
	cursor, err := s.coll.Find(ctx, bson.M{"route_id": bson.M{"$in": routeIDs}})
	if err != nil {
		return nil, fmt.Errorf("query risk data: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var rd models.RiskData
		if err := cursor.Decode(&rd); err != nil {
			return nil, fmt.Errorf("decode risk data: %w", err)
		}
		out[rd.RouteID] = &rd
	}
	return out, cursor.Err()
}

func (s *mongoRiskData) set(ctx context.Context, routeID string, set bson.M) error {
	set["last_updated"] = time.Now().UTC()
	res, err := s.coll.UpdateOne(ctx, bson.M{"route_id": routeID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update risk data: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoRiskData) SetRiskPoints(ctx context.Context, routeID string, cat models.Category, points []models.RiskPoint) error {
	if points == nil {
		points = []models.RiskPoint{}
	}
	return s.set(ctx, routeID, bson.M{string(cat): points})
}

func (s *mongoRiskData) SetFacilities(ctx context.Context, routeID string, facilities models.NearbyFacilities) error {
	return s.set(ctx, routeID, bson.M{"nearby_facilities": facilities})
}

func (s *mongoRiskData) SetRiskScore(ctx context.Context, routeID string, score float64, level string) error {
	return s.set(ctx, routeID, bson.M{"overall_risk_score": score, "risk_level": level})
}

func (s *mongoRiskData) Reset(ctx context.Context, routeID string) error {
	set := bson.M{
		"nearby_facilities":  models.NewNearbyFacilities(),
		"overall_risk_score": nil,
		"risk_level":         nil,
	}
	for _, c := range models.Categories {
		set[string(c)] = []models.RiskPoint{}
	}
	return s.set(ctx, routeID, set)
}

func (s *mongoRiskData) Delete(ctx context.Context, routeID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"route_id": routeID}); err != nil {
		return fmt.Errorf("delete risk data: %w", err)
	}
	return nil
}

// --- vehicles ---

type mongoVehicles struct {
	coll *mongo.Collection
}

func (s *mongoVehicles) Create(ctx context.Context, v *models.Vehicle) error {
	res, err := s.coll.InsertOne(ctx, v)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		v.ID = oid
	}
	return nil
}

func (s *mongoVehicles) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var v models.Vehicle
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&v); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *mongoVehicles) ListByUser(ctx context.Context, userID string) ([]models.Vehicle, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	vehicles := []models.Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return vehicles, nil
}

func (s *mongoVehicles) Update(ctx context.Context, id string, u VehicleUpdate) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set := bson.M{"last_updated": time.Now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Type != nil {
		set["type"] = *u.Type
	}
	if u.Make != nil {
		set["make"] = *u.Make
	}
	if u.Model != nil {
		set["model"] = *u.Model
	}
	if u.Year != nil {
		set["year"] = *u.Year
	}
	if u.Registration != nil {
		set["registration"] = *u.Registration
	}
	if u.FuelType != nil {
		set["fuel_type"] = *u.FuelType
	}
	if u.TankCapacity != nil {
		set["tank_capacity"] = *u.TankCapacity
	}
	if u.AverageMileage != nil {
		set["average_mileage"] = *u.AverageMileage
	}
	if u.NextServiceDate != nil {
		set["maintenance.next_service_date"] = *u.NextServiceDate
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoVehicles) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoVehicles) AddMaintenanceRecord(ctx context.Context, id string, rec models.MaintenanceRecord) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set := bson.M{
		"maintenance.last_service_date": rec.Date,
		"last_updated":                  time.Now().UTC(),
	}
	if rec.Mileage != nil {
		set["maintenance.last_service_mileage"] = *rec.Mileage
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"maintenance.history": rec},
		"$set":  set,
	})
	if err != nil {
		return fmt.Errorf("add maintenance record: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- telemetry ---

type mongoTelemetry struct {
	coll *mongo.Collection
}

func (s *mongoTelemetry) Add(ctx context.Context, t *models.Telemetry) error {
	res, err := s.coll.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid
	}
	return nil
}

func (s *mongoTelemetry) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Telemetry, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query telemetry: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Telemetry{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}
	return out, nil
}

func (s *mongoTelemetry) ListByVehicle(ctx context.Context, vehicleID string, limit, skip int64) ([]models.Telemetry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{"vehicle_id": vehicleID}, opts)
}

func (s *mongoTelemetry) CountByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"vehicle_id": vehicleID})
	if err != nil {
		return 0, fmt.Errorf("count telemetry: %w", err)
	}
	return n, nil
}

func (s *mongoTelemetry) ListByRoute(ctx context.Context, routeID string, limit int64) ([]models.Telemetry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{"route_id": routeID}, opts)
}

func (s *mongoTelemetry) LatestByVehicle(ctx context.Context, vehicleID string) (*models.Telemetry, error) {
	var t models.Telemetry
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if err := s.coll.FindOne(ctx, bson.M{"vehicle_id": vehicleID}, opts).Decode(&t); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}
