package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/broiler/internal/config"
	"github.com/mamadbah2/broiler/internal/domain/models"
	"github.com/mamadbah2/broiler/internal/repository/records"
)

const (
	countersCollection = "counters"
	reportsCollection  = "cycle_reports"
)

// MongoDBRepository is the MongoDB records store. Each records collection
// maps to one Mongo collection; ids come from a counters collection.
type MongoDBRepository struct {
	client        *mongo.Client
	dbName        string
	snapshotReads bool
	logger        *zap.Logger
}

// NewMongoDBRepository connects and pings the configured deployment.
func NewMongoDBRepository(ctx context.Context, cfg config.MongoDBConfig, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:        client,
		dbName:        cfg.DBName,
		snapshotReads: cfg.SnapshotReads,
		logger:        logger,
	}, nil
}

func (r *MongoDBRepository) collection(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}

// Add draws the next id for the collection and inserts doc.
func (r *MongoDBRepository) Add(ctx context.Context, collection string, doc records.Document) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", collection, err)
	}

	doc.SetID(counter.Seq)
	if _, err := r.collection(collection).InsertOne(ctx, doc); err != nil {
		doc.SetID(0)
		return 0, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	r.logger.Debug("document inserted", zap.String("collection", collection), zap.Int64("id", counter.Seq))
	return counter.Seq, nil
}

// Update replaces the stored document with doc.
func (r *MongoDBRepository) Update(ctx context.Context, collection string, doc records.Document) error {
	res, err := r.collection(collection).ReplaceOne(ctx, bson.M{"_id": doc.GetID()}, doc)
	if err != nil {
		return fmt.Errorf("failed to replace %s/%d: %w", collection, doc.GetID(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("replace %s/%d: %w", collection, doc.GetID(), records.ErrNotFound)
	}
	return nil
}

func (r *MongoDBRepository) Get(ctx context.Context, collection string, id int64, out any) error {
	raw, err := r.collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("get %s/%d: %w", collection, id, records.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s/%d: %w", collection, id, err)
	}
	return decodeRaw(collection, raw, out)
}

func (r *MongoDBRepository) GetAll(ctx context.Context, collection string, out any) error {
	return r.find(ctx, collection, bson.M{}, out)
}

func (r *MongoDBRepository) GetAllByIndex(ctx context.Context, collection, field string, value any, out any) error {
	return r.find(ctx, collection, bson.M{field: value}, out)
}

func (r *MongoDBRepository) find(ctx context.Context, collection string, filter bson.M, out any) error {
	cursor, err := r.collection(collection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	var raws []bson.Raw
	if err := cursor.All(ctx, &raws); err != nil {
		return fmt.Errorf("failed to read %s: %w", collection, err)
	}
	return records.DecodeEach(len(raws), out, func(i int, elem any) error {
		return decodeRaw(collection, raws[i], elem)
	})
}

// decodeRaw unmarshals one stored document, reporting a shape mismatch as a
// malformed record that names the offending key.
func decodeRaw(collection string, raw bson.Raw, out any) error {
	err := bson.Unmarshal(raw, out)
	if err == nil {
		return nil
	}
	id, _ := raw.Lookup("_id").AsInt64OK()
	field := "document"
	var decErr *bsoncodec.DecodeError
	if errors.As(err, &decErr) && len(decErr.Keys()) > 0 {
		field = strings.Join(decErr.Keys(), ".")
	}
	return records.Malformed(collection, id, field, err)
}

// ReadSnapshot runs fn inside a snapshot session so every read observes the
// same majority-committed point in time. Snapshot sessions need a replica
// set; with snapshot reads disabled fn runs against the live collections.
func (r *MongoDBRepository) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, rd records.Reader) error) error {
	if !r.snapshotReads {
		return fn(ctx, r)
	}
	return r.client.UseSessionWithOptions(ctx, options.Session().SetSnapshot(true), func(sc mongo.SessionContext) error {
		return fn(sc, r)
	})
}

// DecrementIfAtLeast decrements field with a conditional update so that
// concurrent writers can never drive it below zero.
func (r *MongoDBRepository) DecrementIfAtLeast(ctx context.Context, collection string, id int64, field string, amount float64) error {
	res, err := r.collection(collection).UpdateOne(ctx,
		bson.M{"_id": id, field: bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{field: -amount}},
	)
	if err != nil {
		return fmt.Errorf("failed to decrement %s/%d: %w", collection, id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection(collection).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check %s/%d: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("decrement %s/%d: %w", collection, id, records.ErrNotFound)
	}
	return fmt.Errorf("decrement %s/%d: %w", collection, id, records.ErrInsufficient)
}

// SaveCycleReport archives a computed cycle report.
func (r *MongoDBRepository) SaveCycleReport(ctx context.Context, report models.CycleReport) error {
	if _, err := r.collection(reportsCollection).InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to insert cycle report: %w", err)
	}
	return nil
}

// ListCycleReports returns the newest archived reports of a cycle first.
func (r *MongoDBRepository) ListCycleReports(ctx context.Context, cycleID int64, limit int) ([]models.CycleReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "generated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection(reportsCollection).Find(ctx, bson.M{models.IndexCycleID: cycleID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle reports: %w", err)
	}
	var out []models.CycleReport
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode cycle reports: %w", err)
	}
	return out, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
