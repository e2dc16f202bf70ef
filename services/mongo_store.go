package services

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"cleanscore-server/models"
	"cleanscore-server/utils/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoLocationStore struct {
	collection *mongo.Collection
}

func NewMongoLocationStore(db *mongo.Database) *MongoLocationStore {
	return &MongoLocationStore{collection: db.Collection(locationsCollection)}
}

// Accumulate applies the update in a single findAndModify with an update
// pipeline, mirroring models.Location.Apply on the server side.
func (s *MongoLocationStore) Accumulate(ctx context.Context, u models.ScoreUpdate) (models.Location, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	filter := bson.M{"key": u.Key}
	pipeline := accumulatePipeline(u)

	var loc models.Location
	err := s.collection.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&loc)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced to insert the same key; the loser retries as an update.
		err = s.collection.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&loc)
	}
	if err != nil {
		return models.Location{}, err
	}
	return loc, nil
}

func accumulatePipeline(u models.ScoreUpdate) mongo.Pipeline {
	scoreInc, scoredInc := 0, 0
	if u.Score != nil {
		scoreInc, scoredInc = *u.Score, 1
	}
	lat := ifNull("$latitude", 0.0)
	lon := ifNull("$longitude", 0.0)
	located := any(ifNull("$located", false))
	if u.Coordinates != nil {
		// Expressions in one $set stage see the document as it was before the stage.
		unplaced := bson.D{{Key: "$not", Value: bson.A{ifNull("$located", false)}}}
		lat = bson.D{{Key: "$cond", Value: bson.A{unplaced, u.Coordinates.Latitude, "$latitude"}}}
		lon = bson.D{{Key: "$cond", Value: bson.A{unplaced, u.Coordinates.Longitude, "$longitude"}}}
		located = true
	}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "key", Value: literal(u.Key)},
			{Key: "name", Value: ifNull("$name", literal(u.Name))},
			{Key: "latitude", Value: lat},
			{Key: "longitude", Value: lon},
			{Key: "located", Value: located},
			{Key: "created_at", Value: ifNull("$created_at", u.At)},
			{Key: "updated_at", Value: u.At},
			{Key: "post_count", Value: add(ifNull("$post_count", 0), 1)},
			{Key: "score_sum", Value: add(ifNull("$score_sum", 0), scoreInc)},
			{Key: "scored_count", Value: add(ifNull("$scored_count", 0), scoredInc)},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "average_cleanliness", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{"$scored_count", 0}}},
				bson.D{{Key: "$divide", Value: bson.A{"$score_sum", "$scored_count"}}},
				0.0,
			}}}},
		}}},
	}
}

// literal keeps user text such as "$name" from being read as a field path.
func literal(v string) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

func ifNull(field string, fallback any) bson.D {
	return bson.D{{Key: "$ifNull", Value: bson.A{field, fallback}}}
}

func add(a any, b any) bson.D {
	return bson.D{{Key: "$add", Value: bson.A{a, b}}}
}

func (s *MongoLocationStore) Get(ctx context.Context, id string) (models.Location, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Location{}, errors.NotFound("Location")
	}
	var loc models.Location
	err = s.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&loc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return models.Location{}, errors.NotFound("Location")
	}
	if err != nil {
		return models.Location{}, err
	}
	return loc, nil
}

func (s *MongoLocationStore) List(ctx context.Context) ([]models.Location, error) {
	return findLocations(ctx, s.collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (s *MongoLocationStore) Top(ctx context.Context, n int) ([]models.Location, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "average_cleanliness", Value: -1}, {Key: "name", Value: 1}}).
		SetLimit(int64(n))
	return findLocations(ctx, s.collection, bson.M{"scored_count": bson.M{"$gt": 0}}, opts)
}

// All returns every location; used to rebuild the Redis index.
func (s *MongoLocationStore) All(ctx context.Context) ([]models.Location, error) {
	return findLocations(ctx, s.collection, bson.M{}, options.Find())
}

func findLocations(ctx context.Context, collection *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]models.Location, error) {
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	locs := []models.Location{}
	if err := cursor.All(ctx, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

type MongoPostStore struct {
	collection *mongo.Collection
}

func NewMongoPostStore(db *mongo.Database) *MongoPostStore {
	return &MongoPostStore{collection: db.Collection(postsCollection)}
}

func (s *MongoPostStore) Insert(ctx context.Context, post models.Post) (string, error) {
	post.ID = ""
	result, err := s.collection.InsertOne(ctx, post)
	if err != nil {
		return "", err
	}
	objID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", stderrors.New("unexpected inserted id type")
	}
	return objID.Hex(), nil
}

func (s *MongoPostStore) Get(ctx context.Context, id string) (models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Post{}, errors.NotFound("Post")
	}
	var post models.Post
	err = s.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, errors.NotFound("Post")
	}
	if err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (s *MongoPostStore) List(ctx context.Context) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GridFSImageStore keeps uploaded images in a GridFS bucket.
type GridFSImageStore struct {
	bucket *gridfs.Bucket
}

func NewGridFSImageStore(db *mongo.Database) (*GridFSImageStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(imagesBucket))
	if err != nil {
		return nil, err
	}
	return &GridFSImageStore{bucket: bucket}, nil
}

func (s *GridFSImageStore) Save(_ context.Context, filename, contentType string, data []byte) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	fileID, err := s.bucket.UploadFromStream(filename, bytes.NewReader(data), opts)
	if err != nil {
		return "", err
	}
	return fileID.Hex(), nil
}

func (s *GridFSImageStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.NotFound("Image")
	}
	stream, err := s.bucket.OpenDownloadStream(objID)
	if stderrors.Is(err, gridfs.ErrFileNotFound) {
		return nil, errors.NotFound("Image")
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}
