package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"postapi/internal/core"
)

const (
	mongoPostsCollection    = "posts"
	mongoCountersCollection = "counters"
	mongoPostsSequence      = "posts"
)

type mongoPostDocument struct {
	ID        int64   `bson:"_id"`
	Username  string  `bson:"username"`
	Content   string  `bson:"content"`
	Image     *string `bson:"image"`
	CreatedAt int64   `bson:"created_at"`
	UpdatedAt int64   `bson:"updated_at"`
}

func (d *mongoPostDocument) toPost() *core.Post {
	return &core.Post{
		ID:        d.ID,
		Username:  d.Username,
		Content:   d.Content,
		Image:     d.Image,
		CreatedAt: fromMicros(d.CreatedAt),
		UpdatedAt: fromMicros(d.UpdatedAt),
	}
}

type mongoCounter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// MongoDBStore stores posts in MongoDB. Integer ids come from a counters
// collection, incremented atomically with FindOneAndUpdate.
type MongoDBStore struct {
	posts    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoDBStore creates collection indexes if needed.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	posts := database.Collection(mongoPostsCollection)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	if _, err := posts.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create posts indexes: %w", err)
	}

	return &MongoDBStore{
		posts:    posts,
		counters: database.Collection(mongoCountersCollection),
	}, nil
}

func (s *MongoDBStore) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter mongoCounter
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": mongoPostsSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate post id: %w", err)
	}
	return counter.Seq, nil
}

// List returns posts ordered by id ascending.
func (s *MongoDBStore) List(ctx context.Context) ([]*core.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]*core.Post, 0)
	for cursor.Next(ctx) {
		var doc mongoPostDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode post document: %w", err)
		}
		items = append(items, doc.toPost())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts cursor: %w", err)
	}
	return items, nil
}

// Create inserts a new post and assigns its id.
func (s *MongoDBStore) Create(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}

	doc := mongoPostDocument{
		ID:        id,
		Username:  p.Username,
		Content:   p.Content,
		Image:     p.Image,
		CreatedAt: toMicros(p.CreatedAt),
		UpdatedAt: toMicros(p.UpdatedAt),
	}
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.ID = id
	return nil
}

// Get returns a post by id.
func (s *MongoDBStore) Get(ctx context.Context, id int64) (*core.Post, error) {
	var doc mongoPostDocument
	err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return doc.toPost(), nil
}

// Update overwrites the mutable fields of a stored post.
func (s *MongoDBStore) Update(ctx context.Context, p *core.Post) error {
	if err := validateForWrite(p); err != nil {
		return err
	}

	result, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": p.ID},
		bson.M{"$set": bson.M{
			"username":   p.Username,
			"content":    p.Content,
			"image":      p.Image,
			"updated_at": toMicros(p.UpdatedAt),
		}},
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a post.
func (s *MongoDBStore) Delete(ctx context.Context, id int64) error {
	result, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored posts.
func (s *MongoDBStore) Count(ctx context.Context) (int64, error) {
	n, err := s.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// Close is a no-op; Mongo client lifecycle is managed by storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
