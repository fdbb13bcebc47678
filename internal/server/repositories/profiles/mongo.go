package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// CollectionName is the MongoDB collection holding profile pictures.
const CollectionName = "profile_pictures"

type profileDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Picture     []byte    `bson:"profile_picture"`
	ContentType string    `bson:"content_type,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// documentStore is the slice of *mongo.Collection the repository needs.
type documentStore interface {
	replace(ctx context.Context, doc *profileDocument) error
	find(ctx context.Context, userID string) (*profileDocument, error)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) replace(ctx context.Context, doc *profileDocument) error {
	_, err := c.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, doc, options.Replace().SetUpsert(true))
	return err
}

func (c *mongoCollection) find(ctx context.Context, userID string) (*profileDocument, error) {
	doc := &profileDocument{}
	if err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// MongoRepository keeps one document per user in CollectionName, using the
// user ID as the document _id.
type MongoRepository struct {
	store documentStore
	now   func() time.Time
}

func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	return newMongoRepository(&mongoCollection{coll: client.Database(database).Collection(CollectionName)})
}

func newMongoRepository(store documentStore) *MongoRepository {
	return &MongoRepository{store: store, now: time.Now}
}

func (r *MongoRepository) Put(ctx context.Context, picture *models.ProfilePicture) error {
	doc := &profileDocument{
		ID:          picture.UserID,
		UserID:      picture.UserID,
		Picture:     picture.Data,
		ContentType: picture.ContentType,
		UpdatedAt:   r.now().UTC(),
	}
	if err := r.store.replace(ctx, doc); err != nil {
		return fmt.Errorf("mongo error: %w: %w", common.ErrorStoreUnavailable, err)
	}
	picture.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, userID string) (*models.ProfilePicture, error) {
	doc, err := r.store.find(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w: %w", common.ErrorStoreUnavailable, err)
	}
	return &models.ProfilePicture{
		UserID:      doc.UserID,
		Data:        doc.Picture,
		ContentType: doc.ContentType,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

// ConnectMongo opens a client for uri and pings the primary within ctx.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
