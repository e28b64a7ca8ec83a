package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	propertiesCollection   = "agg_property"
	calendarsCollection    = "agg_calendar"
	reservationsCollection = "agg_reservation"
	usersCollection        = "app_users"
	idempotencyCollection  = "app_idempotency"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on. Collections are created up front
// because transactions on older servers cannot create them implicitly.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for _, name := range []string{propertiesCollection, calendarsCollection, reservationsCollection} {
		if err := c.DB.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
			return err
		}
	}
	models := map[string][]mongo.IndexModel{
		propertiesCollection: {
			{Keys: bson.D{{Key: "host_id", Value: 1}}},
		},
		reservationsCollection: {
			{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "request_key", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"request_key": bson.M{"$gt": ""}}),
			},
		},
	}
	for name, idx := range models {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
