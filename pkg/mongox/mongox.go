package mongox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"gitlab.com/insightbox/insightbox-backend/pkg/gateway"
)

const (
	GatewayName        = "mongodb"
	AccountsCollection = "accounts"

	AccountsUsernameIndex = "accounts_username_key"
	AccountsEmailIndex    = "accounts_email_key"

	connectTimeout = 10 * time.Second
)

// NewGateway returns a gateway that connects to database db on first use and
// makes sure the account indexes exist.
func NewGateway(uri, db string) *gateway.Gateway[*mongo.Database] {
	return gateway.New(GatewayName,
		func(ctx context.Context) (*mongo.Database, error) {
			return Connect(ctx, uri, db)
		},
		func(ctx context.Context, database *mongo.Database) error {
			return database.Client().Disconnect(ctx)
		},
	)
}

func Connect(ctx context.Context, uri, db string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	database := client.Database(db)
	if err := EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return database, nil
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(AccountsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(AccountsUsernameIndex),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(AccountsEmailIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

// DuplicateKeyIndex returns the name of the unique index err violated, if any.
func DuplicateKeyIndex(err error) (string, bool) {
	if !mongo.IsDuplicateKeyError(err) {
		return "", false
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			for _, idx := range []string{AccountsUsernameIndex, AccountsEmailIndex} {
				if strings.Contains(e.Message, "index: "+idx) {
					return idx, true
				}
			}
		}
	}
	return "", true
}
