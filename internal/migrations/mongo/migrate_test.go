package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"openrequests/internal/migrations/mongo/validators"
	"openrequests/internal/requests/repository"
	"openrequests/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestCollections_CoverRequestStore(t *testing.T) {
	collections := Collections()
	require.Len(t, collections, 1)
	assert.Equal(t, repository.CollectionName, collections[0].Name)

	var sweepIndex bool
	for _, idx := range collections[0].Indexes {
		keys := idx.Keys.(bson.D)
		if len(keys) == 2 && keys[0].Key == "status" && keys[1].Key == "expires_at" {
			sweepIndex = true
		}
	}
	assert.True(t, sweepIndex, "expiration sweep needs a status+expires_at index")
}

func TestRequestValidator_SlotsAreOpaque(t *testing.T) {
	schema := validators.RequestValidator["$jsonSchema"].(bson.M)
	props := schema["properties"].(bson.M)

	items := props["preferred_time_slots"].(bson.M)["items"].(bson.M)
	accepted := props["accepted_time_slot"].(bson.M)
	for _, field := range []bson.M{items, accepted} {
		assert.Equal(t, "string", field["bsonType"])
		assert.NotContains(t, field, "pattern")
		assert.Equal(t, 64, field["maxLength"])
	}
}

func TestRunMigration(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	dbName := "openrequests_migrate_" + uuid.NewString()[:8]
	defer client.Database(dbName).Drop(context.Background())

	log := logger.Discard()
	require.NoError(t, RunMigration(ctx, client, dbName, log))
	require.NoError(t, RunMigration(ctx, client, dbName, log), "migration must be re-runnable")

	_, err = client.Database(dbName).Collection(repository.CollectionName).InsertOne(ctx, bson.M{
		"_id":    uuid.NewString(),
		"status": "unknown",
	})
	assert.Error(t, err, "schema validator must reject incomplete documents")
}
