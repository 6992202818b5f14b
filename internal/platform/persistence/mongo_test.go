package persistence

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoDB_Database(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	// A disconnected client is enough here; the callback audit store only
	// needs the database handle wired through
	dummyClient, _ := mongo.Connect(context.TODO(), options.Client().ApplyURI("mongodb://localhost:27017"))
	auditDb := dummyClient.Database("paymentvault")

	mdb := &MongoDB{
		logger:   logger,
		database: auditDb,
	}
	assert.Equal(t, auditDb, mdb.Database(), "Database() should return the initialized database instance")
}

// Connect and Close need a live mongod and are covered by integration runs
