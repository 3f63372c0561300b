package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunMigrationsWithoutPoolIsNoop(t *testing.T) {
	err := RunMigrations(context.Background(), nil, "does-not-exist", zap.NewNop())
	assert.NoError(t, err)
}

func TestPingWithoutConnections(t *testing.T) {
	var pg *Postgres
	assert.Error(t, pg.Ping(context.Background()))
	assert.Error(t, (&Postgres{}).Ping(context.Background()))

	var rdb *Redis
	assert.Error(t, rdb.Ping(context.Background()))
	assert.Nil(t, rdb.Handle())
	assert.Nil(t, (*Postgres)(nil).PoolHandle())
}
