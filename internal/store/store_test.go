package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func TestSchemaCarriesUniquenessConstraints(t *testing.T) {
	ddl := Schema()
	assert.Contains(t, ddl, "CONSTRAINT unique_session_student UNIQUE (session_id, student_id)")
	assert.Contains(t, ddl, "nonce       TEXT NOT NULL UNIQUE")
	assert.Contains(t, ddl, "token_id    TEXT NOT NULL UNIQUE")
}

func TestRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(RedisOptions{Addr: mr.Addr()})
	defer r.Close()

	assert.True(t, r.Healthy(context.Background()))
}

func TestNilHandlesAreUnhealthy(t *testing.T) {
	var r *Redis
	var d *DB
	assert.False(t, r.Healthy(context.Background()))
	assert.False(t, d.Healthy(context.Background()))
	assert.NoError(t, d.Close())
}
