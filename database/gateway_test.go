package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/lodge/database"
)

func newGateway(t *testing.T) *database.Gateway {
	t.Helper()
	_, db := openMemory(t)
	require.NoError(t, db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		age INTEGER,
		role TEXT
	)`).Error)

	g := database.NewGateway(db, testLogger())
	_, err := g.InsertMany(context.Background(), "users", []database.Record{
		{"name": "ada", "age": 36, "role": "admin"},
		{"name": "bob", "age": 25, "role": "user"},
		{"name": "cyd", "age": 41, "role": "user"},
	})
	require.NoError(t, err)
	return g
}

func TestGatewayCount(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	n, err := g.Count(ctx, "users", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = g.Count(ctx, "users", database.Filter{"role": "user"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = g.Count(ctx, "users", database.Filter{"name": []string{"ada", "cyd", "zed"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestGatewayInsertOne(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	require.NoError(t, g.InsertOne(ctx, "users", database.Record{"name": "dee"}))

	rec, err := g.FindOne(ctx, "users", database.Filter{"name": "dee"}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec["age"])

	n, err := g.Count(ctx, "users", database.Filter{"age": nil})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.Error(t, g.InsertOne(ctx, "users", database.Record{}))
}

func TestGatewayFind(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	rec, err := g.FindOne(ctx, "users", database.Filter{"name": "bob"}, &database.FindOptions{Fields: []string{"name", "age"}})
	require.NoError(t, err)
	assert.Equal(t, "bob", rec["name"])
	assert.EqualValues(t, 25, rec["age"])
	assert.NotContains(t, rec, "role")

	_, err = g.FindOne(ctx, "users", database.Filter{"name": "nobody"}, nil)
	assert.ErrorIs(t, err, database.ErrNotFound)

	recs, err := g.FindMany(ctx, "users", database.Filter{"role": "user"}, &database.FindOptions{Order: []string{"-age"}})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "cyd", recs[0]["name"])
	assert.Equal(t, "bob", recs[1]["name"])

	recs, err = g.FindMany(ctx, "users", nil, &database.FindOptions{Order: []string{"name"}, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "bob", recs[0]["name"])
}

func TestGatewayUpdate(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	changed, err := g.UpdateOne(ctx, "users", database.Filter{"role": "user"}, database.Record{"role": "guest"})
	require.NoError(t, err)
	assert.True(t, changed)

	n, err := g.Count(ctx, "users", database.Filter{"role": "guest"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = g.UpdateMany(ctx, "users", database.Filter{"role": []string{"user", "guest"}}, database.Record{"role": "member"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	changed, err = g.UpdateOne(ctx, "users", database.Filter{"name": "nobody"}, database.Record{"role": "x"})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = g.UpdateMany(ctx, "users", nil, database.Record{"role": "x"})
	assert.Error(t, err, "an update without a filter is refused")
}

func TestGatewayDelete(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	deleted, err := g.DeleteOne(ctx, "users", database.Filter{"role": "user"})
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := g.DeleteMany(ctx, "users", database.Filter{"role": "admin"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = g.DeleteMany(ctx, "users", nil)
	assert.Error(t, err, "a delete without a filter is refused")

	n, err = g.Count(ctx, "users", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
