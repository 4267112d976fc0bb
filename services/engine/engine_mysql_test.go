package engine

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbautorest/config"
	"dbautorest/models"
	"dbautorest/pkg/testdb"
	"dbautorest/services/cache"
	"dbautorest/services/dialect"
	"dbautorest/services/driver"
	"dbautorest/services/policy"
)

// TestHandleList_MySQL_MaskedShippedOrders tests a masked, filtered and sorted first page against a live mysql server.
func TestHandleList_MySQL_MaskedShippedOrders(t *testing.T) {
	srv, err := testdb.Start(context.Background(), "shop")
	require.NoError(t, err)
	defer srv.Close()

	require.NoError(t, srv.Exec(
		"CREATE TABLE orders (id INT PRIMARY KEY, customer_id VARCHAR(20), status VARCHAR(20), total DECIMAL(10,2))",
		"INSERT INTO orders VALUES "+
			"(1, 'u-1', 'pending', 3.00), (2, 'u-1', 'shipped', 10.50), (3, 'u-2', 'shipped', 99.00), "+
			"(4, 'u-3', 'cancelled', 1.00), (5, 'u-2', 'shipped', 7.25), (6, 'u-4', 'shipped', 12.00), "+
			"(7, 'u-1', 'pending', 4.00), (8, 'u-3', 'shipped', 8.75)",
	))

	db, err := sql.Open("mysql", srv.DSN())
	require.NoError(t, err)
	ex, err := driver.NewSQLExecutor(db, dialect.MySQL)
	require.NoError(t, err)
	defer ex.Close()

	entity := models.ExposedEntity{
		ID: 1, ServiceID: "svc", Name: "orders", Kind: models.KindTable,
		PrimaryKey: "id", PathAlias: "orders", AllowRead: true,
	}
	fields := &fakeFieldRepo{policies: []models.FieldPolicy{{EntityID: 1, MaskedFields: []string{"total"}}}}
	inflight := cache.NewInflight(0, 100)
	defer inflight.Close()
	e := New(Deps{
		Entities:  &fakeEntities{entities: []models.ExposedEntity{entity}},
		Policies:  policy.NewEngine(fields, &fakeRowRepo{}, config.RowPolicyFailOpen),
		Pools:     &fakePools{current: ex},
		Resolver:  &fakeResolver{cfg: models.ConnectionConfig{Type: "mysql", Host: "localhost", Port: srv.Port}},
		Inflight:  inflight,
		Responses: cache.NewResponseCache(16, time.Minute),
	}, Options{})

	env, err := e.HandleList(context.Background(), callerCtx(""), "orders", ListParams{
		Filter:   `status:eq:"shipped"`,
		Sort:     "id:asc",
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)

	require.Len(t, env.Data, 2)
	assert.Equal(t, "2", fmt.Sprint(env.Data[0]["id"]))
	assert.Equal(t, "3", fmt.Sprint(env.Data[1]["id"]))
	for _, row := range env.Data {
		v, present := row["total"]
		assert.True(t, present)
		assert.Nil(t, v)
		assert.Equal(t, "shipped", row["status"])
	}
	assert.Equal(t, int64(5), env.Total)
	assert.Equal(t, 1, env.Page)
	assert.Equal(t, 2, env.PageSize)
	assert.True(t, env.HasNext)
}
