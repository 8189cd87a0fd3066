package ddbsdk

import (
	"context"
	"testing"
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/ddbstore"
	"github.com/antipr000/NobaServer-sub003/dynamodb/gsi"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

var emailIndex = table.GSIDefinition{
	Name: "EmailIndex",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "gsi1pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "gsi1sk", Kind: table.KeyKindS},
	},
}

var usersTable = table.TableDefinition{
	Name: "Users",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
	TimeToLiveKey: "ttl",
	GSIs:          []table.GSIDefinition{emailIndex},
}

var usersBase = schema.Schema{
	"pk": {Type: schema.TypeString, KeyRole: schema.KeyRolePartition},
	"sk": {Type: schema.TypeString, KeyRole: schema.KeyRoleSort},
}

var userSchema = schema.Schema{
	"id":       {Type: schema.TypeString},
	"email":    {Type: schema.TypeString},
	"name":     {Type: schema.TypeString},
	"nickname": {Type: schema.TypeString},
	"age":      {Type: schema.TypeNumber},
	"born":     {Type: schema.TypeDate},
	"tags":     {Type: schema.TypeSet},
	"version":  {Type: schema.TypeNumber, Version: true},
}

var emailConsumer = gsi.Consumer{
	Entity:          "User",
	Index:           emailIndex,
	SourcePartition: "email",
	ConstSort:       "USER",
}

// t0 is 2024-01-02T03:04:05Z.
var t0 = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

const t0Epoch = "1704164645000"

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.AddTable(usersTable, usersBase))
	_, err := reg.Register(schema.Entity{
		Name:           "User",
		Table:          usersTable,
		Schema:         userSchema,
		PartitionKeyer: table.FmtKeyer("USER#%s", "id"),
		SortKeyer:      table.ConstKeyer(&types.AttributeValueMemberS{Value: "PROFILE"}),
	})
	require.NoError(t, err)
	return reg
}

func newTestMapper(t *testing.T, opts ...MapperOption) *Mapper {
	t.Helper()
	policy, err := gsi.NewPolicy([]gsi.Consumer{emailConsumer})
	require.NoError(t, err)
	m, err := NewMapper(newTestRegistry(t), policy, append([]MapperOption{WithClock(fixedClock(t0))}, opts...)...)
	require.NoError(t, err)
	return m
}

func newTestStore(t *testing.T) *ddbstore.Store {
	t.Helper()
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true}, usersTable)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newTestClient(t *testing.T) *Client {
	return New(newTestStore(t))
}

func ada(extra map[string]any) item.Source {
	m := map[string]any{
		"id":    "42",
		"email": "ada@example.com",
		"name":  "Ada",
		"age":   36,
	}
	for k, v := range extra {
		m[k] = v
	}
	return item.FromMap(m)
}

func userKey(id string) table.PrimaryKey {
	return table.PrimaryKey{
		Definition: usersTable.KeyDefinitions,
		Values:     table.PrimaryKeyValues{PartitionKey: "USER#" + id, SortKey: "PROFILE"},
	}
}

// loadUser reads and decodes a user, failing the test when it is missing.
func loadUser(t *testing.T, c *Client, m *Mapper, id string) item.Item {
	t.Helper()
	native, err := c.GetItem(context.Background(), usersTable, userKey(id))
	require.NoError(t, err)
	require.NotNil(t, native, "user %s not found", id)
	it, err := m.Decode("User", native)
	require.NoError(t, err)
	return it
}
