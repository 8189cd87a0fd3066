package condition

import (
	"strconv"
	"testing"
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userSchema = schema.Schema{
	"pk":        {Type: schema.TypeString, KeyRole: schema.KeyRolePartition},
	"version":   {Type: schema.TypeNumber, Version: true},
	"createdAt": {Type: schema.TypeDate},
}

func TestMerge(t *testing.T) {
	nx := AttributeNotExists{Name: "version"}
	eq := Equals{Name: "status", Value: "active"}

	assert.Nil(t, Merge())
	assert.Nil(t, Merge(nil, And{}))
	assert.Equal(t, nx, Merge(nil, nx))
	assert.Equal(t, And{Conditions: []Condition{nx, eq}}, Merge(nx, nil, eq))
	assert.Equal(t, And{Conditions: []Condition{nx, eq, nx}}, Merge(And{Conditions: []Condition{nx, And{Conditions: []Condition{eq}}}}, nx))
}

func TestCompile(t *testing.T) {
	t.Run("attribute not exists", func(t *testing.T) {
		got, err := Compile(AttributeNotExists{Name: "version"}, userSchema)
		require.NoError(t, err)
		assert.Equal(t, "attribute_not_exists (#0)", got.Expression)
		assert.Equal(t, map[string]string{"#0": "version"}, got.Names)
		assert.Empty(t, got.Values)
	})
	t.Run("equals typed through schema", func(t *testing.T) {
		got, err := Compile(Equals{Name: "version", Value: 3}, userSchema)
		require.NoError(t, err)
		assert.Equal(t, "#0 = :0", got.Expression)
		assert.Equal(t, map[string]types.AttributeValue{":0": &types.AttributeValueMemberN{Value: "3"}}, got.Values)
	})
	t.Run("dates encode as epoch milliseconds", func(t *testing.T) {
		got, err := Compile(Equals{Name: "createdAt", Value: time.Unix(60, 0)}, userSchema)
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "60000"}, got.Values[":0"])
	})
	t.Run("undeclared attributes use generic encoding", func(t *testing.T) {
		got, err := Compile(Equals{Name: "status", Value: "active"}, userSchema)
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "active"}, got.Values[":0"])
	})
	t.Run("and shares name placeholders", func(t *testing.T) {
		got, err := Compile(Merge(
			Equals{Name: "version", Value: 1},
			AttributeNotExists{Name: "version"},
			Equals{Name: "pk", Value: "USER#1"},
		), userSchema)
		require.NoError(t, err)
		assert.Len(t, got.Names, 2)
		assert.Len(t, got.Values, 2)
		assert.Contains(t, got.Expression, " AND ")
	})
	t.Run("equal values share a placeholder", func(t *testing.T) {
		got, err := Compile(Merge(
			Equals{Name: "version", Value: 3},
			Equals{Name: "status", Value: 3},
		), userSchema)
		require.NoError(t, err)
		assert.Equal(t, "(#0 = :0) AND (#1 = :0)", got.Expression)
		assert.Equal(t, map[string]types.AttributeValue{":0": &types.AttributeValueMemberN{Value: "3"}}, got.Values)
	})
	t.Run("caller expression", func(t *testing.T) {
		got, err := Compile(Expression{Builder: expression.AttributeExists(expression.Name("pk"))}, nil)
		require.NoError(t, err)
		assert.Equal(t, "attribute_exists (#0)", got.Expression)
	})
	t.Run("errors", func(t *testing.T) {
		for _, c := range []Condition{
			nil,
			And{},
			AttributeNotExists{},
			Equals{Name: "version", Value: "three"},
			Expression{},
		} {
			_, err := Compile(c, userSchema)
			assert.Error(t, err, "%#v", c)
		}
	})
}

func TestShareValues(t *testing.T) {
	n := func(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }
	values := map[string]types.AttributeValue{}
	for i := 0; i < 11; i++ {
		values[":"+strconv.Itoa(i)] = n(strconv.Itoa(i % 3))
	}
	update := "SET #a = :1, #b = :4, #c = :10"
	cond := "#v = :0 AND #w = :9"

	ShareValues(values, &update, &cond, nil)

	assert.Equal(t, "SET #a = :1, #b = :1, #c = :1", update)
	assert.Equal(t, "#v = :0 AND #w = :0", cond)
	assert.Equal(t, map[string]types.AttributeValue{":0": n("0"), ":1": n("1"), ":2": n("2")}, values)
}
