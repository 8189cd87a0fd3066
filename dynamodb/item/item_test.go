package item

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileSchema = schema.Schema{
	"id":       {Type: schema.TypeString, KeyRole: schema.KeyRolePartition},
	"age":      {Type: schema.TypeNumber},
	"balance":  {Type: schema.TypeNumber},
	"verified": {Type: schema.TypeBoolean},
	"born":     {Type: schema.TypeDate},
	"address":  {Type: schema.TypeMap},
	"tags":     {Type: schema.TypeSet},
	"scores":   {Type: schema.TypeSet},
	"extra":    {Type: schema.TypeAny},
}

func TestRoundTripScalars(t *testing.T) {
	in := Item{
		"id":       "u1",
		"age":      int64(42),
		"balance":  12.5,
		"verified": true,
		"born":     time.Date(1990, 4, 2, 10, 30, 0, 0, time.UTC),
	}
	native, err := Marshal(profileSchema, in)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "42"}, native["age"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "12.5"}, native["balance"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "639052200000"}, native["born"], "dates are epoch milliseconds")

	out, err := Unmarshal(profileSchema, native)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRoundTripFractionalDate(t *testing.T) {
	born := time.Date(2024, 1, 2, 3, 4, 5, 123_000_000, time.UTC)
	native, err := Marshal(profileSchema, Item{"born": born})
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1704164645123"}, native["born"])

	out, err := Unmarshal(profileSchema, native)
	require.NoError(t, err)
	assert.Equal(t, born, out["born"])

	t.Run("below a millisecond is truncated", func(t *testing.T) {
		native, err := Marshal(profileSchema, Item{"born": born.Add(999 * time.Microsecond)})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1704164645123"}, native["born"])
	})
}

func TestNestedNumbersNormalizeToFloat(t *testing.T) {
	// Numbers below the top level go through the generic decoder and lose
	// their integral type. This is the accepted behaviour.
	in := Item{
		"address": map[string]any{"street": "Main", "number": 12},
		"scores":  []int{1, 2},
		"extra":   []any{int64(7), "x"},
	}
	native, err := Marshal(profileSchema, in)
	require.NoError(t, err)
	assert.IsType(t, &types.AttributeValueMemberM{}, native["address"])
	assert.Equal(t, &types.AttributeValueMemberNS{Value: []string{"1", "2"}}, native["scores"])

	out, err := Unmarshal(profileSchema, native)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"street": "Main", "number": float64(12)}, out["address"])
	assert.Equal(t, []float64{1, 2}, out["scores"])
	assert.Equal(t, []any{float64(7), "x"}, out["extra"])
	assert.NotEqual(t, in, out)
}

func TestMarshal(t *testing.T) {
	t.Run("ignores undeclared and nil attributes", func(t *testing.T) {
		native, err := Marshal(profileSchema, Item{"id": "u1", "nickname": "x", "age": nil})
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: "u1"},
		}, native)
	})
	t.Run("numeric kinds", func(t *testing.T) {
		for _, v := range []any{int(3), int8(3), int32(3), uint16(3), uint64(3), float32(3), json.Number("3")} {
			av, err := MarshalValue(schema.Attribute{Type: schema.TypeNumber}, v)
			require.NoError(t, err, "%T", v)
			assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, av, "%T", v)
		}
	})
	t.Run("string sets", func(t *testing.T) {
		av, err := MarshalValue(schema.Attribute{Type: schema.TypeSet}, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberSS{Value: []string{"a", "b"}}, av)
	})
	t.Run("empty set is skipped", func(t *testing.T) {
		native, err := Marshal(profileSchema, Item{"tags": []string{}})
		require.NoError(t, err)
		assert.Empty(t, native)
	})
	t.Run("date from RFC3339 string", func(t *testing.T) {
		av, err := MarshalValue(schema.Attribute{Type: schema.TypeDate}, "1970-01-01T00:01:40Z")
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "100000"}, av)
	})
	t.Run("type mismatches", func(t *testing.T) {
		tests := []struct {
			attr schema.Type
			v    any
		}{
			{schema.TypeString, 1},
			{schema.TypeNumber, "1"},
			{schema.TypeBoolean, "true"},
			{schema.TypeDate, "yesterday"},
			{schema.TypeMap, "flat"},
			{schema.TypeSet, "a"},
			{schema.TypeNumber, json.Number("abc")},
		}
		for _, tt := range tests {
			_, err := MarshalValue(schema.Attribute{Type: tt.attr}, tt.v)
			assert.Error(t, err, "%s %v", tt.attr, tt.v)
		}
	})
}

func TestUnmarshalUndeclaredAttributes(t *testing.T) {
	out, err := Unmarshal(profileSchema, map[string]types.AttributeValue{
		"gsi1pk": &types.AttributeValueMemberS{Value: "a@b.com"},
		"age":    &types.AttributeValueMemberNULL{Value: true},
	})
	require.NoError(t, err)
	assert.Equal(t, Item{"gsi1pk": "a@b.com", "age": nil}, out)

	_, err = Unmarshal(profileSchema, map[string]types.AttributeValue{
		"age": &types.AttributeValueMemberS{Value: "1"},
	})
	require.Error(t, err)
}

type profile struct {
	ID       string     `dynamodbav:"id"`
	Age      int        `dynamodbav:"age"`
	Nickname *string    `dynamodbav:"nickname"`
	Born     time.Time  `dynamodbav:"born"`
	Deleted  *time.Time `dynamodbav:"deleted,omitempty"`
}

func TestSource(t *testing.T) {
	t.Run("map is copied", func(t *testing.T) {
		m := map[string]any{"id": "u1"}
		it, err := FromMap(m).Item()
		require.NoError(t, err)
		it["age"] = 3
		assert.Len(t, m, 1)
	})
	t.Run("struct read through tags", func(t *testing.T) {
		born := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		it, err := FromStruct(profile{ID: "u1", Age: 30, Born: born}).Item()
		require.NoError(t, err)
		assert.Equal(t, "u1", it["id"])
		v, ok := it["nickname"]
		assert.True(t, ok, "nil pointer is an explicit nil")
		assert.Nil(t, v)
		_, ok = it["deleted"]
		assert.False(t, ok, "omitempty nil is absent")

		native, err := Marshal(profileSchema, it)
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "30"}, native["age"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: "946684800000"}, native["born"])
	})
	t.Run("struct integers keep every digit", func(t *testing.T) {
		type versioned struct {
			ID      string  `dynamodbav:"id"`
			Version int64   `dynamodbav:"version"`
			Ratio   float64 `dynamodbav:"ratio"`
			Scores  []int64 `dynamodbav:"scores,numberset"`
		}
		it, err := FromStruct(versioned{ID: "u1", Version: 1<<62 + 1, Ratio: 0.5, Scores: []int64{1<<60 + 3}}).Item()
		require.NoError(t, err)
		assert.Equal(t, int64(1<<62+1), it["version"])
		assert.Equal(t, 0.5, it["ratio"])
		assert.Equal(t, []any{int64(1<<60 + 3)}, it["scores"])

		native, err := Marshal(profileSchema, Item{"scores": it["scores"]})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberNS{Value: []string{"1152921504606846979"}}, native["scores"])
	})
	t.Run("zero source", func(t *testing.T) {
		_, err := Source{}.Item()
		require.Error(t, err)
	})
}

func TestRaw(t *testing.T) {
	av := &types.AttributeValueMemberN{Value: "7"}
	got, err := attributevalue.Marshal(Raw(av))
	require.NoError(t, err)
	assert.Equal(t, av, got)
}
