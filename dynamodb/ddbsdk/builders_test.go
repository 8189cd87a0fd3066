package ddbsdk

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/condition"
	"github.com/antipr000/NobaServer-sub003/dynamodb/gsi"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPut(t *testing.T) {
	m := newTestMapper(t)

	t.Run("create", func(t *testing.T) {
		p, err := m.Put("User", ada(nil), Options{})
		require.NoError(t, err)

		it := p.Item()
		assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#42"}, it["pk"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "PROFILE"}, it["sk"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "ada@example.com"}, it["gsi1pk"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "USER"}, it["gsi1sk"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, it["version"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: t0Epoch}, it["createdAt"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: t0Epoch}, it["updatedAt"])
		assert.NotContains(t, it, "nickname")

		assert.Equal(t, "attribute_not_exists (#0)", p.ConditionExpression())
		assert.Equal(t, map[string]string{"#0": "version"}, p.Names())
		assert.Empty(t, p.Values())
		assert.Equal(t, map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "USER#42"},
			"sk": &types.AttributeValueMemberS{Value: "PROFILE"},
		}, p.Key())
	})

	t.Run("existing version", func(t *testing.T) {
		p, err := m.Put("User", ada(map[string]any{"version": 3}), Options{})
		require.NoError(t, err)

		assert.Equal(t, &types.AttributeValueMemberN{Value: "4"}, p.Item()["version"])
		assert.Equal(t, "#0 = :0", p.ConditionExpression())
		assert.Equal(t, map[string]types.AttributeValue{":0": &types.AttributeValueMemberN{Value: "3"}}, p.Values())
	})

	t.Run("skip version check still advances the version", func(t *testing.T) {
		p, err := m.Put("User", ada(map[string]any{"version": 3}), Options{SkipVersionCheck: SkipVersionCheck(true)})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "4"}, p.Item()["version"])
		assert.Empty(t, p.ConditionExpression())

		p, err = m.Put("User", ada(nil), Options{SkipVersionCheck: SkipVersionCheck(true)})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, p.Item()["version"])
		assert.Nil(t, p.ToPutItem().ConditionExpression)
	})

	t.Run("extra condition is merged", func(t *testing.T) {
		p, err := m.Put("User", ada(nil), Options{Condition: condition.AttributeNotExists{Name: "pk"}})
		require.NoError(t, err)
		assert.Equal(t, "(attribute_not_exists (#0)) AND (attribute_not_exists (#1))", p.ConditionExpression())
		assert.ElementsMatch(t, []string{"version", "pk"}, []string{p.Names()["#0"], p.Names()["#1"]})
	})

	t.Run("keeps a given createdAt", func(t *testing.T) {
		created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		p, err := m.Put("User", ada(map[string]any{"createdAt": created}), Options{})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1577836800000"}, p.Item()["createdAt"])
	})

	t.Run("expiry", func(t *testing.T) {
		exp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		p, err := m.Put("User", ada(nil), Options{Expiry: &exp})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1706745600"}, p.Item()["ttl"])
	})

	t.Run("fractional version", func(t *testing.T) {
		_, err := m.Put("User", ada(map[string]any{"version": 1.5}), Options{})
		assert.Error(t, err)
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := m.Put("Order", ada(nil), Options{})
		assert.Error(t, err)
	})

	t.Run("request is immutable", func(t *testing.T) {
		p, err := m.Put("User", ada(nil), Options{})
		require.NoError(t, err)
		p.Item()["name"] = &types.AttributeValueMemberS{Value: "changed"}
		p.ToPutItem().Item["name"] = &types.AttributeValueMemberS{Value: "changed"}
		assert.Equal(t, &types.AttributeValueMemberS{Value: "Ada"}, p.Item()["name"])
	})
}

func TestBuildUpdate(t *testing.T) {
	m := newTestMapper(t)

	t.Run("key and expression", func(t *testing.T) {
		u, err := m.Update("User", ada(map[string]any{"version": 0}), Options{})
		require.NoError(t, err)
		assert.Equal(t, "PROFILE", u.Key()["sk"].(*types.AttributeValueMemberS).Value)
		assert.Contains(t, u.UpdateExpression(), "if_not_exists")

		v := placeholder(t, u.Names(), "version")
		inc := regexp.MustCompile(v + ` = ` + v + ` \+ (:[0-9]+)`).FindStringSubmatch(u.UpdateExpression())
		require.NotNil(t, inc, u.UpdateExpression())
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, u.Values()[inc[1]], "version goes to 1")
		cond := regexp.MustCompile(`^` + v + ` = (:[0-9]+)$`).FindStringSubmatch(u.ConditionExpression())
		require.NotNil(t, cond, u.ConditionExpression())
		assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, u.Values()[cond[1]], "conditioned on version 0")

		in := u.ToUpdateItem()
		assert.Equal(t, "Users", *in.TableName)
		for _, name := range in.ExpressionAttributeNames {
			assert.NotEqual(t, "pk", name, "keys are never updated")
			assert.NotEqual(t, "sk", name, "keys are never updated")
		}
	})

	t.Run("skip without version has no condition", func(t *testing.T) {
		u, err := m.Update("User", ada(nil), Options{SkipVersionCheck: SkipVersionCheck(true)})
		require.NoError(t, err)
		assert.Empty(t, u.ConditionExpression())
		assert.Nil(t, u.ToTransactWriteItem().Update.ConditionExpression)
	})

	t.Run("missing attributes", func(t *testing.T) {
		u, err := m.Update("User", ada(map[string]any{"nickname": nil}), Options{})
		require.NoError(t, err)
		assert.Contains(t, u.UpdateExpression(), "REMOVE")

		u, err = m.Update("User", ada(map[string]any{"nickname": nil}), Options{OnMissing: OnMissingSkip})
		require.NoError(t, err)
		assert.NotContains(t, u.UpdateExpression(), "REMOVE")
	})

	t.Run("nil index source clears the index keys", func(t *testing.T) {
		u, err := m.Update("User", ada(map[string]any{"version": 0, "email": nil}), Options{})
		require.NoError(t, err)
		names := u.Names()
		remove := regexp.MustCompile(`REMOVE ([^\n]*)`).FindStringSubmatch(u.UpdateExpression())
		require.NotNil(t, remove, u.UpdateExpression())
		removed := strings.Split(remove[1], ", ")
		for _, attr := range []string{"email", "gsi1pk", "gsi1sk"} {
			assert.Contains(t, removed, placeholder(t, names, attr), attr)
		}

		u, err = m.Update("User", ada(map[string]any{"version": 0, "email": nil}), Options{OnMissing: OnMissingSkip})
		require.NoError(t, err)
		assert.NotContains(t, u.UpdateExpression(), "REMOVE")
		for _, name := range u.Names() {
			assert.NotContains(t, []string{"email", "gsi1pk", "gsi1sk"}, name)
		}
	})

	t.Run("equal values share a placeholder", func(t *testing.T) {
		u, err := m.Update("User", ada(map[string]any{"version": 0, "age": 0}), Options{})
		require.NoError(t, err)
		seen := map[string]string{}
		for token, av := range u.Values() {
			n, ok := av.(*types.AttributeValueMemberN)
			if !ok {
				continue
			}
			if prev, dup := seen[n.Value]; dup {
				t.Errorf("value %s bound to both %s and %s", n.Value, prev, token)
			}
			seen[n.Value] = token
		}
		age := placeholder(t, u.Names(), "age")
		assert.Contains(t, u.UpdateExpression(), age+" = "+seen["0"])
		assert.Contains(t, u.ConditionExpression(), seen["0"])
	})
}

// placeholder returns the name token bound to attr.
func placeholder(t *testing.T, names map[string]string, attr string) string {
	t.Helper()
	for token, name := range names {
		if name == attr {
			return token
		}
	}
	t.Fatalf("no placeholder for %q in %v", attr, names)
	return ""
}

func TestBuildDelete(t *testing.T) {
	m := newTestMapper(t)

	d, err := m.Delete("User", item.FromMap(map[string]any{"id": "42"}), Options{})
	require.NoError(t, err)
	assert.Empty(t, d.ConditionExpression())
	assert.Equal(t, "USER#42", d.ToDeleteItem().Key["pk"].(*types.AttributeValueMemberS).Value)

	d, err = m.Delete("User", item.FromMap(map[string]any{"id": "42", "version": 2}), Options{})
	require.NoError(t, err)
	assert.Equal(t, "#0 = :0", d.ConditionExpression())

	d, err = m.Delete("User", item.FromMap(map[string]any{"id": "42", "version": 2}), Options{SkipVersionCheck: SkipVersionCheck(true)})
	require.NoError(t, err)
	assert.Empty(t, d.ConditionExpression())
}

func TestMapperDefaults(t *testing.T) {
	m := newTestMapper(t, WithDefaultSkipVersionCheck(true))

	p, err := m.Put("User", ada(map[string]any{"version": 1}), Options{})
	require.NoError(t, err)
	assert.Empty(t, p.ConditionExpression(), "instance default skips the check")

	p, err = m.Put("User", ada(map[string]any{"version": 1}), Options{SkipVersionCheck: SkipVersionCheck(false)})
	require.NoError(t, err)
	assert.Equal(t, "#0 = :0", p.ConditionExpression(), "per-call option wins")
}

func TestNewMapper_Violations(t *testing.T) {
	orphan := emailConsumer
	orphan.Entity = "Order"

	unknownIndex := emailConsumer
	unknownIndex.Index = table.GSIDefinition{
		Name: "PhoneIndex",
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: "gsi2pk", Kind: table.KeyKindS},
		},
	}
	unknownIndex.ConstSort = nil

	for name, c := range map[string]gsi.Consumer{"unregistered entity": orphan, "index not on table": unknownIndex} {
		t.Run(name, func(t *testing.T) {
			policy, err := gsi.NewPolicy([]gsi.Consumer{c})
			require.NoError(t, err)
			_, err = NewMapper(newTestRegistry(t), policy)
			assert.ErrorIs(t, err, schema.ErrSchemaViolation)
		})
	}
}

func TestMapperEntities(t *testing.T) {
	m := newTestMapper(t)
	entities := m.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, "User", entities[0].Name)
	assert.Equal(t, "Users", entities[0].Table.Name)
	assert.Len(t, entities[0].Consumers, 1)
}

func TestDefaultClockRoundTrips(t *testing.T) {
	now := DefaultClock()
	native, err := item.MarshalValue(auditSchema[UpdatedAtAttribute], now)
	require.NoError(t, err)
	back, err := item.UnmarshalValue(auditSchema[UpdatedAtAttribute], native)
	require.NoError(t, err)
	assert.Equal(t, now, back)
}
