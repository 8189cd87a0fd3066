package schemafile

import (
	"testing"

	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	doc, err := LoadFile("testdata/users.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	require.Len(t, doc.Entities, 2)

	reg, policy, err := doc.Build()
	require.NoError(t, err)

	def, ok := reg.Table("Users")
	require.True(t, ok)
	assert.Equal(t, "ttl", def.TimeToLiveKey)
	assert.Equal(t, table.KeyDef{Name: "pk", Kind: table.KeyKindS}, def.KeyDefinitions.PartitionKey)
	g, ok := def.GSI("EmailIndex")
	require.True(t, ok)
	assert.True(t, g.HasSortKey())

	user, ok := reg.Lookup("User")
	require.True(t, ok)
	assert.Equal(t, schema.TypeString, user.Schema["email"].Type)
	assert.Equal(t, schema.TypeDate, user.Schema["born"].Type)
	assert.Equal(t, schema.KeyRolePartition, user.Schema["pk"].KeyRole)
	name, ok := user.Schema.VersionAttribute()
	require.True(t, ok)
	assert.Equal(t, "version", name)

	doc2 := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "42"}}
	require.NoError(t, user.Index().FillKeys(doc2))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#42"}, doc2["pk"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PROFILE"}, doc2["sk"])

	consumers := policy.For("User")
	require.Len(t, consumers, 1)
	assert.Equal(t, "email", consumers[0].SourcePartition)
	assert.Equal(t, "USER", consumers[0].ConstSort)
	assert.Empty(t, policy.For("Order"))
}

func TestBuild_Violations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown table",
			yaml: `
entities:
  - name: User
    table: Missing
`,
		},
		{
			name: "unknown key kind",
			yaml: `
tables:
  - name: T
    partitionKey: {name: pk, kind: X}
`,
		},
		{
			name: "missing sort key pattern",
			yaml: `
tables:
  - name: T
    partitionKey: {name: pk}
    sortKey: {name: sk}
entities:
  - name: User
    table: T
    partitionKeyPattern: "USER#{id}"
`,
		},
		{
			name: "unknown index",
			yaml: `
tables:
  - name: T
    partitionKey: {name: pk}
entities:
  - name: User
    table: T
    gsiMappings:
      - gsi: Nope
        partition: {from: email}
`,
		},
		{
			name: "partition source and constant",
			yaml: `
tables:
  - name: T
    partitionKey: {name: pk}
    gsis:
      - name: ByEmail
        partitionKey: {name: email_pk}
entities:
  - name: User
    table: T
    gsiMappings:
      - gsi: ByEmail
        partition: {from: email, const: X}
`,
		},
		{
			name: "two version attributes",
			yaml: `
tables:
  - name: T
    partitionKey: {name: pk}
    attributes:
      version: {type: number, version: true}
entities:
  - name: User
    table: T
    attributes:
      rev: {type: number, version: true}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, _, err = doc.Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrSchemaViolation)
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		_, err := Parse([]byte("tables:\n  - name: T\n    partitionKey: {name: pk}\n    colour: red\n"))
		require.Error(t, err)
	})
	t.Run("empty", func(t *testing.T) {
		doc, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, doc.Tables)
	})
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		pattern string
		doc     map[string]types.AttributeValue
		want    string
	}{
		{pattern: "PROFILE", want: "PROFILE"},
		{pattern: "USER#{id}", doc: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "7"}}, want: "USER#7"},
		{
			pattern: "ORDER#{tenant}#{n}",
			doc: map[string]types.AttributeValue{
				"tenant": &types.AttributeValueMemberS{Value: "acme"},
				"n":      &types.AttributeValueMemberN{Value: "12"},
			},
			want: "ORDER#acme#12",
		},
		{
			pattern: "{user.id}",
			doc: map[string]types.AttributeValue{
				"user": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "u1"}}},
			},
			want: "u1",
		},
		{pattern: "100%#{id}", doc: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "x"}}, want: "100%#x"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := ParsePattern(tt.pattern)
			require.NoError(t, err)
			got, err := p.Keyer().Key(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, &types.AttributeValueMemberS{Value: tt.want}, got)
		})
	}

	for _, bad := range []string{"", "USER#{}", "{a..b}", "USER#{id"} {
		_, err := ParsePattern(bad)
		assert.Error(t, err, bad)
	}
}
