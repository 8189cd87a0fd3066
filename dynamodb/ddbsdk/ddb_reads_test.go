package ddbsdk

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPager struct {
	pages [][]Item
	err   error
}

func (p *staticPager) Next(context.Context) (*QueryResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.pages) == 0 {
		return &QueryResult{IsDone: true}, nil
	}
	page := p.pages[0]
	p.pages = p.pages[1:]
	return &QueryResult{Items: page, IsDone: len(p.pages) == 0}, nil
}

func named(name string) Item {
	return Item{"name": &types.AttributeValueMemberS{Value: name}}
}

func TestExactlyZeroOrOne(t *testing.T) {
	ctx := context.Background()

	got, err := ExactlyZeroOrOne(ctx, &staticPager{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ExactlyZeroOrOne(ctx, &staticPager{pages: [][]Item{{}, {named("a")}}})
	require.NoError(t, err)
	assert.Equal(t, named("a"), got)

	_, err = ExactlyZeroOrOne(ctx, &staticPager{pages: [][]Item{{named("a")}, {named("b")}}})
	assert.ErrorIs(t, err, ErrDuplicateItem)
	var dup *DuplicateItemError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 2, dup.Count)

	boom := errors.New("boom")
	_, err = ExactlyZeroOrOne(ctx, &staticPager{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	ok, err := Exists(ctx, &staticPager{pages: [][]Item{{named("a")}}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(ctx, &staticPager{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryByEmail(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)
	c := newTestClient(t)
	require.NoError(t, c.PutItem(ctx, userPut(t, m, "1", nil)))

	byEmail := func(email string) *Querier {
		return c.NewQuery(usersTable, NewKeyCondition(email, Equals("USER"))).WithGSI(emailIndex.Name)
	}

	got, err := ExactlyZeroOrOne(ctx, byEmail("ada@example.com"))
	require.NoError(t, err)
	require.NotNil(t, got)
	decoded, err := m.Decode("User", got)
	require.NoError(t, err)
	assert.Equal(t, "1", decoded["id"])

	got, err = ExactlyZeroOrOne(ctx, byEmail("nobody@example.com"))
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.PutItem(ctx, userPut(t, m, "2", nil)))
	_, err = ExactlyZeroOrOne(ctx, byEmail("ada@example.com"))
	assert.ErrorIs(t, err, ErrDuplicateItem, "two users share the address")

	items, err := Drain(ctx, byEmail("ada@example.com").WithPageSize(1))
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestQueryTable(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)
	c := newTestClient(t)
	require.NoError(t, c.PutItem(ctx, userPut(t, m, "1", nil)))

	items, err := Drain(ctx, c.NewQuery(usersTable, NewKeyCondition("USER#1", BeginsWith("PRO"))))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = Drain(ctx, c.NewQuery(usersTable, NewKeyCondition("USER#1", nil)).WithDescending())
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = c.NewQuery(usersTable, NewKeyCondition("x", nil)).WithGSI("Missing").Next(ctx)
	assert.Error(t, err)
}
