package ddbsdk

import (
	"context"
)

// Drain reads every page of p into memory. No bound is enforced; use it
// only for reads known to be small, such as lookups on a unique key.
func Drain(ctx context.Context, p Pager) ([]Item, error) {
	var all []Item
	for {
		res, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if res.IsDone {
			return all, nil
		}
	}
}

// ExactlyZeroOrOne drains p and returns its only item, or nil when there is
// none. More than one item fails with ErrDuplicateItem.
func ExactlyZeroOrOne(ctx context.Context, p Pager) (Item, error) {
	items, err := Drain(ctx, p)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	}
	return nil, &DuplicateItemError{Count: len(items)}
}

// Exists reports whether p yields exactly one item.
func Exists(ctx context.Context, p Pager) (bool, error) {
	it, err := ExactlyZeroOrOne(ctx, p)
	if err != nil {
		return false, err
	}
	return it != nil, nil
}
