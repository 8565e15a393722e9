package dto

import "context"

type accountKey struct{}

// AccountRef identifies the banking account a request acts on.
type AccountRef struct {
	ID string
}

func WithAccount(ctx context.Context, account AccountRef) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

func AccountFromContext(ctx context.Context) (AccountRef, bool) {
	account, ok := ctx.Value(accountKey{}).(AccountRef)
	if !ok || account.ID == "" {
		return AccountRef{}, false
	}
	return account, true
}
