package core

import "context"

type transactionContextKey struct{}

type dispatcherContextKey struct{}

// ContextWithTransaction binds the transaction begun for a call so engines can
// run their writes on it.
func ContextWithTransaction(ctx context.Context, tx Transaction) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, transactionContextKey{}, tx)
}

func TransactionFromContext(ctx context.Context) (Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(transactionContextKey{}).(Transaction)
	return tx, ok && tx != nil
}

func ContextWithDispatcher(ctx context.Context, dispatcher *Dispatcher) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, dispatcherContextKey{}, dispatcher)
}

func DispatcherFromContext(ctx context.Context) (*Dispatcher, bool) {
	if ctx == nil {
		return nil, false
	}
	dispatcher, ok := ctx.Value(dispatcherContextKey{}).(*Dispatcher)
	return dispatcher, ok && dispatcher != nil
}
