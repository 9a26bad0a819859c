package common

import "context"

// Gateway abstracts order entry on a trading venue.
type Gateway interface {
	PlaceOrder(ctx context.Context, contract Contract, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, contract Contract, orderID int64) (OrderResult, error)
	GetOrderStatus(ctx context.Context, contract Contract, orderID int64) (OrderResult, error)
}
