package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/qpss/middleware/internal/domain/integration"
)

// StoreService lists the stores of each configured account
type StoreService struct {
	gateways map[integration.Account]integration.OrderGateway
}

// NewStoreService creates a StoreService over the configured gateways
func NewStoreService(gateways []integration.OrderGateway) *StoreService {
	byAccount := make(map[integration.Account]integration.OrderGateway, len(gateways))
	for _, g := range gateways {
		byAccount[g.Account()] = g
	}
	return &StoreService{gateways: byAccount}
}

// ListStores returns the account's stores ordered by store ID
func (s *StoreService) ListStores(ctx context.Context, account integration.Account) ([]integration.Store, error) {
	gateway, ok := s.gateways[account]
	if !ok {
		return nil, fmt.Errorf("%s account: %w", account.Label(), integration.ErrAccountNotConfigured)
	}
	stores, err := gateway.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].StoreID < stores[j].StoreID })
	return stores, nil
}
