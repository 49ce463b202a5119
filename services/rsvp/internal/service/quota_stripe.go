package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// NewStripeClient builds a Stripe API client that retries transient failures.
// baseURL overrides the API host and is only set in tests.
func NewStripeClient(secretKey, baseURL string) *client.API {
	cfg := func() *stripe.BackendConfig {
		c := &stripe.BackendConfig{
			MaxNetworkRetries: stripe.Int64(2),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		}
		if baseURL != "" {
			c.URL = stripe.String(baseURL)
		}
		return c
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg()),
	}
	return client.New(secretKey, backends)
}

// StripeQuota reads the guest allowance from the owner's active Stripe
// subscriptions. Customers are matched on metadata owner_id; each
// subscription price (or its product) carries the allowance under metadataKey.
// Owners without a paid plan get the fallback.
type StripeQuota struct {
	api         *client.API
	metadataKey string
	fallback    int
}

func NewStripeQuota(api *client.API, metadataKey string, fallback int) *StripeQuota {
	return &StripeQuota{api: api, metadataKey: metadataKey, fallback: fallback}
}

func (q *StripeQuota) MaxGuests(ctx context.Context, ownerID uuid.UUID) (int, error) {
	metrics.QuotaLookup("stripe")

	search := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata['owner_id']:'%s'", ownerID),
			Context: ctx,
		},
	}
	customers := q.api.Customers.Search(search)

	best := 0
	for customers.Next() {
		cust := customers.Customer()
		n, err := q.customerAllowance(ctx, cust.ID)
		if err != nil {
			return 0, err
		}
		if n > best {
			best = n
		}
	}
	if err := customers.Err(); err != nil {
		return 0, fmt.Errorf("search stripe customers: %w", err)
	}

	if best == 0 {
		return q.fallback, nil
	}
	return best, nil
}

func (q *StripeQuota) customerAllowance(ctx context.Context, customerID string) (int, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.AddExpand("data.items.data.price.product")

	best := 0
	subs := q.api.Subscriptions.List(params)
	for subs.Next() {
		sub := subs.Subscription()
		if sub.Items == nil {
			continue
		}
		for _, item := range sub.Items.Data {
			if n := q.itemAllowance(item); n > best {
				best = n
			}
		}
	}
	if err := subs.Err(); err != nil {
		return 0, fmt.Errorf("list stripe subscriptions: %w", err)
	}
	return best, nil
}

func (q *StripeQuota) itemAllowance(item *stripe.SubscriptionItem) int {
	if item == nil || item.Price == nil {
		return 0
	}
	raw, ok := item.Price.Metadata[q.metadataKey]
	if !ok && item.Price.Product != nil {
		raw, ok = item.Price.Product.Metadata[q.metadataKey]
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		logger.Warn("ignoring malformed guest allowance", "price_id", item.Price.ID, "value", raw)
		return 0
	}
	return n
}
