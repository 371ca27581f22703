// Package rpctransport wraps the Ethereum JSON-RPC client with the
// bounded retry policy spec.md §5 requires of every provider RPC: max
// retries = 5, initial backoff 200ms, exponential with rate-limit
// awareness.
package rpctransport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

const (
	maxRetries     = 5
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// Dial connects to url through an *http.Client whose transport retries
// transient failures (connection errors, 5xx, 429) with bounded
// exponential backoff before the request ever reaches rpc.Client.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = maxRetries
	retryClient.RetryWaitMin = initialBackoff
	retryClient.RetryWaitMax = maxBackoff
	retryClient.Logger = nil

	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(retryClient.StandardClient()))
	if err != nil {
		return nil, errors.Wrap(err, "rpctransport: dial")
	}
	return ethclient.NewClient(rpcClient), nil
}

// WithRetry retries fn with the same bounded exponential backoff
// policy, for application-level operations above the HTTP layer (a
// transaction send racing a nonce, a settle() call racing a reorg).
// Retry stops after maxRetries retries (maxRetries+1 calls of fn in
// all) or when ctx is cancelled.
func WithRetry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
	return backoff.Retry(fn, policy)
}
