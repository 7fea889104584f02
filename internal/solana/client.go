package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmelnik/solscope/internal/httputil"
)

// Client is a minimal JSON-RPC client for the node endpoints this service
// needs: signature listing and full transaction fetch. All calls go through
// a shared rate limiter so history backfills don't trip node throttling.
type Client struct {
	endpoint   string
	httpClient *http.Client
	retry      httputil.RetryConfig
	limiter    *rate.Limiter
	pageSize   int
}

type ClientOptions struct {
	RateLimitRPS int // requests per second, default 8
	PageSize     int // signatures per page, default 200
}

func NewClient(endpoint string, opts ClientOptions) *Client {
	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = 8
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 200
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   2 * time.Second,
			MaxDelay:    20 * time.Second,
		},
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		pageSize: pageSize,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("%s decode: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, rr.Error.Code, rr.Error.Message)
	}
	if out != nil && rr.Result != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("%s result: %w", method, err)
		}
	}
	return nil
}

// GetSignatures pages backwards through the wallet's signature history until
// maxTotal signatures are collected or history is exhausted.
func (c *Client) GetSignatures(ctx context.Context, address string, maxTotal int) ([]SignatureInfo, error) {
	var all []SignatureInfo
	before := ""

	for len(all) < maxTotal {
		limit := c.pageSize
		if remaining := maxTotal - len(all); remaining < limit {
			limit = remaining
		}

		opts := map[string]any{"limit": limit}
		if before != "" {
			opts["before"] = before
		}

		var page []SignatureInfo
		if err := c.call(ctx, "getSignaturesForAddress", []any{address, opts}, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		before = page[len(page)-1].Signature

		if len(page) < limit {
			break
		}
	}

	fmt.Printf("[RPC] Fetched %d signatures for %s\n", len(all), shortAddr(address))
	return all, nil
}

type txResult struct {
	Slot        uint64 `json:"slot"`
	BlockTime   *int64 `json:"blockTime"`
	Meta        *TxMeta `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// GetTransaction fetches one confirmed transaction with balance meta.
// A nil result (pruned or unknown signature) is returned as (nil, nil).
func (c *Client) GetTransaction(ctx context.Context, signature string) (*RawTransaction, error) {
	params := []any{signature, map[string]any{
		"encoding":                       "json",
		"commitment":                     "confirmed",
		"maxSupportedTransactionVersion": 0,
	}}

	var res *txResult
	if err := c.call(ctx, "getTransaction", params, &res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	return &RawTransaction{
		Signature:   signature,
		Slot:        res.Slot,
		BlockTime:   res.BlockTime,
		AccountKeys: res.Transaction.Message.AccountKeys,
		Meta:        res.Meta,
	}, nil
}

// GetTransactions fetches each signature in order, skipping ones the node no
// longer has. Order of the input is preserved in the output.
func (c *Client) GetTransactions(ctx context.Context, sigs []SignatureInfo) ([]*RawTransaction, error) {
	txs := make([]*RawTransaction, 0, len(sigs))
	missing := 0

	for _, s := range sigs {
		tx, err := c.GetTransaction(ctx, s.Signature)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", s.Signature, err)
		}
		if tx == nil {
			missing++
			continue
		}
		// getTransaction can omit blockTime; fall back to the signature listing.
		if tx.BlockTime == nil {
			tx.BlockTime = s.BlockTime
		}
		txs = append(txs, tx)
	}

	if missing > 0 {
		fmt.Printf("[RPC] %d of %d transactions unavailable on this node\n", missing, len(sigs))
	}
	return txs, nil
}

func shortAddr(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
