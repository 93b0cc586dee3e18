// Package bakong implements the SettlementOracle output port against the
// Bakong open API's transaction lookup endpoint.
package bakong

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/khqrpos/pos-gateway/internal/port/output"
)

const checkPath = "/v1/check_transaction_by_md5"

// Response codes from the lookup endpoint: 0 means the transaction was
// found (settled), 1 means it was not found (not settled yet).
const (
	responseCodeFound    = 0
	responseCodeNotFound = 1
)

// Client queries the Bakong network for settlement of a fingerprint.
// Queries are read-only and idempotent; the same fingerprint can be asked
// about any number of times.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Bakong lookup client. Every call is bounded by the
// given timeout; a slow network degrades to VerdictUnknown, never a stall.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var _ output.SettlementOracle = (*Client)(nil)

// Enabled reports whether a lookup token is configured
func (c *Client) Enabled() bool {
	return c.token != ""
}

type checkRequest struct {
	MD5 string `json:"md5"`
}

type checkResponse struct {
	ResponseCode    int    `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	ErrorCode       *int   `json:"errorCode"`
	Data            *struct {
		Hash   string `json:"hash"`
		Status string `json:"status"`
	} `json:"data"`
}

// CheckSettlement asks the network whether the fingerprint has been paid.
// Transport failures, timeouts, auth problems and unparseable bodies all
// collapse to VerdictUnknown: the caller keeps reporting PENDING and the
// verdict counter makes the outage visible.
func (c *Client) CheckSettlement(fingerprint string) output.Verdict {
	body, err := json.Marshal(checkRequest{MD5: fingerprint})
	if err != nil {
		return output.VerdictUnknown
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+checkPath, bytes.NewReader(body))
	if err != nil {
		return output.VerdictUnknown
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("settlement lookup failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		return output.VerdictUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("settlement lookup returned unexpected status",
			zap.String("fingerprint", fingerprint),
			zap.Int("status_code", resp.StatusCode),
		)
		return output.VerdictUnknown
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("settlement lookup returned malformed body", zap.Error(err))
		return output.VerdictUnknown
	}

	switch parsed.ResponseCode {
	case responseCodeFound:
		// A found transaction can still carry an explicit failed status.
		if parsed.Data != nil && parsed.Data.Status == "FAILED" {
			return output.VerdictDeclined
		}
		return output.VerdictSettled
	case responseCodeNotFound:
		return output.VerdictNotSettled
	default:
		c.logger.Warn("settlement lookup returned unknown response code",
			zap.Int("response_code", parsed.ResponseCode),
			zap.String("message", parsed.ResponseMessage),
		)
		return output.VerdictUnknown
	}
}
