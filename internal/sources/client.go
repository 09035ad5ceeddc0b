package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"clinicreport/internal/config"
)

// Client fetches report data from the CRM API.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type reportPage struct {
	Items      []map[string]any `json:"items"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

func NewClient(cfg config.Config) *Client {
	rps := cfg.CRMRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CRMTimeoutMs) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) FetchLeads(ctx context.Context, start, end string) ([]map[string]any, error) {
	return c.fetchReport(ctx, "reports/leads", start, end)
}

func (c *Client) FetchAppointments(ctx context.Context, start, end string) ([]map[string]any, error) {
	return c.fetchReport(ctx, "reports/appointments", start, end)
}

func (c *Client) FetchSales(ctx context.Context, start, end string) ([]map[string]any, error) {
	return c.fetchReport(ctx, "reports/sales", start, end)
}

// FetchTables fetches the three reports for [start, end] and renames them to
// the spreadsheet vocabulary.
func (c *Client) FetchTables(ctx context.Context, start, end string) (leads, appointments, sales Table, err error) {
	rawLeads, err := c.FetchLeads(ctx, start, end)
	if err != nil {
		return Table{}, Table{}, Table{}, fmt.Errorf("fetch leads: %w", err)
	}
	rawAppts, err := c.FetchAppointments(ctx, start, end)
	if err != nil {
		return Table{}, Table{}, Table{}, fmt.Errorf("fetch appointments: %w", err)
	}
	rawSales, err := c.FetchSales(ctx, start, end)
	if err != nil {
		return Table{}, Table{}, Table{}, fmt.Errorf("fetch sales: %w", err)
	}
	return RecordsToTable("api_leads", rawLeads, LeadAPIColumns),
		RecordsToTable("api_appointments", rawAppts, AppointmentAPIColumns),
		RecordsToTable("api_sales", rawSales, SaleAPIColumns),
		nil
}

func (c *Client) fetchReport(ctx context.Context, endpoint, start, end string) ([]map[string]any, error) {
	if _, err := time.Parse("2006-01-02", start); err != nil {
		return nil, fmt.Errorf("invalid start date %q", start)
	}
	if _, err := time.Parse("2006-01-02", end); err != nil {
		return nil, fmt.Errorf("invalid end date %q", end)
	}

	all := make([]map[string]any, 0)
	for page := 1; ; page++ {
		body, err := c.fetchJSON(ctx, endpoint, map[string]string{
			"start": start,
			"end":   end,
			"page":  strconv.Itoa(page),
		})
		if err != nil {
			return nil, err
		}

		var payload reportPage
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		all = append(all, payload.Items...)

		if len(payload.Items) == 0 || payload.TotalPages <= page {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.CRMAPIToken) == "" {
		return nil, errors.New("missing CRM_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.CRMAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	attempts := c.cfg.CRMRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CRMAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < attempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				lastErr = fmt.Errorf("crm status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("crm api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("crm api unsuccessful: %s %s", apiResp.Message, string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("crm request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
