package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/retry"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const (
	defaultMondayEndpoint = "https://api.monday.com/v2"
	defaultMondayTimeout  = 25 * time.Second
)

// Columns are the board column ids. Unset columns are never written.
type Columns struct {
	Dedupe          string
	LastMessageID   string
	Phone           string
	Stage           string
	Vehicle         string
	Payment         string
	Appointment     string
	AppointmentTime string
}

// MondayConfig configures the monday.com board client.
type MondayConfig struct {
	APIKey            string
	Endpoint          string
	BoardID           string
	Columns           Columns
	Timeout           time.Duration
	RequestsPerSecond float64
	Location          *time.Location
}

// HTTPStatusError is a non-200 answer from the API.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("monday API returned %d: %s", e.Status, e.Body)
}

// APIError carries GraphQL-level errors from a 200 response.
type APIError struct {
	Messages []string
}

func (e *APIError) Error() string {
	return "monday API error: " + strings.Join(e.Messages, "; ")
}

// MondayClient talks to a monday.com board over GraphQL.
type MondayClient struct {
	cfg        MondayConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	tracer     trace.Tracer
	logger     *logging.Logger
	now        func() time.Time

	groupMu sync.Mutex
	groups  map[string]string
}

// MondayOption customizes a MondayClient.
type MondayOption func(*MondayClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) MondayOption {
	return func(m *MondayClient) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithRetryPolicy replaces the 3-attempt exponential policy.
func WithRetryPolicy(p retry.Policy) MondayOption {
	return func(m *MondayClient) { m.policy = p }
}

// WithClock sets the clock used to pick the month group.
func WithClock(now func() time.Time) MondayOption {
	return func(m *MondayClient) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMondayClient(cfg MondayConfig, logger *logging.Logger, opts ...MondayOption) *MondayClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultMondayEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMondayTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	m := &MondayClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		policy:     retry.ExponentialPolicy(3, 2*time.Second, 2, 0),
		tracer:     otel.Tracer("dealer.internal.crm.monday"),
		logger:     logger,
		now:        time.Now,
		groups:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MondayClient) FindByPhone(ctx context.Context, phone string) (*Item, error) {
	if phone == "" || m.cfg.Columns.Dedupe == "" {
		return nil, nil
	}
	query := `query ($board_id: ID!, $col_id: String!, $val: String!) {
		items_page_by_column_values(limit: 10, board_id: $board_id, columns: [{column_id: $col_id, column_values: [$val]}]) {
			items { id name column_values { id text } }
		}
	}`
	var resp struct {
		ItemsPage struct {
			Items []struct {
				ID           string `json:"id"`
				Name         string `json:"name"`
				ColumnValues []struct {
					ID   string `json:"id"`
					Text string `json:"text"`
				} `json:"column_values"`
			} `json:"items"`
		} `json:"items_page_by_column_values"`
	}
	vars := map[string]any{"board_id": m.cfg.BoardID, "col_id": m.cfg.Columns.Dedupe, "val": phone}
	if err := m.do(ctx, "find_by_phone", query, vars, &resp); err != nil {
		return nil, err
	}

	var best *Item
	bestID := int64(-1)
	for _, it := range resp.ItemsPage.Items {
		id, _ := strconv.ParseInt(it.ID, 10, 64)
		if id <= bestID {
			continue
		}
		bestID = id
		best = &Item{ID: it.ID, Name: it.Name}
		for _, col := range it.ColumnValues {
			if m.cfg.Columns.Stage != "" && col.ID == m.cfg.Columns.Stage {
				best.Stage = leads.ParseStage(col.Text)
			}
		}
	}
	return best, nil
}

func (m *MondayClient) CreateItem(ctx context.Context, name string, fields Fields) (string, error) {
	vals, err := json.Marshal(m.columnValues(fields))
	if err != nil {
		return "", fmt.Errorf("crm: marshal column values: %w", err)
	}
	vars := map[string]any{"board_id": m.cfg.BoardID, "name": name, "vals": string(vals)}
	query := `mutation ($board_id: ID!, $name: String!, $vals: JSON!) {
		create_item (board_id: $board_id, item_name: $name, column_values: $vals) { id }
	}`

	groupName := MonthGroupName(m.now().In(m.cfg.Location))
	groupID, err := m.groupID(ctx, groupName)
	if err != nil {
		m.logger.Warn("crm month group lookup failed", "error", err, "group", groupName)
	}
	if groupID != "" {
		vars["group_id"] = groupID
		query = `mutation ($board_id: ID!, $group_id: String!, $name: String!, $vals: JSON!) {
		create_item (board_id: $board_id, group_id: $group_id, item_name: $name, column_values: $vals) { id }
	}`
	}

	var resp struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	if err := m.do(ctx, "create_item", query, vars, &resp); err != nil {
		return "", err
	}
	if resp.CreateItem.ID == "" {
		return "", errors.New("crm: create_item returned no id")
	}
	return resp.CreateItem.ID, nil
}

func (m *MondayClient) UpdateColumns(ctx context.Context, itemID string, fields Fields) error {
	cols := m.columnValues(fields)
	if len(cols) == 0 {
		return nil
	}
	vals, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("crm: marshal column values: %w", err)
	}
	query := `mutation ($item_id: ID!, $board_id: ID!, $vals: JSON!) {
		change_multiple_column_values (item_id: $item_id, board_id: $board_id, column_values: $vals) { id }
	}`
	vars := map[string]any{"item_id": itemID, "board_id": m.cfg.BoardID, "vals": string(vals)}
	return m.do(ctx, "update_columns", query, vars, nil)
}

func (m *MondayClient) Rename(ctx context.Context, itemID, name string) error {
	query := `mutation ($board_id: ID!, $item_id: ID!, $col_id: String!, $value: String!) {
		change_simple_column_value (board_id: $board_id, item_id: $item_id, column_id: $col_id, value: $value) { id }
	}`
	vars := map[string]any{"board_id": m.cfg.BoardID, "item_id": itemID, "col_id": "name", "value": name}
	return m.do(ctx, "rename_item", query, vars, nil)
}

func (m *MondayClient) AppendNote(ctx context.Context, itemID, body string) error {
	query := `mutation ($item_id: ID!, $body: String!) {
		create_update (item_id: $item_id, body: $body) { id }
	}`
	return m.do(ctx, "append_note", query, map[string]any{"item_id": itemID, "body": body}, nil)
}

func (m *MondayClient) groupID(ctx context.Context, name string) (string, error) {
	m.groupMu.Lock()
	id, ok := m.groups[name]
	m.groupMu.Unlock()
	if ok {
		return id, nil
	}

	query := `query ($board_id: ID!) { boards(ids: [$board_id]) { groups { id title } } }`
	var resp struct {
		Boards []struct {
			Groups []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"groups"`
		} `json:"boards"`
	}
	if err := m.do(ctx, "find_group", query, map[string]any{"board_id": m.cfg.BoardID}, &resp); err != nil {
		return "", err
	}
	if len(resp.Boards) == 0 {
		return "", nil
	}
	for _, g := range resp.Boards[0].Groups {
		if strings.EqualFold(strings.TrimSpace(g.Title), name) {
			m.groupMu.Lock()
			m.groups[name] = g.ID
			m.groupMu.Unlock()
			return g.ID, nil
		}
	}
	m.logger.Warn("crm month group not found on board", "group", name)
	return "", nil
}

func (m *MondayClient) columnValues(f Fields) map[string]any {
	c := m.cfg.Columns
	vals := make(map[string]any)
	put := func(col string, v any) {
		if col != "" {
			vals[col] = v
		}
	}
	if f.DedupePhone != "" {
		put(c.Dedupe, f.DedupePhone)
	}
	if f.LastMessageID != "" {
		put(c.LastMessageID, f.LastMessageID)
	}
	if f.Phone != "" {
		put(c.Phone, map[string]string{"phone": f.Phone, "countryShortName": "MX"})
	}
	if f.Stage != "" {
		put(c.Stage, map[string]string{"label": string(f.Stage)})
	}
	if f.Vehicle != "" {
		put(c.Vehicle, map[string][]string{"labels": {f.Vehicle}})
	}
	if f.Payment != "" {
		put(c.Payment, map[string]string{"label": f.Payment})
	}
	if f.AppointmentDate != "" {
		date := map[string]string{"date": f.AppointmentDate}
		if f.AppointmentTime != "" {
			if c.AppointmentTime != "" {
				if hour, minute, ok := splitClock(f.AppointmentTime); ok {
					put(c.AppointmentTime, map[string]int{"hour": hour, "minute": minute})
				}
			} else {
				date["time"] = f.AppointmentTime
			}
		}
		put(c.Appointment, date)
	}
	return vals
}

func splitClock(v string) (int, int, bool) {
	parts := strings.Split(v, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return h, mm, true
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (m *MondayClient) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	ctx, span := m.tracer.Start(ctx, "crm.monday."+op, trace.WithAttributes(attribute.String("crm.board_id", m.cfg.BoardID)))
	defer span.End()

	if m.cfg.APIKey == "" {
		return errors.New("crm: monday API key not configured")
	}
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("crm: marshal request: %w", err)
	}

	policy := m.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		m.logger.Warn("crm request retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
	}
	data, err := retry.Do(ctx, policy, isRetriable, func(ctx context.Context, attempt int) (json.RawMessage, error) {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return m.post(ctx, body)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "monday request failed")
		return fmt.Errorf("crm: %s: %w", op, err)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("crm: %s: decode data: %w", op, err)
	}
	return nil
}

func (m *MondayClient) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", m.cfg.APIKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{Status: resp.StatusCode, Body: string(respBody[:min(200, len(respBody))])}
	}

	var gr graphqlResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(gr.Errors) > 0 {
		apiErr := &APIError{}
		for _, e := range gr.Errors {
			apiErr.Messages = append(apiErr.Messages, e.Message)
		}
		return nil, apiErr
	}
	return gr.Data, nil
}

// isRetriable covers rate limiting, server errors and timeouts.
func isRetriable(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
