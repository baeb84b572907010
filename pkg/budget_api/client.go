package budget_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
	log "github.com/sirupsen/logrus"
)

// maxErrorBody caps how much of a failed response body is kept on StatusError.
const maxErrorBody = 4096

// Client is the backend collaborator holding budget records and reference lists.
type Client interface {
	// GET /GetAllBudget
	ListBudgets(ctx context.Context) ([]budget.View, error)
	// GET /GetAllProjects
	ListProjects(ctx context.Context) ([]reference.Item, error)
	// GET /GetAllEmployees
	ListEmployees(ctx context.Context) ([]reference.Item, error)
	// GET /GetAllMonths
	ListMonths(ctx context.Context) ([]reference.Item, error)
	// GET /GetAllStatus
	ListStatuses(ctx context.Context) ([]reference.Item, error)
	// POST /AddBudget, answers the created record with its assigned id
	AddBudget(ctx context.Context, record budget.Record) (budget.Record, error)
	// DELETE /DeleteBudget/{id}
	DeleteBudget(ctx context.Context, id budget.PlanId) error
	// POST /BulkDelete, atomic on the backend
	BulkDelete(ctx context.Context, ids []budget.PlanId) error
	// POST /BulkUpsert
	BulkUpsert(ctx context.Context, records []budget.Record) error
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type ClientImpl struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *ClientImpl {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client) *ClientImpl {
	return &ClientImpl{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *ClientImpl) ListBudgets(ctx context.Context) ([]budget.View, error) {
	var dtos []budget.ViewDTO
	if err := c.do(ctx, http.MethodGet, "/GetAllBudget", nil, &dtos); err != nil {
		return nil, err
	}
	views := make([]budget.View, 0, len(dtos))
	for _, dto := range dtos {
		views = append(views, budget.DTOToView(dto))
	}
	return views, nil
}

func (c *ClientImpl) ListProjects(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(ctx, "/GetAllProjects")
}

func (c *ClientImpl) ListEmployees(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(ctx, "/GetAllEmployees")
}

func (c *ClientImpl) ListMonths(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(ctx, "/GetAllMonths")
}

func (c *ClientImpl) ListStatuses(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(ctx, "/GetAllStatus")
}

func (c *ClientImpl) AddBudget(ctx context.Context, record budget.Record) (budget.Record, error) {
	var created budget.RecordDTO
	if err := c.do(ctx, http.MethodPost, "/AddBudget", budget.RecordToDTO(record), &created); err != nil {
		return budget.Record{}, err
	}
	return budget.DTOToRecord(created), nil
}

func (c *ClientImpl) DeleteBudget(ctx context.Context, id budget.PlanId) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/DeleteBudget/%d", id), nil, nil)
}

func (c *ClientImpl) BulkDelete(ctx context.Context, ids []budget.PlanId) error {
	body := make([]int, 0, len(ids))
	for _, id := range ids {
		body = append(body, int(id))
	}
	return c.do(ctx, http.MethodPost, "/BulkDelete", body, nil)
}

func (c *ClientImpl) BulkUpsert(ctx context.Context, records []budget.Record) error {
	body := make([]budget.RecordDTO, 0, len(records))
	for _, record := range records {
		body = append(body, budget.RecordToDTO(record))
	}
	return c.do(ctx, http.MethodPost, "/BulkUpsert", body, nil)
}

func (c *ClientImpl) listItems(ctx context.Context, path string) ([]reference.Item, error) {
	var dtos []budget.ReferenceItemDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, err
	}
	items := make([]reference.Item, 0, len(dtos))
	for _, dto := range dtos {
		items = append(items, budget.DTOToItem(dto))
	}
	return items, nil
}

// do sends one request. A nil out discards the response body; the contract allows
// mutation endpoints to answer with a status only.
func (c *ClientImpl) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Errorf("Failed to execute %s %s: %v", method, path, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		log.Error(err)
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Errorf("Failed to decode %s %s response: %v", method, path, err)
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
