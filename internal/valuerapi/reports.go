package valuerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Report is the backend's top-level report resource. Data carries the
// persisted wizard draft keyed by step name.
type Report struct {
	ID              string                    `json:"id"`
	ReferenceNumber string                    `json:"reference_number,omitempty"`
	Purpose         string                    `json:"purpose,omitempty"`
	ClientName      string                    `json:"client_name,omitempty"`
	InspectionDate  string                    `json:"inspection_date,omitempty"`
	ValuationDate   string                    `json:"valuation_date,omitempty"`
	Currency        string                    `json:"currency,omitempty"`
	Status          string                    `json:"status,omitempty"`
	Data            map[string]map[string]any `json:"data,omitempty"`
}

// Property bridges identification-step data into a backend property record.
type Property struct {
	ID             string         `json:"id,omitempty"`
	ReportID       string         `json:"report_id,omitempty"`
	PropertyType   string         `json:"property_type"`
	Identification map[string]any `json:"identification,omitempty"`
	Location       map[string]any `json:"location,omitempty"`
}

// File is an uploaded document attached to a report.
type File struct {
	ID          string `json:"id"`
	ReportID    string `json:"report_id,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	URL         string `json:"url,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// OCRResult is a stored analysis run for an uploaded file. Analysis is
// kept raw: its shape is the merger's problem, not the client's.
type OCRResult struct {
	ID       string          `json:"id"`
	ReportID string          `json:"report_id,omitempty"`
	FileID   string          `json:"file_id,omitempty"`
	RawText  string          `json:"raw_text,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
}

// ValuationSummary is the upserted valuation block.
type ValuationSummary struct {
	MarketValue      float64 `json:"market_value"`
	MarketValueWords string  `json:"market_value_words,omitempty"`
	ForcedSaleValue  float64 `json:"forced_sale_value,omitempty"`
}

// CreateReport creates a report from defaulted top-level fields and
// returns the backend-assigned resource.
func (c *Client) CreateReport(ctx context.Context, fields map[string]any) (Report, error) {
	var report Report
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/reports", fields, &report); err != nil {
		return Report{}, err
	}
	if report.ID == "" {
		return Report{}, fmt.Errorf("create report: backend returned no id")
	}
	return report, nil
}

func (c *Client) GetReport(ctx context.Context, id string) (Report, error) {
	var report Report
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(id), nil, &report)
	return report, err
}

func (c *Client) UpdateReport(ctx context.Context, id string, fields map[string]any) error {
	return c.doJSON(ctx, http.MethodPut, "/api/v1/reports/"+url.PathEscape(id), fields, nil)
}

func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/reports/"+url.PathEscape(id), nil, nil)
}

// ListProperties returns the report's property records; absence is an
// empty slice, not an error.
func (c *Client) ListProperties(ctx context.Context, reportID string) ([]Property, error) {
	var out []Property
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(reportID)+"/properties", nil, &out)
	return out, err
}

func (c *Client) ListFiles(ctx context.Context, reportID string) ([]File, error) {
	var out []File
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(reportID)+"/files", nil, &out)
	return out, err
}

func (c *Client) ListOCRResults(ctx context.Context, reportID string) ([]OCRResult, error) {
	var out []OCRResult
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(reportID)+"/ocr-results", nil, &out)
	return out, err
}

func (c *Client) CreateProperty(ctx context.Context, reportID string, p Property) (Property, error) {
	var out Property
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/reports/"+url.PathEscape(reportID)+"/properties", p, &out)
	return out, err
}

func (c *Client) CreateValuationSummary(ctx context.Context, reportID string, s ValuationSummary) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/reports/"+url.PathEscape(reportID)+"/valuation-summary", s, nil)
}

// ExportPDF downloads the backend-rendered PDF for a report.
func (c *Client) ExportPDF(ctx context.Context, reportID string) ([]byte, error) {
	return c.doBlob(ctx, "/api/v1/reports/"+url.PathEscape(reportID)+"/export?format=pdf")
}

// ExportDOCX downloads the backend-rendered DOCX for a report.
func (c *Client) ExportDOCX(ctx context.Context, reportID string) ([]byte, error) {
	return c.doBlob(ctx, "/api/v1/reports/"+url.PathEscape(reportID)+"/export?format=docx")
}
