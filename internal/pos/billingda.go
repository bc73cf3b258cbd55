package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aquamarinepk/aqm"
)

const minInvoiceBytes = 128

// BillingDataAccess talks to the billing service.
type BillingDataAccess struct {
	httpClient *http.Client
	baseURL    string
	sessions   *SessionStore
	logger     aqm.Logger
}

func NewBillingDataAccess(baseURL string, sessions *SessionStore, logger aqm.Logger) *BillingDataAccess {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &BillingDataAccess{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:  baseURL,
		sessions: sessions,
		logger:   logger,
	}
}

func (da *BillingDataAccess) GenerateOrderBill(ctx context.Context, orderID, customerID string) (*Bill, error) {
	if orderID == "" {
		return nil, fmt.Errorf("missing order id")
	}

	path := fmt.Sprintf("/billing/generate/%s", orderID)
	body, err := da.do(ctx, http.MethodPost, path, billRequest{CustomerID: customerID}, "generate bill")
	if err != nil {
		return nil, err
	}

	var bill Bill
	if err := decodeEnvelope(body, &bill); err != nil {
		return nil, fmt.Errorf("decode bill: %w", err)
	}
	return &bill, nil
}

func (da *BillingDataAccess) GenerateTableBill(ctx context.Context, tableID, customerID string) (*Bill, error) {
	if tableID == "" {
		return nil, fmt.Errorf("missing table id")
	}

	path := fmt.Sprintf("/billing/generate/table/%s", tableID)
	body, err := da.do(ctx, http.MethodPost, path, billRequest{CustomerID: customerID}, "generate combined bill")
	if err != nil {
		return nil, err
	}

	var bill Bill
	if err := decodeEnvelope(body, &bill); err != nil {
		return nil, fmt.Errorf("decode bill: %w", err)
	}
	return &bill, nil
}

func (da *BillingDataAccess) GetBillItems(ctx context.Context, billID string) (*BillItemsView, error) {
	if billID == "" {
		return nil, fmt.Errorf("missing bill id")
	}

	path := fmt.Sprintf("/billing/%s/items", billID)
	body, err := da.do(ctx, http.MethodGet, path, nil, "fetch bill items")
	if err != nil {
		return nil, err
	}

	var view BillItemsView
	if err := decodeEnvelope(body, &view); err != nil {
		return nil, fmt.Errorf("decode bill items: %w", err)
	}
	return &view, nil
}

// DownloadInvoice fetches the rendered invoice. The service sometimes ships
// error payloads inside the same binary envelope, so the payload is sniffed
// before it is treated as a document; anything that is not a PDF is decoded
// as text to recover the message.
func (da *BillingDataAccess) DownloadInvoice(ctx context.Context, billID string) ([]byte, error) {
	if billID == "" {
		return nil, fmt.Errorf("missing bill id")
	}

	path := fmt.Sprintf("/billing/download/%s", billID)
	body, err := da.do(ctx, http.MethodGet, path, nil, "download invoice")
	if err != nil {
		return nil, err
	}

	if isPDF(body) {
		return body, nil
	}

	if msg := recoverErrorText(body); msg != "" {
		return nil, &ConflictError{Message: msg}
	}
	return nil, fmt.Errorf("invoice download returned an unreadable payload (%d bytes)", len(body))
}

func isPDF(payload []byte) bool {
	return len(payload) >= minInvoiceBytes && bytes.HasPrefix(payload, []byte("%PDF-"))
}

func recoverErrorText(payload []byte) string {
	if msg := extractMessage(payload); msg != "" {
		return msg
	}

	text := strings.TrimSpace(string(payload))
	if text == "" || !isMostlyPrintable(text) {
		return ""
	}
	if runes := []rune(text); len(runes) > 200 {
		text = string(runes[:200])
	}
	return text
}

// isMostlyPrintable decides rune by rune so non-ASCII messages survive;
// invalid encoding counts against the payload.
func isMostlyPrintable(s string) bool {
	printable, total := 0, 0
	for _, r := range s {
		total++
		if r == utf8.RuneError {
			continue
		}
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			printable++
		}
	}
	return total > 0 && printable*10 >= total*9
}

type billRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
}

func (da *BillingDataAccess) do(ctx context.Context, method, path string, payload interface{}, operation string) ([]byte, error) {
	if da == nil || da.baseURL == "" {
		return nil, fmt.Errorf("billing client not configured")
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, da.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := da.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mapped := errorFromStatus(operation, resp.StatusCode, body)
		if IsAuthError(mapped) && da.sessions != nil {
			da.sessions.Invalidate("unauthorized")
		}
		da.logger.Debug("billing service rejected request", "operation", operation, "status", resp.StatusCode)
		return nil, mapped
	}

	return body, nil
}
