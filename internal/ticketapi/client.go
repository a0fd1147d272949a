// Package ticketapi talks to the external ticketing systems (ITS and HO).
package ticketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/config"
	"github.com/thnhpht/ITS/internal/domain"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

// SuccessCode is the res_code.error_code of an accepted call.
const SuccessCode = "00"

// ErrNoRequestID is returned when an accepted create/update carries no id.
var ErrNoRequestID = errors.New("response has no request id")

// CallLogger receives a record of every HTTP exchange.
type CallLogger interface {
	LogCall(ctx context.Context, entry domain.APICallLog)
}

// CreateRequest is the create payload.
type CreateRequest struct {
	Subject     string   `json:"subject"`
	RequesterID int      `json:"requester_id"`
	PhoneNumber string   `json:"phone_number"`
	TemplateID  string   `json:"template_id"`
	CatID       string   `json:"cat_id"`
	SubCatID    string   `json:"sub_cat_id"`
	ItemID      string   `json:"item_id"`
	Attachments []string `json:"attachments"`
	ComplainID  string   `json:"complain_id"`
	LoginName   string   `json:"login_name"`
	Description string   `json:"description"`
}

// UpdateRequest is the update payload.
type UpdateRequest struct {
	PhoneNumber string   `json:"phone_number"`
	Attachments []string `json:"attachments"`
	Description string   `json:"description"`
}

// Template is one entry of the external template catalogue.
type Template struct {
	ID   FlexString `json:"template_id"`
	Name string     `json:"template_name"`
}

// Outcome is the parsed result of a create or update.
type Outcome struct {
	RequestID string
	Code      string
	Message   string
}

// FlexString accepts a JSON string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

type envelope struct {
	ResCode struct {
		ErrorCode string `json:"error_code"`
		ErrorDesc string `json:"error_desc"`
	} `json:"res_code"`
	Data json.RawMessage `json:"data"`
}

type requestData struct {
	Request struct {
		ID FlexString `json:"id"`
	} `json:"request"`
}

type templateData struct {
	Details []Template `json:"details"`
}

// Client calls the external APIs with a cached bearer token.
type Client struct {
	httpClient *http.Client
	cfg        config.TicketAPIConfig
	tokens     *TokenCache
	calls      CallLogger
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient builds a client. calls may be nil.
func NewClient(cfg config.TicketAPIConfig, calls CallLogger, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		tokens:     NewTokenCache(cfg.TokenTTL),
		calls:      calls,
		logger:     logger,
		now:        time.Now,
	}
}

// Tokens exposes the token cache.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

// Token returns a cached token or fetches a new one.
func (c *Client) Token(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(); ok {
		return token, nil
	}

	body, _ := json.Marshal(map[string]string{"username": c.cfg.Username, "password": c.cfg.Password})
	status, raw, err := c.do(ctx, http.MethodPost, c.cfg.TokenURL, "", body)
	if err != nil {
		return "", apperrors.NewExternalAPIError("token", status, err)
	}
	if status != http.StatusOK {
		return "", apperrors.NewExternalAPIError("token", status, fmt.Errorf("unexpected status %d", status))
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Token == "" {
		return "", apperrors.NewExternalAPIError("token", status, errors.New("no token in response"))
	}
	c.tokens.Set(payload.Token)
	c.logger.Info("external api token refreshed", zap.Time("expires_at", c.tokens.ExpiresAt()))
	return payload.Token, nil
}

// Create opens a request in the given system ("ITS" or "HO").
func (c *Client) Create(ctx context.Context, system string, req CreateRequest) (Outcome, error) {
	if req.RequesterID == 0 {
		req.RequesterID = c.cfg.RequesterID
	}
	if req.LoginName == "" {
		req.LoginName = c.cfg.LoginName
	}
	if req.Attachments == nil {
		req.Attachments = []string{}
	}
	path := c.cfg.HOCreatePath
	if system == domain.APIITS {
		path = c.cfg.ITSCreatePath
	}
	return c.send(ctx, "create", http.MethodPost, path, req)
}

// Update appends to an existing request identified by refID.
func (c *Client) Update(ctx context.Context, system, refID string, req UpdateRequest) (Outcome, error) {
	if req.Attachments == nil {
		req.Attachments = []string{}
	}
	path := c.cfg.HOUpdatePath
	if system == domain.APIITS {
		path = c.cfg.ITSUpdatePath
	}
	return c.send(ctx, "update", http.MethodPut, path+url.PathEscape(refID), req)
}

// Templates lists the template catalogue of a system.
func (c *Client) Templates(ctx context.Context, system string) ([]Template, error) {
	path := c.cfg.HOTemplatePath
	if system == domain.APIITS {
		path = c.cfg.ITSTemplatePath
	}
	env, status, err := c.call(ctx, "templates", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if env.ResCode.ErrorCode != SuccessCode {
		return nil, apperrors.NewExternalAPIError("templates", status, fmt.Errorf("error code %q", env.ResCode.ErrorCode))
	}
	var data templateData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, apperrors.NewExternalAPIError("templates", status, err)
		}
	}
	return data.Details, nil
}

// FindTemplateID returns the id of the first template whose name starts with prefix.
func FindTemplateID(templates []Template, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	for _, t := range templates {
		if strings.HasPrefix(t.Name, prefix) {
			return string(t.ID), true
		}
	}
	return "", false
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any) (Outcome, error) {
	env, status, err := c.call(ctx, op, method, path, payload)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Code: env.ResCode.ErrorCode, Message: env.ResCode.ErrorDesc}
	if out.Code != SuccessCode {
		return out, apperrors.NewExternalAPIError(op, status, fmt.Errorf("error code %q: %s", out.Code, out.Message))
	}
	var data requestData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return out, apperrors.NewExternalAPIError(op, status, err)
		}
	}
	out.RequestID = string(data.Request.ID)
	if out.RequestID == "" {
		return out, apperrors.NewExternalAPIError(op, status, ErrNoRequestID)
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, payload any) (envelope, int, error) {
	var env envelope
	token, err := c.Token(ctx)
	if err != nil {
		return env, 0, err
	}

	var body []byte
	if payload != nil {
		if body, err = json.Marshal(payload); err != nil {
			return env, 0, apperrors.NewMalformedInput("encode request", map[string]any{"error": err.Error()})
		}
	}

	status, raw, err := c.do(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, token, body)
	if err != nil {
		return env, status, apperrors.NewExternalAPIError(op, status, err)
	}
	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, status, apperrors.NewExternalAPIError(op, status, fmt.Errorf("decode response: %w", err))
	}
	return env, status, nil
}

func (c *Client) do(ctx context.Context, method, target, token string, body []byte) (int, []byte, error) {
	entry := domain.APICallLog{
		RequestBody: string(body),
		RequestDate: c.now().Format(time.DateTime),
	}
	if u, err := url.Parse(target); err == nil {
		entry.Host, entry.Path = u.Host, u.Path
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	entry.RequestHeader = headerSummary(req.Header)

	resp, err := c.httpClient.Do(req)
	entry.ResponseDate = c.now().Format(time.DateTime)
	if err != nil {
		entry.Response = err.Error()
		c.logCall(ctx, entry)
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	entry.StatusCode = resp.StatusCode
	entry.Response = string(raw)
	c.logCall(ctx, entry)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) logCall(ctx context.Context, entry domain.APICallLog) {
	if c.calls != nil {
		c.calls.LogCall(ctx, entry)
	}
}

// headerSummary renders headers for the call log without the bearer secret.
func headerSummary(h http.Header) string {
	out := make(map[string]string, len(h))
	for k := range h {
		v := h.Get(k)
		if k == "Authorization" {
			v = "Bearer ***"
		}
		out[k] = v
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// AttachmentURLs maps stored file names to download URLs for a ticket.
func AttachmentURLs(fileHost, ticketID, attachments string) []string {
	out := []string{}
	for _, name := range strings.Split(attachments, ";") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, strings.TrimRight(fileHost, "/")+"/"+ticketID+"/"+name)
		}
	}
	return out
}
