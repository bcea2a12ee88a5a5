package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
)

const (
	// DefaultPipedreamBaseURL is the public Connect API endpoint.
	DefaultPipedreamBaseURL = "https://api.pipedream.com"

	defaultTimeout   = 30 * time.Second
	actionsPageSize  = 100
	maxActionsPages  = 20
	authProvisionKey = "authProvisionId"
)

// PipedreamConfig configures a PipedreamClient.
type PipedreamConfig struct {
	BaseURL      string
	ProjectID    string
	Environment  string // "development" or "production"
	ClientID     string // empty disables OAuth (tests, local proxies)
	ClientSecret string
	Timeout      time.Duration
	Logger       *zap.Logger
}

// PipedreamClient implements Client against the Pipedream Connect REST API.
type PipedreamClient struct {
	http      *resty.Client
	projectID string
	logger    *zap.Logger
}

var _ Client = (*PipedreamClient)(nil)

// NewPipedreamClient creates a client. When ClientID is set, requests are
// authorized with client-credentials tokens from the registry's token endpoint.
func NewPipedreamClient(cfg PipedreamConfig) *PipedreamClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultPipedreamBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var hc *resty.Client
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/v1/oauth/token",
		}
		hc = resty.NewWithClient(cc.Client(context.Background()))
	} else {
		hc = resty.New()
	}
	hc.SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Environment != "" {
		hc.SetHeader("x-pd-environment", cfg.Environment)
	}

	return &PipedreamClient{
		http:      hc,
		projectID: cfg.ProjectID,
		logger:    logger,
	}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *PipedreamClient) path(suffix string) string {
	return "/v1/connect/" + url.PathEscape(c.projectID) + suffix
}

func (c *PipedreamClient) do(ctx context.Context, method, path string, query map[string]string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&apiError{})
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errs.Upstream(fmt.Errorf("pipedream %s %s: %w", method, path, err))
	}
	if resp.IsError() {
		c.logger.Warn("component registry returned an error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
		)
		return errs.Upstreamf("%s", upstreamMessage(resp))
	}
	return nil
}

func upstreamMessage(resp *resty.Response) string {
	if e, ok := resp.Error().(*apiError); ok && e != nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	body := strings.TrimSpace(resp.String())
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Sprintf("component registry returned status %d: %s", resp.StatusCode(), body)
}

func (c *PipedreamClient) GetComponent(ctx context.Context, componentID string) (*Component, error) {
	var out struct {
		Data Component `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.path("/components/"+url.PathEscape(componentID)), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Data.Key == "" {
		out.Data.Key = componentID
	}
	return &out.Data, nil
}

func (c *PipedreamClient) FetchRemoteOptions(ctx context.Context, req OptionsRequest) ([]props.Option, error) {
	body := map[string]any{
		"external_user_id": req.Account.ExternalUserID,
		"id":               req.ComponentID,
		"prop_name":        req.PropName,
		"configured_props": nonNil(req.ConfiguredProps),
	}
	var out struct {
		Options       []json.RawMessage `json:"options"`
		StringOptions []string          `json:"string_options"`
		Errors        []string          `json:"errors"`
	}
	if err := c.do(ctx, http.MethodPost, c.path("/components/configure"), nil, body, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, errs.Upstreamf("%s", strings.Join(out.Errors, "; "))
	}

	opts := make([]props.Option, 0, len(out.Options)+len(out.StringOptions))
	for _, raw := range out.Options {
		opt, err := parseOption(raw)
		if err != nil {
			return nil, errs.Upstream(fmt.Errorf("FetchRemoteOptions: %w", err))
		}
		opts = append(opts, opt)
	}
	for _, s := range out.StringOptions {
		opts = append(opts, props.Option{Label: s, Value: s})
	}
	return opts, nil
}

// parseOption accepts both {label, value} objects and bare values.
func parseOption(raw json.RawMessage) (props.Option, error) {
	var obj struct {
		Label *string `json:"label"`
		Value any     `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Label != nil {
		return props.Option{Label: *obj.Label, Value: obj.Value}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return props.Option{}, err
	}
	return props.Option{Label: props.FormatValue(v), Value: v}, nil
}

func (c *PipedreamClient) Reload(ctx context.Context, req ReloadRequest) (*ReloadResult, error) {
	body := map[string]any{
		"external_user_id": req.Account.ExternalUserID,
		"id":               req.ComponentID,
		"configured_props": nonNil(req.ConfiguredProps),
	}
	var out struct {
		Errors       []string `json:"errors"`
		DynamicProps *struct {
			ID                string                   `json:"id"`
			ConfigurableProps []props.ConfigurableProp `json:"configurableProps"`
		} `json:"dynamicProps"`
	}
	if err := c.do(ctx, http.MethodPost, c.path("/components/props"), nil, body, &out); err != nil {
		return nil, err
	}
	res := &ReloadResult{Errors: out.Errors}
	if out.DynamicProps != nil {
		res.DynamicProps = out.DynamicProps.ConfigurableProps
	}
	return res, nil
}

func (c *PipedreamClient) ExecuteAction(ctx context.Context, componentID string, account integration.Account, args map[string]any) (any, error) {
	configured := make(map[string]any, len(args)+1)
	for k, v := range args {
		configured[k] = v
	}
	configured[account.AppName] = map[string]any{authProvisionKey: account.ConnectionID}

	body := map[string]any{
		"external_user_id": account.ExternalUserID,
		"id":               componentID,
		"configured_props": configured,
	}
	var out struct {
		Ret any `json:"ret"`
		Os  []struct {
			K   string `json:"k"`
			Err *struct {
				Name    string `json:"name"`
				Message string `json:"message"`
			} `json:"err"`
		} `json:"os"`
	}
	if err := c.do(ctx, http.MethodPost, c.path("/actions/run"), nil, body, &out); err != nil {
		return nil, err
	}
	for _, o := range out.Os {
		if o.K == "error" && o.Err != nil {
			return nil, errs.Upstreamf("%s", o.Err.Message)
		}
	}
	return out.Ret, nil
}

func (c *PipedreamClient) DeployTrigger(ctx context.Context, req DeployRequest) (string, error) {
	configured := make(map[string]any, len(req.ConfiguredProps)+1)
	for k, v := range req.ConfiguredProps {
		configured[k] = v
	}
	if _, ok := configured[req.Account.AppName]; !ok && req.Account.AppName != "" {
		configured[req.Account.AppName] = map[string]any{authProvisionKey: req.Account.ConnectionID}
	}
	body := map[string]any{
		"external_user_id": req.Account.ExternalUserID,
		"id":               req.ComponentID,
		"configured_props": configured,
		"webhook_url":      req.WebhookURL,
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.path("/triggers/deploy"), nil, body, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", errs.Upstreamf("component registry did not return a deployed trigger id")
	}
	return out.Data.ID, nil
}

func (c *PipedreamClient) DestroyTrigger(ctx context.Context, remoteTriggerID string, account integration.Account) error {
	query := map[string]string{"external_user_id": account.ExternalUserID}
	return c.do(ctx, http.MethodDelete, c.path("/deployed-triggers/"+url.PathEscape(remoteTriggerID)), query, nil, nil)
}

func (c *PipedreamClient) ListTools(ctx context.Context, integ *integration.Integration) ([]ToolDefinition, error) {
	app := integ.AppIdentity()
	if integ.Type != integration.TypePipedream || app == "" {
		return nil, errs.BadRequest("integration %q does not expose registry actions", integ.Name)
	}

	var tools []ToolDefinition
	cursor := ""
	for page := 0; page < maxActionsPages; page++ {
		query := map[string]string{
			"app":   app,
			"limit": fmt.Sprint(actionsPageSize),
		}
		if cursor != "" {
			query["after"] = cursor
		}
		var out struct {
			Data     []Component `json:"data"`
			PageInfo struct {
				EndCursor string `json:"end_cursor"`
			} `json:"page_info"`
		}
		if err := c.do(ctx, http.MethodGet, c.path("/actions"), query, nil, &out); err != nil {
			return nil, err
		}
		for _, comp := range out.Data {
			tools = append(tools, ToolDefinition{
				Name:        comp.Key,
				DisplayName: comp.Name,
				Description: comp.Description,
				InputSchema: InputSchema(comp.ConfigurableProps),
			})
		}
		if len(out.Data) < actionsPageSize || out.PageInfo.EndCursor == "" {
			break
		}
		cursor = out.PageInfo.EndCursor
	}
	return tools, nil
}

// AppSeed is the configured value that binds an app prop to a linked account.
func AppSeed(account integration.Account) map[string]any {
	return map[string]any{authProvisionKey: account.ConnectionID}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
