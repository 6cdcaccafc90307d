// Package lark is a minimal client for the Lark/Feishu open platform
// document APIs.
package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docsplit/internal/block"
)

const blocksPageSize = 500

// Config holds the app credentials and endpoint of a Lark tenant.
type Config struct {
	AppID       string
	AppSecret   string
	BaseURL     string
	HostPattern string
}

// Client communicates with the Lark open API using a tenant access token.
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client
	urls       *URLMatcher
	log        zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	urls, err := NewURLMatcher(cfg.HostPattern)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		urls: urls,
		log:  log,
	}, nil
}

// APIError is a non-zero code in a Lark response envelope, or a non-2xx
// HTTP status.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark api: status %d code %d: %s", e.Status, e.Code, e.Msg)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// DocumentInfo is the metadata of a docx document.
type DocumentInfo struct {
	DocumentID string `json:"document_id"`
	RevisionID int    `json:"revision_id"`
	Title      string `json:"title"`
}

// WikiNode is the object a wiki node points at.
type WikiNode struct {
	ObjType  string `json:"obj_type"`
	ObjToken string `json:"obj_token"`
	Title    string `json:"title"`
}

// Source is a fetched document. Docx documents carry Blocks; legacy docs
// carry RawContent.
type Source struct {
	URL        string
	Type       string
	DocumentID string
	Title      string
	Blocks     []block.Block
	RawContent string
}

// Fetch resolves a document link and downloads its content.
func (c *Client) Fetch(ctx context.Context, link string) (*Source, error) {
	docType, token, err := c.urls.Parse(link)
	if err != nil {
		return nil, err
	}
	if docType == TypeWiki {
		node, err := c.GetWikiNode(ctx, token)
		if err != nil {
			return nil, err
		}
		docType, token = node.ObjType, node.ObjToken
		c.log.Debug().Str("obj_type", docType).Str("obj_token", token).Msg("resolved wiki node")
	}

	src := &Source{URL: link, Type: docType, DocumentID: token}
	switch docType {
	case TypeDocx:
		var info *DocumentInfo
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			info, err = c.GetDocument(gctx, token)
			return err
		})
		g.Go(func() error {
			var err error
			src.Blocks, err = c.ListBlocks(gctx, token)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		src.Title = info.Title
	case TypeDoc:
		src.Title, src.RawContent, err = c.GetLegacyDoc(ctx, token)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocType, docType)
	}
	return src, nil
}

// GetDocument returns docx metadata.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*DocumentInfo, error) {
	var data struct {
		Document DocumentInfo `json:"document"`
	}
	if err := c.get(ctx, "/open-apis/docx/v1/documents/"+url.PathEscape(documentID), nil, &data); err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return &data.Document, nil
}

// ListBlocks returns every block of a docx document, following pagination.
func (c *Client) ListBlocks(ctx context.Context, documentID string) ([]block.Block, error) {
	var all []block.Block
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(blocksPageSize))
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		var data struct {
			Items     []block.Block `json:"items"`
			HasMore   bool          `json:"has_more"`
			PageToken string        `json:"page_token"`
		}
		if err := c.get(ctx, "/open-apis/docx/v1/documents/"+url.PathEscape(documentID)+"/blocks", q, &data); err != nil {
			return nil, fmt.Errorf("list blocks of %s: %w", documentID, err)
		}
		all = append(all, data.Items...)
		if !data.HasMore || data.PageToken == "" {
			break
		}
		pageToken = data.PageToken
	}
	c.log.Debug().Str("document_id", documentID).Int("blocks", len(all)).Msg("listed blocks")
	return all, nil
}

// GetWikiNode resolves a wiki node token.
func (c *Client) GetWikiNode(ctx context.Context, token string) (*WikiNode, error) {
	q := url.Values{}
	q.Set("token", token)
	var data struct {
		Node WikiNode `json:"node"`
	}
	if err := c.get(ctx, "/open-apis/wiki/v2/spaces/get_node", q, &data); err != nil {
		return nil, fmt.Errorf("get wiki node %s: %w", token, err)
	}
	return &data.Node, nil
}

var leadingStar = regexp.MustCompile(`(?m)^\*`)

// GetLegacyDoc returns the title and plain text of a legacy document with
// the leading '*' of every line removed.
func (c *Client) GetLegacyDoc(ctx context.Context, token string) (title, content string, err error) {
	var meta struct {
		Title string `json:"title"`
	}
	if err := c.get(ctx, "/open-apis/doc/v2/meta/"+url.PathEscape(token), nil, &meta); err != nil {
		return "", "", fmt.Errorf("get doc meta %s: %w", token, err)
	}
	var raw struct {
		Content string `json:"content"`
	}
	if err := c.get(ctx, "/open-apis/doc/v2/"+url.PathEscape(token)+"/raw_content", nil, &raw); err != nil {
		return "", "", fmt.Errorf("get doc content %s: %w", token, err)
	}
	return meta.Title, leadingStar.ReplaceAllString(raw.Content, ""), nil
}

// tenantToken returns a cached tenant access token, refreshing it a minute
// before expiry.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("tenant token: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Code   int    `json:"code"`
		Msg    string `json:"msg"`
		Token  string `json:"tenant_access_token"`
		Expire int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode tenant token: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Code != 0 {
		return "", fmt.Errorf("tenant token: %w", &APIError{Status: resp.StatusCode, Code: out.Code, Msg: out.Msg})
	}

	c.token = out.Token
	c.tokenExpiry = time.Now().Add(time.Duration(out.Expire)*time.Second - time.Minute)
	return c.token, nil
}

// get performs an authenticated GET and decodes the envelope's data into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	token, err := c.tenantToken(ctx)
	if err != nil {
		return err
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Status: resp.StatusCode, Msg: truncate(string(respBody), 1024)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Msg: env.Msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
