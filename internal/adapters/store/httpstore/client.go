// Package httpstore is an asset backend that talks to a remote asset server
// over its REST routes. Settings are not served remotely and are kept by a
// local delegate.
package httpstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sceneflow/sceneflow/internal/adapters/assetapi"
	"github.com/sceneflow/sceneflow/internal/adapters/store/memory"
	"github.com/sceneflow/sceneflow/internal/core/asset"
)

// ErrServer reports an unexpected response from the asset server.
var ErrServer = errors.New("asset server error")

// Client implements asset.Backend over HTTP.
type Client struct {
	base     string
	http     *http.Client
	settings asset.Settings
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithSettings sets where settings such as the active flow are kept.
func WithSettings(s asset.Settings) Option { return func(c *Client) { c.settings = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New returns a client for the server at baseURL, e.g. http://localhost:5000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid asset server URL %q", baseURL)
	}
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.settings == nil {
		c.settings = memory.New()
	}
	return c, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends a request and decodes a JSON answer into out when non-nil.
func (c *Client) do(ctx context.Context, method, route string, body io.Reader, ctype string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+route, body)
	if err != nil {
		return err
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return statusError(resp.StatusCode, eb.Error)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrServer, route, err)
	}
	return nil
}

func statusError(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", asset.ErrNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: bad request: %s", ErrServer, msg)
	default:
		return fmt.Errorf("%w: %d %s", ErrServer, status, msg)
	}
}

func (c *Client) postJSON(ctx context.Context, route string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, route, bytes.NewReader(data), "application/json", out)
}

func ref(kind asset.Kind, name string) string {
	return url.PathEscape(string(kind)) + "/" + url.PathEscape(name)
}

func (c *Client) Save(ctx context.Context, kind asset.Kind, name, content string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	doc := assetapi.Document{Name: name, Type: string(kind), Code: content}
	if err := c.postJSON(ctx, assetapi.Prefix+"/save", doc, nil); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

func (c *Client) Load(ctx context.Context, kind asset.Kind, name string) (*asset.Asset, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	var resp struct {
		Data assetapi.Document `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, assetapi.Prefix+"/load/"+ref(kind, name), nil, "", &resp); err != nil {
		return nil, err
	}
	return &asset.Asset{
		Kind:      kind,
		Name:      name,
		Content:   resp.Data.Code,
		CreatedAt: resp.Data.CreatedAt,
		UpdatedAt: resp.Data.UpdatedAt,
	}, nil
}

// List asks the server for the prefix match and applies the rest of the
// filter locally.
func (c *Client) List(ctx context.Context, kind asset.Kind, filter asset.Filter) ([]asset.Info, error) {
	if !kind.Valid() {
		return nil, asset.ErrInvalidKind
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	route := assetapi.Prefix + "/list/" + url.PathEscape(string(kind))
	if filter.Prefix != "" {
		route += "?prefix=" + url.QueryEscape(filter.Prefix)
	}
	var resp struct {
		Assets []assetapi.Entry `json:"assets"`
	}
	if err := c.do(ctx, http.MethodGet, route, nil, "", &resp); err != nil {
		return nil, err
	}
	infos := make([]asset.Info, 0, len(resp.Assets))
	for _, e := range resp.Assets {
		if filter.Since != nil && e.UpdatedAt.Before(*filter.Since) {
			continue
		}
		infos = append(infos, asset.Info{
			Name:         e.Folder,
			Kind:         kind,
			HasThumbnail: e.HasThumbnail,
			CreatedAt:    e.CreatedAt,
			UpdatedAt:    e.UpdatedAt,
		})
	}
	slices.SortFunc(infos, func(a, b asset.Info) int { return strings.Compare(a.Name, b.Name) })
	return filter.Apply(infos), nil
}

func (c *Client) Delete(ctx context.Context, kind asset.Kind, name string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, assetapi.Prefix+"/delete/"+ref(kind, name), nil, "", nil)
}

func (c *Client) SaveThumbnail(ctx context.Context, kind asset.Kind, name string, image []byte) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	body := map[string]string{
		"type":      string(kind),
		"name":      name,
		"thumbnail": "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
	}
	return c.postJSON(ctx, assetapi.Prefix+"/save-thumbnail", body, nil)
}

func (c *Client) LoadThumbnail(ctx context.Context, kind asset.Kind, name string) ([]byte, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	var img []byte
	if err := c.do(ctx, http.MethodGet, assetapi.Prefix+"/thumbnail/"+ref(kind, name), nil, "", &img); err != nil {
		return nil, err
	}
	return img, nil
}

func (c *Client) BundleFlow(ctx context.Context, req asset.BundleRequest) (*asset.BundleResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.SceneNames == nil {
		req.SceneNames = []string{}
	}
	var res asset.BundleResult
	if err := c.postJSON(ctx, assetapi.Prefix+"/bundle-flow-project", req, &res); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", req.FlowName, err)
	}
	if res.BundledScenes == nil {
		res.BundledScenes = []string{}
	}
	return &res, nil
}

func (c *Client) RestoreFlowAssets(ctx context.Context, flowName string) (*asset.RestoreResult, error) {
	if err := asset.ValidateName(flowName); err != nil {
		return nil, err
	}
	var res asset.RestoreResult
	body := map[string]string{"flowName": flowName}
	if err := c.postJSON(ctx, assetapi.Prefix+"/restore-flow-assets", body, &res); err != nil {
		return nil, fmt.Errorf("restore %s: %w", flowName, err)
	}
	if res.RestoredScenes == nil {
		res.RestoredScenes = []string{}
	}
	return &res, nil
}

func (c *Client) ClearStaging(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, assetapi.Prefix+"/clear-external", nil, "", nil)
}

// StagedFiles lists the staging area and downloads every file.
func (c *Client) StagedFiles(ctx context.Context) ([]asset.File, error) {
	var resp struct {
		Files []assetapi.StagedEntry `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, assetapi.Prefix+"/list-external", nil, "", &resp); err != nil {
		return nil, err
	}
	files := make([]asset.File, 0, len(resp.Files))
	for _, e := range resp.Files {
		var data []byte
		if err := c.do(ctx, http.MethodGet, assetapi.StagingPrefix+escapePath(e.Name), nil, "", &data); err != nil {
			return nil, fmt.Errorf("fetch staged %s: %w", e.Name, err)
		}
		files = append(files, asset.File{Path: e.Name, Data: data})
	}
	slices.SortFunc(files, func(a, b asset.File) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// StageFile adds one file. The server replaces the staging area on every
// upload, so the current contents are sent along with the new file.
func (c *Client) StageFile(ctx context.Context, file asset.File) error {
	if file.Path == "" || strings.HasPrefix(file.Path, "/") || strings.Contains(file.Path, "..") || strings.Contains(file.Path, `\`) {
		return fmt.Errorf("%w: %q", asset.ErrInvalidName, file.Path)
	}
	existing, err := c.StagedFiles(ctx)
	if err != nil {
		return err
	}
	files := slices.DeleteFunc(existing, func(f asset.File) bool { return f.Path == file.Path })
	return c.upload(ctx, append(files, file))
}

func (c *Client) upload(ctx context.Context, files []asset.File) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Path)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Data); err != nil {
			return err
		}
		if err := mw.WriteField("paths", f.Path); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, assetapi.Prefix+"/import-external", &buf, mw.FormDataContentType(), nil)
}

func (c *Client) GetSetting(ctx context.Context, key string) (string, error) {
	return c.settings.GetSetting(ctx, key)
}

func (c *Client) SetSetting(ctx context.Context, key, value string) error {
	return c.settings.SetSetting(ctx, key, value)
}

func (c *Client) DeleteSetting(ctx context.Context, key string) error {
	return c.settings.DeleteSetting(ctx, key)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

var _ assetapi.Backend = (*Client)(nil)
