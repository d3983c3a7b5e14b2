package media

import (
	"context"
	"crypto/sha1" // #nosec G505 -- cloudinary signs requests with sha1
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vidtube/internal/logger"
)

const (
	CodeRequest  = "request"
	CodeUpstream = "upstream"
	CodeDecode   = "decode"
	CodeNoURL    = "no-url"
	CodeBadURL   = "bad-url"
)

const (
	defaultBaseURL = "https://api.cloudinary.com"
	defaultFolder  = "vidtube"

	uploadTimeout = 2 * time.Minute
	deleteTimeout = 10 * time.Second

	maxResponseSize = 2 << 20
)

// Error returned by the provider client
type Error struct {
	Code string

	// HTTP status of the provider response, zero if none was received
	Status int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, status: %d, error: %v", e.Code, e.Status, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code string, status int, err error) *Error {
	return &Error{Code: code, Status: status, Err: err}
}

// File to upload. Body is read once
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Uploaded asset as reported by the provider
type Asset struct {
	URL          string
	PublicID     string
	ResourceType string

	// Seconds, zero for images
	Duration decimal.Decimal
}

// Media storage used by services
type Uploader interface {
	Upload(ctx context.Context, file File) (Asset, error)

	// Remove asset by its URL. Returns provider result, "ok" on success
	Delete(ctx context.Context, assetURL string) (string, error)
}

type Cloudinary struct {
	BaseURL string
	Folder  string

	cloud  string
	key    string
	secret string

	client *http.Client
	logger logger.Logger
	now    func() time.Time
}

// Create client from cloudinary://<api_key>:<api_secret>@<cloud_name>
func NewCloudinary(rawURL string, l logger.Logger) (*Cloudinary, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid cloudinary url: %w", err)
	}
	if u.Scheme != "cloudinary" {
		return nil, fmt.Errorf("invalid cloudinary url scheme %q", u.Scheme)
	}

	secret, _ := u.User.Password()
	key := u.User.Username()
	if key == "" || secret == "" || u.Host == "" {
		return nil, errors.New("cloudinary url must contain api key, api secret and cloud name")
	}

	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Cloudinary{
		BaseURL: defaultBaseURL,
		Folder:  defaultFolder,
		cloud:   u.Host,
		key:     key,
		secret:  secret,
		client:  &http.Client{},
		logger:  l,
		now:     time.Now,
	}, nil
}

type uploadResponse struct {
	SecureURL    string          `json:"secure_url"`
	PublicID     string          `json:"public_id"`
	ResourceType string          `json:"resource_type"`
	Duration     decimal.Decimal `json:"duration"`
	Error        *providerError  `json:"error"`
}

type destroyResponse struct {
	Result string         `json:"result"`
	Error  *providerError `json:"error"`
}

type providerError struct {
	Message string `json:"message"`
}

func (c *Cloudinary) Upload(ctx context.Context, file File) (Asset, error) {
	var asset Asset

	if file.Body == nil {
		return asset, NewError(CodeRequest, 0, errors.New("file has no content"))
	}

	resource := resourceType(file.ContentType)
	params := map[string]string{
		"timestamp": c.timestamp(),
	}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.key

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadBody(mw, params, file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(resource, "upload"), pr)
	if err != nil {
		_ = pr.Close()
		return asset, NewError(CodeRequest, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var body uploadResponse
	if err := c.do(req, &body); err != nil {
		c.logger.Warn("Failed to upload media", "file", file.Name, "resource_type", resource, "error", err)
		return asset, err
	}
	if body.SecureURL == "" {
		return asset, NewError(CodeNoURL, http.StatusOK, errors.New("provider returned no url"))
	}

	c.logger.Debug("Media uploaded", "file", file.Name, "public_id", body.PublicID, "url", body.SecureURL)
	return Asset{
		URL:          body.SecureURL,
		PublicID:     body.PublicID,
		ResourceType: body.ResourceType,
		Duration:     body.Duration,
	}, nil
}

func writeUploadBody(mw *multipart.Writer, params map[string]string, file File) error {
	for _, k := range sortedKeys(params) {
		if err := mw.WriteField(k, params[k]); err != nil {
			return err
		}
	}

	name := file.Name
	if name == "" {
		name = "upload"
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return err
	}

	return mw.Close()
}

func (c *Cloudinary) Delete(ctx context.Context, assetURL string) (string, error) {
	resource, publicID, err := ParseAssetURL(assetURL)
	if err != nil {
		return "", NewError(CodeBadURL, 0, err)
	}

	params := map[string]string{
		"public_id": publicID,
		"timestamp": c.timestamp(),
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.key

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(resource, "destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", NewError(CodeRequest, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body destroyResponse
	if err := c.do(req, &body); err != nil {
		c.logger.Warn("Failed to delete media", "public_id", publicID, "error", err)
		return "", err
	}

	c.logger.Debug("Media deleted", "public_id", publicID, "result", body.Result)
	return body.Result, nil
}

// Send request and decode JSON body into dst
// Provider error messages are kept in the returned *Error
func (c *Cloudinary) do(req *http.Request, dst any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return NewError(CodeRequest, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return NewError(CodeDecode, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var pe struct {
			Error providerError `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &pe) == nil && pe.Error.Message != "" {
			msg = pe.Error.Message
		}
		return NewError(CodeUpstream, resp.StatusCode, fmt.Errorf("provider error: %s", msg))
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return NewError(CodeDecode, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Cloudinary) endpoint(resource string, action string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/v1_1/" + c.cloud + "/" + resource + "/" + action
}

func (c *Cloudinary) timestamp() string {
	return strconv.FormatInt(c.now().Unix(), 10)
}

// Signature is sha1 of sorted "k=v" pairs joined by '&' with the secret appended
func (c *Cloudinary) sign(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for _, k := range sortedKeys(params) {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.secret)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resourceType(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return "video"
	}
	return "image"
}

// Extract resource type and public id from a delivery URL like
// https://res.cloudinary.com/<cloud>/<resource>/upload/v123/<folder>/<id>.<ext>
func ParseAssetURL(assetURL string) (resource string, publicID string, err error) {
	u, err := url.Parse(assetURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid asset url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	i := slices.Index(parts, "upload")
	if i < 1 || i == len(parts)-1 {
		return "", "", fmt.Errorf("asset url %q has no upload path", assetURL)
	}

	resource = parts[i-1]
	rest := parts[i+1:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}

	publicID = strings.Join(rest, "/")
	publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	if publicID == "" {
		return "", "", fmt.Errorf("asset url %q has no public id", assetURL)
	}

	return resource, publicID, nil
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	_, err := strconv.ParseUint(segment[1:], 10, 64)
	return err == nil
}
