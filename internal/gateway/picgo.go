package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"memeshare/api/internal/config"
)

const defaultUploadTimeout = 30 * time.Second

// PicGoGateway uploads to a Chevereto-compatible API such as picgo.net.
type PicGoGateway struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	fetchMax int
}

func NewPicGoGateway(cfg config.PicGoConfig) *PicGoGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &PicGoGateway{
		client:   client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		fetchMax: maxFetchBytes,
	}
}

func (g *PicGoGateway) Status() Status {
	return Status{
		Driver:     config.GatewayDriverPicGo,
		Configured: g.apiKey != "",
		Endpoint:   g.endpoint,
	}
}

func (g *PicGoGateway) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	key := g.key(req.APIKey)
	if key == "" {
		return UploadResult{}, ErrNotConfigured
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = "image.jpg"
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", key).
		SetMultipartField("source", fileName, req.ContentType, bytes.NewReader(req.Data)).
		SetMultipartFormData(req.Options.Form()).
		Post(g.endpoint)
	if err != nil {
		return UploadResult{}, classify("upload", err)
	}
	return parseUploadResponse(resp)
}

// UploadURL asks the host to fetch and store sourceURL itself.
func (g *PicGoGateway) UploadURL(ctx context.Context, sourceURL string, apiKey string, opts Options) (UploadResult, error) {
	key := g.key(apiKey)
	if key == "" {
		return UploadResult{}, ErrNotConfigured
	}

	form := opts.Form()
	form["source"] = sourceURL

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", key).
		SetFormData(form).
		Post(g.endpoint)
	if err != nil {
		return UploadResult{}, classify("upload url", err)
	}
	return parseUploadResponse(resp)
}

func (g *PicGoGateway) Fetch(ctx context.Context, url string) (FetchResult, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return FetchResult{}, &Error{Code: http.StatusBadRequest, Message: "unsupported url scheme"}
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		SetResponseBodyLimit(g.fetchMax).
		Get(url)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return FetchResult{}, &Error{Code: http.StatusBadGateway, Message: "hosted image exceeds fetch limit"}
	}
	if err != nil {
		return FetchResult{}, classify("fetch", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return FetchResult{}, &Error{Code: resp.StatusCode(), Message: resp.Status()}
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return FetchResult{Data: resp.Body(), ContentType: contentType}, nil
}

func (g *PicGoGateway) key(override string) string {
	if override != "" {
		return override
	}
	return g.apiKey
}

func classify(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("picgo %s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("picgo %s: %w", op, err)
}

type picgoResponse struct {
	StatusCode flexInt     `json:"status_code"`
	StatusTxt  string      `json:"status_txt"`
	Image      *picgoImage `json:"image"`
	Error      *picgoError `json:"error"`
}

type picgoImage struct {
	URL      string  `json:"url"`
	Filename string  `json:"filename"`
	Width    flexInt `json:"width"`
	Height   flexInt `json:"height"`
	Size     flexInt `json:"size"`
	Mime     string  `json:"mime"`
}

type picgoError struct {
	Message string  `json:"message"`
	Code    flexInt `json:"code"`
}

func parseUploadResponse(resp *resty.Response) (UploadResult, error) {
	var body picgoResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	if resp.StatusCode() != http.StatusOK {
		return UploadResult{}, &Error{Code: resp.StatusCode(), Message: body.detail(resp.String())}
	}
	if decodeErr != nil {
		return UploadResult{}, &Error{Code: http.StatusBadGateway, Message: "malformed response from image host"}
	}
	if body.StatusCode != 0 && body.StatusCode != http.StatusOK {
		return UploadResult{}, &Error{Code: int(body.StatusCode), Message: body.detail("")}
	}
	if body.Image == nil || body.Image.URL == "" {
		return UploadResult{}, &Error{Code: http.StatusBadGateway, Message: "image host returned no url"}
	}

	return UploadResult{
		URL:            body.Image.URL,
		Width:          int(body.Image.Width),
		Height:         int(body.Image.Height),
		Size:           int64(body.Image.Size),
		MimeType:       body.Image.Mime,
		RemoteFileName: body.Image.Filename,
	}, nil
}

func (r picgoResponse) detail(fallback string) string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	if r.StatusTxt != "" {
		return r.StatusTxt
	}
	return truncate(fallback, 200)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// flexInt accepts numbers encoded either as JSON numbers or strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(fl)
	return nil
}
