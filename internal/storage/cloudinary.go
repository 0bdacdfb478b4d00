package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultCloudinaryURL = "https://api.cloudinary.com/v1_1"

var ErrUpstream = errors.New("storage: provider error")

type CloudinaryConfig struct {
	BaseURL   string
	CloudName string
	APIKey    string
	APISecret string
}

// CloudinaryStore talks to the Cloudinary upload API with signed requests.
// Files are stored as raw resources so PDFs and images share one code path.
type CloudinaryStore struct {
	cfg        CloudinaryConfig
	httpClient *http.Client
	now        func() time.Time
}

func NewCloudinaryStore(cfg CloudinaryConfig, httpClient *http.Client) *CloudinaryStore {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultCloudinaryURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CloudinaryStore{cfg: cfg, httpClient: httpClient, now: time.Now}
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Bytes     int64  `json:"bytes"`
}

type destroyResponse struct {
	Result string `json:"result"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *CloudinaryStore) Upload(ctx context.Context, file File, folder string) (Object, error) {
	if file.Body == nil {
		return Object{}, errors.New("storage: empty file")
	}
	params := map[string]string{
		"folder":    strings.Trim(folder, "/"),
		"timestamp": strconv.FormatInt(s.now().Unix(), 10),
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range s.signed(params) {
		if err := writer.WriteField(key, value); err != nil {
			return Object{}, fmt.Errorf("write upload field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return Object{}, fmt.Errorf("create upload part: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return Object{}, fmt.Errorf("copy upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Object{}, fmt.Errorf("close upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("upload"), &body)
	if err != nil {
		return Object{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	var parsed uploadResponse
	if err := s.do(req, &parsed); err != nil {
		return Object{}, err
	}
	link := parsed.SecureURL
	if link == "" {
		link = parsed.URL
	}
	size := parsed.Bytes
	if size == 0 {
		size = file.Size
	}
	return Object{PublicID: parsed.PublicID, URL: link, Size: size}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, publicID string) error {
	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(s.now().Unix(), 10),
	}
	form := url.Values{}
	for key, value := range s.signed(params) {
		form.Set(key, value)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var parsed destroyResponse
	if err := s.do(req, &parsed); err != nil {
		return err
	}
	if parsed.Result != "ok" && parsed.Result != "not found" {
		return fmt.Errorf("%w: destroy result %q", ErrUpstream, parsed.Result)
	}
	return nil
}

func (s *CloudinaryStore) endpoint(action string) string {
	return fmt.Sprintf("%s/%s/raw/%s", s.cfg.BaseURL, s.cfg.CloudName, action)
}

// signed adds api_key and signature. The signature is the SHA-1 of the
// alphabetically sorted parameters followed by the API secret.
func (s *CloudinaryStore) signed(params map[string]string) map[string]string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + "=" + params[key]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + s.cfg.APISecret))

	out := make(map[string]string, len(keys)+2)
	for _, key := range keys {
		out[key] = params[key]
	}
	out["api_key"] = s.cfg.APIKey
	out["signature"] = hex.EncodeToString(sum[:])
	return out
}

func (s *CloudinaryStore) do(req *http.Request, dst any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read storage response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var parsed apiError
		_ = json.Unmarshal(payload, &parsed)
		message := parsed.Error.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", ErrUpstream, message)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode storage response: %w", err)
	}
	return nil
}
