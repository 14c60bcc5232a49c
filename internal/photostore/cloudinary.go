package photostore

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cloudinary uploads guardian photos to Cloudinary using their REST API and
// records the secure URL as the image path.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	HTTP      *http.Client
}

// NewCloudinary creates a Cloudinary-backed store.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

// Save uploads the photo and returns its secure URL.
func (c *Cloudinary) Save(data []byte, ext string) (string, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
		"api_key":   c.APIKey,
	}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", uuid.NewString()+ext)
	if err != nil {
		return "", fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	w.Close()

	url := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", c.CloudName)
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return result.SecureURL, nil
}

// sign computes the Cloudinary API signature from the given params.
// api_key and file are excluded from the signature per Cloudinary spec.
func (c *Cloudinary) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
