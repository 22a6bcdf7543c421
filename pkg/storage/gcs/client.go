package gcs

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

const (
	scope       = "https://www.googleapis.com/auth/devstorage.read_write"
	storageHost = "https://storage.googleapis.com"
	pingTimeout = 5 * time.Second
)

// Client signs upload and read URLs for evidence objects and checks bucket
// reachability.
type Client struct {
	httpClient     *http.Client
	defaultBucket  string
	tokenSource    oauth2.TokenSource
	serviceAccount *serviceAccountInfo
}

type serviceAccountInfo struct {
	clientEmail string
	privateKey  *rsa.PrivateKey
}

// NewClient resolves credentials from inline JSON, a credentials file, or the
// ambient Google default chain. URL signing needs a service account key, so
// ambient credentials only support Ping.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	keyJSON, err := serviceAccountJSON(gcp)
	if err != nil {
		return nil, err
	}

	c := &Client{httpClient: &http.Client{Timeout: 10 * time.Second}, defaultBucket: cfg.BucketName}
	if keyJSON == nil {
		if c.tokenSource, err = google.DefaultTokenSource(ctx, scope); err != nil {
			return nil, fmt.Errorf("resolving default gcp credentials: %w", err)
		}
	} else {
		creds, err := google.CredentialsFromJSON(ctx, keyJSON, scope)
		if err != nil {
			return nil, fmt.Errorf("parsing service account credentials: %w", err)
		}
		if c.serviceAccount, err = parseServiceAccount(string(keyJSON)); err != nil {
			return nil, err
		}
		c.tokenSource = creds.TokenSource
	}

	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"bucket": c.defaultBucket, "can_sign": c.CanSign()}), "evidence bucket reachable")
	}
	return c, nil
}

// serviceAccountJSON returns nil when neither inline nor file credentials are set.
func serviceAccountJSON(gcp config.GCPConfig) ([]byte, error) {
	if gcp.CredentialsJSON != "" {
		return []byte(gcp.CredentialsJSON), nil
	}
	if gcp.ApplicationCredentials == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(gcp.ApplicationCredentials)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return raw, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

// CanSign reports whether signed upload and read URLs can be produced.
func (c *Client) CanSign() bool {
	return c != nil && c.serviceAccount != nil && c.serviceAccount.privateKey != nil
}

func (c *Client) Close() error { return nil }

// Ping lists at most one evidence object, which needs storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	switch {
	case c == nil || c.tokenSource == nil:
		return errors.New("gcs client not initialized")
	case c.defaultBucket == "":
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	token, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("gcs token: %w", err)
	}

	probe := storageHost + "/storage/v1/b/" + url.PathEscape(c.defaultBucket) + "/o?maxResults=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	reason, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if text := strings.TrimSpace(string(reason)); text != "" {
		return fmt.Errorf("bucket probe %s: %s", resp.Status, text)
	}
	return fmt.Errorf("bucket probe %s", resp.Status)
}

func parseServiceAccount(jsonCreds string) (*serviceAccountInfo, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal([]byte(jsonCreds), &creds); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, errors.New("invalid service account credentials")
	}
	key, err := parsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &serviceAccountInfo{clientEmail: creds.ClientEmail, privateKey: key}, nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if priv, ok := key.(*rsa.PrivateKey); ok {
			return priv, nil
		}
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.New("unsupported private key format")
	}
	return priv, nil
}
