package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/foodrelief/relief-backend/pkg/config"
)

func signingClient(t *testing.T) (*Client, *rsa.PrivateKey) {
	t.Helper()
	key := mustGenerateKey(t)
	return &Client{
		defaultBucket:  "relief-evidence",
		serviceAccount: &serviceAccountInfo{clientEmail: "signer@example.com", privateKey: key},
	}, key
}

func verify(t *testing.T, key *rsa.PrivateKey, rawURL, method, contentType, resource string) {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "storage.googleapis.com", parsed.Host)

	values := parsed.Query()
	assert.Equal(t, "signer@example.com", values.Get("GoogleAccessId"))
	expires := values.Get("Expires")
	require.NotEmpty(t, expires)

	sig, err := base64.StdEncoding.DecodeString(values.Get("Signature"))
	require.NoError(t, err)
	hash := sha256.Sum256([]byte(method + "\n\n" + contentType + "\n" + expires + "\n" + resource))
	require.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, hash[:], sig))
}

func TestSignedURLSuccess(t *testing.T) {
	t.Parallel()
	client, key := signingClient(t)

	object := "evidence/2f0c/receipt.jpg"
	signed, err := client.SignedURL("", object, "image/jpeg", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "https://storage.googleapis.com/relief-evidence/evidence/2f0c/receipt.jpg?"))
	verify(t, key, signed, "PUT", "image/jpeg", "/relief-evidence/"+object)
}

func TestSignedReadURLSuccess(t *testing.T) {
	t.Parallel()
	client, key := signingClient(t)

	signed, err := client.SignedReadURL("other-bucket", "/evidence/a.pdf", time.Minute)
	require.NoError(t, err)
	verify(t, key, signed, "GET", "", "/other-bucket/evidence/a.pdf")
}

func TestSignedURLErrors(t *testing.T) {
	t.Parallel()
	client, _ := signingClient(t)

	cases := []struct {
		name        string
		client      *Client
		bucket      string
		object      string
		contentType string
		expires     time.Duration
	}{
		{"missing bucket", &Client{serviceAccount: client.serviceAccount}, "", "object", "image/png", time.Minute},
		{"missing object", client, "bucket", "", "image/png", time.Minute},
		{"missing content type", client, "bucket", "object", "", time.Minute},
		{"negative ttl", client, "bucket", "object", "image/png", -time.Minute},
		{"no service account", &Client{defaultBucket: "bucket"}, "", "object", "image/png", time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.client.SignedURL(tc.bucket, tc.object, tc.contentType, tc.expires)
			assert.Error(t, err)
		})
	}
}

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func TestPing(t *testing.T) {
	t.Parallel()

	status := http.StatusOK
	client := &Client{
		defaultBucket: "relief-evidence",
		tokenSource:   oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token", TokenType: "Bearer"}),
		httpClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) *http.Response {
			assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))
			assert.Contains(t, req.URL.Path, "/storage/v1/b/relief-evidence/o")
			return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader("denied")), Header: http.Header{}}
		})},
	}
	require.NoError(t, client.Ping(context.Background()))

	status = http.StatusForbidden
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")

	assert.Contains(t, err.Error(), "bucket probe 403")

	assert.Error(t, (&Client{}).Ping(context.Background()))
}

func TestServiceAccountJSON(t *testing.T) {
	t.Parallel()
	inline, err := serviceAccountJSON(config.GCPConfig{CredentialsJSON: `{"a":1}`, ApplicationCredentials: "/ignored"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(inline))

	ambient, err := serviceAccountJSON(config.GCPConfig{})
	require.NoError(t, err)
	assert.Nil(t, ambient)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b":2}`), 0o600))
	fromFile, err := serviceAccountJSON(config.GCPConfig{ApplicationCredentials: path})
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(fromFile))

	_, err = serviceAccountJSON(config.GCPConfig{ApplicationCredentials: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestCanSign(t *testing.T) {
	t.Parallel()
	client, _ := signingClient(t)
	assert.True(t, client.CanSign())
	assert.False(t, (&Client{}).CanSign())
	assert.False(t, (*Client)(nil).CanSign())
}

func TestParseServiceAccount(t *testing.T) {
	t.Parallel()
	key := mustGenerateKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	raw, err := json.Marshal(map[string]string{"client_email": "signer@example.com", "private_key": string(pemKey)})
	require.NoError(t, err)
	account, err := parseServiceAccount(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "signer@example.com", account.clientEmail)
	assert.True(t, key.Equal(account.privateKey))

	_, err = parseServiceAccount(`{"client_email":"x"}`)
	assert.Error(t, err)
	_, err = parseServiceAccount(`{"client_email":"x","private_key":"not pem"}`)
	assert.Error(t, err)
}

func mustGenerateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}
