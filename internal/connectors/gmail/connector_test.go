package gmail

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawMail = "From: Supplier Ops <ops@supplier.example>\r\n" +
	"To: labels@example.com\r\n" +
	"Subject: =?UTF-8?Q?=C3=89tiquettes_FW25?=\r\n" +
	"Message-ID: <abc@supplier.example>\r\n" +
	"Date: Sat, 01 Mar 2025 09:30:00 +0100\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"bonjour\r\n"

func TestToFetchedReadsHeaders(t *testing.T) {
	got := toFetched("18f0c", 0, []byte(rawMail))
	assert.Equal(t, "gmail", got.Provider)
	assert.Equal(t, "<abc@supplier.example>", got.MessageID)
	assert.Equal(t, "Étiquettes FW25", got.Subject)
	assert.Contains(t, got.From, "ops@supplier.example")
	assert.Equal(t, "2025-03-01T08:30:00Z", got.ReceivedAt)

	got = toFetched("18f0c", time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC).UnixMilli(), []byte(rawMail))
	assert.Equal(t, "2025-04-02T10:00:00Z", got.ReceivedAt)
}

func TestToFetchedFallsBackToGmailID(t *testing.T) {
	got := toFetched("18f0c", 0, []byte("Subject: hi\r\n\r\nbody"))
	assert.Equal(t, "18f0c", got.MessageID)
	assert.Equal(t, "hi", got.Subject)
}

func TestDecodeBase64URL(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("raw?mail"))
	raw := base64.RawURLEncoding.EncodeToString([]byte("raw?mail"))

	for _, in := range []string{padded, raw} {
		out, err := decodeBase64URL(in)
		require.NoError(t, err)
		assert.Equal(t, "raw?mail", string(out))
	}
	_, err := decodeBase64URL("%%%")
	assert.Error(t, err)
}

func TestMailDate(t *testing.T) {
	got, err := mailDate("Mon, 02 Jan 2006 15:04:05 MST")
	require.NoError(t, err)
	assert.Equal(t, 2006, got.Year())

	_, err = mailDate("yesterday")
	assert.Error(t, err)
}

func TestRateLimiterSpacesCalls(t *testing.T) {
	r := NewRateLimiter(50)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.WaitTurn(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestRateLimiterHonorsCancellation(t *testing.T) {
	r := NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.WaitTurn(ctx))
	cancel()
	assert.ErrorIs(t, r.WaitTurn(ctx), context.Canceled)
}
