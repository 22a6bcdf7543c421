package pagination

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.FixedZone("ICT", 7*3600))
	id := uuid.New()

	decoded, err := Decode(Encode(Cursor{CreatedAt: at, ID: id}))
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, at.Equal(decoded.CreatedAt))
	assert.Equal(t, id, decoded.ID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	empty, err := Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	for _, value := range []string{"%%%", Encode(Cursor{})[:4], "bm8tc2VwYXJhdG9y"} {
		_, err := Decode(value)
		assert.Error(t, err, value)
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestFromQuery(t *testing.T) {
	params, err := FromQuery(url.Values{"limit": {"5"}, "cursor": {" abc "}})
	require.NoError(t, err)
	assert.Equal(t, Params{Limit: 5, Cursor: "abc"}, params)

	_, err = FromQuery(url.Values{"limit": {"-1"}})
	assert.Error(t, err)
	_, err = FromQuery(url.Values{"limit": {"many"}})
	assert.Error(t, err)
}

func TestTrim(t *testing.T) {
	base := time.Now()
	rows := []Cursor{
		{CreatedAt: base, ID: uuid.New()},
		{CreatedAt: base.Add(-time.Second), ID: uuid.New()},
		{CreatedAt: base.Add(-2 * time.Second), ID: uuid.New()},
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 2, identity)
	require.Len(t, page, 2)
	decoded, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, rows[1].ID, decoded.ID)

	page, next = Trim(rows, 3, identity)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
