package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanzone-api/apperrors"
)

func TestNewEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: " Ana@Example.COM ", want: "ana@example.com", ok: true},
		{input: "first.last+tag@mail.example.org", want: "first.last+tag@mail.example.org", ok: true},
		{input: "", ok: false},
		{input: "no-at-sign", ok: false},
		{input: "double..dot@example.com", ok: false},
		{input: ".lead@example.com", ok: false},
		{input: "user@example.c", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			email, err := NewEmail(tt.input)
			if !tt.ok {
				assert.True(t, apperrors.Is(err, apperrors.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, email.String())
		})
	}
}

func TestNewPassword(t *testing.T) {
	tests := map[string]string{
		"Sh#1":        "at least 8",
		"secret#word": "digit",
		"secret#123":  "upper-case",
		"SECRET#123":  "lower-case",
		"Secret1234":  "special",
	}
	for input, fragment := range tests {
		_, err := NewPassword(input)
		require.Error(t, err, input)
		assert.Contains(t, err.Error(), fragment, input)
	}

	p, err := NewPassword("Secret#123")
	require.NoError(t, err)
	assert.Equal(t, "Secret#123", p.String())
}

func TestTextLimits(t *testing.T) {
	_, err := NewTitle("   ")
	assert.Error(t, err)
	_, err = NewTitle(strings.Repeat("a", MaxTitleLength))
	assert.NoError(t, err)
	_, err = NewTitle(strings.Repeat("a", MaxTitleLength+1))
	assert.Error(t, err)

	_, err = NewMessageContent(strings.Repeat("é", MaxMessageContentLength))
	assert.NoError(t, err, "limits count characters, not bytes")

	name, err := NewName("  Ana  ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", name.String())
}

func TestNewRadiusAndLocation(t *testing.T) {
	for _, m := range []float64{0, -1, MaxRadiusMeters + 1} {
		_, err := NewRadius(m)
		assert.Error(t, err, m)
	}
	r, err := NewRadius(MaxRadiusMeters)
	require.NoError(t, err)
	assert.Equal(t, MaxRadiusMeters, r.Meters())

	_, err = NewLocation(91, 0)
	assert.Error(t, err)
	_, err = NewLocation(0, -181)
	assert.Error(t, err)

	paris, err := NewLocation(48.8566, 2.3522)
	require.NoError(t, err)
	london, err := NewLocation(51.5074, -0.1278)
	require.NoError(t, err)
	assert.InDelta(t, 343.5, paris.DistanceKm(london), 1.0)
	assert.InDelta(t, 0, paris.DistanceKm(paris), 1e-9)
}

func TestNewUrl(t *testing.T) {
	for _, ok := range []string{"https://example.com/a.png", "HTTP://example.com"} {
		_, err := NewUrl(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"ftp://example.com", "https://", "https://exa mple.com", "example.com"} {
		_, err := NewUrl(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id.Uint32())

	for _, bad := range []string{"0", "-3", "4294967296", "abc"} {
		_, err := ParseID(bad)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), bad)
	}
}

func TestPeriod(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	_, err := NewPeriod(time.Time{}, nil)
	assert.Error(t, err)
	_, err = NewPeriod(start, &start)
	assert.Error(t, err)

	p, err := NewPeriod(start, &end)
	require.NoError(t, err)
	assert.False(t, p.Contains(start.Add(-time.Second)))
	assert.True(t, p.Contains(start))
	assert.True(t, p.Contains(end.Add(-time.Second)))
	assert.False(t, p.Contains(end))

	open, err := NewPeriod(start, nil)
	require.NoError(t, err)
	assert.True(t, open.Contains(start.Add(1000*time.Hour)))
}

func TestNewMaxParticipants(t *testing.T) {
	v, err := NewMaxParticipants(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	zero := 0
	_, err = NewMaxParticipants(&zero)
	assert.Error(t, err)
}
