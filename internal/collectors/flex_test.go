package collectors

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{`0.62`, ptr(0.62)},
		{`"0.5600"`, ptr(0.56)},
		{`" 1 "`, ptr(1)},
		{`null`, nil},
		{`""`, nil},
		{`"n/a"`, nil},
	}
	for _, tt := range tests {
		var v struct {
			P FlexFloat `json:"p"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"p":`+tt.in+`}`), &v), tt.in)
		if tt.want == nil {
			assert.Nil(t, v.P.Ptr(), tt.in)
			continue
		}
		require.NotNil(t, v.P.Ptr(), tt.in)
		assert.InDelta(t, *tt.want, *v.P.Ptr(), 1e-12, tt.in)
	}
}

func TestFlexFloatMissingField(t *testing.T) {
	var v struct {
		P FlexFloat `json:"p"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &v))
	assert.Nil(t, v.P.Ptr())
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"abc","b":12345}`), &v))
	assert.Equal(t, FlexString("abc"), v.A)
	assert.Equal(t, FlexString("12345"), v.B)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-11-05T12:00:00Z",
		"2024-11-05T07:00:00-05:00",
		"2024-11-05 12:00:00+00",
		"2024-11-05T12:00:00",
	} {
		got := ParseTime(in)
		require.NotNil(t, got, in)
		assert.True(t, want.Equal(*got), in)
	}

	assert.Nil(t, ParseTime("", "  ", "not a date"))
	got := ParseTime("", "2024-11-05")
	require.NotNil(t, got)
	assert.Equal(t, 5, got.Day())
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}

func ptr(v float64) *float64 { return &v }
