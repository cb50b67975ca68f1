package month

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse("03-2024")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2024, Month: time.March}, m)
	assert.Equal(t, "03-2024", m.String())
	assert.Equal(t, "2024-03", m.ISO())

	_, err = Parse("2024-03")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Parse("13-2024")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseISO(t *testing.T) {
	for _, s := range []string{"2024-03", "2024-03-01", "2024-03-01T00:00:00Z"} {
		m, err := ParseISO(s)
		require.NoError(t, err, s)
		assert.Equal(t, MustParse("03-2024"), m, s)
	}
}

func TestCompare_IsCalendarOrder(t *testing.T) {
	// "12-2023" sorts after "01-2024" as a string.
	dec, jan := MustParse("12-2023"), MustParse("01-2024")
	assert.True(t, dec.Before(jan))
	assert.True(t, jan.After(dec))
	assert.Equal(t, 0, jan.Compare(MustParse("01-2024")))

	ms := []Month{jan, MustParse("11-2024"), dec}
	Sort(ms)
	assert.Equal(t, []Month{dec, jan, MustParse("11-2024")}, ms)
}

func TestAddMonths_CrossesYears(t *testing.T) {
	m := MustParse("11-2023")
	assert.Equal(t, MustParse("01-2024"), m.AddMonths(2))
	assert.Equal(t, MustParse("12-2022"), m.AddMonths(-11))
	assert.Equal(t, MustParse("12-2023"), MustParse("01-2024").Prev())
	assert.Equal(t, MustParse("01-2025"), New(2024, 13))
}

func TestOf_EndOfMonthDoesNotDrift(t *testing.T) {
	m := Of(time.Date(2024, time.January, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, MustParse("02-2024"), m.Next())
	assert.Equal(t, MustParse("03-2024"), m.Next().Next())
}

func TestSpan(t *testing.T) {
	span := Span(MustParse("11-2023"), MustParse("02-2024"))
	require.Len(t, span, 4)
	assert.Equal(t, "11-2023", span[0].String())
	assert.Equal(t, "02-2024", span[3].String())

	assert.Empty(t, Span(MustParse("02-2024"), MustParse("01-2024")))
}

func TestRange_Contains(t *testing.T) {
	r := Range{From: MustParse("01-2024"), To: MustParse("03-2024")}
	assert.True(t, r.Contains(MustParse("01-2024")))
	assert.True(t, r.Contains(MustParse("03-2024")))
	assert.False(t, r.Contains(MustParse("04-2024")))
	assert.False(t, r.Contains(MustParse("12-2023")))
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		M Month `json:"month"`
	}{MustParse("07-2024")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"month":"07-2024"}`, string(b))

	var out struct {
		M Month `json:"month"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"month":"08-2024"}`), &out))
	assert.Equal(t, MustParse("08-2024"), out.M)
}
