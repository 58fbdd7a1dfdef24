package ingest_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendlens/spendlens-backend/internal/ingest"
)

func TestParse(t *testing.T) {
	t.Run("parses a well-formed upload", func(t *testing.T) {
		input := strings.Join([]string{
			"description,amount,date",
			"NETFLIX.COM,-19.99,2024-01-01",
			"SPOTIFY P1234,-9.99,2024-01-05",
		}, "\n")

		result, err := ingest.Parse(strings.NewReader(input))

		require.NoError(t, err)
		require.Len(t, result.Records, 2)
		assert.Empty(t, result.Errors)

		assert.Equal(t, "NETFLIX.COM", result.Records[0].Description)
		assert.Equal(t, -19.99, result.Records[0].Amount)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), result.Records[0].Date)
	})

	t.Run("column order does not matter", func(t *testing.T) {
		input := "date,description,amount\n2024-01-01,NETFLIX.COM,-19.99\n"

		result, err := ingest.Parse(strings.NewReader(input))

		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "NETFLIX.COM", result.Records[0].Description)
	})

	t.Run("header names are case-insensitive", func(t *testing.T) {
		input := "Description,Amount,Date\nNETFLIX.COM,-19.99,2024-01-01\n"

		result, err := ingest.Parse(strings.NewReader(input))

		require.NoError(t, err)
		assert.Len(t, result.Records, 1)
	})

	t.Run("extra columns are ignored", func(t *testing.T) {
		input := "id,description,amount,date,notes\n1,NETFLIX.COM,-19.99,2024-01-01,hello\n"

		result, err := ingest.Parse(strings.NewReader(input))

		require.NoError(t, err)
		assert.Len(t, result.Records, 1)
	})

	t.Run("missing required column fails the upload", func(t *testing.T) {
		input := "description,amount\nNETFLIX.COM,-19.99\n"

		_, err := ingest.Parse(strings.NewReader(input))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "date")
	})

	t.Run("bad rows are collected, good rows survive", func(t *testing.T) {
		input := strings.Join([]string{
			"description,amount,date",
			"NETFLIX.COM,-19.99,2024-01-01",
			"BAD ROW,not-a-number,2024-01-02",
			"SPOTIFY,-9.99,not-a-date",
			",-5.00,2024-01-03",
			"HULU,-7.99,2024-01-04",
		}, "\n")

		result, err := ingest.Parse(strings.NewReader(input))

		require.NoError(t, err)
		assert.Len(t, result.Records, 2)
		require.Len(t, result.Errors, 3)

		assert.Equal(t, 3, result.Errors[0].Row)
		assert.Equal(t, "amount", result.Errors[0].Field)
		assert.Equal(t, "date", result.Errors[1].Field)
		assert.Equal(t, "description", result.Errors[2].Field)
	})

	t.Run("alternate date formats", func(t *testing.T) {
		input := strings.Join([]string{
			"description,amount,date",
			"A,-1.00,2024-01-15T10:30:00Z",
			"B,-2.00,01/15/2024",
		}, "\n")

		result, err := ingest.Parse(strings.NewReader(input))

		require.NoError(t, err)
		require.Len(t, result.Records, 2)
		assert.Equal(t, 15, result.Records[0].Date.Day())
		assert.Equal(t, time.January, result.Records[1].Date.Month())
	})

	t.Run("empty input fails on header", func(t *testing.T) {
		_, err := ingest.Parse(strings.NewReader(""))
		require.Error(t, err)
	})
}

func TestParseDate(t *testing.T) {
	_, ok := ingest.ParseDate("2024-02-29")
	assert.True(t, ok)

	_, ok = ingest.ParseDate("29 Feb 2024")
	assert.False(t, ok)
}
