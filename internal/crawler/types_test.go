package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJobRecordRowFillsSentinels(t *testing.T) {
	t.Parallel()

	listed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	scraped := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	rec := JobRecord{
		Title:          "  Backend Engineer ",
		EmploymentType: "Vollzeit",
		Location:       "",
		CompanyName:    "ACME GmbH",
		Platform:       Platform,
		ListedAt:       listed,
		ScrapedAt:      scraped,
		ID:             "id-1",
	}

	row := rec.Row()
	require.Len(t, row, len(Header))
	for i, v := range row {
		require.NotEmpty(t, v, "column %q is empty", Header[i])
	}
	require.Equal(t, "Backend Engineer", row[0])
	require.Equal(t, Sentinel, row[2])
	require.Equal(t, Sentinel, row[4])
	require.Equal(t, Platform, row[11])
	require.Equal(t, "2026-10-14T09:00:00Z", row[12])
	require.Equal(t, "2026-10-15T12:00:00Z", row[13])
	require.Equal(t, "id-1", row[14])
}

func TestJobRecordRowZeroTimestamps(t *testing.T) {
	t.Parallel()

	row := JobRecord{}.Row()
	for i, v := range row {
		if v != Sentinel {
			t.Fatalf("expected sentinel for %q, got %q", Header[i], v)
		}
	}
}

func TestBatchResultAdd(t *testing.T) {
	t.Parallel()

	total := BatchResult{Dispatched: 2, Succeeded: 1, Failed: 1}
	total.Add(BatchResult{Dispatched: 3, Succeeded: 3, SinkErrors: 1})
	require.Equal(t, BatchResult{Dispatched: 5, Succeeded: 4, Failed: 1, SinkErrors: 1}, total)
}

func TestOrSentinel(t *testing.T) {
	t.Parallel()

	require.Equal(t, Sentinel, OrSentinel("   "))
	require.Equal(t, "x", OrSentinel(" x "))
	require.True(t, IsSentinel(Sentinel))
	require.True(t, IsSentinel(""))
	require.False(t, IsSentinel("value"))
}
