package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateRange(t *testing.T) {
	r, err := NewDateRange("2025-01-30", "2025-02-02")
	require.NoError(t, err)

	var days []string
	for _, d := range r.Days() {
		days = append(days, FormatDate(d))
	}
	require.Equal(t, []string{"2025-01-30", "2025-01-31", "2025-02-01", "2025-02-02"}, days)
	require.Equal(t, "2025-01-30..2025-02-02", r.String())

	single, err := NewDateRange("2025-03-01", "")
	require.NoError(t, err)
	require.Len(t, single.Days(), 1)
	require.Equal(t, "2025-03-01", single.String())

	_, err = NewDateRange("2025-03-02", "2025-03-01")
	require.Error(t, err)
	_, err = NewDateRange("2025/03/01", "")
	require.Error(t, err)
}

func TestYesterday(t *testing.T) {
	clock := FixedTime{At: time.Date(2025, 3, 1, 0, 30, 0, 0, Shanghai())}
	require.Equal(t, "2025-02-28", Yesterday(clock))
}
