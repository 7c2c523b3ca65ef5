package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Run("RecordTrack", func(t *testing.T) {
		before := testutil.ToFloat64(TracksTotal.WithLabelValues("spotify", "missed"))
		RecordTrack("spotify", "missed")
		after := testutil.ToFloat64(TracksTotal.WithLabelValues("spotify", "missed"))
		if after-before != 1 {
			t.Errorf("expected counter to increase by 1, got %v", after-before)
		}
	})

	t.Run("conversion gauge", func(t *testing.T) {
		before := testutil.ToFloat64(ActiveConversions)
		RecordConversionStart()
		if testutil.ToFloat64(ActiveConversions) != before+1 {
			t.Error("expected active conversions to increase")
		}
		RecordConversionDone("youtube", "completed", time.Second)
		if testutil.ToFloat64(ActiveConversions) != before {
			t.Error("expected active conversions to return to previous value")
		}
	})
}
