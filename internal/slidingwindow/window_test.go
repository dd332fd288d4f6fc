package slidingwindow

import "testing"

func TestAddSampleAggregates(t *testing.T) {
	w := New(60_000, 6)

	w.AddSample(true, 10)
	w.AddSample(true, 20)
	w.AddSample(false, 30)

	stats := w.Stats()
	if stats.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", stats.TotalRequests)
	}
	if stats.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", stats.FailureCount)
	}
	if stats.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", stats.SuccessCount)
	}
	wantRate := float64(1) / float64(3) * 100
	if stats.FailureRate != wantRate {
		t.Errorf("FailureRate = %v, want %v", stats.FailureRate, wantRate)
	}
	wantAvg := float64(10+20+30) / 3
	if stats.AverageResponseTimeMs != wantAvg {
		t.Errorf("AverageResponseTimeMs = %v, want %v", stats.AverageResponseTimeMs, wantAvg)
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	w := New(60_000, 6)
	stats := w.Stats()
	if stats.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", stats.TotalRequests)
	}
	if stats.FailureRate != 0 {
		t.Errorf("FailureRate = %v, want 0", stats.FailureRate)
	}
}

func TestFailureCountNeverExceedsTotal(t *testing.T) {
	w := New(60_000, 6)
	for i := 0; i < 50; i++ {
		w.AddSample(i%3 == 0, int64(i))
		stats := w.Stats()
		if stats.FailureCount > stats.TotalRequests {
			t.Fatalf("FailureCount %d > TotalRequests %d", stats.FailureCount, stats.TotalRequests)
		}
		if stats.FailureRate < 0 || stats.FailureRate > 100 {
			t.Fatalf("FailureRate %v out of [0,100]", stats.FailureRate)
		}
	}
}

func TestReset(t *testing.T) {
	w := New(60_000, 6)
	w.AddSample(false, 5)
	w.Reset()

	stats := w.Stats()
	if stats.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0 after Reset", stats.TotalRequests)
	}
}

func TestSampleContributesToExactlyOneBucket(t *testing.T) {
	w := New(60_000, 6)
	for i := 0; i < 20; i++ {
		w.AddSample(true, 1)
	}
	var total uint64
	for i := range w.buckets {
		total += w.buckets[i].totalRequests.Load()
	}
	if total != 20 {
		t.Errorf("sum of bucket totals = %d, want 20 (no double counting)", total)
	}
}
