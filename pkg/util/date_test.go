package util

import (
	"strconv"
	"testing"
	"time"
)

func TestTradingDayUsesLocation(t *testing.T) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 03:00 UTC is still the previous day in New York.
	utc := time.Date(2024, 10, 11, 3, 0, 0, 0, time.UTC)
	if got := TradingDay(utc, et); got != "2024-10-10" {
		t.Fatalf("unexpected trading day %s", got)
	}
	if got := TradingDay(utc, time.UTC); got != "2024-10-11" {
		t.Fatalf("unexpected utc day %s", got)
	}
}

func TestSameTradingDayBoundary(t *testing.T) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	before := time.Date(2024, 10, 10, 23, 59, 59, 0, et)
	after := time.Date(2024, 10, 11, 0, 0, 1, 0, et)
	if SameTradingDay(before, after, et) {
		t.Fatal("expected different trading days across midnight")
	}
	if !SameTradingDay(before, before.Add(-time.Hour), et) {
		t.Fatal("expected same trading day within one day")
	}
}

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestFromUnixFlexibleMillis(t *testing.T) {
	ms := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).UnixMilli()
	got := FromUnixFlexible(ms)
	if got.UnixMilli() != ms {
		t.Fatalf("unexpected millis %v", got.UnixMilli())
	}
}
