package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/invisible-tech/network-event-observer/pkg/observe"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func record(id string, ts time.Time, eventType, risk, protocol, errText string) observe.Record {
	rec := observe.Record{
		ID:        id,
		Model:     "llama3.2:3b",
		Timestamp: ts,
		Messages:  json.RawMessage(`[{"role":"user","content":"analyze"}]`),
		Error:     errText,
	}
	if errText == "" {
		rec.AssistantMessage = "assessment"
		rec.FinishReason = "stop"
		rec.TotalTokens = 30
	}
	if eventType != "" {
		rec.Properties = map[string]interface{}{
			"event_type": eventType,
			"risk_level": risk,
			"protocol":   protocol,
			"port":       443,
		}
	}
	return rec
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := st.Insert(context.Background(), record("r1", base, "ddos", "high", "UDP", "")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	total, _, err := st.Count(context.Background())
	if err != nil || total != 1 {
		t.Errorf("after reopen: total=%d err=%v", total, err)
	}
	if st.Path() != path {
		t.Errorf("Path = %q", st.Path())
	}
}

func TestOpen_PathWithURISyntax(t *testing.T) {
	for _, dir := range []string{"a#b", "a?b", "a%20b", "with space"} {
		t.Run(dir, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), dir, "events.db")
			st, err := Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
			if err := st.Insert(context.Background(), record("r1", base, "ddos", "high", "UDP", "")); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			st.Close()

			if _, err := os.Stat(path); err != nil {
				t.Fatalf("database not created at %q: %v", path, err)
			}
			st, err = Open(path)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st.Close()
			if total, _, err := st.Count(context.Background()); err != nil || total != 1 {
				t.Errorf("after reopen: total=%d err=%v", total, err)
			}
		})
	}
}

func TestStore_InsertGet(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 6, 1, 10, 0, 0, 123456789, time.UTC)
	rec := record("r1", ts, "port_scan", "high", "TCP", "")
	rec.Tags = []string{"generator"}

	if err := st.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := st.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Timestamp.Equal(ts) || got.Model != rec.Model || got.AssistantMessage != "assessment" {
		t.Errorf("Get = %+v", got)
	}
	if got.Properties["event_type"] != "port_scan" {
		t.Errorf("Properties = %+v", got.Properties)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "generator" {
		t.Errorf("Tags = %+v", got.Tags)
	}
	if got.Error != "" || got.TotalTokens != 30 {
		t.Errorf("Error=%q TotalTokens=%d", got.Error, got.TotalTokens)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	st := openTemp(t)
	if _, err := st.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestStore_Insert_Validation(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	if err := st.Insert(ctx, observe.Record{Timestamp: time.Now()}); err == nil {
		t.Error("expected error for empty id")
	}
	if err := st.Insert(ctx, observe.Record{ID: "x"}); err == nil {
		t.Error("expected error for zero timestamp")
	}
	ok := record("dup", time.Now(), "", "", "", "")
	if err := st.Insert(ctx, ok); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := st.Insert(ctx, ok); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func seed(t *testing.T, st *Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := []observe.Record{
		record("r1", base, "port_scan", "high", "TCP", ""),
		record("r2", base.Add(100*time.Millisecond), "ddos", "high", "UDP", ""),
		record("r3", base.Add(time.Second), "port_scan", "high", "HTTP", ""),
		record("r4", base.Add(2*time.Second), "data_exfiltration", "medium", "HTTPS", ""),
		record("r5", base.Add(3*time.Second), "normal_traffic", "low", "TCP", "service unavailable"),
		record("r6", base.Add(4*time.Second), "", "", "", ""),
	}
	for _, r := range rows {
		if err := st.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s: %v", r.ID, err)
		}
	}
}

func TestStore_CountBy(t *testing.T) {
	st := openTemp(t)
	seed(t, st)
	ctx := context.Background()

	types, err := st.CountBy(ctx, PropertyEventType)
	if err != nil {
		t.Fatalf("CountBy: %v", err)
	}
	if len(types) != 4 {
		t.Fatalf("event types: want 4 buckets, got %+v", types)
	}
	if types[0].Value != "port_scan" || types[0].Count != 2 {
		t.Errorf("top bucket = %+v", types[0])
	}

	risks, err := st.CountBy(ctx, PropertyRiskLevel)
	if err != nil {
		t.Fatalf("CountBy risk: %v", err)
	}
	want := map[string]int64{"high": 3, "medium": 1, "low": 1}
	for _, b := range risks {
		if want[b.Value] != b.Count {
			t.Errorf("risk %q: got %d, want %d", b.Value, b.Count, want[b.Value])
		}
	}

	protocols, err := st.CountBy(ctx, PropertyProtocol)
	if err != nil {
		t.Fatalf("CountBy protocol: %v", err)
	}
	if len(protocols) != 4 {
		t.Errorf("protocols = %+v", protocols)
	}
}

func TestStore_CountBy_RejectsUnknownProperty(t *testing.T) {
	st := openTemp(t)
	for _, p := range []string{"port", "source_ip", "x') OR 1=1 --"} {
		if _, err := st.CountBy(context.Background(), p); err == nil {
			t.Errorf("CountBy(%q): expected error", p)
		}
	}
}

func TestStore_Timeline(t *testing.T) {
	st := openTemp(t)
	seed(t, st)
	points, err := st.Timeline(context.Background())
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("timeline: want 5 seconds, got %+v", points)
	}
	if points[0].Timestamp != "2024-06-01T10:00:00" || points[0].Count != 2 {
		t.Errorf("first point = %+v", points[0])
	}
	for i := 1; i < len(points); i++ {
		if points[i-1].Timestamp >= points[i].Timestamp {
			t.Errorf("timeline not ascending at %d", i)
		}
	}
}

func TestStore_RiskTrend(t *testing.T) {
	st := openTemp(t)
	seed(t, st)
	points, err := st.RiskTrend(context.Background())
	if err != nil {
		t.Fatalf("RiskTrend: %v", err)
	}
	want := []RiskTrendPoint{
		{Timestamp: "2024-06-01T10:00:00", High: 2},
		{Timestamp: "2024-06-01T10:00:01", High: 1},
		{Timestamp: "2024-06-01T10:00:02", Medium: 1},
		{Timestamp: "2024-06-01T10:00:03", Low: 1},
	}
	if len(points) != len(want) {
		t.Fatalf("risk trend: want %d points, got %+v", len(want), points)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, points[i], want[i])
		}
	}
}

func TestStore_RiskTrend_Empty(t *testing.T) {
	st := openTemp(t)
	points, err := st.RiskTrend(context.Background())
	if err != nil {
		t.Fatalf("RiskTrend: %v", err)
	}
	if points == nil || len(points) != 0 {
		t.Errorf("empty risk trend = %#v", points)
	}
}

func TestStore_Recent(t *testing.T) {
	st := openTemp(t)
	seed(t, st)
	ctx := context.Background()

	recent, err := st.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent(3): got %d", len(recent))
	}
	if recent[0].ID != "r6" || recent[1].ID != "r5" || recent[2].ID != "r4" {
		t.Errorf("order = %s,%s,%s", recent[0].ID, recent[1].ID, recent[2].ID)
	}
	if recent[1].Error != "service unavailable" || recent[1].EventType != "normal_traffic" {
		t.Errorf("r5 = %+v", recent[1])
	}
	if recent[0].EventType != "" {
		t.Errorf("record without properties should have empty event type, got %q", recent[0].EventType)
	}

	if _, err := st.Recent(ctx, 0); err == nil {
		t.Error("expected error for limit 0")
	}
}

func TestStore_Stats(t *testing.T) {
	st := openTemp(t)
	seed(t, st)
	stats, err := st.Stats(context.Background(), 10)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 6 || stats.Failed != 1 || stats.Succeeded != 5 {
		t.Errorf("Total=%d Failed=%d Succeeded=%d", stats.Total, stats.Failed, stats.Succeeded)
	}
	if len(stats.Recent) != 6 || len(stats.EventTypes) != 4 || len(stats.RiskTrend) != 4 {
		t.Errorf("stats = %+v", stats)
	}

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["risk_trend"]; !ok {
		t.Errorf("snapshot JSON missing risk_trend: %s", data)
	}
}

func TestStore_Stats_Empty(t *testing.T) {
	st := openTemp(t)
	stats, err := st.Stats(context.Background(), 10)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 || len(stats.Recent) != 0 || stats.EventTypes == nil {
		t.Errorf("empty stats = %+v", stats)
	}
	data, _ := json.Marshal(stats)
	if string(data) == "" {
		t.Error("stats should marshal")
	}
}

func TestStore_ImplementsRecorder(t *testing.T) {
	var _ observe.Recorder = (*Store)(nil)
}
