package notify

import (
	"context"
	"testing"
	"time"
)

type memoryWriter struct {
	records []any
}

func (w *memoryWriter) Write(record any) error {
	w.records = append(w.records, record)
	return nil
}

func TestJournalSinkWritesRecord(t *testing.T) {
	w := &memoryWriter{}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	sink := &JournalSink{W: w, Now: func() time.Time { return at }}

	conf := 87.0
	err := sink.Notify(context.Background(), Alert{Ticker: "AAPL", Signal: "BUY", Confidence: &conf, Link: "http://dash/?ticker=AAPL"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(w.records) != 1 {
		t.Fatalf("records = %d; want 1", len(w.records))
	}
	rec, ok := w.records[0].(JournalRecord)
	if !ok {
		t.Fatalf("record type = %T; want JournalRecord", w.records[0])
	}
	if rec.Ticker != "AAPL" || rec.Signal != "BUY" || *rec.Confidence != 87 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Time.Location() != time.UTC || !rec.Time.Equal(at) {
		t.Fatalf("record time = %v; want %v in UTC", rec.Time, at)
	}
}
