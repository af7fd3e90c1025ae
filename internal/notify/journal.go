package notify

import (
	"context"
	"time"
)

// RecordWriter appends one record to a journal.
type RecordWriter interface {
	Write(record any) error
}

// JournalRecord is the on-disk shape of a journaled alert.
type JournalRecord struct {
	Time       time.Time `json:"time"`
	Ticker     string    `json:"ticker"`
	Signal     string    `json:"signal"`
	Confidence *float64  `json:"confidence,omitempty"`
	Logic      []string  `json:"logic,omitempty"`
	Link       string    `json:"link,omitempty"`
}

// JournalSink keeps a local history of every alert sent.
type JournalSink struct {
	W   RecordWriter
	Now func() time.Time
}

func (s *JournalSink) Name() string { return "journal" }

func (s *JournalSink) Notify(_ context.Context, a Alert) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.W.Write(JournalRecord{
		Time:       now().UTC(),
		Ticker:     a.Ticker,
		Signal:     a.Signal,
		Confidence: a.Confidence,
		Logic:      a.Logic,
		Link:       a.Link,
	})
}
