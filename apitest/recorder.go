package apitest

import (
	"sync"
	"time"

	"github.com/tripsuite/booking-contract-tests/client"
)

// Record is one request made during a run.
type Record struct {
	TestID  string
	Service string
	// Attempt is the iteration number for probe requests, or zero.
	Attempt int
	Result  client.Result
	Time    time.Time
}

// Recorder is the in-memory log of every request in a run. The report is built from it.
type Recorder struct {
	records []Record
	lock    sync.Mutex
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Add(record Record) {
	if r == nil {
		return
	}
	r.lock.Lock()
	r.records = append(r.records, record)
	r.lock.Unlock()
}

func (r *Recorder) Records() []Record {
	if r == nil {
		return nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Record(nil), r.records...)
}
