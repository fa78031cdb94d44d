// Package notify is the boundary to the external notification system. Core
// services enqueue events fire-and-forget; delivery failures never affect
// the outcome of the operation that raised them.
package notify

import (
	"log"
	"sync"
)

type Kind string

const (
	KindContractCreated    Kind = "contract_created"
	KindBidRejected        Kind = "bid_rejected"
	KindMilestoneUpdated   Kind = "milestone_updated"
	KindContractCompleted  Kind = "contract_completed"
	KindContractCancelled  Kind = "contract_cancelled"
	KindPaymentCompleted   Kind = "payment_completed"
	KindWithdrawalSettled  Kind = "withdrawal_settled"
	KindReviewReceived     Kind = "review_received"
)

// Event is what services hand to the queue.
type Event struct {
	Kind      Kind
	UserID    string
	Reference string
	Message   string
}

// Sink delivers a single event. The default sink just logs; a real
// deployment plugs in mail or push delivery here.
type Sink func(Event)

// Queue buffers events and delivers them on a background goroutine.
type Queue struct {
	ch   chan Event
	sink Sink
	wg   sync.WaitGroup
	once sync.Once
}

func NewQueue(sink Sink) *Queue {
	if sink == nil {
		sink = func(e Event) {
			log.Printf("notify: %s user=%s ref=%s %s", e.Kind, e.UserID, e.Reference, e.Message)
		}
	}
	q := &Queue{ch: make(chan Event, 256), sink: sink}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for e := range q.ch {
		q.sink(e)
	}
}

// Enqueue never blocks; if the buffer is full the event is dropped.
func (q *Queue) Enqueue(e Event) {
	select {
	case q.ch <- e:
	default:
		log.Printf("notify: queue full, dropping %s for %s", e.Kind, e.UserID)
	}
}

// Close drains the queue and stops the worker.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.ch)
		q.wg.Wait()
	})
}
