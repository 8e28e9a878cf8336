package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/debugsito/scrap-sunat/db"
	"github.com/debugsito/scrap-sunat/models"
	"github.com/debugsito/scrap-sunat/scraper"
)

// fakeSearcher validates like the supervisor and answers from a table keyed by value
type fakeSearcher struct {
	mu       sync.Mutex
	outcomes map[string]models.Outcome
	errs     map[string]error
	seen     []models.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req models.SearchRequest, _ scraper.SearchOptions) (models.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := req.Validate(); err != nil {
		return models.Outcome{}, err
	}
	f.seen = append(f.seen, req)
	if err, ok := f.errs[req.Value]; ok {
		return models.Outcome{}, err
	}
	if out, ok := f.outcomes[req.Value]; ok {
		return out, nil
	}
	return models.Success(nil), nil
}

func record(ruc string) models.ResultEntry {
	return models.RecordEntry(models.NewRecord([]models.Field{{Key: "ruc", Value: models.Str(ruc)}}))
}

type fakeQueue struct {
	mu       sync.Mutex
	pending  []*db.Request
	claimErr error
	saveErr  error
	statuses map[int][]string
	counts   map[int][2]int
	sheets   map[int]string
	saved    map[int][]models.ResultEntry
}

func newFakeQueue(reqs ...*db.Request) *fakeQueue {
	return &fakeQueue{
		pending:  reqs,
		statuses: map[int][]string{},
		counts:   map[int][2]int{},
		sheets:   map[int]string{},
		saved:    map[int][]models.ResultEntry{},
	}
}

func (q *fakeQueue) ClaimNextRequest() (*db.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	if len(q.pending) == 0 {
		return nil, nil
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	q.statuses[req.ID] = append(q.statuses[req.ID], db.StatusInProgress)
	return req, nil
}

func (q *fakeQueue) UpdateRequestStatus(id int, status string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[id] = append(q.statuses[id], status)
	return nil
}

func (q *fakeQueue) UpdateRequestCounts(id int, results, errs int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counts[id] = [2]int{results, errs}
	return nil
}

func (q *fakeQueue) UpdateRequestSheetName(id int, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sheets[id] = name
	return nil
}

func (q *fakeQueue) SaveResults(id int, entries []models.ResultEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.saveErr != nil {
		return q.saveErr
	}
	q.saved[id] = entries
	return nil
}

func (q *fakeQueue) statusesOf(id int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.statuses[id]...)
}

type fakeExporter struct {
	err     error
	names   []string
	results [][]models.QueryResult
	errs    [][]string
}

func (e *fakeExporter) CreateSheetAndWriteResults(name string, results []models.QueryResult, errs []string) (string, int64, error) {
	if e.err != nil {
		return "", 0, e.err
	}
	e.names = append(e.names, name)
	e.results = append(e.results, results)
	e.errs = append(e.errs, errs)
	return name, 42, nil
}

type sentMessage struct {
	chatID  int64
	replyTo int
	text    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Notify(chatID int64, replyTo int, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{chatID, replyTo, text})
	return n.err
}

func (n *fakeNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMessage{}
	}
	return n.sent[len(n.sent)-1]
}

var errBoom = errors.New("boom")
