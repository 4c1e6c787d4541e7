// Package download runs batches of links through the supervisor one
// after another.
package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kilimcininkoroglu/earbound/internal/link"
	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
)

// QueueItem is one link of a batch
type QueueItem struct {
	ID             int
	Line           int // source line, 0 when added directly
	Link           string
	BaseDirectory  string
	Classification link.Classification
	Status         QueueStatus
	Outcome        *supervisor.Outcome
	Error          error
	StartTime      time.Time
	EndTime        time.Time
}

// QueueStatus represents the status of a queue item
type QueueStatus int

const (
	QueueStatusPending QueueStatus = iota
	QueueStatusRunning
	QueueStatusCompleted
	QueueStatusWarnings
	QueueStatusFailed
	QueueStatusSkipped
	QueueStatusCanceled
)

func (s QueueStatus) String() string {
	switch s {
	case QueueStatusPending:
		return "pending"
	case QueueStatusRunning:
		return "running"
	case QueueStatusCompleted:
		return "completed"
	case QueueStatusWarnings:
		return "warnings"
	case QueueStatusFailed:
		return "failed"
	case QueueStatusSkipped:
		return "skipped"
	case QueueStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// statusFor maps a finished request to the item status
func statusFor(o supervisor.Outcome) QueueStatus {
	switch o.Kind {
	case supervisor.Completed:
		return QueueStatusCompleted
	case supervisor.CompletedWithWarnings:
		return QueueStatusWarnings
	case supervisor.Cancelled:
		if errors.Is(o.Err, supervisor.ErrDeclined) {
			return QueueStatusSkipped
		}
		return QueueStatusCanceled
	default:
		return QueueStatusFailed
	}
}

// QueueStats holds queue statistics
type QueueStats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Warnings  int
	Failed    int
	Skipped   int
	Canceled  int
	Files     int
}

// Succeeded counts items that left audio on disk
func (s QueueStats) Succeeded() int {
	return s.Completed + s.Warnings
}

// Queue holds the links of a batch
type Queue struct {
	items   []*QueueItem
	baseDir string
	mu      sync.RWMutex
}

// NewQueue creates a queue whose items default to baseDir
func NewQueue(baseDir string) *Queue {
	return &Queue{
		items:   make([]*QueueItem, 0),
		baseDir: baseDir,
	}
}

// Add adds a link, using the queue's base directory
func (q *Queue) Add(text string) error {
	return q.AddWithDirectory(text, "")
}

// AddWithDirectory adds a link saved under baseDir. Links that cannot
// be classified are rejected.
func (q *Queue) AddWithDirectory(text, baseDir string) error {
	item, err := q.newItem(text, baseDir)
	if err != nil {
		return err
	}
	q.append(item)
	return nil
}

func (q *Queue) newItem(text, baseDir string) (*QueueItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty link")
	}

	raw := link.Extract(text)
	c, err := link.Classify(raw)
	if err != nil {
		return nil, err
	}

	if baseDir == "" {
		baseDir = q.baseDir
	}
	return &QueueItem{
		Link:           raw,
		BaseDirectory:  baseDir,
		Classification: c,
		Status:         QueueStatusPending,
	}, nil
}

func (q *Queue) append(item *QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item.ID = len(q.items)
	q.items = append(q.items, item)
}

// LoadFromFile loads links from a file, see Load
func (q *Queue) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()
	return q.Load(file)
}

// Load reads one link per line. Supported forms:
//
//	LINK
//	LINK BASE_DIR
//	LINK|BASE_DIR
//
// Blank lines and lines starting with # are ignored. Lines whose link
// cannot be classified are kept as skipped items so the summary can
// report them.
func (q *Queue) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rawLink, baseDir := splitLine(line)
		item, err := q.newItem(rawLink, baseDir)
		if err != nil {
			log.WithField("line", lineNum).WithError(err).Warn("Skipping batch entry")
			item = &QueueItem{
				Link:   rawLink,
				Status: QueueStatusSkipped,
				Error:  fmt.Errorf("line %d: %w", lineNum, err),
			}
		}
		item.Line = lineNum
		q.append(item)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	return nil
}

func splitLine(line string) (rawLink, baseDir string) {
	if before, after, ok := strings.Cut(line, "|"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	fields := strings.Fields(line)
	rawLink = fields[0]
	if len(fields) > 1 {
		// The rest of the line is the directory, spaces included.
		baseDir = strings.TrimSpace(strings.TrimPrefix(line, rawLink))
	}
	return rawLink, baseDir
}

// Items returns a snapshot of the queue items
func (q *Queue) Items() []*QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	items := make([]*QueueItem, len(q.items))
	copy(items, q.items)
	return items
}

// Get returns a queue item by ID
func (q *Queue) Get(id int) *QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if id < 0 || id >= len(q.items) {
		return nil
	}
	return q.items[id]
}

// NextPending returns the next pending item
func (q *Queue) NextPending() *QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if item.Status == QueueStatusPending {
			return item
		}
	}
	return nil
}

func (q *Queue) start(item *QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item.Status = QueueStatusRunning
	item.StartTime = time.Now()
}

func (q *Queue) finish(item *QueueItem, o *supervisor.Outcome, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item.EndTime = time.Now()
	item.Outcome = o
	switch {
	case err != nil:
		item.Status = QueueStatusFailed
		item.Error = err
	case o != nil:
		item.Status = statusFor(*o)
		item.Error = o.Err
	}
}

// cancelPending marks every item that has not run as canceled
func (q *Queue) cancelPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Status == QueueStatusPending {
			item.Status = QueueStatusCanceled
		}
	}
}

// Stats returns queue statistics
func (q *Queue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := QueueStats{
		Total: len(q.items),
	}

	for _, item := range q.items {
		switch item.Status {
		case QueueStatusPending:
			stats.Pending++
		case QueueStatusRunning:
			stats.Running++
		case QueueStatusCompleted:
			stats.Completed++
		case QueueStatusWarnings:
			stats.Warnings++
		case QueueStatusFailed:
			stats.Failed++
		case QueueStatusSkipped:
			stats.Skipped++
		case QueueStatusCanceled:
			stats.Canceled++
		}
		if item.Outcome != nil {
			stats.Files += len(item.Outcome.Files)
		}
	}

	return stats
}

// IsComplete returns true if all items are processed
func (q *Queue) IsComplete() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if item.Status == QueueStatusPending || item.Status == QueueStatusRunning {
			return false
		}
	}
	return true
}

// Count returns the number of items in the queue
func (q *Queue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Clear removes all items from the queue
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]*QueueItem, 0)
}

// Runner executes one request to completion. *supervisor.Supervisor
// satisfies it.
type Runner interface {
	Run(ctx context.Context, req supervisor.Request, fn func(supervisor.Event)) (supervisor.Outcome, error)
}

// QueueCallback receives every supervisor event of the running item
type QueueCallback func(item *QueueItem, ev supervisor.Event)

// QueueManager drives a queue through a Runner, one item at a time.
// The supervisor admits a single request, so items never overlap.
type QueueManager struct {
	queue    *Queue
	runner   Runner
	callback QueueCallback
}

// NewQueueManager creates a new queue manager
func NewQueueManager(queue *Queue, runner Runner) *QueueManager {
	return &QueueManager{
		queue:  queue,
		runner: runner,
	}
}

// SetCallback sets the event callback
func (qm *QueueManager) SetCallback(cb QueueCallback) {
	qm.callback = cb
}

// Queue returns the underlying queue
func (qm *QueueManager) Queue() *Queue {
	return qm.queue
}

// Run processes pending items in order. A cancelled item, other than a
// declined duplicate, or a done ctx stops the batch and marks the rest
// canceled.
func (qm *QueueManager) Run(ctx context.Context) QueueStats {
	for {
		if ctx.Err() != nil {
			qm.queue.cancelPending()
			break
		}
		item := qm.queue.NextPending()
		if item == nil {
			break
		}

		qm.queue.start(item)
		entry := log.WithFields(log.Fields{"item": item.ID + 1, "link": item.Link})
		entry.Info("Starting batch item")

		outcome, err := qm.runner.Run(ctx, supervisor.Request{
			Link:          item.Link,
			BaseDirectory: item.BaseDirectory,
		}, func(ev supervisor.Event) {
			if qm.callback != nil {
				qm.callback(item, ev)
			}
		})
		if err != nil {
			qm.queue.finish(item, nil, err)
			entry.WithError(err).Error("Batch item not started")
			continue
		}
		qm.queue.finish(item, &outcome, nil)

		if item.Status == QueueStatusCanceled {
			qm.queue.cancelPending()
			break
		}
	}
	return qm.queue.Stats()
}
