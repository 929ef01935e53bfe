package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// DigestConfig controls how often grouped error entries are shipped.
type DigestConfig struct {
	TimeInterval   time.Duration // flush period
	CountThreshold int           // distinct entries that force an early flush
	Topic          string
	Publisher      Publisher
}

// DigestEntry is one group of identical error lines.
type DigestEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields"`
	Caller    string         `json:"caller"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
}

// Digest groups error log lines by level, message and call site and
// publishes the groups periodically. Fields come from the first occurrence,
// so per-entity ids collapse into one line.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	entries map[string]*DigestEntry
	order   []string
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDigest(cfg *DigestConfig) *Digest {
	c := *cfg
	if c.TimeInterval <= 0 {
		c.TimeInterval = time.Minute
	}
	if c.CountThreshold <= 0 {
		c.CountThreshold = 100
	}
	d := &Digest{
		cfg:     c,
		entries: make(map[string]*DigestEntry),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// Add records one occurrence.
func (d *Digest) Add(level, msg string, fields []Field, caller string) {
	now := time.Now()
	key := level + "\x00" + msg + "\x00" + caller

	d.mu.Lock()
	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		m := make(map[string]any, len(fields))
		for _, f := range fields {
			m[f.Key] = f.Value
		}
		d.entries[key] = &DigestEntry{Level: level, Message: msg, Fields: m, Caller: caller, Count: 1, FirstSeen: now, LastSeen: now}
		d.order = append(d.order, key)
	}
	full := len(d.entries) >= d.cfg.CountThreshold
	d.mu.Unlock()

	if full {
		select {
		case d.kick <- struct{}{}:
		default:
		}
	}
}

func (d *Digest) loop() {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.flush()
		case <-d.kick:
			d.flush()
		case <-d.done:
			d.flush()
			return
		}
	}
}

func (d *Digest) take() []DigestEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.order) == 0 {
		return nil
	}
	out := make([]DigestEntry, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, *d.entries[k])
	}
	d.entries = make(map[string]*DigestEntry)
	d.order = nil
	return out
}

func (d *Digest) flush() {
	batch := d.take()
	if len(batch) == 0 || d.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
		// The logger itself is the failing sink here.
		fmt.Fprintf(os.Stderr, "log digest: publish to %s: %v\n", d.cfg.Topic, err)
	}
}

// Close publishes whatever is pending and stops the flush loop.
func (d *Digest) Close() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}
