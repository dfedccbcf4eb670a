package upload

import (
	"io"
	"sync"
	"time"
)

// ProgressUpdate reports upload transfer state. Fraction is in [0, 1] when
// TotalBytes is known, otherwise 0.
type ProgressUpdate struct {
	BytesSent  int64
	TotalBytes int64
	Fraction   float64
}

// progressReader counts bytes flowing through an io.Reader and invokes the
// callback at most once per interval, plus a final update when the stream is
// exhausted.
type progressReader struct {
	reader   io.Reader
	total    int64
	callback func(ProgressUpdate)
	interval time.Duration

	mu       sync.Mutex
	sent     int64
	lastEmit time.Time
	finished bool
}

func newProgressReader(r io.Reader, total int64, interval time.Duration, callback func(ProgressUpdate)) *progressReader {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &progressReader{reader: r, total: total, interval: interval, callback: callback, lastEmit: time.Now()}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 {
		p.advance(int64(n))
	}
	if err == io.EOF {
		p.finish()
	}
	return n, err
}

func (p *progressReader) advance(n int64) {
	p.mu.Lock()
	p.sent += n
	now := time.Now()
	emit := p.callback != nil && !p.finished && now.Sub(p.lastEmit) >= p.interval
	var update ProgressUpdate
	if emit {
		p.lastEmit = now
		update = p.snapshotLocked()
		// A complete update is the terminal one; the EOF path must not
		// repeat it.
		if p.total > 0 && p.sent >= p.total {
			p.finished = true
		}
	}
	p.mu.Unlock()
	if emit {
		p.callback(update)
	}
}

func (p *progressReader) finish() {
	p.mu.Lock()
	if p.finished || p.callback == nil {
		p.finished = true
		p.mu.Unlock()
		return
	}
	p.finished = true
	update := p.snapshotLocked()
	p.mu.Unlock()
	p.callback(update)
}

func (p *progressReader) snapshotLocked() ProgressUpdate {
	update := ProgressUpdate{BytesSent: p.sent, TotalBytes: p.total}
	if p.total > 0 {
		update.Fraction = float64(p.sent) / float64(p.total)
		if update.Fraction > 1 {
			update.Fraction = 1
		}
	}
	return update
}
