package mqtt

import (
	"sync"
	"time"
)

// DailyTokens accumulates token counts and resets at local midnight,
// matching the "today" semantics of the discovery sensors.
type DailyTokens struct {
	mu       sync.Mutex
	day      time.Time
	input    int64
	output   int64
	requests int64
	now      func() time.Time
}

func NewDailyTokens() *DailyTokens {
	return &DailyTokens{now: time.Now}
}

func (d *DailyTokens) Add(input, output int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollover()
	d.input += int64(input)
	d.output += int64(output)
	d.requests++
}

// Totals returns today's input/output token counts and request count.
func (d *DailyTokens) Totals() (input, output, requests int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollover()
	return d.input, d.output, d.requests
}

func (d *DailyTokens) rollover() {
	now := d.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !today.Equal(d.day) {
		d.day = today
		d.input = 0
		d.output = 0
		d.requests = 0
	}
}
