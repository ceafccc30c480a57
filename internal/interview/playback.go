package interview

import "sync"

// Clip is one synthesized reply. ID equals the id of the AI message it voices.
type Clip struct {
	ID       string `json:"clip_id"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
	Data     []byte `json:"-"`
}

// PlaybackQueue plays clips strictly in enqueue order, one at a time. The
// client acknowledges each finished clip with Done, which starts the next.
type PlaybackQueue struct {
	mu      sync.Mutex
	pending []Clip
	current *Clip
	play    func(Clip)
}

func NewPlaybackQueue(play func(Clip)) *PlaybackQueue {
	return &PlaybackQueue{play: play}
}

func (q *PlaybackQueue) Enqueue(c Clip) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		q.current = &c
		q.play(c)
		return
	}
	q.pending = append(q.pending, c)
}

// Done marks the playing clip finished. It returns false if clipID is not the
// clip currently playing.
func (q *PlaybackQueue) Done(clipID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil || q.current.ID != clipID {
		return false
	}
	if len(q.pending) == 0 {
		q.current = nil
		return true
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.current = &next
	q.play(next)
	return true
}

// Current returns the clip being played, if any.
func (q *PlaybackQueue) Current() (Clip, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Clip{}, false
	}
	return *q.current, true
}

// Len counts the playing clip and everything queued behind it.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.current != nil {
		n++
	}
	return n
}

func (q *PlaybackQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.current = nil
}
