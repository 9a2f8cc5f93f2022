package proctor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var testLog = zerolog.Nop()

// journal records the order of side effects across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeSink struct {
	mu      sync.Mutex
	records []ViolationRecord
	err     error
	journal *journal
}

func (s *fakeSink) AppendViolation(_ context.Context, rec ViolationRecord) error {
	s.journal.add("append:" + string(rec.Type))
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) all() []ViolationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ViolationRecord(nil), s.records...)
}

func (s *fakeSink) ofType(t ViolationType) []ViolationRecord {
	var out []ViolationRecord
	for _, r := range s.all() {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

type upload struct {
	bucket, path, contentType string
	data                      []byte
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []upload
	delay   time.Duration
	err     error
	journal *journal
}

func (s *fakeStorage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	s.uploads = append(s.uploads, upload{bucket: bucket, path: path, data: data, contentType: contentType})
	s.mu.Unlock()
	s.journal.add("upload")
	return path, nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

type fakeTrack struct {
	mu      sync.Mutex
	stopped int
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped++
	t.mu.Unlock()
}

func (t *fakeTrack) stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	tracks []*fakeTrack
}

func newFakeStream() *fakeStream {
	return &fakeStream{tracks: []*fakeTrack{{}}}
}

func (s *fakeStream) Tracks() []MediaTrack {
	out := make([]MediaTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

type fakeDevices struct {
	mu       sync.Mutex
	stream   MediaStream
	err      error
	requests []Constraints
}

func (d *fakeDevices) GetUserMedia(_ context.Context, c Constraints) (MediaStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, c)
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type fakeVideo struct {
	mu     sync.Mutex
	played []MediaStream
	frame  image.Image
	err    error
}

func newFakeVideo() *fakeVideo {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return &fakeVideo{frame: img}
}

func (v *fakeVideo) Play(s MediaStream) error {
	v.mu.Lock()
	v.played = append(v.played, s)
	v.mu.Unlock()
	return nil
}

func (v *fakeVideo) Frame() (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame, v.err
}

func (v *fakeVideo) plays() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.played)
}

type fakeDisplay struct {
	mu        sync.Mutex
	requestFn func()
	err       error
	requests  int
	exits     int
}

func (d *fakeDisplay) RequestFullscreen(context.Context) error {
	d.mu.Lock()
	d.requests++
	fn := d.requestFn
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
	return d.err
}

func (d *fakeDisplay) ExitFullscreen(context.Context) error {
	d.mu.Lock()
	d.exits++
	d.mu.Unlock()
	return nil
}

func (d *fakeDisplay) counts() (requests, exits int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests, d.exits
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *fakeNotifier) Notify(notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *fakeNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notices))
	for i, x := range n.notices {
		out[i] = x.Title
	}
	return out
}

type fakeExtensions struct {
	mu    sync.Mutex
	total int
	err   error
	calls int
}

func (f *fakeExtensions) TotalExtensionMinutes(context.Context, uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.total, f.err
}

func (f *fakeExtensions) set(total int) {
	f.mu.Lock()
	f.total = total
	f.mu.Unlock()
}

func (f *fakeExtensions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAttempts struct {
	mu         sync.Mutex
	answers    map[uuid.UUID]Answer
	marks      map[uuid.UUID]float64
	submitted  []Submission
	saveDelay  time.Duration
	saveErr    error
	listCalls  int
	saveCalls  int
	markCalled chan struct{}
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{answers: make(map[uuid.UUID]Answer)}
}

func (f *fakeAttempts) SaveAnswers(ctx context.Context, _ uuid.UUID, answers []Answer) error {
	if f.saveDelay > 0 {
		time.Sleep(f.saveDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, a := range answers {
		f.answers[a.QuestionID] = a
	}
	return nil
}

func (f *fakeAttempts) ListAnswers(context.Context, uuid.UUID) ([]Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]Answer, 0, len(f.answers))
	for _, a := range f.answers {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAttempts) SaveMarks(_ context.Context, _ uuid.UUID, marks map[uuid.UUID]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = marks
	return nil
}

func (f *fakeAttempts) MarkSubmitted(_ context.Context, s Submission) error {
	f.mu.Lock()
	f.submitted = append(f.submitted, s)
	ch := f.markCalled
	f.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeAttempts) submissions() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submission(nil), f.submitted...)
}

func (f *fakeAttempts) failSaves(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}

func (f *fakeAttempts) saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

func (f *fakeAttempts) gradingPasses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeQuestions []Question

func (q fakeQuestions) ListQuestions(context.Context, uuid.UUID) ([]Question, error) {
	return []Question(q), nil
}

type fakeGrades struct {
	bands []GradeBand
	err   error
}

func (g fakeGrades) ListGradeBands(context.Context) ([]GradeBand, error) {
	return g.bands, g.err
}

var errDenied = errors.New("NotAllowedError: Permission denied")

func testConfig() Config {
	return Config{
		Enabled:            true,
		FullscreenRequired: true,
		TabSwitchLimit:     3,
		AttemptID:          uuid.New(),
		StudentID:          uuid.New(),
		UserID:             uuid.New(),
	}
}
