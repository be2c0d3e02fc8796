// Package uploader drives the avatar upload dialog: staging dropped files,
// validating them, previewing and cropping, and submitting the selection to
// the avatar endpoint with progress feedback.
//
// The session stages up to five files even though the endpoint binds a single
// avatar per user; all staged files are still sent under one field, matching
// the dialog's observed behavior. The cap/endpoint mismatch is a product
// question, not something resolved here.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"avatar-service/internal/imagex"
)

const (
	// MaxStaged caps the selection set at five files.
	MaxStaged = 5

	// maxFileSize mirrors the server-side 5 MiB acceptance limit.
	maxFileSize = 5 * 1024 * 1024

	defaultChunkSize = 512 * 1024
)

type State string

const (
	StateIdle       State = "idle"
	StateSelecting  State = "selecting"
	StatePreviewing State = "previewing"
	StateCropping   State = "cropping"
	StateUploading  State = "uploading"
	StateError      State = "error"
)

// ErrUploadInFlight is returned when Upload is called while a previous
// upload has not finished; submits are serialized per session.
var ErrUploadInFlight = errors.New("upload already in progress")

// ValidationError carries the user-facing message for a rejected file
// or an over-capacity batch.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// File is one candidate image dropped into the dialog.
type File struct {
	Name string
	Type string
	Data []byte
}

type Option func(*Session)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpc = c }
}

func WithProgress(fn func(pct int)) Option {
	return func(s *Session) { s.progressFn = fn }
}

func WithChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// Session is one open upload dialog for one user. Methods are safe for
// concurrent use; only one upload may be in flight at a time.
type Session struct {
	baseURL string
	userID  string
	httpc   *http.Client

	progressFn func(pct int)
	chunkSize  int

	mu        sync.Mutex
	state     State
	files     []File
	previews  []*Preview
	cropData  string
	lastError string
	lastPct   int
	uploading bool
}

func NewSession(baseURL, userID string, opts ...Option) *Session {
	s := &Session{
		baseURL:   baseURL,
		userID:    userID,
		httpc:     &http.Client{Timeout: 60 * time.Second},
		chunkSize: defaultChunkSize,
		state:     StateSelecting,
		lastPct:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Staged returns the current selection set in drop order.
func (s *Session) Staged() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// Err returns the last surfaced error message, empty when none.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// CropData returns the data URL produced by the last crop. It is preview
// state only and is never attached to the upload payload.
func (s *Session) CropData() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cropData
}

// Add validates each candidate independently and appends the accepted ones
// in order. If the batch would push the selection past MaxStaged, the whole
// batch is rejected and nothing is staged.
func (s *Session) Add(files ...File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.files)+len(files) > MaxStaged {
		err := &ValidationError{Message: "You've reached the image limit."}
		s.lastError = err.Message
		s.state = StateError
		return err
	}

	var errs []error
	for _, f := range files {
		if err := validateFile(f); err != nil {
			errs = append(errs, err)
			continue
		}
		s.files = append(s.files, f)
		s.previews = append(s.previews, newPreview(f))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.lastError = errs[len(errs)-1].Error()
		s.state = StateError
		return err
	}

	s.lastError = ""
	if len(s.files) > 0 {
		s.state = StatePreviewing
	}
	return nil
}

func validateFile(f File) error {
	if f.Type != "image/jpeg" && f.Type != "image/png" {
		return &ValidationError{Message: fmt.Sprintf(
			"The file format of %s is not supported. Please upload an image in one of the following formats: JPG, PNG.",
			f.Name,
		)}
	}
	if len(f.Data) > maxFileSize {
		return &ValidationError{Message: "This image is larger than 5MB. Please select a smaller image."}
	}
	return nil
}

// Remove drops the staged file at index i, shifting later entries, and
// releases its preview.
func (s *Session) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.files) {
		return fmt.Errorf("no staged file at index %d", i)
	}

	s.previews[i].Release()
	s.files = append(s.files[:i], s.files[i+1:]...)
	s.previews = append(s.previews[:i], s.previews[i+1:]...)

	if len(s.files) == 0 {
		s.state = StateSelecting
	}
	return nil
}

// Previews returns the live preview handles, index-aligned with Staged.
func (s *Session) Previews() []*Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Preview, len(s.previews))
	copy(out, s.previews)
	return out
}

// Crop square-crops the staged file at index i into a PNG data URL held as
// cosmetic state; the upload payload is unaffected.
func (s *Session) Crop(i int) (string, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.files) {
		s.mu.Unlock()
		return "", fmt.Errorf("no staged file at index %d", i)
	}
	f := s.files[i]
	s.state = StateCropping
	s.mu.Unlock()

	img, err := imagex.CropSquare(bytes.NewReader(f.Data), 0)
	if err != nil {
		return "", err
	}
	dataURL, err := imagex.DataURL(img)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cropData = dataURL
	s.mu.Unlock()
	return dataURL, nil
}

// Upload posts all staged files as multipart form data to the avatar
// endpoint. Progress is reported per chunk as round(sent/total*100) and
// forced to 100 on completion; on failure it resets to 0 and the session
// stays interactive for a retry.
func (s *Session) Upload(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.uploading {
		s.mu.Unlock()
		return nil, ErrUploadInFlight
	}
	if len(s.files) == 0 {
		s.mu.Unlock()
		return nil, &ValidationError{Message: "No file selected."}
	}
	files := make([]File, len(s.files))
	copy(files, s.files)
	s.uploading = true
	s.state = StateUploading
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.uploading = false
		s.mu.Unlock()
	}()

	payload, contentType, err := buildPayload(files)
	if err != nil {
		s.fail("Upload failed. Please try again.")
		return nil, err
	}

	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/users/%s/avatar", s.baseURL, s.userID), pr)
	if err != nil {
		s.fail("Upload failed. Please try again.")
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(payload))

	go func() {
		err := writeChunks(pw, payload, s.chunkSize, s.reportProgress)
		pw.CloseWithError(err)
	}()

	resp, err := s.httpc.Do(req)
	if err != nil {
		s.fail("Upload failed. Please try again.")
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		msg := serverMessage(body)
		s.fail(msg)
		return nil, fmt.Errorf("upload rejected: %s (status %d)", msg, resp.StatusCode)
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		s.fail("Upload failed. Please try again.")
		return nil, fmt.Errorf("decode response: %w", err)
	}

	s.reportProgress(100)

	s.mu.Lock()
	s.lastError = ""
	s.releaseAllLocked()
	s.state = StateIdle
	s.mu.Unlock()

	return &res, nil
}

// Close discards the selection set and releases every preview handle.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseAllLocked()
	s.cropData = ""
	s.lastError = ""
	s.state = StateIdle
}

func (s *Session) releaseAllLocked() {
	for _, p := range s.previews {
		p.Release()
	}
	s.files = nil
	s.previews = nil
}

func (s *Session) fail(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.state = StateError
	s.lastPct = -1
	s.mu.Unlock()
	if s.progressFn != nil {
		s.progressFn(0)
	}
}

func (s *Session) reportProgress(pct int) {
	s.mu.Lock()
	if pct == s.lastPct {
		s.mu.Unlock()
		return
	}
	s.lastPct = pct
	fn := s.progressFn
	s.mu.Unlock()
	if fn != nil {
		fn(pct)
	}
}

// Result is the success payload of the avatar endpoint.
type Result struct {
	Message   string `json:"message"`
	AvatarURL string `json:"avatarUrl"`
}

func buildPayload(files []File) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar"; filename=%q`, f.Name))
		h.Set("Content-Type", f.Type)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// writeChunks copies data to w in fixed-size chunks, reporting cumulative
// progress after each write as a rounded percentage of the total.
func writeChunks(w io.Writer, data []byte, chunk int, report func(pct int)) error {
	total := len(data)
	sent := 0
	for sent < total {
		n := chunk
		if sent+n > total {
			n = total - sent
		}
		if _, err := w.Write(data[sent : sent+n]); err != nil {
			return err
		}
		sent += n
		if report != nil {
			report(int(math.Round(float64(sent) / float64(total) * 100)))
		}
	}
	return nil
}

func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return "Upload failed. Please try again."
}
