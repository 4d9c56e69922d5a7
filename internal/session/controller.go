// Package session holds the per-browser state machine that drives one
// upload → remove background → download cycle at a time.
package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kdduha/bgremover/internal/encoder"
	"go.uber.org/zap"
)

const (
	FailureMessage   = "Failed to remove background. Please try again."
	ResultMIMEType   = "image/png"
	DownloadFilename = "background-removed.png"
)

// ErrClosed is returned by SelectFile once the session has been torn down.
var ErrClosed = errors.New("session closed")

type remover interface {
	RemoveBackground(ctx context.Context, base64Image, mimeType string) (string, error)
}

// SelectedFile is the image picked by the user.
type SelectedFile struct {
	Name       string
	Data       []byte
	MIMEType   string
	PreviewURL string
}

// Download is the attachment served for a finished result.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

type job struct {
	file       SelectedFile
	generation uint64
}

// Controller is safe for concurrent use. At most one removal runs at a time.
type Controller struct {
	logger   *zap.Logger
	remover  remover
	previews *PreviewStore

	mu         sync.Mutex
	file       *SelectedFile
	result     string
	errMsg     string
	loading    bool
	inFlight   bool
	generation uint64
	closed     bool
	updatedAt  time.Time
	lastActive time.Time
}

func NewController(logger *zap.Logger, remover remover, previews *PreviewStore) *Controller {
	now := time.Now()
	return &Controller{
		logger:     logger,
		remover:    remover,
		previews:   previews,
		updatedAt:  now,
		lastActive: now,
	}
}

// SelectFile replaces the current file from any state and moves to Ready.
// The previous preview is released before the new one is acquired.
// A closed controller acquires nothing and returns ErrClosed.
func (c *Controller) SelectFile(name string, data []byte, mimeType string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.snapshotLocked(), ErrClosed
	}

	if c.file != nil && c.file.PreviewURL != "" {
		c.previews.Release(c.file.PreviewURL)
	}

	c.file = &SelectedFile{
		Name:       name,
		Data:       data,
		MIMEType:   mimeType,
		PreviewURL: c.previews.Acquire(data, mimeType),
	}
	c.result = ""
	c.errMsg = ""
	c.loading = false
	c.generation++
	c.markLocked()

	c.logger.Debug("file selected",
		zap.String("name", name),
		zap.String("mime_type", mimeType),
		zap.Int("size", len(data)))

	return c.snapshotLocked(), nil
}

// TriggerAction runs encode and removal for the selected file and blocks
// until the outcome is stored. It returns false without doing anything when
// no file is selected or a removal is already running.
func (c *Controller) TriggerAction(ctx context.Context) bool {
	j, ok := c.begin()
	if !ok {
		return false
	}
	c.run(ctx, j)
	return true
}

// TriggerActionAsync is TriggerAction with the work moved to a goroutine.
// The guard is still evaluated before it returns.
func (c *Controller) TriggerActionAsync(ctx context.Context) bool {
	j, ok := c.begin()
	if !ok {
		return false
	}
	go c.run(ctx, j)
	return true
}

func (c *Controller) begin() (job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.file == nil || c.inFlight {
		return job{}, false
	}

	c.inFlight = true
	c.loading = true
	c.errMsg = ""
	c.result = ""
	c.markLocked()

	return job{file: *c.file, generation: c.generation}, true
}

func (c *Controller) run(ctx context.Context, j job) {
	var (
		result string
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during background removal: %v", r)
		}
		c.finish(j, result, err)
	}()

	var payload encoder.Payload
	payload, err = encoder.Encode(bytes.NewReader(j.file.Data), j.file.MIMEType)
	if err != nil {
		return
	}
	result, err = c.remover.RemoveBackground(ctx, payload.Base64, payload.MIMEType)
}

func (c *Controller) finish(j job, result string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false

	if j.generation != c.generation {
		c.logger.Info("dropping outcome for replaced file",
			zap.String("name", j.file.Name),
			zap.Error(err))
		return
	}

	c.loading = false
	c.markLocked()

	if err != nil {
		c.logger.Error("failed to remove background",
			zap.String("name", j.file.Name),
			zap.String("mime_type", j.file.MIMEType),
			zap.Error(err))
		c.errMsg = FailureMessage
		return
	}

	c.result = fmt.Sprintf("data:%s;base64,%s", ResultMIMEType, result)
}

// Download returns the result as a PNG attachment. ok is false outside the
// Succeeded state.
func (c *Controller) Download() (Download, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != Succeeded {
		return Download{}, false
	}

	payload, err := encoder.ParseDataURI(c.result)
	if err != nil {
		c.logger.Error("stored result is not a data uri", zap.Error(err))
		return Download{}, false
	}
	data, err := base64.StdEncoding.DecodeString(payload.Base64)
	if err != nil {
		c.logger.Error("stored result is not valid base64", zap.Error(err))
		return Download{}, false
	}

	return Download{
		Filename:    DownloadFilename,
		ContentType: payload.MIMEType,
		Data:        data,
	}, true
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LastActive reports the later of the last state change and the last touch.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Touch records a read of the session. It never moves LastActive backwards.
func (c *Controller) Touch(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at.After(c.lastActive) {
		c.lastActive = at
	}
}

func (c *Controller) markLocked() {
	c.updatedAt = time.Now()
	if c.updatedAt.After(c.lastActive) {
		c.lastActive = c.updatedAt
	}
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Close releases the preview of the current file and refuses later
// selections and triggers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.file != nil && c.file.PreviewURL != "" {
		c.previews.Release(c.file.PreviewURL)
		c.file.PreviewURL = ""
	}
}

func (c *Controller) stateLocked() State {
	switch {
	case c.loading:
		return Loading
	case c.errMsg != "":
		return Failed
	case c.result != "":
		return Succeeded
	case c.file != nil:
		return Ready
	default:
		return Idle
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:      c.stateLocked(),
		Result:     c.result,
		Error:      c.errMsg,
		Loading:    c.loading,
		CanTrigger: !c.closed && c.file != nil && !c.inFlight,
		UpdatedAt:  c.updatedAt,
	}
	if c.file != nil {
		s.FileName = c.file.Name
		s.MIMEType = c.file.MIMEType
		s.PreviewURL = c.file.PreviewURL
	}
	return s
}
