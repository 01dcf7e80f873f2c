// Package tracker holds the single in-flight agent DOM request.
package tracker

import (
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/container/internal/protocol"
)

// Tracker is a single-slot holder for the pending FETCH_DOM_DATA request.
// A newer request replaces an older one; the replaced request is never
// answered.
type Tracker struct {
	pending *protocol.PendingRequest
	logger  *zap.Logger
}

// New creates an empty tracker.
func New(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger}
}

// Open stores req as the pending request.
func (t *Tracker) Open(req protocol.PendingRequest) {
	if t.pending != nil {
		t.logger.Warn("pending DOM request replaced before it was answered",
			zap.String("replaced_request_id", t.pending.ID()),
			zap.String("request_id", req.ID()))
	}
	t.pending = &req
}

// Pending returns the pending request, if any.
func (t *Tracker) Pending() (protocol.PendingRequest, bool) {
	if t.pending == nil {
		return protocol.PendingRequest{}, false
	}
	return *t.pending, true
}

// Resolve consumes the pending request and correlates it with content. The
// slot is empty by the time the response is returned, so the same request
// can never be answered twice.
func (t *Tracker) Resolve(content string) (*protocol.DOMDataResponse, bool) {
	if t.pending == nil {
		return nil, false
	}
	req := *t.pending
	t.pending = nil

	return protocol.NewDOMDataResponse(req, content), true
}
