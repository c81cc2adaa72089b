package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"openrequests/internal/requests/events"
	"openrequests/internal/requests/service"
	apperrors "openrequests/pkg/errors"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"
)

const (
	DefaultKeepAlive  = 15 * time.Second
	snapshotEventName = "request.snapshot"
)

type Subscriber interface {
	Subscribe(requestID string) (<-chan model.RequestEvent, func())
}

// EventStream serves a request's state changes as Server-Sent Events. The
// first frame is always the current snapshot; later frames are events with a
// newer version. The stream ends after a terminal state.
//
// Events arrive from the in-process broker. Every keep-alive tick also
// re-reads the request, so a change committed by another instance ends the
// stream even when its event never reached this broker.
type EventStream struct {
	service   service.RequestService
	broker    Subscriber
	keepAlive time.Duration
	log       *logger.Logger
}

func NewEventStream(service service.RequestService, broker Subscriber, keepAlive time.Duration, log *logger.Logger) *EventStream {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &EventStream{
		service:   service,
		broker:    broker,
		keepAlive: keepAlive,
		log:       log.Component("sse"),
	}
}

// Open subscribes before reading the snapshot so no change between the two
// is lost. Callers must invoke the returned unsubscribe.
func (s *EventStream) Open(ctx context.Context, id string) (*model.Request, func(), <-chan model.RequestEvent, error) {
	if id == "" {
		return nil, nil, nil, apperrors.InvalidInput("Request ID cannot be empty")
	}

	updates, unsubscribe := s.broker.Subscribe(id)
	request, err := s.service.GetByID(ctx, id)
	if err != nil {
		unsubscribe()
		return nil, nil, nil, err
	}
	return request, unsubscribe, updates, nil
}

func (s *EventStream) Serve(ctx context.Context, w http.ResponseWriter, request *model.Request, updates <-chan model.RequestEvent) error {
	rc := http.NewResponseController(w)
	// The stream outlives the server's WriteTimeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, request.Version, snapshotEventName, request); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}

	if request.Status.IsTerminal() {
		return nil
	}

	lastVersion := request.Version
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current, err := s.service.GetByID(ctx, request.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warn("failed to refresh request", "request_id", request.ID, "error", err)
			} else if current.Version > lastVersion {
				event := events.FromRequest(events.TypeFor(current.Status), current)
				if err := s.send(w, rc, event); err != nil {
					return err
				}
				lastVersion = event.Version
				if event.IsTerminal() {
					return nil
				}
				continue
			}
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return err
			}
			if err := rc.Flush(); err != nil {
				return err
			}
		case event, ok := <-updates:
			if !ok {
				s.log.Debug("subscription closed", "request_id", request.ID, "version", lastVersion)
				return nil
			}
			if event.Version <= lastVersion {
				continue
			}
			if err := s.send(w, rc, event); err != nil {
				return err
			}
			lastVersion = event.Version
			if event.IsTerminal() {
				return nil
			}
		}
	}
}

func (s *EventStream) send(w http.ResponseWriter, rc *http.ResponseController, event model.RequestEvent) error {
	if err := writeFrame(w, event.Version, string(event.Type), event); err != nil {
		return err
	}
	return rc.Flush()
}

func writeFrame(w io.Writer, version int64, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", version, name, payload)
	return err
}
