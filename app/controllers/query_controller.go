package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/pkg/bind"
	"github.com/datajunction/djqs/pkg/event"
	"github.com/datajunction/djqs/pkg/logger"
	"github.com/datajunction/djqs/pkg/response"
	"github.com/datajunction/djqs/pkg/sse"
	"github.com/datajunction/djqs/pkg/ws"
)

// keepalive is how often an idle event stream gets a heartbeat and a fresh
// read of the query.
const keepalive = 15 * time.Second

type QueryController struct {
	service  *services.QueryService
	events   *event.Bus
	draining <-chan struct{}
}

// NewQueryController returns the query endpoints. Open event streams end
// once draining is closed; a nil channel keeps them open until the query
// finishes or the client leaves.
func NewQueryController(service *services.QueryService, events *event.Bus, draining <-chan struct{}) *QueryController {
	return &QueryController{service: service, events: events, draining: draining}
}

// Submit handles POST /queries/.
func (c *QueryController) Submit(w http.ResponseWriter, r *http.Request) {
	// Content-Type problems take precedence over Accept problems.
	if _, err := bind.MediaType(r); err != nil {
		bodyError(w, response.MediaJSON, err)
		return
	}
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}

	var in models.QueryCreate
	if !decode(w, r, mt, &in) {
		return
	}

	out, created, err := c.service.Submit(r.Context(), in)
	if err != nil {
		fail(w, r, mt, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Write(w, mt, status, out)
}

// Show handles GET /queries/{id}.
func (c *QueryController) Show(w http.ResponseWriter, r *http.Request) {
	mt, ok := negotiate(w, r)
	if !ok {
		return
	}
	id, ok := queryID(w, r, mt)
	if !ok {
		return
	}

	out, err := c.service.Get(r.Context(), id)
	if err != nil {
		fail(w, r, mt, err)
		return
	}
	response.Write(w, mt, http.StatusOK, out)
}

// Events handles GET /queries/{id}/events. It streams the current state of
// the query as Server-Sent Events, then every update, until the query
// reaches a terminal state or the client goes away.
func (c *QueryController) Events(w http.ResponseWriter, r *http.Request) {
	c.watch(w, r, func() (feed, error) {
		stream, err := sse.New(w, r)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, err.Error())
			return nil, err
		}
		return sseFeed{stream}, nil
	})
}

// Socket handles GET /queries/{id}/ws, the WebSocket variant of Events.
// Every message is one JSON-encoded query; the server closes the socket
// after a terminal state.
func (c *QueryController) Socket(w http.ResponseWriter, r *http.Request) {
	c.watch(w, r, func() (feed, error) {
		conn, err := ws.Upgrade(w, r)
		if err != nil {
			return nil, err
		}
		return wsFeed{conn}, nil
	})
}

// feed is a push channel to one client.
type feed interface {
	Send(q models.QueryWithResults) error
	Keepalive()
	Done() <-chan struct{}
	Close()
}

type sseFeed struct{ stream *sse.Stream }

func (f sseFeed) Send(q models.QueryWithResults) error { return f.stream.Send("query", q) }
func (f sseFeed) Keepalive()                           { f.stream.Comment("keepalive") }
func (f sseFeed) Done() <-chan struct{}                { return f.stream.Done() }
func (f sseFeed) Close()                               {}

type wsFeed struct{ conn *ws.Conn }

func (f wsFeed) Send(q models.QueryWithResults) error { return f.conn.Send(q) }
func (f wsFeed) Keepalive()                           { _ = f.conn.Ping() }
func (f wsFeed) Done() <-chan struct{}                { return f.conn.Done() }
func (f wsFeed) Close()                               { _ = f.conn.Close() }

// watch subscribes to updates of the query named in the URL before reading
// its current state, so no transition is lost between the two, then pushes
// both to the feed returned by open.
func (c *QueryController) watch(w http.ResponseWriter, r *http.Request, open func() (feed, error)) {
	id, ok := queryID(w, r, response.MediaJSON)
	if !ok {
		return
	}

	updates := make(chan models.QueryWithResults, 64)
	unsubscribe := c.events.Listen(services.EventQueryUpdated, func(payload any) {
		q, ok := payload.(models.QueryWithResults)
		if !ok || q.ID != id.String() {
			return
		}
		select {
		case updates <- q:
		default: // slow client; the keepalive refresh catches up
		}
	})
	defer unsubscribe()

	current, err := c.service.Get(r.Context(), id)
	if err != nil {
		fail(w, r, response.MediaJSON, err)
		return
	}

	out, err := open()
	if err != nil {
		return
	}
	defer out.Close()

	log := logger.WithCtx(r.Context()).With("query_id", id.String())
	send := func(q models.QueryWithResults) bool {
		if err := out.Send(q); err != nil {
			log.Warn("query event not sent", "error", err)
			return false
		}
		return !q.State.Terminal()
	}
	if !send(current) {
		return
	}

	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-out.Done():
			return
		case <-r.Context().Done():
			return
		case <-c.draining:
			return
		case q := <-updates:
			current = q
			if !send(q) {
				return
			}
		case <-ticker.C:
			out.Keepalive()
			latest, err := c.service.Get(r.Context(), id)
			if err != nil {
				log.Warn("query refresh failed", "error", err)
				continue
			}
			if latest.State != current.State || latest.Progress != current.Progress {
				current = latest
				if !send(latest) {
					return
				}
			}
		}
	}
}

func queryID(w http.ResponseWriter, r *http.Request, mt string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.ValidationError(w, mt, map[string]string{"query_id": "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}
