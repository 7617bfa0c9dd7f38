package shiftheroes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://shiftheroes.fr"

// Config carries per-account client settings. Zero values fall back to
// sensible defaults; only Token is required.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// MaxRPS caps outgoing requests for this account. The race loop already
	// paces itself with its poll interval; this is the hard upper bound.
	MaxRPS float64
}

// Client talks to the ShiftHeroes API for a single account. One client per
// account: credentials are owned, never shared.
type Client struct {
	hc      *http.Client
	base    string
	token   string
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rps := cfg.MaxRPS
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		base:    base,
		token:   cfg.Token,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// --- wire types ---

type wirePlanning struct {
	ID           string `json:"id"`
	PlanningType string `json:"planning_type"`
	State        string `json:"state"`
	PublishedAt  string `json:"published_at"`
}

type wireShift struct {
	ID         string `json:"id"`
	Day        string `json:"day"`
	StartHour  string `json:"start_hour"`
	EndHour    string `json:"end_hour"`
	Seats      int    `json:"seats"`
	SeatsTaken int    `json:"seats_taken"`
}

func (c *Client) ListPlannings(ctx context.Context) ([]Planning, error) {
	const op = "list plannings"
	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/plannings", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status=%d", status)}
	}
	var raw []wirePlanning
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DataError{Op: op, Detail: serviceMessage(body)}
	}
	out := make([]Planning, 0, len(raw))
	for _, p := range raw {
		out = append(out, Planning{
			ID:          p.ID,
			Type:        p.PlanningType,
			State:       mapState(p.State),
			PublishedAt: parseStamp(p.PublishedAt),
		})
	}
	return out, nil
}

func (c *Client) ListShifts(ctx context.Context, planningID string) ([]Shift, error) {
	op := "list shifts " + planningID
	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/plannings/"+planningID+"/shifts", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status=%d", status)}
	}
	var raw []wireShift
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DataError{Op: op, Detail: serviceMessage(body)}
	}
	out := make([]Shift, 0, len(raw))
	for _, s := range raw {
		sh := Shift{
			ID:         s.ID,
			PlanningID: planningID,
			Day:        s.Day,
			Seats:      s.Seats,
			SeatsTaken: s.SeatsTaken,
		}
		// Unusable timestamps stay zero; the slot filter drops those shifts
		// and the racer logs them as a data problem.
		if t := parseStamp(s.StartHour); t != nil {
			sh.StartsAt = *t
		}
		if t := parseStamp(s.EndHour); t != nil {
			sh.EndsAt = *t
		}
		out = append(out, sh)
	}
	return out, nil
}

func (c *Client) Reserve(ctx context.Context, planningID, shiftID string) (Outcome, error) {
	path := "/api/v1/plannings/" + planningID + "/shifts/" + shiftID + "/reservations"
	status, body, err := c.do(ctx, http.MethodPost, path, []byte("{}"))
	if err != nil {
		return OutcomeError, err
	}
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		return OutcomeConfirmed, nil
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		// Seat went to somebody else between listing and booking.
		return OutcomeRejected, nil
	default:
		msg := serviceMessage(body)
		return OutcomeError, &TransportError{
			Op:  "reserve " + shiftID,
			Err: fmt.Errorf("status=%d detail=%s", status, msg),
		}
	}
}

// do issues one request and normalizes auth and transport failures. The
// limiter blocks here, so every caller is paced the same way.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	op := method + " " + path
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, &TransportError{Op: op, Err: err}
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return res.StatusCode, b, &AuthError{Status: res.StatusCode}
	}
	return res.StatusCode, b, nil
}

func mapState(s string) PlanningState {
	switch s {
	case "published", "available":
		return StatePublished
	case "unpublished", "draft", "pending":
		return StateUnpublished
	default:
		return StateUnknown
	}
}

func parseStamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// serviceMessage pulls a human-readable detail out of an error payload, if
// the service sent one.
func serviceMessage(body []byte) string {
	var m struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Error != "" {
			return m.Error
		}
		if m.Message != "" {
			return m.Message
		}
	}
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
