// Package libyy is an HTTP client for the library seat booking service.
//
// Every call goes through do(), which retries timeouts and transport errors up
// to the configured budget. An exhausted budget is reported as
// reservation.ErrTransportExhausted so callers can treat it as fatal.
package libyy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "http://libyy.qfnu.edu.cn"
	DefaultMaxRetries = 200
	DefaultTimeout    = 60 * time.Second
	DefaultRate       = 20

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0"
)

const (
	pathLogin    = "/api/cas/user"
	pathAreas    = "/api/Seat/area"
	pathSegments = "/api/Seat/date"
	pathSeats    = "/api/Seat/seat"
	pathMember   = "/api/Member/seat"
	pathConfirm  = "/api/Seat/confirm"
	pathCheckout = "/api/Space/checkout"
	pathCancel   = "/api/Space/cancel"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Rate caps request attempts per second across all callers.
	Rate       float64
	HTTPClient *http.Client
	Log        *zap.Logger
}

type Client struct {
	hc         *http.Client
	base       string
	codec      reservation.Codec
	limiter    *rate.Limiter
	maxRetries int
	log        *zap.Logger
}

var (
	_ reservation.Identity = (*Client)(nil)
	_ reservation.Claimer  = (*Client)(nil)
	_ reservation.Catalog  = (*Client)(nil)
	_ reservation.Members  = (*Client)(nil)
	_ reservation.Spaces   = (*Client)(nil)
)

func New(codec reservation.Codec, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		hc:         hc,
		base:       strings.TrimRight(opts.BaseURL, "/"),
		codec:      codec,
		limiter:    rate.NewLimiter(rate.Limit(opts.Rate), 1),
		maxRetries: opts.MaxRetries,
		log:        logging.OrNop(opts.Log).Named("libyy"),
	}
}

type envelope struct {
	Code *int            `json:"code"`
	Msg  *string         `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	var env envelope
	if err := c.do(ctx, pathLogin, "", map[string]string{"username": username, "password": password}, &env); err != nil {
		return "", err
	}
	var data struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	if !emptyData(env.Data) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", fmt.Errorf("%w: login: %v", reservation.ErrMalformedResponse, err)
		}
	}
	if data.Token == "" {
		msg := ""
		if env.Msg != nil {
			msg = *env.Msg
		}
		return "", fmt.Errorf("%w: %s", reservation.ErrAuth, msg)
	}
	c.log.Info("libyy: authenticated", zap.String("name", data.Name))
	return data.Token, nil
}

func (c *Client) BuildingID(ctx context.Context, classroom string) (string, error) {
	var env envelope
	if err := c.do(ctx, pathAreas, "", map[string]string{}, &env); err != nil {
		return "", err
	}
	var areas []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	}
	if err := json.Unmarshal(env.Data, &areas); err != nil {
		return "", fmt.Errorf("%w: areas: %v", reservation.ErrMalformedResponse, err)
	}
	for _, a := range areas {
		if a.Name == classroom {
			return a.ID.String(), nil
		}
	}
	return "", fmt.Errorf("classroom %q: %w", classroom, reservation.ErrNotFound)
}

func (c *Client) Segment(ctx context.Context, buildingID, day string) (string, error) {
	var env envelope
	if err := c.do(ctx, pathSegments, "", map[string]string{"build_id": buildingID}, &env); err != nil {
		return "", err
	}
	var days []struct {
		Day   string `json:"day"`
		Times []struct {
			ID json.Number `json:"id"`
		} `json:"times"`
	}
	if err := json.Unmarshal(env.Data, &days); err != nil {
		return "", fmt.Errorf("%w: segments: %v", reservation.ErrMalformedResponse, err)
	}
	for _, d := range days {
		if d.Day == day && len(d.Times) > 0 {
			return d.Times[0].ID.String(), nil
		}
	}
	return "", fmt.Errorf("segment for building %s on %s: %w", buildingID, day, reservation.ErrNotFound)
}

func (c *Client) ListSeats(ctx context.Context, buildingID, segment, day string) ([]reservation.Seat, error) {
	var env envelope
	req := map[string]string{"area": buildingID, "segment": segment, "day": day}
	if err := c.do(ctx, pathSeats, "", req, &env); err != nil {
		return nil, err
	}
	var raw []struct {
		ID json.Number `json:"id"`
		No string      `json:"no"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, fmt.Errorf("%w: seats: %v", reservation.ErrMalformedResponse, err)
	}
	out := make([]reservation.Seat, 0, len(raw))
	for _, s := range raw {
		out = append(out, reservation.Seat{ID: s.ID.String(), Label: s.No})
	}
	return out, nil
}

func (c *Client) Submit(ctx context.Context, seatID, segment string, cred reservation.Credential) (reservation.ClaimResult, error) {
	plain, err := json.Marshal(map[string]string{"seat_id": seatID, "segment": segment})
	if err != nil {
		return reservation.ClaimResult{}, err
	}
	aes, err := c.codec.Encrypt(string(plain))
	if err != nil {
		return reservation.ClaimResult{}, fmt.Errorf("encrypt claim: %w", err)
	}

	var resp struct {
		Msg  *string         `json:"msg"`
		Seat json.RawMessage `json:"seat"`
	}
	if err := c.do(ctx, pathConfirm, cred.Token, map[string]string{"aesjson": aes}, &resp); err != nil {
		return reservation.ClaimResult{}, err
	}
	if resp.Msg == nil {
		return reservation.ClaimResult{}, fmt.Errorf("%w: confirm has no msg", reservation.ErrMalformedResponse)
	}
	return reservation.ClaimResult{Status: *resp.Msg, Seat: rawString(resp.Seat)}, nil
}

func (c *Client) Reservations(ctx context.Context, cred reservation.Credential) (reservation.MemberStatus, error) {
	var env envelope
	req := map[string]any{"page": 1, "limit": 3, "authorization": cred.Token}
	if err := c.do(ctx, pathMember, cred.Token, req, &env); err != nil {
		return reservation.MemberStatus{}, err
	}
	var st reservation.MemberStatus
	if env.Msg != nil {
		st.Msg = *env.Msg
	}
	var data struct {
		Data *[]struct {
			ID         json.Number `json:"id"`
			StatusName string      `json:"statusName"`
			Space      json.Number `json:"space"`
			NameMerge  string      `json:"nameMerge"`
		} `json:"data"`
	}
	if len(env.Data) == 0 || json.Unmarshal(env.Data, &data) != nil || data.Data == nil {
		return st, fmt.Errorf("%w: member reservations", reservation.ErrMalformedResponse)
	}
	for _, it := range *data.Data {
		st.Items = append(st.Items, reservation.MemberReservation{
			ID:         it.ID.String(),
			StatusName: it.StatusName,
			Space:      it.Space.String(),
			NameMerge:  it.NameMerge,
		})
	}
	return st, nil
}

func (c *Client) Checkout(ctx context.Context, reservationID string, cred reservation.Credential) (string, error) {
	var env envelope
	req := map[string]string{"id": reservationID, "authorization": cred.Token}
	if err := c.do(ctx, pathCheckout, cred.Token, req, &env); err != nil {
		return "", err
	}
	if env.Msg == nil {
		return "", fmt.Errorf("%w: checkout has no msg", reservation.ErrMalformedResponse)
	}
	return *env.Msg, nil
}

func (c *Client) Cancel(ctx context.Context, reservationID string, cred reservation.Credential) error {
	var env envelope
	req := map[string]string{"id": reservationID, "authorization": cred.Token}
	if err := c.do(ctx, pathCancel, cred.Token, req, &env); err != nil {
		return err
	}
	if env.Msg != nil {
		c.log.Info("libyy: cancel", zap.String("reservation", reservationID), zap.String("msg", *env.Msg))
	}
	return nil
}

// do posts payload as JSON and decodes the response into out, retrying until
// the budget is spent.
func (c *Client) do(ctx context.Context, path, auth string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		err := c.once(ctx, path, auth, body, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		c.log.Warn("libyy: request failed, retrying",
			zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", reservation.ErrTransportExhausted, path, c.maxRetries, lastErr)
}

func (c *Client) once(ctx context.Context, path, auth string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("lang", "zh")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", c.base)
	req.Header.Set("Referer", c.base+"/h5/index.html")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", res.StatusCode, truncate(b, 200))
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// emptyData reports whether a failed call left data unset; the service sends
// null, "" or [] in that case.
func emptyData(b json.RawMessage) bool {
	switch string(bytes.TrimSpace(b)) {
	case "", "null", `""`, "[]":
		return true
	}
	return false
}

func rawString(b json.RawMessage) string {
	if len(b) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		return n.String()
	}
	return string(b)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
