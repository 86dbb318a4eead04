package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://hearyouout.deta.dev",
		Timeout:    30 * time.Second,
		RetryCount: 1,
		RetryWait:  500 * time.Millisecond,
	}
}

// Client talks JSON to the hear-you-out server.
type Client struct {
	http *resty.Client
	log  *zap.SugaredLogger

	mu       sync.Mutex
	deviceID string
	session  *Session
	expires  time.Time
}

func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = def.RetryWait
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait).
		// 只在网络错误时重试, HTTP 错误状态不重试
		AddRetryCondition(func(_ *resty.Response, err error) bool {
			return err != nil
		})

	return &Client{http: httpClient, log: log}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&errorBody{})
}

// authed returns a request carrying the bearer token, logging in again if it expired.
func (c *Client) authed(ctx context.Context) (*resty.Request, *Session, error) {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c.request(ctx).SetAuthToken(sess.AccessToken), sess, nil
}

func (c *Client) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if resp.IsError() {
		apiErr := &Error{Status: resp.StatusCode()}
		if body, ok := resp.Error().(*errorBody); ok {
			apiErr.Detail = body.text()
		}
		c.log.Warnw("API error", "op", op, "status", apiErr.Status, "detail", apiErr.Detail)
		return apiErr
	}
	return nil
}

// Register creates a user for this device and returns the user id.
func (c *Client) Register(ctx context.Context, deviceID string) (string, error) {
	var out idResponse
	resp, err := c.request(ctx).
		SetBody(registerRequest{DeviceID: deviceID}).
		SetResult(&out).
		Post("/api/auth/register")
	if err := c.check(resp, err, "register"); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("failed to register: %w", ErrEmptyResult)
	}
	return out.ID, nil
}

// Login exchanges the device id for an access token.
func (c *Client) Login(ctx context.Context, deviceID string) (*Session, error) {
	var out Session
	resp, err := c.request(ctx).
		SetQueryParam("device_id", deviceID).
		SetResult(&out).
		Post("/api/auth/login")
	if err := c.check(resp, err, "login"); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("failed to login: %w", ErrEmptyResult)
	}

	expires := tokenExpiry(out.AccessToken)

	c.mu.Lock()
	c.deviceID = deviceID
	c.session = &out
	c.expires = expires
	c.mu.Unlock()

	c.log.Infow("Logged in", "user_id", out.UserID, "expires", expires)
	return &out, nil
}

// tokenExpiry reads exp without verifying the signature; zero means unknown.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (c *Client) ensureSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	sess, deviceID, expires := c.session, c.deviceID, c.expires
	c.mu.Unlock()

	if sess != nil && (expires.IsZero() || time.Now().Before(expires.Add(-10*time.Second))) {
		return sess, nil
	}
	if deviceID == "" {
		return nil, ErrNoSession
	}
	c.log.Debugw("Access token expired, logging in again")
	return c.Login(ctx, deviceID)
}

// Session returns the current login, if any.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) Question(ctx context.Context) (*Question, error) {
	req, _, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var out Question
	resp, err := req.SetResult(&out).Get("/api/question")
	if err := c.check(resp, err, "get question"); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer uploads a base64 recording and returns the new answer id.
func (c *Client) SubmitAnswer(ctx context.Context, questionID, audioBase64 string) (string, error) {
	req, sess, err := c.authed(ctx)
	if err != nil {
		return "", err
	}
	var out idResponse
	resp, err := req.
		SetBody(answerRequest{QuestionID: questionID, AudioData: audioBase64, UserID: sess.UserID}).
		SetResult(&out).
		Post("/api/answer")
	if err := c.check(resp, err, "submit answer"); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("failed to submit answer: %w", ErrEmptyResult)
	}
	return out.ID, nil
}

// NextAnswer fetches one unseen answer. It returns nil when there are none.
func (c *Client) NextAnswer(ctx context.Context, questionID string, seen []string) (*Answer, error) {
	req, _, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("limit", "1")
	if questionID != "" {
		params.Set("question_id", questionID)
	}
	for _, id := range seen {
		params.Add("seen_answers_ids", id)
	}

	var out []Answer
	resp, err := req.SetQueryParamsFromValues(params).SetResult(&out).Get("/api/answers")
	if err := c.check(resp, err, "get answers"); err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNoContent || len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *Client) Vote(ctx context.Context, answerID string, vote Vote) error {
	req, sess, err := c.authed(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetBody(voteRequest{UserID: sess.UserID, AnswerID: answerID, Vote: vote}).
		Post("/api/vote")
	return c.check(resp, err, "vote")
}

func (c *Client) Flag(ctx context.Context, answerID, reason string) error {
	req, sess, err := c.authed(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetBody(flagRequest{UserID: sess.UserID, AnswerID: answerID, Reason: reason}).
		Post("/api/flag")
	return c.check(resp, err, "flag")
}

// AnswerStats returns the reactions to one of the user's answers.
func (c *Client) AnswerStats(ctx context.Context, answerID string) (*AnswerStats, error) {
	req, _, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var out AnswerStats
	resp, err := req.SetQueryParam("answer_id", answerID).SetResult(&out).Get("/api/answers/stats")
	if err := c.check(resp, err, "get answer stats"); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsNotFound reports a 404 from the server, e.g. no question of the day.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
