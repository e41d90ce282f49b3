package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"fitlog-go/internal/config"
	"fitlog-go/pkg/types"
)

var (
	ErrUnauthorized = errors.New("remote store unauthorized")
	ErrNotFound     = errors.New("remote store not found")
)

// RequestError is any other non-2xx answer from the remote store.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote store %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote store status %d", e.Status)
}

// RemoteStore talks to the hosted table store under /rest/v1.
type RemoteStore struct {
	httpClient *http.Client
	root       string
	baseURL    string
	key        string
	limiter    *rate.Limiter
}

func NewRemoteStore(httpClient *http.Client, cfg config.RemoteConfig) *RemoteStore {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	root := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	return &RemoteStore{
		httpClient: httpClient,
		root:       root,
		baseURL:    root + "/rest/v1",
		key:        strings.TrimSpace(cfg.AccessKey),
		limiter:    rate.NewLimiter(limit, burst),
	}
}

func (c *RemoteStore) GetUser(ctx context.Context, id string) (*types.UserRow, error) {
	var out types.UserRow
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RemoteStore) UpsertUser(ctx context.Context, row types.UserRow) error {
	return c.do(ctx, http.MethodPost, "/users", row, nil)
}

func (c *RemoteStore) DeleteUser(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *RemoteStore) UpsertSession(ctx context.Context, row types.SessionRow) (*types.SessionRow, error) {
	var out types.SessionRow
	if err := c.do(ctx, http.MethodPost, "/sessions", row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RemoteStore) FindSession(ctx context.Context, userID, localID string) (*types.SessionRow, error) {
	var out []types.SessionRow
	if err := c.do(ctx, http.MethodGet, "/sessions"+query("user_id", userID, "local_id", localID), nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *RemoteStore) ListSessions(ctx context.Context, userID string) ([]types.SessionRow, error) {
	var out []types.SessionRow
	err := c.do(ctx, http.MethodGet, "/sessions"+query("user_id", userID), nil, &out)
	return out, err
}

func (c *RemoteStore) InsertSetLogs(ctx context.Context, rows []types.SetLogRow) error {
	return c.do(ctx, http.MethodPost, "/"+types.TableSetLogs, rows, nil)
}

func (c *RemoteStore) ListSetLogs(ctx context.Context, sessionID int64) ([]types.SetLogRow, error) {
	var out []types.SetLogRow
	err := c.do(ctx, http.MethodGet, "/"+types.TableSetLogs+query("session_id", strconv.FormatInt(sessionID, 10)), nil, &out)
	return out, err
}

func (c *RemoteStore) InsertWeightHistory(ctx context.Context, rows []types.WeightRow) error {
	return c.do(ctx, http.MethodPost, "/"+types.TableWeightHistory, rows, nil)
}

func (c *RemoteStore) ListWeightHistory(ctx context.Context, userID string) ([]types.WeightRow, error) {
	var out []types.WeightRow
	err := c.do(ctx, http.MethodGet, "/"+types.TableWeightHistory+query("user_id", userID), nil, &out)
	return out, err
}

func (c *RemoteStore) InsertEstimatedMaxes(ctx context.Context, rows []types.EstimatedMaxRow) error {
	return c.do(ctx, http.MethodPost, "/"+types.TableEstimatedMaxes, rows, nil)
}

func (c *RemoteStore) ListEstimatedMaxes(ctx context.Context, userID string) ([]types.EstimatedMaxRow, error) {
	var out []types.EstimatedMaxRow
	err := c.do(ctx, http.MethodGet, "/"+types.TableEstimatedMaxes+query("user_id", userID), nil, &out)
	return out, err
}

func (c *RemoteStore) InsertFeedback(ctx context.Context, rows []types.FeedbackRow) error {
	return c.do(ctx, http.MethodPost, "/"+types.TableFeedback, rows, nil)
}

// DeleteRows removes the rows a local record produced, keyed by owner and
// local id.
func (c *RemoteStore) DeleteRows(ctx context.Context, table, userID, localID string) error {
	return c.do(ctx, http.MethodDelete, "/"+table+query("user_id", userID, "local_id", localID), nil, nil)
}

func (c *RemoteStore) CheckProfileNameAvailable(ctx context.Context, name string) (bool, error) {
	var out types.BoolResult
	err := c.rpc(ctx, "check_profile_name_available", types.CheckProfileNameRequest{ProfileName: name}, &out)
	return out.OK, err
}

func (c *RemoteStore) RegisterProfile(ctx context.Context, userID, name, pin string) (bool, error) {
	var out types.BoolResult
	err := c.rpc(ctx, "register_profile", types.RegisterProfileRequest{UserID: userID, ProfileName: name, PIN: pin}, &out)
	return out.OK, err
}

// VerifyRecovery returns nil when no account matches name and pin.
func (c *RemoteStore) VerifyRecovery(ctx context.Context, name, pin string) (*types.RecoverySnapshot, error) {
	var out []types.RecoverySnapshot
	if err := c.rpc(ctx, "verify_recovery", types.VerifyRecoveryRequest{ProfileName: name, PIN: pin}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *RemoteStore) ChangeRecoveryPIN(ctx context.Context, userID, currentPIN, newPIN string) (bool, error) {
	var out types.BoolResult
	err := c.rpc(ctx, "change_recovery_pin", types.ChangeRecoveryPINRequest{UserID: userID, CurrentPIN: currentPIN, NewPIN: newPIN}, &out)
	return out.OK, err
}

// Probe checks the server's health endpoint. It skips the rate limiter so a
// link check never queues behind sync traffic.
func (c *RemoteStore) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.root+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &RequestError{Status: resp.StatusCode}
	}
	return nil
}

func (c *RemoteStore) rpc(ctx context.Context, name string, body, out any) error {
	return c.do(ctx, http.MethodPost, "/rpc/"+name, body, out)
}

func query(kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return "?" + q.Encode()
}

func (c *RemoteStore) do(ctx context.Context, method, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var eb types.ErrorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return &RequestError{Status: resp.StatusCode, Message: strings.TrimSpace(eb.Error)}
	}
}
