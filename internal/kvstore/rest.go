package kvstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRestTimeout = 10 * time.Second

// RestStore talks to an external durable store over its REST dialect:
// each operation is one request whose path encodes the command and its
// url-encoded arguments, authenticated with a bearer token. The body is
// a JSON envelope holding either "result" or "error"; an error field
// fails the operation regardless of HTTP status.
type RestStore struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRestStore(baseURL, token string) *RestStore {
	return &RestStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultRestTimeout},
	}
}

type restEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

func (r *RestStore) command(ctx context.Context, args ...string) (json.RawMessage, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = url.PathEscape(arg)
	}
	reqURL := r.baseURL + "/" + strings.Join(parts, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errBackendf("build request %s: %v", args[0], err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errBackendf("%s: %v", args[0], err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errBackendf("%s: read response: %v", args[0], err)
	}

	var envelope restEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errBackendf("%s: malformed response (status %d): %v", args[0], resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return nil, errBackendf("%s: backend reported: %s", args[0], *envelope.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errBackendf("%s: unexpected status %d", args[0], resp.StatusCode)
	}
	return envelope.Result, nil
}

func (r *RestStore) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := r.command(ctx, "get", key)
	if err != nil {
		return "", false, err
	}
	if isJSONNull(result) {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return "", false, errBackendf("get %q: non-string result: %v", key, err)
	}
	return value, true, nil
}

func (r *RestStore) Set(ctx context.Context, key, value string) error {
	_, err := r.command(ctx, "set", key, value)
	return err
}

func (r *RestStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		return errBackendf("setex %q: non-positive ttl %s", key, ttl)
	}
	_, err := r.command(ctx, "setex", key, strconv.FormatInt(seconds, 10), value)
	return err
}

func (r *RestStore) Del(ctx context.Context, key string) error {
	_, err := r.command(ctx, "del", key)
	return err
}

func (r *RestStore) SAdd(ctx context.Context, key, member string) error {
	_, err := r.command(ctx, "sadd", key, member)
	return err
}

func (r *RestStore) SRem(ctx context.Context, key, member string) error {
	_, err := r.command(ctx, "srem", key, member)
	return err
}

func (r *RestStore) SMembers(ctx context.Context, key string) ([]string, error) {
	result, err := r.command(ctx, "smembers", key)
	if err != nil {
		return nil, err
	}
	if isJSONNull(result) {
		return nil, nil
	}
	var members []string
	if err := json.Unmarshal(result, &members); err != nil {
		return nil, errBackendf("smembers %q: non-array result: %v", key, err)
	}
	return members, nil
}

// TTL maps the backend's Redis-style convention: -2 means the key does
// not exist, -1 means it exists without an expiry.
func (r *RestStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	result, err := r.command(ctx, "ttl", key)
	if err != nil {
		return 0, false, err
	}
	var seconds int64
	if err := json.Unmarshal(result, &seconds); err != nil {
		return 0, false, errBackendf("ttl %q: non-integer result: %v", key, err)
	}
	if seconds < 0 {
		return 0, false, nil
	}
	return time.Duration(seconds) * time.Second, true, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

var _ Store = (*RestStore)(nil)
