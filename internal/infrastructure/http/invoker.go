package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultInvokeTimeout bounds one job invocation from the scheduler.
const DefaultInvokeTimeout = 5 * time.Minute

// JobInvoker fires scheduled targets over the server's job endpoints.
type JobInvoker struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewJobInvoker creates an invoker against the server at baseURL. A zero
// timeout gets the default.
func NewJobInvoker(baseURL, token string, timeout time.Duration) *JobInvoker {
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	return &JobInvoker{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Invoke POSTs /jobs/<target> and treats any non-2xx status as failure.
func (i *JobInvoker) Invoke(ctx context.Context, target string) error {
	url := i.baseURL + "/jobs/" + target
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build invocation request: %w", err)
	}
	if i.token != "" {
		req.Header.Set("Authorization", "Bearer "+i.token)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to invoke %s: %w", target, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("invocation of %s returned status %d", target, resp.StatusCode)
	}
	return nil
}
