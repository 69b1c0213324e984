package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const githubAPIBase = "https://api.github.com"

// GitHub writes records through the repository contents API. Updates need
// the blob SHA of the current file, so every write is a lookup plus a PUT.
type GitHub struct {
	httpClient *http.Client
	token      string
	repo       string // "owner/name"
	branch     string
	baseURL    string
}

func NewGitHub(token, repo, branch string) *GitHub {
	if branch == "" {
		branch = "main"
	}
	return &GitHub{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      token,
		repo:       repo,
		branch:     branch,
		baseURL:    githubAPIBase,
	}
}

type contentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (g *GitHub) WriteRecord(ctx context.Context, path string, data []byte, commitMessage string) error {
	sha, err := g.currentSHA(ctx, path)
	if err != nil {
		return err
	}

	body, err := json.Marshal(contentsRequest{
		Message: commitMessage,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  g.branch,
		SHA:     sha,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal contents request: %w", err)
	}

	req, err := g.newRequest(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("contents API returned status %d for %s: %s", resp.StatusCode, path, snippet)
	}
	return nil
}

// currentSHA returns the blob SHA of path on the target branch, or "" when
// the file does not exist yet.
func (g *GitHub) currentSHA(ctx context.Context, path string) (string, error) {
	req, err := g.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("ref", g.branch)
	req.URL.RawQuery = q.Encode()

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return "", nil
	case http.StatusOK:
		var contents struct {
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
			return "", fmt.Errorf("failed to decode contents response: %w", err)
		}
		return contents.SHA, nil
	default:
		return "", fmt.Errorf("contents API returned status %d for %s", resp.StatusCode, path)
	}
}

func (g *GitHub) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := fmt.Sprintf("%s/repos/%s/contents/%s", g.baseURL, g.repo, path)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build contents request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	return req, nil
}
