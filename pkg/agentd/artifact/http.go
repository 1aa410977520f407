package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

type HTTPStore struct {
	apiURL     string
	postType   string
	cacheDir   string
	httpClient *http.Client
}

var _ Store = &HTTPStore{}

func NewHTTPStore(apiURL, postType, cacheDir string) *HTTPStore {
	return &HTTPStore{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		postType:   postType,
		cacheDir:   cacheDir,
		httpClient: http.DefaultClient,
	}
}

type post struct {
	ItemHash string     `json:"item_hash"`
	Sender   string     `json:"sender"`
	Content  Descriptor `json:"content"`
}

type postsResponse struct {
	Posts []post `json:"posts"`
}

func (s *HTTPStore) Resolve(ctx context.Context, agentHash string) (*Descriptor, error) {
	query := url.Values{}
	query.Set("types", s.postType)
	query.Set("hashes", agentHash)

	resp, err := s.get(ctx, "/api/v0/posts.json?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("resolve agent %s: %w", agentHash, err)
	}
	defer resp.Body.Close()

	posts := &postsResponse{}
	err = json.NewDecoder(resp.Body).Decode(posts)
	if err != nil {
		return nil, fmt.Errorf("resolve agent %s: decode posts: %w", agentHash, err)
	}

	if len(posts.Posts) == 0 {
		return nil, fmt.Errorf("resolve agent %s: %w", agentHash, ErrNotFound)
	}

	first := posts.Posts[0]
	descriptor := first.Content
	descriptor.AgentHash = agentHash
	if len(descriptor.SourceCodeHash) == 0 {
		return nil, fmt.Errorf("resolve agent %s: no source code published: %w", agentHash, ErrNotFound)
	}
	if len(descriptor.Creator) == 0 {
		descriptor.Creator = first.Sender
	}

	return &descriptor, nil
}

// Fetch downloads the code archive into the cache directory unless it is already there.
func (s *HTTPStore) Fetch(ctx context.Context, codeHash string) (string, error) {
	if len(codeHash) == 0 || strings.ContainsAny(codeHash, `/\`) {
		return "", fmt.Errorf("invalid code hash '%s'", codeHash)
	}

	path := filepath.Join(s.cacheDir, codeHash+".zip")
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path, nil
	}

	err := os.MkdirAll(s.cacheDir, 0o755)
	if err != nil {
		return "", fmt.Errorf("create code cache: %w", err)
	}

	resp, err := s.get(ctx, "/api/v0/storage/raw/"+url.PathEscape(codeHash))
	if err != nil {
		return "", fmt.Errorf("download code %s: %w", codeHash, err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(s.cacheDir, codeHash+".*.part")
	if err != nil {
		return "", fmt.Errorf("download code %s: %w", codeHash, err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("download code %s: %w", codeHash, err)
	}
	err = tmp.Close()
	if err != nil {
		return "", fmt.Errorf("download code %s: %w", codeHash, err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return "", fmt.Errorf("store code %s: %w", codeHash, err)
	}

	log.Debugf("Downloaded %d bytes of code %s to %s", written, codeHash, path)
	return path, nil
}

func (s *HTTPStore) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	return resp, nil
}
