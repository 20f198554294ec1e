package serv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/adtools/gaqlgate/core"
)

// Transport executes a validated query against the remote service and
// returns its result as a paged stream. Implementations own
// authentication and wire details; callers only see pages of rows.
type Transport interface {
	// Query starts a new paged result stream for the tenant
	Query(ctx context.Context, tenant, query string, pageSize int) (core.PageSource, error)

	// Ping verifies the remote service is reachable
	Ping(ctx context.Context) error
}

// Resumable is implemented by transports whose streams can be resumed
// from a page token issued by an earlier stream.
type Resumable interface {
	Resume(ctx context.Context, tenant, token string, pageSize int) (core.PageSource, error)
}

// TokenSource is a PageSource that can emit a resumption token for its
// current position. An empty token means the stream is exhausted.
// Sources that also implement core.Rewinder have their position backed
// up over any unproduced tail before the token is read.
type TokenSource interface {
	core.PageSource
	Token() string
}

// FileTransport serves query results from JSON fixture files, one
// file per resource (<dir>/<resource>.json holding an array of rows).
// It backs local development and offline use where no remote service
// credentials exist.
type FileTransport struct {
	dir string

	mu    sync.Mutex
	cache map[string][]core.Row
}

// NewFileTransport creates a transport over the fixture directory
func NewFileTransport(dir string) (*FileTransport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture path %s is not a directory", dir)
	}
	return &FileTransport{dir: dir, cache: make(map[string][]core.Row)}, nil
}

// Query streams the fixture rows for the query's resource, honoring
// its LIMIT clause.
func (t *FileTransport) Query(ctx context.Context, tenant, query string, pageSize int) (core.PageSource, error) {
	resource := core.ExtractResource(query)
	if resource == "" {
		return nil, fmt.Errorf("query names no resource")
	}

	rows, err := t.load(resource)
	if err != nil {
		return nil, err
	}

	if limit, ok := queryLimit(query); ok && limit < len(rows) {
		rows = rows[:limit]
	}

	return newFileSource(resource, rows, 0, pageSize), nil
}

// Resume continues a stream from a token issued by a prior source.
func (t *FileTransport) Resume(ctx context.Context, tenant, token string, pageSize int) (core.PageSource, error) {
	resource, offset, err := decodeFileToken(token)
	if err != nil {
		return nil, err
	}

	rows, err := t.load(resource)
	if err != nil {
		return nil, err
	}
	if offset > len(rows) {
		offset = len(rows)
	}

	return newFileSource(resource, rows, offset, pageSize), nil
}

// Ping checks the fixture directory is still readable
func (t *FileTransport) Ping(ctx context.Context) error {
	_, err := os.Stat(t.dir)
	return err
}

func (t *FileTransport) load(resource string) ([]core.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rows, ok := t.cache[resource]; ok {
		return rows, nil
	}

	path := filepath.Join(t.dir, resource+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no fixture for resource %s: %w", resource, err)
	}

	var rows []core.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}

	t.cache[resource] = rows
	return rows, nil
}

// queryLimit extracts the LIMIT value from a query, if present.
func queryLimit(query string) (int, bool) {
	fields := strings.Fields(query)
	for i, f := range fields {
		if strings.EqualFold(f, "LIMIT") && i+1 < len(fields) {
			if n, err := strconv.Atoi(fields[i+1]); err == nil && n >= 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// fileSource pages over an in-memory row slice and hands out
// offset-based resumption tokens.
type fileSource struct {
	resource string
	rows     []core.Row
	offset   int
	pageSize int
}

const defaultPageSize = 100

func newFileSource(resource string, rows []core.Row, offset, pageSize int) *fileSource {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &fileSource{
		resource: resource,
		rows:     rows,
		offset:   offset,
		pageSize: pageSize,
	}
}

func (s *fileSource) NextPage(ctx context.Context) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.offset >= len(s.rows) {
		return nil, io.EOF
	}

	end := s.offset + s.pageSize
	if end > len(s.rows) {
		end = len(s.rows)
	}

	page := s.rows[s.offset:end]
	s.offset = end
	return page, nil
}

// Rewind backs the cursor up over rows that were fetched but never
// produced, so the resumption token starts at the first unseen row.
func (s *fileSource) Rewind(n int) {
	s.offset -= n
	if s.offset < 0 {
		s.offset = 0
	}
}

// Token returns the resumption token for the current position
func (s *fileSource) Token() string {
	if s.offset >= len(s.rows) {
		return ""
	}
	return encodeFileToken(s.resource, s.offset)
}

// File tokens are base64("resource:offset"). Opaque to callers, cheap
// to decode here.
func encodeFileToken(resource string, offset int) string {
	return base64.StdEncoding.EncodeToString(
		[]byte(resource + ":" + strconv.Itoa(offset)))
}

func decodeFileToken(token string) (string, int, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", 0, fmt.Errorf("malformed page token: %w", err)
	}

	idx := strings.LastIndexByte(string(raw), ':')
	if idx < 1 {
		return "", 0, fmt.Errorf("malformed page token")
	}

	offset, err := strconv.Atoi(string(raw[idx+1:]))
	if err != nil || offset < 0 {
		return "", 0, fmt.Errorf("malformed page token")
	}

	return string(raw[:idx]), offset, nil
}
