// Package imagestore hosts the images attached to cells. Images are kept in a
// sqlite database and served back under a stable url.
package imagestore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gabriel-vasile/mimetype"
	_ "modernc.org/sqlite"
)

// Set of error variables for the image store.
var (
	ErrUploadRejected = errors.New("upload rejected")
	ErrNotFound       = errors.New("image not found")
)

// MaxSize is the largest image accepted.
const MaxSize = 5 << 20

const schema = `
CREATE TABLE IF NOT EXISTS images (
	name    TEXT PRIMARY KEY,
	mime    TEXT NOT NULL,
	size    INTEGER NOT NULL,
	created INTEGER NOT NULL,
	data    BLOB NOT NULL
)`

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Image is a stored image.
type Image struct {
	Name    string
	MIME    string
	Size    int
	Created time.Time
	Data    []byte
}

// Config represents the configuration required to open the store.
type Config struct {
	Path    string
	BaseURL string
	Now     func() time.Time
}

// Store keeps images in sqlite.
type Store struct {
	db      *sql.DB
	baseURL string
	now     func() time.Time
}

// Open opens or creates the database at the configured path. An empty path
// keeps the images in memory.
func Open(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite allows a single writer and every connection to :memory: is a
	// different database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "/images/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	s := Store{
		db:      db,
		baseURL: baseURL,
		now:     now,
	}

	return &s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upload stores the image and returns its url. Only image content of at most
// MaxSize bytes is accepted. The type is detected from the content, the name
// provided by the client is only used to build the stored name.
func (s *Store) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: no image provided", ErrUploadRejected)
	}

	if len(data) > MaxSize {
		return "", fmt.Errorf("%w: size %d exceeds the 5MB limit", ErrUploadRejected, len(data))
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: type %s is not an image", ErrUploadRejected, mt.String())
	}

	now := s.now()
	fileName := FileName(now, name)

	// A stored name is never overwritten since its url may already be on the
	// ledger. The same content under the same name resolves to the same url,
	// different content falls back to a name carrying its hash.
	const q = `
	INSERT INTO images (name, mime, size, created, data) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(name) DO NOTHING`

	for _, candidate := range []string{fileName, HashedName(fileName, data)} {
		res, err := s.db.ExecContext(ctx, q, candidate, mt.String(), len(data), now.Unix(), data)
		if err != nil {
			return "", fmt.Errorf("insert %s: %w", candidate, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("insert %s: %w", candidate, err)
		}

		if n == 1 {
			return s.baseURL + candidate, nil
		}

		existing, err := s.Get(ctx, candidate)
		if err != nil {
			return "", err
		}

		if bytes.Equal(existing.Data, data) {
			return s.baseURL + candidate, nil
		}
	}

	return "", fmt.Errorf("%w: name %s is taken", ErrUploadRejected, fileName)
}

// Get returns the stored image with the name.
func (s *Store) Get(ctx context.Context, name string) (Image, error) {
	const q = `SELECT name, mime, size, created, data FROM images WHERE name = ?`

	var img Image
	var created int64
	err := s.db.QueryRowContext(ctx, q, name).Scan(&img.Name, &img.MIME, &img.Size, &created, &img.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Image{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return Image{}, fmt.Errorf("select %s: %w", name, err)
	}
	img.Created = time.Unix(created, 0)

	return img, nil
}

// List returns the stored images, newest first, without their data.
func (s *Store) List(ctx context.Context) ([]Image, error) {
	const q = `SELECT name, mime, size, created FROM images ORDER BY created DESC, name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var created int64
		if err := rows.Scan(&img.Name, &img.MIME, &img.Size, &created); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		img.Created = time.Unix(created, 0)
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return images, nil
}

// Delete removes the image with the name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	return nil
}

// HashedName inserts a short hash of the content before the extension of the
// stored name.
func HashedName(fileName string, data []byte) string {
	ext := path.Ext(fileName)
	sum := common.Bytes2Hex(crypto.Keccak256(data)[:4])

	return strings.TrimSuffix(fileName, ext) + "-" + sum + ext
}

// FileName builds the stored name of an upload: the hour and minute of the
// upload followed by the original name with every character outside
// [a-zA-Z0-9.-] replaced.
func FileName(now time.Time, original string) string {
	if original == "" {
		original = "image"
	}

	return fmt.Sprintf("%02d%02d_%s", now.Hour(), now.Minute(), unsafeChars.ReplaceAllString(original, "_"))
}
