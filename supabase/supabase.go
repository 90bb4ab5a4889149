package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	supa "github.com/nedpals/supabase-go"
)

// DefaultTimeout bounds a single insert request.
const DefaultTimeout = 10 * time.Second

var ErrTimeout = errors.New("timed out")

// Client inserts rows into the tables of one Supabase schema. The underlying postgrest client is created lazily and
// replaced after any failed request.
type Client struct {
	url     string
	anonKey string
	userKey string // optional user JWT, sent as the bearer token
	schema  string
	timeout time.Duration

	db     *supa.Client
	stale  bool // db must be re-created before the next request
	logger *slog.Logger
}

func New(url, anonKey, userKey, schema string) *Client {
	return &Client{
		url:     url,
		anonKey: anonKey,
		userKey: userKey,
		schema:  schema,
		timeout: DefaultTimeout,
		stale:   true,
		logger:  slog.Default().With("host", url),
	}
}

// Insert uploads rows, a slice of JSON encodable structs, into the given table. The request is abandoned when ctx is
// done or the client timeout passes, whichever comes first.
func (c *Client) Insert(ctx context.Context, table string, rows interface{}) error {
	db := c.session()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// postgrest-go takes no context, the request keeps running in the background after a timeout
	done := make(chan error, 1)
	go func() {
		done <- db.DB.From(table).Insert(rows).Execute(nil)
	}()

	select {
	case <-ctx.Done():
		c.stale = true
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("insert into %s: %w", table, ErrTimeout)
		}
		return ctx.Err()
	case err := <-done:
		if err != nil {
			c.stale = true
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		return nil
	}
}

// session returns the postgrest client, creating a fresh one if the last request failed.
func (c *Client) session() *supa.Client {
	if !c.stale {
		return c.db
	}

	db := supa.CreateClient(c.url, c.anonKey)
	// schema selection and user auth are plain postgrest headers
	db.DB.AddHeader("Accept-Profile", c.schema)
	db.DB.AddHeader("Content-Profile", c.schema)
	if c.userKey != "" {
		db.DB.AddHeader("Authorization", fmt.Sprintf("Bearer %s", c.userKey))
	}

	c.db = db
	c.stale = false
	c.logger.Info("Created supabase client", "schema", c.schema)
	return db
}
