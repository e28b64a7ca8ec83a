package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type Options struct {
	Hosts             []string
	Keyspace          string
	Timeout           time.Duration
	ReplicationFactor int
	Username          string
	Password          string
}

// NewSession ensures schema exists and returns a connected Scylla session.
func NewSession(ctx context.Context, opts Options, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(opts.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", opts.Keyspace)
	}
	if opts.ReplicationFactor < 1 {
		opts.ReplicationFactor = 1
	}

	baseSession, err := cluster(opts, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()
	if err := ensureKeyspace(ctx, baseSession, opts); err != nil {
		return nil, err
	}

	session, err := cluster(opts, opts.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", opts.Keyspace, err)
	}
	if err := ensureTables(ctx, session, opts.Keyspace); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", opts.Hosts, "keyspace", opts.Keyspace)
	}
	return session, nil
}

func cluster(opts Options, keyspace string) *gocql.ClusterConfig {
	c := gocql.NewCluster(opts.Hosts...)
	c.Keyspace = keyspace
	c.Consistency = gocql.Quorum
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
		c.ConnectTimeout = opts.Timeout
	}
	if opts.Username != "" {
		c.Authenticator = gocql.PasswordAuthenticator{Username: opts.Username, Password: opts.Password}
	}
	return c
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, opts Options) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		opts.Keyspace, opts.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, keyspace string) error {
	notifications := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.notifications_by_user (
	user_id text,
	notification_id timeuuid,
	event text,
	reservation_id text,
	property_id text,
	old_status text,
	new_status text,
	message text,
	created_at timestamp,
	PRIMARY KEY (user_id, notification_id)
) WITH CLUSTERING ORDER BY (notification_id DESC);`, keyspace)
	if err := session.Query(notifications).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create notifications table: %w", err)
	}
	return nil
}
