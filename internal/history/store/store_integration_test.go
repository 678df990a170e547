//go:build integration

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"phonecheck/internal/phone"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/platform/sentinel"
	"phonecheck/pkg/testutil/containers"
)

type historyStore interface {
	Get(ctx context.Context, n phone.Number) (*verdict.HistoryRecord, error)
	Put(ctx context.Context, rec verdict.HistoryRecord) error
}

// RedisStoreSuite exercises the Redis history store against a real Redis.
type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) TearDownSuite() {
	s.redis.Close(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	assertRoundTrip(&s.Suite, s.store)
}

func (s *RedisStoreSuite) TestRetention() {
	ctx := context.Background()
	st := NewRedis(s.redis.Client, WithRetention(time.Hour))
	rec := sampleRecord("+61412345678", 40)
	s.Require().NoError(st.Put(ctx, rec))

	ttl, err := s.redis.Client.TTL(ctx, "history:+61412345678").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)
}

// PostgresStoreSuite exercises the pgx history store against a real Postgres.
type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.postgres.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.postgres.Close(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.postgres.Pool.Exec(context.Background(), "TRUNCATE lookup_history")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	assertRoundTrip(&s.Suite, s.store)
}

func (s *PostgresStoreSuite) TestGetKeepsRowKey() {
	ctx := context.Background()
	n := phone.MustParse("+61412345678")
	s.Require().NoError(s.store.Put(ctx, sampleRecord("+61412345678", 12)))

	other, err := json.Marshal(sampleRecord("+61499999999", 90).Verdict)
	s.Require().NoError(err)
	_, err = s.postgres.Pool.Exec(ctx, `UPDATE lookup_history SET verdict = $2 WHERE number = $1`, n.String(), other)
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, n)
	s.Require().NoError(err)
	s.Equal(n, got.Number)
	s.Equal(phone.MustParse("+61499999999"), got.Verdict.Number)
	s.Error(got.Validate(), "a verdict stored under another number is rejected")
}

func assertRoundTrip(s *suite.Suite, st historyStore) {
	ctx := context.Background()
	n := phone.MustParse("+61412345678")

	_, err := st.Get(ctx, n)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(st.Put(ctx, sampleRecord("+61412345678", 12)))
	s.Require().NoError(st.Put(ctx, sampleRecord("+61412345678", 64)))

	got, err := st.Get(ctx, n)
	s.Require().NoError(err)
	s.Equal(n, got.Number)
	s.Equal(n, got.Verdict.Number)
	s.Equal(64, got.Verdict.RiskScore)
	s.Equal("Telstra", got.Verdict.Evidence.Carrier.Carrier.Carrier)
	s.True(got.Verdict.ComputedAt.Equal(fixedNow))
}
