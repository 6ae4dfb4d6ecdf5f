package lock

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heldKey struct {
	token   string
	expires time.Time
}

// redisClientStub honours key expiry and the compare-and-set scripts.
type redisClientStub struct {
	mu         sync.Mutex
	held       map[string]heldKey
	setErr     error
	evalCalls  []string
	renewCalls int
}

func newRedisClientStub() *redisClientStub {
	return &redisClientStub{held: map[string]heldKey{}}
}

func (s *redisClientStub) live(key string) (heldKey, bool) {
	h, ok := s.held[key]
	if ok && time.Now().After(h.expires) {
		delete(s.held, key)
		return heldKey{}, false
	}
	return h, ok
}

func (s *redisClientStub) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return redis.NewBoolResult(false, s.setErr)
	}
	if _, ok := s.live(key); ok {
		return redis.NewBoolResult(false, nil)
	}
	s.held[key] = heldKey{token: value.(string), expires: time.Now().Add(expiration)}
	return redis.NewBoolResult(true, nil)
}

func (s *redisClientStub) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.live(keys[0])
	owned := ok && h.token == args[0].(string)

	if script == renewScript {
		s.renewCalls++
		if !owned {
			return redis.NewCmdResult(int64(0), nil)
		}
		h.expires = time.Now().Add(time.Duration(args[1].(int64)) * time.Millisecond)
		s.held[keys[0]] = h
		return redis.NewCmdResult(int64(1), nil)
	}

	s.evalCalls = append(s.evalCalls, keys[0])
	if owned {
		delete(s.held, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (s *redisClientStub) renewals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewCalls
}

func TestRedisLockerSkipsWhenHeld(t *testing.T) {
	client := newRedisClientStub()
	locker := NewRedisLocker(client, "lock:")
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "reconciler:missions", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "reconciler:missions", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, lease.Release(ctx))
	assert.Equal(t, []string{"lock:reconciler:missions"}, client.evalCalls)

	again, err := locker.Acquire(ctx, "reconciler:missions", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, again)
}

func TestRedisLeaseOutlivesTTLWhileHeld(t *testing.T) {
	client := newRedisClientStub()
	locker := NewRedisLocker(client, "lock:")
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "reconciler:attendance", 60*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	_, err = locker.Acquire(ctx, "reconciler:attendance", 60*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired, "a long run keeps its lock past the ttl")
	assert.Greater(t, client.renewals(), 0)

	require.NoError(t, lease.Release(ctx))
	renewed := client.renewals()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, renewed, client.renewals(), "renewal stops on release")

	next, err := locker.Acquire(ctx, "reconciler:attendance", 60*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, next.Release(ctx))
}

func TestRedisLeaseStopsRenewingOnceLost(t *testing.T) {
	client := newRedisClientStub()
	lease, err := NewRedisLocker(client, "").Acquire(context.Background(), "k", 30*time.Millisecond)
	require.NoError(t, err)

	client.mu.Lock()
	client.held["k"] = heldKey{token: "someone-else", expires: time.Now().Add(time.Minute)}
	client.mu.Unlock()

	require.Eventually(t, func() bool {
		select {
		case <-lease.(*redisLease).done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, lease.Release(context.Background()))
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, "someone-else", client.held["k"].token, "release never deletes another holder's key")
}

func TestRedisLockerPropagatesErrors(t *testing.T) {
	locker := NewRedisLocker(&redisClientStub{held: map[string]heldKey{}, setErr: errors.New("conn refused")}, "")
	_, err := locker.Acquire(context.Background(), "k", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)

	_, err = locker.Acquire(context.Background(), "k", 0)
	require.Error(t, err)
}

func newLockMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestPostgresLockerAcquireAndRelease(t *testing.T) {
	db, mock := newLockMock(t)
	locker := NewPostgresLocker(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock(hashtext($1))")).
		WithArgs("reconciler:attendance").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock(hashtext($1))")).
		WithArgs("reconciler:attendance").
		WillReturnResult(sqlmock.NewResult(0, 0))

	lease, err := locker.Acquire(context.Background(), "reconciler:attendance", time.Minute)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockerNotAcquired(t *testing.T) {
	db, mock := newLockMock(t)
	locker := NewPostgresLocker(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	_, err := locker.Acquire(context.Background(), "reconciler:attendance", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNopAlwaysGrants(t *testing.T) {
	lease, err := Nop{}.Acquire(context.Background(), "any", time.Second)
	require.NoError(t, err)
	assert.NoError(t, lease.Release(context.Background()))
}
