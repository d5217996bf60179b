//go:build integration

package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactlink/internal/contact/lock"
	"contactlink/pkg/platform/sentinel"
	"contactlink/pkg/testutil/containers"
)

type PostgresLockSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	locker   *lock.Postgres
}

func TestPostgresLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLockSuite))
}

func (s *PostgresLockSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.locker = lock.NewPostgres(s.postgres.DB)
}

func (s *PostgresLockSuite) heldAdvisoryLocks() int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(context.Background(),
		`SELECT count(*) FROM pg_locks WHERE locktype = 'advisory' AND classid::int = $1 AND granted`, 0x636c,
	).Scan(&n))
	return n
}

func (s *PostgresLockSuite) TestLockAndRelease() {
	unlock, err := s.locker.Lock(context.Background(), "phone:1", "email:a@x.io", "phone:1")
	s.Require().NoError(err)
	s.Equal(2, s.heldAdvisoryLocks())

	unlock()
	unlock()
	s.Zero(s.heldAdvisoryLocks())
}

func (s *PostgresLockSuite) TestMutualExclusionAcrossReplicas() {
	ctx := context.Background()
	replica := lock.NewPostgres(s.postgres.DB)

	var inside atomic.Int32
	var violations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		locker := s.locker
		if i%2 == 1 {
			locker = replica
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "email:race@x.io")
			if err != nil {
				s.T().Errorf("lock: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	s.Zero(violations.Load())
}

func (s *PostgresLockSuite) TestContendedLockTimesOutAsLocked() {
	ctx := context.Background()
	unlock, err := s.locker.Lock(ctx, "phone:42")
	s.Require().NoError(err)
	defer unlock()

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = s.locker.Lock(waitCtx, "email:free@x.io", "phone:42")

	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrLocked))
	s.True(errors.Is(err, context.DeadlineExceeded))

	unlock()
	s.Eventually(func() bool { return s.heldAdvisoryLocks() == 0 }, 2*time.Second, 10*time.Millisecond,
		"the key granted before the timeout is released too")
}

func (s *PostgresLockSuite) TestHolderBoundQueuesCallers() {
	bounded := lock.NewPostgres(s.postgres.DB, lock.WithMaxHolders(1))
	unlock, err := bounded.Lock(context.Background(), "email:one@x.io")
	s.Require().NoError(err)

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = bounded.Lock(waitCtx, "email:two@x.io")
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrLocked))

	unlock()
	again, err := bounded.Lock(context.Background(), "email:two@x.io")
	s.Require().NoError(err)
	again()
}

func (s *PostgresLockSuite) TestNoKeysNeverTouchesTheDatabase() {
	unlock, err := s.locker.Lock(context.Background())
	s.Require().NoError(err)
	unlock()
}
