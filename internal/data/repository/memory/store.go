// Package memory is an in-process repository.Store. Transactions are
// serialized and run against a copy of the dataset that replaces the live one
// only when the unit of work succeeds.
package memory

import (
	"context"
	"sync"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type dataset struct {
	users     map[uuid.UUID]entity.User
	profiles  map[uuid.UUID]entity.Profile // by user id
	plans     map[uuid.UUID]entity.PlanProfile
	codes     map[uuid.UUID]entity.VerificationCode
	resets    map[uuid.UUID]entity.PasswordResetToken
	exercises map[uuid.UUID]entity.Exercise
	attempts  []entity.Attempt
}

func newDataset() *dataset {
	return &dataset{
		users:     make(map[uuid.UUID]entity.User),
		profiles:  make(map[uuid.UUID]entity.Profile),
		plans:     make(map[uuid.UUID]entity.PlanProfile),
		codes:     make(map[uuid.UUID]entity.VerificationCode),
		resets:    make(map[uuid.UUID]entity.PasswordResetToken),
		exercises: make(map[uuid.UUID]entity.Exercise),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (d *dataset) clone() *dataset {
	return &dataset{
		users:     cloneMap(d.users),
		profiles:  cloneMap(d.profiles),
		plans:     cloneMap(d.plans),
		codes:     cloneMap(d.codes),
		resets:    cloneMap(d.resets),
		exercises: cloneMap(d.exercises),
		attempts:  append([]entity.Attempt(nil), d.attempts...),
	}
}

// access runs fn against a dataset. Outside a transaction it takes the store
// lock; inside one the lock is already held by WithTx.
type access func(fn func(d *dataset) error) error

type Store struct {
	mu    sync.Mutex
	data  *dataset
	repos *repository.Repository
	log   *zap.Logger
}

func NewStore(log *zap.Logger) *Store {
	s := &Store{
		data: newDataset(),
		log:  log.With(zap.String("store", "memory")),
	}
	s.repos = newRepository(func(fn func(d *dataset) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.data)
	})
	return s
}

func newRepository(acc access) *repository.Repository {
	return &repository.Repository{
		User:             &userRepo{acc: acc},
		Profile:          &profileRepo{acc: acc},
		PlanProfile:      &planRepo{acc: acc},
		VerificationCode: &codeRepo{acc: acc},
		PasswordReset:    &resetRepo{acc: acc},
		Exercise:         &exerciseRepo{acc: acc},
		Attempt:          &attemptRepo{acc: acc},
		AttemptLog:       &attemptLog{acc: acc},
	}
}

func (s *Store) Repos() *repository.Repository {
	return s.repos
}

// WithTx must not call Repos() from inside fn; use the repositories it is
// handed.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repository) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	repos := newRepository(func(fn func(d *dataset) error) error {
		return fn(work)
	})

	if err := fn(ctx, repos); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}
