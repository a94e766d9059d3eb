package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"
	"provalab-api/pkg/ratelimit"

	"github.com/google/uuid"
)

// ==== USER ====

type userRepo struct{ acc access }

func emailTaken(d *dataset, u *entity.User) bool {
	for id, other := range d.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return true
		}
		if u.GoogleID != nil && other.GoogleID != nil && *u.GoogleID == *other.GoogleID {
			return true
		}
	}
	return false
}

func (r *userRepo) Create(_ context.Context, user *entity.User) error {
	return r.acc(func(d *dataset) error {
		if _, ok := d.users[user.ID]; ok || emailTaken(d, user) {
			return repository.ErrDuplicate
		}
		d.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	var out *entity.User
	err := r.acc(func(d *dataset) error {
		if u, ok := d.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r *userRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.FindByID(ctx, id)
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	var out *entity.User
	err := r.acc(func(d *dataset) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				out = &u
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *userRepo) Update(_ context.Context, user *entity.User) error {
	return r.acc(func(d *dataset) error {
		if _, ok := d.users[user.ID]; !ok {
			return repository.ErrNotFound
		}
		if emailTaken(d, user) {
			return repository.ErrDuplicate
		}
		d.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) MarkEmailVerified(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.acc(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u.EmailVerified = true
		u.UpdatedAt = at
		d.users[id] = u
		return nil
	})
}

func (r *userRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string, at time.Time) error {
	return r.acc(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u.PasswordHash = &hash
		u.UpdatedAt = at
		d.users[id] = u
		return nil
	})
}

// ==== PROFILE ====

type profileRepo struct{ acc access }

func (r *profileRepo) Create(_ context.Context, profile *entity.Profile) error {
	return r.acc(func(d *dataset) error {
		if _, ok := d.profiles[profile.UserID]; ok {
			return nil
		}
		d.profiles[profile.UserID] = *profile
		return nil
	})
}

func (r *profileRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*entity.Profile, error) {
	var out *entity.Profile
	err := r.acc(func(d *dataset) error {
		if p, ok := d.profiles[userID]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *profileRepo) Update(_ context.Context, profile *entity.Profile) error {
	return r.acc(func(d *dataset) error {
		current, ok := d.profiles[profile.UserID]
		if !ok {
			return repository.ErrNotFound
		}
		current.FullName = profile.FullName
		current.AvatarURL = profile.AvatarURL
		current.UpdatedAt = profile.UpdatedAt
		d.profiles[profile.UserID] = current
		return nil
	})
}

// ==== PLAN ====

type planRepo struct{ acc access }

func (r *planRepo) Create(_ context.Context, plan *entity.PlanProfile) error {
	return r.acc(func(d *dataset) error {
		if _, ok := d.plans[plan.ID]; ok {
			return nil
		}
		d.plans[plan.ID] = *plan
		return nil
	})
}

func (r *planRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*entity.PlanProfile, error) {
	var out *entity.PlanProfile
	err := r.acc(func(d *dataset) error {
		if p, ok := d.plans[userID]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *planRepo) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*entity.PlanProfile, error) {
	return r.FindByUserID(ctx, userID)
}

func (r *planRepo) Update(_ context.Context, plan *entity.PlanProfile) error {
	return r.acc(func(d *dataset) error {
		if _, ok := d.plans[plan.ID]; !ok {
			return repository.ErrNotFound
		}
		d.plans[plan.ID] = *plan
		return nil
	})
}

func (r *planRepo) IncrementUses(_ context.Context, userID uuid.UUID, at time.Time) (int, error) {
	var count int
	err := r.acc(func(d *dataset) error {
		p, ok := d.plans[userID]
		if !ok {
			return repository.ErrNotFound
		}
		p.UsesCount++
		p.UpdatedAt = at
		d.plans[userID] = p
		count = p.UsesCount
		return nil
	})
	return count, err
}

// ==== VERIFICATION CODE ====

type codeRepo struct{ acc access }

func (r *codeRepo) Create(_ context.Context, code *entity.VerificationCode) error {
	return r.acc(func(d *dataset) error {
		d.codes[code.ID] = *code
		return nil
	})
}

func (r *codeRepo) FindForUpdate(_ context.Context, id, userID uuid.UUID) (*entity.VerificationCode, error) {
	var out *entity.VerificationCode
	err := r.acc(func(d *dataset) error {
		if c, ok := d.codes[id]; ok && c.UserID == userID {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *codeRepo) InvalidateActive(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	var n int64
	err := r.acc(func(d *dataset) error {
		for id, c := range d.codes {
			if c.UserID == userID && c.ConsumedAt == nil {
				consumed := at
				c.ConsumedAt = &consumed
				d.codes[id] = c
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *codeRepo) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.acc(func(d *dataset) error {
		c, ok := d.codes[id]
		if !ok {
			return repository.ErrNotFound
		}
		c.AttemptsCount++
		d.codes[id] = c
		attempts = c.AttemptsCount
		return nil
	})
	return attempts, err
}

func (r *codeRepo) MarkConsumed(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.acc(func(d *dataset) error {
		c, ok := d.codes[id]
		if !ok || c.ConsumedAt != nil {
			return repository.ErrNotFound
		}
		c.ConsumedAt = &at
		d.codes[id] = c
		return nil
	})
}

// ==== PASSWORD RESET ====

type resetRepo struct{ acc access }

func (r *resetRepo) Create(_ context.Context, token *entity.PasswordResetToken) error {
	return r.acc(func(d *dataset) error {
		for _, t := range d.resets {
			if t.TokenHash == token.TokenHash {
				return repository.ErrDuplicate
			}
		}
		d.resets[token.ID] = *token
		return nil
	})
}

func (r *resetRepo) FindByHashForUpdate(_ context.Context, hash string) (*entity.PasswordResetToken, error) {
	var out *entity.PasswordResetToken
	err := r.acc(func(d *dataset) error {
		for _, t := range d.resets {
			if t.TokenHash == hash {
				t := t
				out = &t
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *resetRepo) InvalidateActive(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	var n int64
	err := r.acc(func(d *dataset) error {
		for id, t := range d.resets {
			if t.UserID == userID && t.UsedAt == nil {
				used := at
				t.UsedAt = &used
				d.resets[id] = t
				n++
			}
		}
		return nil
	})
	return n, err
}

// ==== EXERCISE ====

type exerciseRepo struct{ acc access }

func matches(e entity.Exercise, f entity.ExerciseFilter) bool {
	return (f.Subject == "" || e.Subject == f.Subject) &&
		(f.Difficulty == "" || e.Difficulty == f.Difficulty)
}

func (r *exerciseRepo) filtered(d *dataset, f entity.ExerciseFilter) []entity.Exercise {
	out := make([]entity.Exercise, 0)
	for _, e := range d.exercises {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

func (r *exerciseRepo) Create(_ context.Context, exercise *entity.Exercise) error {
	return r.acc(func(d *dataset) error {
		if _, ok := d.exercises[exercise.ID]; ok {
			return repository.ErrDuplicate
		}
		d.exercises[exercise.ID] = *exercise
		return nil
	})
}

func (r *exerciseRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Exercise, error) {
	var out *entity.Exercise
	err := r.acc(func(d *dataset) error {
		if e, ok := d.exercises[id]; ok {
			out = &e
		}
		return nil
	})
	return out, err
}

func (r *exerciseRepo) List(_ context.Context, filter entity.ExerciseFilter, limit int) ([]entity.Exercise, error) {
	var out []entity.Exercise
	err := r.acc(func(d *dataset) error {
		out = r.filtered(d, filter)
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		if limit >= 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *exerciseRepo) Count(_ context.Context, filter entity.ExerciseFilter) (int, error) {
	var n int
	err := r.acc(func(d *dataset) error {
		n = len(r.filtered(d, filter))
		return nil
	})
	return n, err
}

func (r *exerciseRepo) FindAtOffset(_ context.Context, filter entity.ExerciseFilter, offset int) (*entity.Exercise, error) {
	var out *entity.Exercise
	err := r.acc(func(d *dataset) error {
		all := r.filtered(d, filter)
		sort.Slice(all, func(i, j int) bool {
			return all[i].ID.String() < all[j].ID.String()
		})
		if offset >= 0 && offset < len(all) {
			out = &all[offset]
		}
		return nil
	})
	return out, err
}

// ==== ATTEMPT ====

type attemptRepo struct{ acc access }

func (r *attemptRepo) Create(_ context.Context, attempt *entity.Attempt) error {
	return r.acc(func(d *dataset) error {
		if _, ok := d.exercises[attempt.ExerciseID]; !ok {
			return repository.ErrNotFound
		}
		a := *attempt
		a.Exercise = nil
		d.attempts = append(d.attempts, a)
		return nil
	})
}

func (r *attemptRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]entity.Attempt, error) {
	out := make([]entity.Attempt, 0)
	err := r.acc(func(d *dataset) error {
		for _, a := range d.attempts {
			if a.UserID != userID {
				continue
			}
			if e, ok := d.exercises[a.ExerciseID]; ok {
				a.Exercise = &e
			}
			out = append(out, a)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		if limit >= 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *attemptRepo) Stats(_ context.Context, userID uuid.UUID) (entity.AttemptStats, error) {
	var stats entity.AttemptStats
	err := r.acc(func(d *dataset) error {
		for _, a := range d.attempts {
			if a.UserID != userID {
				continue
			}
			stats.Total++
			if a.IsCorrect {
				stats.Correct++
			}
		}
		return nil
	})
	stats.Accuracy = entity.Accuracy(stats.Total, stats.Correct)
	return stats, err
}

// ==== RATE LIMIT LOG ====

// attemptLog reads issued codes and reset tokens, like the Postgres store.
type attemptLog struct{ acc access }

type logEntry struct {
	userID uuid.UUID
	ip     *string
	at     time.Time
}

func entriesFor(d *dataset, kind ratelimit.Kind) []logEntry {
	var out []logEntry
	switch kind {
	case ratelimit.KindEmailVerification:
		for _, c := range d.codes {
			out = append(out, logEntry{c.UserID, c.RequestIP, c.CreatedAt})
		}
	case ratelimit.KindPasswordReset:
		for _, t := range d.resets {
			out = append(out, logEntry{t.UserID, t.RequestIP, t.CreatedAt})
		}
	}
	return out
}

func earliest(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.Before(*cur) {
		return &t
	}
	return cur
}

func (l *attemptLog) Stats(_ context.Context, kind ratelimit.Kind, userID uuid.UUID, ip string, since time.Time) (ratelimit.Stats, error) {
	var stats ratelimit.Stats
	err := l.acc(func(d *dataset) error {
		for _, e := range entriesFor(d, kind) {
			byUser := e.userID == userID
			byIP := ip != "" && e.ip != nil && *e.ip == ip
			if !byUser && !byIP {
				continue
			}
			if stats.Latest == nil || e.at.After(*stats.Latest) {
				at := e.at
				stats.Latest = &at
			}
			if e.at.Before(since) {
				continue
			}
			if byUser {
				stats.UserCount++
				stats.OldestUser = earliest(stats.OldestUser, e.at)
			}
			if byIP {
				stats.IPCount++
				stats.OldestIP = earliest(stats.OldestIP, e.at)
			}
		}
		return nil
	})
	return stats, err
}

func (l *attemptLog) Record(context.Context, ratelimit.Kind, uuid.UUID, string, time.Time) error {
	return nil
}
