package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Persist pins a user's next messages to one handler until it is removed,
// cancelled or times out. A user has at most one.
type Persist struct {
	UserID        int64
	PersistID     int
	SubID         int
	AllowFunction bool
	AllowCancel   bool
	CreatedAt     time.Time

	// Data is the handler-defined tail of the record.
	Data []string
}

// Fields is the durable form:
// [user, persistId, subId, allowFunction, allowCancel, createdAt, data...].
func (p *Persist) Fields() []string {
	out := make([]string, 0, 6+len(p.Data))
	out = append(out,
		strconv.FormatInt(p.UserID, 10),
		strconv.Itoa(p.PersistID),
		strconv.Itoa(p.SubID),
		strconv.FormatBool(p.AllowFunction),
		strconv.FormatBool(p.AllowCancel),
		strconv.FormatInt(p.CreatedAt.UnixMilli(), 10),
	)
	return append(out, p.Data...)
}

// ParsePersist is the inverse of Fields.
func ParsePersist(fields []string) (*Persist, error) {
	if len(fields) < 6 {
		return nil, fmt.Errorf("bot: persist record has %d fields, want at least 6", len(fields))
	}
	user, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bot: persist user: %w", err)
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("bot: persist id: %w", err)
	}
	sub, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("bot: persist sub id: %w", err)
	}
	allowFunction, err := strconv.ParseBool(fields[3])
	if err != nil {
		return nil, fmt.Errorf("bot: persist allowFunction: %w", err)
	}
	allowCancel, err := strconv.ParseBool(fields[4])
	if err != nil {
		return nil, fmt.Errorf("bot: persist allowCancel: %w", err)
	}
	created, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bot: persist createdAt: %w", err)
	}
	return &Persist{
		UserID:        user,
		PersistID:     id,
		SubID:         sub,
		AllowFunction: allowFunction,
		AllowCancel:   allowCancel,
		CreatedAt:     time.UnixMilli(created),
		Data:          append([]string(nil), fields[6:]...),
	}, nil
}

func (p *Persist) clone() *Persist {
	c := *p
	c.Data = append([]string(nil), p.Data...)
	return &c
}

// PersistStore keeps persist records across restarts, keyed by the bot's
// user id.
type PersistStore interface {
	SavePersists(ctx context.Context, botID int64, records [][]string) error
	LoadPersists(ctx context.Context, botID int64) ([][]string, error)
}

// WritePersist attaches rec to its user, replacing any record the user had.
// The replaced record's owner gets OnPersistRemove.
func (r *Router) WritePersist(ctx context.Context, rec Persist) error {
	if _, ok := r.reg.persists[rec.PersistID]; !ok {
		return fmt.Errorf("bot: persist id %d has no handler", rec.PersistID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	stored := rec.clone()

	r.mu.Lock()
	old := r.persists[rec.UserID]
	r.persists[rec.UserID] = stored
	r.mu.Unlock()

	if old != nil {
		r.notifyRemoved(ctx, old)
	}
	return nil
}

// Persist returns a copy of the user's record, or nil.
func (r *Router) Persist(userID int64) *Persist {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.persists[userID]; ok {
		return rec.clone()
	}
	return nil
}

// Persists returns copies of all records ordered by user id.
func (r *Router) Persists() []*Persist {
	r.mu.Lock()
	out := make([]*Persist, 0, len(r.persists))
	for _, rec := range r.persists {
		out = append(out, rec.clone())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Router) take(userID int64) *Persist {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.persists[userID]
	if !ok {
		return nil
	}
	delete(r.persists, userID)
	return rec
}

// RemovePersist drops the user's record. It reports whether one existed.
func (r *Router) RemovePersist(ctx context.Context, userID int64) bool {
	rec := r.take(userID)
	if rec == nil {
		return false
	}
	r.notifyRemoved(ctx, rec)
	return true
}

// CancelPersist drops the user's record with OnPersistCancel before
// OnPersistRemove.
func (r *Router) CancelPersist(ctx context.Context, userID int64) bool {
	rec := r.take(userID)
	if rec == nil {
		return false
	}
	if owner := r.reg.persists[rec.PersistID]; owner != nil {
		r.invoke("persist_cancel", owner, func() error { return owner.OnPersistCancel(ctx, rec.clone()) })
	}
	r.notifyRemoved(ctx, rec)
	return true
}

// TimeoutPersist drops the user's record with OnPersistTimeout before
// OnPersistRemove.
func (r *Router) TimeoutPersist(ctx context.Context, userID int64) bool {
	rec := r.take(userID)
	if rec == nil {
		return false
	}
	r.timedOut(ctx, rec)
	return true
}

// ExpirePersists times out every record created before cutoff and returns
// how many were removed.
func (r *Router) ExpirePersists(ctx context.Context, cutoff time.Time) int {
	r.mu.Lock()
	var expired []*Persist
	for user, rec := range r.persists {
		if rec.CreatedAt.Before(cutoff) {
			expired = append(expired, rec)
			delete(r.persists, user)
		}
	}
	r.mu.Unlock()

	for _, rec := range expired {
		r.timedOut(ctx, rec)
	}
	return len(expired)
}

func (r *Router) timedOut(ctx context.Context, rec *Persist) {
	if owner := r.reg.persists[rec.PersistID]; owner != nil {
		r.invoke("persist_timeout", owner, func() error { return owner.OnPersistTimeout(ctx, rec.clone()) })
	}
	r.notifyRemoved(ctx, rec)
}

func (r *Router) notifyRemoved(ctx context.Context, rec *Persist) {
	if owner := r.reg.persists[rec.PersistID]; owner != nil {
		r.invoke("persist_remove", owner, func() error { return owner.OnPersistRemove(ctx, rec.clone()) })
	}
}
