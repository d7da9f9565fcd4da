package sync

import (
	"context"
	"errors"
	stdsync "sync"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
)

// State of a synchronizer session.
type State string

const (
	StateCold      State = "cold"
	StateHydrating State = "hydrating"
	StateLive      State = "live"
	StateMutating  State = "mutating"
)

// Document names one of the two independently synced documents.
type Document string

const (
	DocumentFamily  Document = "family"
	DocumentPlanner Document = "planner"
)

// Synchronizer keeps one user's local view of the family and planner
// documents in step with the authoritative services. The two documents
// sync independently and concurrently; within one document a local
// mutation and a periodic pull are mutually exclusive, so a background
// tick can never clobber an in-flight optimistic write.
type Synchronizer struct {
	username  string
	directory ports.DirectoryService
	families  ports.FamilyRegistry
	planner   ports.PlannerService
	logger    *logger.Logger

	onChange func(Document)

	// familyMu and plannerMu serialize mutation against periodic pull
	// per document. A tick that cannot take the lock is simply skipped.
	familyMu  stdsync.Mutex
	plannerMu stdsync.Mutex

	// mu guards the cached state below.
	mu         stdsync.Mutex
	state      State
	membership string

	family      *entities.Family
	familySig   string
	familyDirty bool

	entries      []entities.PlannerEntry
	plannerSig   string
	plannerDirty bool
}

// New creates a synchronizer for username. It starts Cold; call
// Hydrate before Run.
func New(username string, directory ports.DirectoryService, families ports.FamilyRegistry, planner ports.PlannerService, log *logger.Logger) *Synchronizer {
	return &Synchronizer{
		username:  username,
		directory: directory,
		families:  families,
		planner:   planner,
		logger:    log.WithComponent("sync").WithUsername(username),
		state:     StateCold,
	}
}

// OnChange registers the re-render hook. It fires only when a sync or
// mutation materially changed a document; silent no-op ticks never
// fire it.
func (s *Synchronizer) OnChange(fn func(Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// State returns the current session state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Family returns the cached family document, nil when the user has
// none. Callers must not mutate the returned document.
func (s *Synchronizer) Family() *entities.Family {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.family
}

// Planner returns the cached planner entries.
func (s *Synchronizer) Planner() []entities.PlannerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entities.CloneEntries(s.entries)
}

// Dirty reports whether doc holds a local edit that has not durably
// synced.
func (s *Synchronizer) Dirty(doc Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == DocumentFamily {
		return s.familyDirty
	}
	return s.plannerDirty
}

// SetMembership repoints the membership pointer, typically after the
// user creates or joins a family through the UI.
func (s *Synchronizer) SetMembership(familyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.membership = familyID
}

// Hydrate performs the initial pull: resolve membership from the
// directory, then fetch both documents. A hydration failure leaves the
// synchronizer Cold so the caller can retry.
func (s *Synchronizer) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateHydrating
	s.mu.Unlock()

	user, err := s.directory.FindByUsername(ctx, s.username)
	if err != nil {
		s.setState(StateCold)
		return err
	}
	if user == nil {
		s.setState(StateCold)
		return entities.ErrUserNotFound
	}

	s.mu.Lock()
	if user.FamilyID != nil {
		s.membership = *user.FamilyID
	} else {
		s.membership = ""
	}
	s.mu.Unlock()

	if err := s.SyncFamily(ctx); err != nil && !Retryable(err) {
		s.setState(StateCold)
		return err
	}
	if err := s.SyncPlanner(ctx); err != nil && !Retryable(err) {
		s.setState(StateCold)
		return err
	}

	s.setState(StateLive)
	s.logger.Infow("Hydrated", "family_id", s.FamilyID())
	return nil
}

// FamilyID returns the current membership pointer.
func (s *Synchronizer) FamilyID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membership
}

// Run consumes the two feeds until ctx is cancelled. The documents are
// independent; a slow family pull never delays a planner pull.
func (s *Synchronizer) Run(ctx context.Context, familyFeed, plannerFeed Feed) {
	var wg stdsync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for range familyFeed.Changes(ctx) {
			if err := s.SyncFamily(ctx); err != nil && !Retryable(err) {
				s.logger.Warnw("Family sync failed", "error", err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for range plannerFeed.Changes(ctx) {
			if err := s.SyncPlanner(ctx); err != nil && !Retryable(err) {
				s.logger.Warnw("Planner sync failed", "error", err)
			}
		}
	}()

	wg.Wait()
}

// SyncFamily pulls the authoritative family document and adopts it if
// its signature changed. A pull failure leaves the cache untouched,
// and a pending local edit blocks adoption until it syncs.
func (s *Synchronizer) SyncFamily(ctx context.Context) error {
	if !s.familyMu.TryLock() {
		// A mutation is in flight; this tick is skipped, not queued.
		return nil
	}
	defer s.familyMu.Unlock()
	return s.pullFamilyLocked(ctx)
}

func (s *Synchronizer) pullFamilyLocked(ctx context.Context) error {
	s.mu.Lock()
	pointer := s.membership
	dirty := s.familyDirty
	s.mu.Unlock()

	if pointer == "" {
		return nil
	}

	remote, err := s.resolveFamily(ctx, pointer)
	if err != nil {
		if errors.Is(err, entities.ErrFamilyNotFound) {
			if dirty {
				// The cache still holds an unsynced edit; clearing it
				// here would lose the edit without a trace. Surface the
				// miss and leave the cache for the caller to deal with.
				return err
			}
			// Both interpretations of the pointer failed: membership
			// is stale, clear it rather than retrying forever.
			s.mu.Lock()
			s.membership = ""
			s.family = nil
			s.familySig = ""
			s.mu.Unlock()
			s.fire(DocumentFamily)
			s.logger.Warnw("Membership pointer no longer resolves, cleared", "pointer", pointer)
			return nil
		}
		return err
	}

	if dirty {
		// Local optimistic edit pending; remote adoption would drop it.
		return nil
	}

	sig := FamilySignature(remote)
	s.mu.Lock()
	changed := sig != s.familySig
	if changed {
		s.family = remote
		s.familySig = sig
		s.membership = remote.ID
	}
	s.mu.Unlock()

	if changed {
		s.fire(DocumentFamily)
	}
	return nil
}

// resolveFamily interprets the membership pointer first as a family id
// and then, if that misses, as an invite code. A corrupted pointer
// that happens to hold a code still finds its way home.
func (s *Synchronizer) resolveFamily(ctx context.Context, pointer string) (*entities.Family, error) {
	family, err := s.families.GetByID(ctx, pointer)
	if err == nil {
		return family, nil
	}
	if !errors.Is(err, entities.ErrFamilyNotFound) {
		return nil, err
	}
	return s.families.GetByCode(ctx, pointer)
}

// SyncPlanner pulls the authoritative planner and adopts it if its
// signature changed.
func (s *Synchronizer) SyncPlanner(ctx context.Context) error {
	if !s.plannerMu.TryLock() {
		return nil
	}
	defer s.plannerMu.Unlock()
	return s.pullPlannerLocked(ctx)
}

func (s *Synchronizer) pullPlannerLocked(ctx context.Context) error {
	s.mu.Lock()
	dirty := s.plannerDirty
	s.mu.Unlock()

	remote, err := s.planner.GetPlanner(ctx, s.username)
	if err != nil {
		return err
	}
	if dirty {
		return nil
	}

	sig := PlannerSignature(remote)
	s.mu.Lock()
	changed := sig != s.plannerSig
	if changed {
		s.entries = remote
		s.plannerSig = sig
	}
	s.mu.Unlock()

	if changed {
		s.fire(DocumentPlanner)
	}
	return nil
}

// MutateFamily runs a pull-mutate-push cycle: re-pull the authoritative
// document, apply fn to the fresh copy, push the result and adopt the
// service's returned copy. A failed push keeps the optimistic local
// copy and marks the document dirty; the caller gets the error so the
// edit can be reported as not durably synced.
func (s *Synchronizer) MutateFamily(ctx context.Context, fn func(*entities.Family) error) error {
	s.familyMu.Lock()
	defer s.familyMu.Unlock()

	s.setState(StateMutating)
	defer s.setState(StateLive)

	s.mu.Lock()
	pointer := s.membership
	cached := s.family
	dirty := s.familyDirty
	s.mu.Unlock()

	if pointer == "" {
		return entities.ErrFamilyNotFound
	}

	// Mutate a fresh copy, not the stale cache, to shrink the window
	// for lost updates. A dirty cache is the exception: it holds an
	// edit the server never saw, so it stays the base and rides out
	// with this push. If the pull fails the cached copy is the best
	// base available.
	var base *entities.Family
	if dirty && cached != nil {
		base = cached
	} else {
		var err error
		base, err = s.resolveFamily(ctx, pointer)
		if err != nil {
			if !Retryable(err) {
				return err
			}
			if cached == nil {
				return err
			}
			base = cached
		}
	}

	draft := base.Clone()
	if err := fn(draft); err != nil {
		return err
	}

	replaced, err := s.families.ReplaceFamily(ctx, draft)
	if err != nil {
		// Keep the edit optimistically and remember it has not synced.
		s.mu.Lock()
		s.family = draft
		s.familySig = FamilySignature(draft)
		s.familyDirty = true
		s.mu.Unlock()
		s.fire(DocumentFamily)
		s.logger.Warnw("Family push failed, edit retained locally", "error", err)
		return err
	}

	s.mu.Lock()
	s.family = replaced
	s.familySig = FamilySignature(replaced)
	s.familyDirty = false
	s.membership = replaced.ID
	s.mu.Unlock()
	s.fire(DocumentFamily)
	return nil
}

// MutatePlanner is the planner counterpart of MutateFamily: fn
// receives a fresh copy of the entries and returns the full desired
// list.
func (s *Synchronizer) MutatePlanner(ctx context.Context, fn func([]entities.PlannerEntry) ([]entities.PlannerEntry, error)) error {
	s.plannerMu.Lock()
	defer s.plannerMu.Unlock()

	s.setState(StateMutating)
	defer s.setState(StateLive)

	s.mu.Lock()
	dirty := s.plannerDirty
	retained := entities.CloneEntries(s.entries)
	s.mu.Unlock()

	var base []entities.PlannerEntry
	if dirty {
		// The retained unsynced edit stays the base so it reaches the
		// server together with this mutation.
		base = retained
	} else {
		var err error
		base, err = s.planner.GetPlanner(ctx, s.username)
		if err != nil {
			if !Retryable(err) {
				return err
			}
			base = retained
		}
	}

	next, err := fn(entities.CloneEntries(base))
	if err != nil {
		return err
	}

	replaced, err := s.planner.ReplacePlanner(ctx, s.username, next)
	if err != nil {
		s.mu.Lock()
		s.entries = next
		s.plannerSig = PlannerSignature(next)
		s.plannerDirty = true
		s.mu.Unlock()
		s.fire(DocumentPlanner)
		s.logger.Warnw("Planner push failed, edit retained locally", "error", err)
		return err
	}

	s.mu.Lock()
	s.entries = replaced
	s.plannerSig = PlannerSignature(replaced)
	s.plannerDirty = false
	s.mu.Unlock()
	s.fire(DocumentPlanner)
	return nil
}

// Retry re-pushes any document still holding an unsynced local edit.
func (s *Synchronizer) Retry(ctx context.Context) error {
	s.mu.Lock()
	familyDirty := s.familyDirty
	plannerDirty := s.plannerDirty
	family := s.family
	entries := entities.CloneEntries(s.entries)
	s.mu.Unlock()

	if familyDirty && family != nil {
		if err := s.MutateFamily(ctx, func(f *entities.Family) error {
			*f = *family.Clone()
			return nil
		}); err != nil {
			return err
		}
	}
	if plannerDirty {
		if err := s.MutatePlanner(ctx, func([]entities.PlannerEntry) ([]entities.PlannerEntry, error) {
			return entries, nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// Retryable classifies an error as transient. Transient failures are
// silently retried on the next tick; everything else is terminal for
// the attempt and surfaces to the caller.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, entities.ErrFamilyNotFound),
		errors.Is(err, entities.ErrUserNotFound),
		errors.Is(err, entities.ErrEntryNotFound),
		errors.Is(err, entities.ErrUsernameTaken),
		errors.Is(err, entities.ErrInvalidCredentials),
		errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrCodeSpaceExhausted):
		return false
	default:
		return true
	}
}

func (s *Synchronizer) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Synchronizer) fire(doc Document) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(doc)
	}
}
