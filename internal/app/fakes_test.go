package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/auth"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/document"
	"admissions/internal/domain/interview"
	"admissions/internal/domain/notification"
	"admissions/internal/domain/period"
	"admissions/internal/domain/program"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
	"admissions/internal/storage"
)

var errInjected = errors.New("injected failure")

func notFound(entity string) error {
	return common.NewError(common.CodeNotFound, entity+" not found", nil)
}

type fakeRecipient struct {
	notificationID common.UUID
	userID         common.UUID
	read           bool
	readAt         *time.Time
}

// fakeState is everything the fakes persist. WithinTx snapshots it and puts
// the snapshot back when the unit of work fails.
type fakeState struct {
	users          map[common.UUID]user.Account
	programs       map[common.UUID]program.Program
	periods        map[common.UUID]period.Period
	candidatures   map[common.UUID]candidature.Candidature
	counters       map[int]int
	events         []candidature.Event
	records        []candidature.AcademicRecord
	references     []candidature.Reference
	notes          []candidature.Note
	documents      map[common.UUID]document.Document
	verifications  []document.Verification
	interviews     map[common.UUID]interview.Interview
	interviewNotes []interview.Note
	notifications  []notification.Notification
	recipients     []fakeRecipient
}

func cloneAccount(a user.Account) user.Account {
	if a.Candidate != nil {
		p := *a.Candidate
		a.Candidate = &p
	}
	if a.Coordinator != nil {
		p := *a.Coordinator
		p.AssignedPrograms = append([]common.UUID(nil), a.Coordinator.AssignedPrograms...)
		a.Coordinator = &p
	}
	if a.Examiner != nil {
		p := *a.Examiner
		a.Examiner = &p
	}
	if a.Admin != nil {
		p := *a.Admin
		a.Admin = &p
	}
	return a
}

func (s fakeState) clone() fakeState {
	c := fakeState{
		users:          make(map[common.UUID]user.Account, len(s.users)),
		programs:       make(map[common.UUID]program.Program, len(s.programs)),
		periods:        make(map[common.UUID]period.Period, len(s.periods)),
		candidatures:   make(map[common.UUID]candidature.Candidature, len(s.candidatures)),
		counters:       make(map[int]int, len(s.counters)),
		events:         append([]candidature.Event(nil), s.events...),
		records:        append([]candidature.AcademicRecord(nil), s.records...),
		references:     append([]candidature.Reference(nil), s.references...),
		notes:          append([]candidature.Note(nil), s.notes...),
		documents:      make(map[common.UUID]document.Document, len(s.documents)),
		verifications:  append([]document.Verification(nil), s.verifications...),
		interviews:     make(map[common.UUID]interview.Interview, len(s.interviews)),
		interviewNotes: append([]interview.Note(nil), s.interviewNotes...),
		notifications:  append([]notification.Notification(nil), s.notifications...),
		recipients:     append([]fakeRecipient(nil), s.recipients...),
	}
	for k, v := range s.users {
		c.users[k] = cloneAccount(v)
	}
	for k, v := range s.programs {
		c.programs[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.candidatures {
		c.candidatures[k] = v
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.interviews {
		c.interviews[k] = v
	}
	return c
}

type fakeDB struct {
	mu sync.Mutex
	fakeState
	failOn         map[string]error
	programLookups int
	// beforeTx, when set, runs once just before the next WithinTx takes the
	// store lock, standing in for a writer that commits first.
	beforeTx func()
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		fakeState: fakeState{
			users:        map[common.UUID]user.Account{},
			programs:     map[common.UUID]program.Program{},
			periods:      map[common.UUID]period.Period{},
			candidatures: map[common.UUID]candidature.Candidature{},
			counters:     map[int]int{},
			documents:    map[common.UUID]document.Document{},
			interviews:   map[common.UUID]interview.Interview{},
		},
		failOn: map[string]error{},
	}
}

func (db *fakeDB) fail(method string) error {
	return db.failOn[method]
}

func (db *fakeDB) failNext(method string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failOn[method] = errInjected
}

func (db *fakeDB) eventsFor(candidatureID common.UUID) []candidature.Event {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []candidature.Event
	for _, e := range db.events {
		if e.CandidatureID == candidatureID {
			out = append(out, e)
		}
	}
	return out
}

func (db *fakeDB) candidature(id common.UUID) candidature.Candidature {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.candidatures[id]
}

// users

type fakeUsers struct{ db *fakeDB }

func (r fakeUsers) Create(_ context.Context, account *user.Account) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if strings.EqualFold(existing.Email, account.Email) {
			return common.NewError(common.CodeConflict, "email already in use", nil)
		}
	}
	now := time.Now().UTC()
	account.CreatedAt, account.UpdatedAt = now, now
	r.db.users[account.ID] = cloneAccount(*account)
	return nil
}

func (r fakeUsers) GetByID(_ context.Context, id common.UUID) (*user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.users[id]
	if !ok {
		return nil, notFound("user")
	}
	u := a.User
	return &u, nil
}

func (r fakeUsers) find(match func(user.User) bool) (*user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.users {
		if match(a.User) {
			u := a.User
			return &u, nil
		}
	}
	return nil, notFound("user")
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return r.find(func(u user.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r fakeUsers) GetByVerificationToken(_ context.Context, hash string) (*user.User, error) {
	return r.find(func(u user.User) bool { return hash != "" && u.VerificationTokenHash == hash })
}

func (r fakeUsers) GetByResetToken(_ context.Context, hash string) (*user.User, error) {
	return r.find(func(u user.User) bool { return hash != "" && u.ResetTokenHash == hash })
}

func (r fakeUsers) GetAccount(_ context.Context, id common.UUID) (*user.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.users[id]
	if !ok {
		return nil, notFound("user")
	}
	clone := cloneAccount(a)
	return &clone, nil
}

func (r fakeUsers) Update(_ context.Context, u *user.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.users[u.ID]
	if !ok {
		return notFound("user")
	}
	a.User = *u
	r.db.users[u.ID] = a
	return nil
}

func (r fakeUsers) Delete(_ context.Context, id common.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return notFound("user")
	}
	delete(r.db.users, id)
	return nil
}

func (r fakeUsers) List(_ context.Context, filter user.Filter) ([]user.User, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []user.User
	search := strings.ToLower(filter.Search)
	for _, a := range r.db.users {
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.FirstName+" "+a.LastName+" "+a.Email), search) {
			continue
		}
		out = append(out, a.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := len(out)
	if filter.Limit > 0 {
		start := (filter.Page - 1) * filter.Limit
		if start > len(out) {
			start = len(out)
		}
		end := start + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (r fakeUsers) ListActiveByRole(_ context.Context, role user.Role) ([]user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []user.User{}
	for _, a := range r.db.users {
		if a.Role == role && a.Status == user.StatusActive {
			out = append(out, a.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (r fakeUsers) withAccount(id common.UUID, fn func(a *user.Account)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.users[id]
	if !ok {
		return notFound("user")
	}
	fn(&a)
	r.db.users[id] = a
	return nil
}

func (r fakeUsers) UpsertCandidateProfile(_ context.Context, profile user.CandidateProfile) error {
	return r.withAccount(profile.UserID, func(a *user.Account) { a.Candidate = &profile })
}

func (r fakeUsers) UpsertCoordinatorProfile(_ context.Context, profile user.CoordinatorProfile) error {
	return r.withAccount(profile.UserID, func(a *user.Account) {
		if profile.AssignedPrograms == nil && a.Coordinator != nil {
			profile.AssignedPrograms = a.Coordinator.AssignedPrograms
		}
		a.Coordinator = &profile
	})
}

func (r fakeUsers) UpsertExaminerProfile(_ context.Context, profile user.ExaminerProfile) error {
	return r.withAccount(profile.UserID, func(a *user.Account) { a.Examiner = &profile })
}

func (r fakeUsers) UpsertAdminProfile(_ context.Context, profile user.AdminProfile) error {
	return r.withAccount(profile.UserID, func(a *user.Account) { a.Admin = &profile })
}

func (r fakeUsers) IsAssigned(_ context.Context, coordinatorID, programID common.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a := r.db.users[coordinatorID]
	if a.Coordinator == nil {
		return false, nil
	}
	for _, id := range a.Coordinator.AssignedPrograms {
		if id == programID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeUsers) AssignedPrograms(_ context.Context, coordinatorID common.UUID) ([]common.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a := r.db.users[coordinatorID]
	if a.Coordinator == nil {
		return []common.UUID{}, nil
	}
	return append([]common.UUID{}, a.Coordinator.AssignedPrograms...), nil
}

// programs

type fakePrograms struct{ db *fakeDB }

func (r fakePrograms) Create(_ context.Context, p *program.Program) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.programs {
		if existing.Code == p.Code {
			return common.NewError(common.CodeConflict, "code already in use", nil)
		}
	}
	r.db.programs[p.ID] = *p
	return nil
}

func (r fakePrograms) GetByID(_ context.Context, id common.UUID) (*program.Program, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.programs[id]
	if !ok {
		return nil, notFound("program")
	}
	return &p, nil
}

func (r fakePrograms) GetByCode(_ context.Context, code string) (*program.Program, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.programLookups++
	for _, p := range r.db.programs {
		if p.Code == program.NormalizeCode(code) {
			return &p, nil
		}
	}
	return nil, notFound("program")
}

func (r fakePrograms) List(_ context.Context, filter program.Filter) ([]program.Program, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []program.Program{}
	for _, p := range r.db.programs {
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r fakePrograms) Update(_ context.Context, p *program.Program) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.programs[p.ID]; !ok {
		return notFound("program")
	}
	r.db.programs[p.ID] = *p
	return nil
}

func (r fakePrograms) DeleteByCode(_ context.Context, code string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.programs {
		if p.Code == program.NormalizeCode(code) {
			delete(r.db.programs, id)
			return nil
		}
	}
	return notFound("program")
}

// periods

type fakePeriods struct{ db *fakeDB }

func (r fakePeriods) Create(_ context.Context, p *period.Period) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.periods[p.ID] = *p
	return nil
}

func (r fakePeriods) GetByID(_ context.Context, id common.UUID) (*period.Period, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.periods[id]
	if !ok {
		return nil, notFound("period")
	}
	return &p, nil
}

func (r fakePeriods) summary(p period.Period) period.Summary {
	s := period.Summary{Period: p}
	for _, c := range r.db.candidatures {
		if c.PeriodID != p.ID {
			continue
		}
		s.Candidatures++
		switch c.Status {
		case candidature.StatusAccepted:
			s.Accepted++
		case candidature.StatusRejected:
			s.Rejected++
		}
	}
	return s
}

func (r fakePeriods) GetSummary(_ context.Context, id common.UUID) (*period.Summary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.periods[id]
	if !ok {
		return nil, notFound("period")
	}
	s := r.summary(p)
	return &s, nil
}

func (r fakePeriods) List(_ context.Context) ([]period.Summary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []period.Summary{}
	for _, p := range r.db.periods {
		out = append(out, r.summary(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (r fakePeriods) ListActive(_ context.Context, now time.Time) ([]period.Period, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []period.Period{}
	for _, p := range r.db.periods {
		if p.AcceptsApplications(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r fakePeriods) Update(_ context.Context, p *period.Period) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.periods[p.ID]; !ok {
		return notFound("period")
	}
	r.db.periods[p.ID] = *p
	return nil
}

func (r fakePeriods) Delete(_ context.Context, id common.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.periods[id]; !ok {
		return notFound("period")
	}
	delete(r.db.periods, id)
	return nil
}

// candidatures

type fakeCandidatures struct{ db *fakeDB }

func (r fakeCandidatures) GetByID(_ context.Context, id common.UUID) (*candidature.Candidature, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.candidatures[id]
	if !ok {
		return nil, notFound("candidature")
	}
	return &c, nil
}

func (r fakeCandidatures) summary(c candidature.Candidature) candidature.Summary {
	s := candidature.Summary{Candidature: c}
	candidate := r.db.users[c.CandidateID]
	s.CandidateFirstName, s.CandidateLastName, s.CandidateEmail = candidate.FirstName, candidate.LastName, candidate.Email
	p := r.db.programs[c.ProgramID]
	s.ProgramName, s.ProgramCode = p.Name, p.Code
	s.PeriodName = r.db.periods[c.PeriodID].Name
	return s
}

func (r fakeCandidatures) List(_ context.Context, filter candidature.Filter) ([]candidature.Summary, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	allowed := map[common.UUID]bool{}
	for _, id := range filter.ProgramIDs {
		allowed[id] = true
	}
	search := strings.ToLower(filter.Search)
	var out []candidature.Summary
	for _, c := range r.db.candidatures {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if !filter.ProgramID.IsZero() && c.ProgramID != filter.ProgramID {
			continue
		}
		if !filter.PeriodID.IsZero() && c.PeriodID != filter.PeriodID {
			continue
		}
		if !filter.CandidateID.IsZero() && c.CandidateID != filter.CandidateID {
			continue
		}
		if filter.OnlyPrograms && !allowed[c.ProgramID] {
			continue
		}
		s := r.summary(c)
		if search != "" && !strings.Contains(strings.ToLower(s.Number+" "+s.CandidateFirstName+" "+s.CandidateLastName+" "+s.CandidateEmail), search) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	total := len(out)
	if filter.Limit > 0 {
		start := (filter.Page - 1) * filter.Limit
		if start > len(out) {
			start = len(out)
		}
		end := start + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (r fakeCandidatures) ListByCandidate(ctx context.Context, candidateID common.UUID) ([]candidature.Summary, error) {
	items, _, err := r.List(ctx, candidature.Filter{CandidateID: candidateID, Limit: allRows})
	return items, err
}

func (r fakeCandidatures) HasOpen(_ context.Context, candidateID common.UUID, statuses []candidature.Status, now time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.candidatures {
		if c.CandidateID != candidateID || !r.db.periods[c.PeriodID].AcceptsApplications(now) {
			continue
		}
		for _, s := range statuses {
			if c.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r fakeCandidatures) ListRecords(_ context.Context, candidatureID common.UUID) ([]candidature.AcademicRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []candidature.AcademicRecord{}
	for _, rec := range r.db.records {
		if rec.CandidatureID == candidatureID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r fakeCandidatures) ListReferences(_ context.Context, candidatureID common.UUID) ([]candidature.Reference, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []candidature.Reference{}
	for _, ref := range r.db.references {
		if ref.CandidatureID == candidatureID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r fakeCandidatures) ListEvents(_ context.Context, candidatureID common.UUID) ([]candidature.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []candidature.Event{}
	for i := len(r.db.events) - 1; i >= 0; i-- {
		if r.db.events[i].CandidatureID == candidatureID {
			out = append(out, r.db.events[i])
		}
	}
	return out, nil
}

func (r fakeCandidatures) ListNotes(_ context.Context, candidatureID common.UUID) ([]candidature.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []candidature.Note{}
	for i := len(r.db.notes) - 1; i >= 0; i-- {
		if r.db.notes[i].CandidatureID == candidatureID {
			out = append(out, r.db.notes[i])
		}
	}
	return out, nil
}

func (r fakeCandidatures) WithinTx(_ context.Context, fn func(tx candidature.Tx) error) error {
	r.db.mu.Lock()
	hook := r.db.beforeTx
	r.db.beforeTx = nil
	r.db.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	snapshot := r.db.fakeState.clone()
	if err := fn(&fakeTx{db: r.db}); err != nil {
		r.db.fakeState = snapshot
		return err
	}
	return nil
}

// fakeTx runs with the store lock already held by WithinTx.
type fakeTx struct{ db *fakeDB }

func (t *fakeTx) GetForUpdate(_ context.Context, id common.UUID) (*candidature.Candidature, error) {
	if err := t.db.fail("GetForUpdate"); err != nil {
		return nil, err
	}
	c, ok := t.db.candidatures[id]
	if !ok {
		return nil, notFound("candidature")
	}
	return &c, nil
}

func (t *fakeTx) Create(_ context.Context, c *candidature.Candidature) error {
	if err := t.db.fail("Create"); err != nil {
		return err
	}
	for _, existing := range t.db.candidatures {
		if existing.Number == c.Number {
			return common.NewError(common.CodeConflict, "numero already in use", nil)
		}
	}
	t.db.candidatures[c.ID] = *c
	return nil
}

func (t *fakeTx) Update(_ context.Context, c *candidature.Candidature) error {
	if err := t.db.fail("Update"); err != nil {
		return err
	}
	if _, ok := t.db.candidatures[c.ID]; !ok {
		return notFound("candidature")
	}
	t.db.candidatures[c.ID] = *c
	return nil
}

func (t *fakeTx) NextNumber(_ context.Context, year int) (int, error) {
	t.db.counters[year]++
	return t.db.counters[year], nil
}

func (t *fakeTx) AppendEvent(_ context.Context, event candidature.Event) error {
	if err := t.db.fail("AppendEvent"); err != nil {
		return err
	}
	t.db.events = append(t.db.events, event)
	return nil
}

func (t *fakeTx) UpdateCandidate(_ context.Context, userID common.UUID, identity user.IdentityPatch, profile user.CandidateProfilePatch) error {
	if err := t.db.fail("UpdateCandidate"); err != nil {
		return err
	}
	a, ok := t.db.users[userID]
	if !ok {
		return notFound("user")
	}
	a = cloneAccount(a)
	identity.Apply(&a.User)
	if a.Candidate == nil {
		a.Candidate = &user.CandidateProfile{UserID: userID, Country: user.DefaultCountry}
	}
	profile.Apply(a.Candidate)
	t.db.users[userID] = a
	return nil
}

func (t *fakeTx) GetCandidate(_ context.Context, userID common.UUID) (*user.User, error) {
	a, ok := t.db.users[userID]
	if !ok {
		return nil, notFound("candidate")
	}
	u := a.User
	return &u, nil
}

func (t *fakeTx) ListDocuments(_ context.Context, candidatureID common.UUID) ([]document.Document, error) {
	out := []document.Document{}
	for _, d := range t.db.documents {
		if d.CandidatureID == candidatureID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (t *fakeTx) ListRecords(_ context.Context, candidatureID common.UUID) ([]candidature.AcademicRecord, error) {
	out := []candidature.AcademicRecord{}
	for _, rec := range t.db.records {
		if rec.CandidatureID == candidatureID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *fakeTx) GetRecord(_ context.Context, candidatureID, recordID common.UUID) (*candidature.AcademicRecord, error) {
	for _, rec := range t.db.records {
		if rec.ID == recordID && rec.CandidatureID == candidatureID {
			return &rec, nil
		}
	}
	return nil, notFound("academic record")
}

func (t *fakeTx) SaveRecord(_ context.Context, rec *candidature.AcademicRecord) error {
	if err := t.db.fail("SaveRecord"); err != nil {
		return err
	}
	for i, existing := range t.db.records {
		if existing.ID == rec.ID {
			if existing.CandidatureID == rec.CandidatureID {
				t.db.records[i] = *rec
			}
			return nil
		}
	}
	t.db.records = append(t.db.records, *rec)
	return nil
}

func (t *fakeTx) DeleteRecord(_ context.Context, candidatureID, recordID common.UUID) error {
	for i, rec := range t.db.records {
		if rec.ID == recordID && rec.CandidatureID == candidatureID {
			t.db.records = append(t.db.records[:i:i], t.db.records[i+1:]...)
			return nil
		}
	}
	return notFound("academic record")
}

func (t *fakeTx) ReplaceRecords(_ context.Context, candidatureID common.UUID, records []candidature.AcademicRecord) error {
	if err := t.db.fail("ReplaceRecords"); err != nil {
		return err
	}
	kept := []candidature.AcademicRecord{}
	for _, rec := range t.db.records {
		if rec.CandidatureID != candidatureID {
			kept = append(kept, rec)
		}
	}
	t.db.records = append(kept, records...)
	return nil
}

func (t *fakeTx) ReplaceReferences(_ context.Context, candidatureID common.UUID, references []candidature.Reference) error {
	if err := t.db.fail("ReplaceReferences"); err != nil {
		return err
	}
	kept := []candidature.Reference{}
	for _, ref := range t.db.references {
		if ref.CandidatureID != candidatureID {
			kept = append(kept, ref)
		}
	}
	t.db.references = append(kept, references...)
	return nil
}

func (t *fakeTx) CreateDocument(_ context.Context, doc *document.Document) error {
	if err := t.db.fail("CreateDocument"); err != nil {
		return err
	}
	for _, existing := range t.db.documents {
		if existing.CandidatureID == doc.CandidatureID && existing.Type == doc.Type {
			return common.NewError(common.CodeConflict, "type already uploaded", nil)
		}
	}
	stored := *doc
	stored.Verifications = nil
	t.db.documents[doc.ID] = stored
	return nil
}

func (t *fakeTx) UpdateDocument(_ context.Context, doc *document.Document) error {
	if err := t.db.fail("UpdateDocument"); err != nil {
		return err
	}
	if _, ok := t.db.documents[doc.ID]; !ok {
		return notFound("document")
	}
	stored := *doc
	stored.Verifications = nil
	t.db.documents[doc.ID] = stored
	return nil
}

func (t *fakeTx) DeleteDocument(_ context.Context, id common.UUID) error {
	if err := t.db.fail("DeleteDocument"); err != nil {
		return err
	}
	if _, ok := t.db.documents[id]; !ok {
		return notFound("document")
	}
	delete(t.db.documents, id)
	return nil
}

func (t *fakeTx) AddVerification(_ context.Context, v *document.Verification) error {
	if err := t.db.fail("AddVerification"); err != nil {
		return err
	}
	t.db.verifications = append(t.db.verifications, *v)
	return nil
}

func (t *fakeTx) AddNote(_ context.Context, note *candidature.Note) error {
	t.db.notes = append(t.db.notes, *note)
	return nil
}

func (t *fakeTx) DeleteNote(_ context.Context, candidatureID, noteID common.UUID) error {
	for i, note := range t.db.notes {
		if note.ID == noteID && note.CandidatureID == candidatureID {
			t.db.notes = append(t.db.notes[:i:i], t.db.notes[i+1:]...)
			return nil
		}
	}
	return notFound("note")
}

// documents

type fakeDocuments struct{ db *fakeDB }

func (r fakeDocuments) withVerifications(d document.Document) document.Document {
	d.Verifications = []document.Verification{}
	for _, v := range r.db.verifications {
		if v.DocumentID == d.ID {
			d.Verifications = append(d.Verifications, v)
		}
	}
	return d
}

func (r fakeDocuments) GetByID(_ context.Context, id common.UUID) (*document.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.documents[id]
	if !ok {
		return nil, notFound("document")
	}
	d = r.withVerifications(d)
	return &d, nil
}

func (r fakeDocuments) GetByType(_ context.Context, candidatureID common.UUID, docType document.Type) (*document.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range r.db.documents {
		if d.CandidatureID == candidatureID && d.Type == docType {
			d = r.withVerifications(d)
			return &d, nil
		}
	}
	return nil, notFound("document")
}

func (r fakeDocuments) ListByCandidature(_ context.Context, candidatureID common.UUID) ([]document.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []document.Document{}
	for _, d := range r.db.documents {
		if d.CandidatureID == candidatureID {
			out = append(out, r.withVerifications(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (r fakeDocuments) ListAll(_ context.Context, filter document.Filter) ([]document.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	allowed := map[common.UUID]bool{}
	for _, id := range filter.ProgramIDs {
		allowed[id] = true
	}
	out := []document.Document{}
	for _, d := range r.db.documents {
		c := r.db.candidatures[d.CandidatureID]
		if filter.Year > 0 && r.db.periods[c.PeriodID].Year != filter.Year {
			continue
		}
		if filter.OnlyPrograms && !allowed[c.ProgramID] {
			continue
		}
		out = append(out, r.withVerifications(d))
	}
	return out, nil
}

// interviews

type fakeInterviews struct{ db *fakeDB }

func (r fakeInterviews) detail(iv interview.Interview) interview.Detail {
	d := interview.Detail{Interview: iv}
	c := r.db.candidatures[iv.CandidatureID]
	d.CandidateID, d.ProgramID, d.CandidatureNumber = c.CandidateID, c.ProgramID, c.Number
	d.CandidateName = r.db.users[c.CandidateID].FullName()
	d.ExaminerName = r.db.users[iv.ExaminerID].FullName()
	return d
}

func (r fakeInterviews) Create(_ context.Context, iv *interview.Interview) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if iv.ID.IsZero() {
		iv.ID = common.NewUUID()
	}
	iv.CreatedAt = time.Now().UTC()
	iv.UpdatedAt = iv.CreatedAt
	r.db.interviews[iv.ID] = *iv
	return nil
}

func (r fakeInterviews) GetByID(_ context.Context, id common.UUID) (*interview.Detail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	iv, ok := r.db.interviews[id]
	if !ok {
		return nil, notFound("interview")
	}
	d := r.detail(iv)
	return &d, nil
}

func (r fakeInterviews) List(_ context.Context, filter interview.Filter) ([]interview.Detail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []interview.Detail{}
	for _, iv := range r.db.interviews {
		d := r.detail(iv)
		if filter.Status != "" && iv.Status != filter.Status {
			continue
		}
		if !filter.ExaminerID.IsZero() && iv.ExaminerID != filter.ExaminerID {
			continue
		}
		if !filter.PeriodID.IsZero() && iv.PeriodID != filter.PeriodID {
			continue
		}
		if !filter.CandidateID.IsZero() && d.CandidateID != filter.CandidateID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (r fakeInterviews) Update(_ context.Context, iv *interview.Interview) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.interviews[iv.ID]; !ok {
		return notFound("interview")
	}
	r.db.interviews[iv.ID] = *iv
	return nil
}

func (r fakeInterviews) AddNote(_ context.Context, note *interview.Note) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	note.ID = common.NewUUID()
	note.CreatedAt = time.Now().UTC()
	r.db.interviewNotes = append(r.db.interviewNotes, *note)
	return nil
}

func (r fakeInterviews) ListNotes(_ context.Context, interviewID common.UUID) ([]interview.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []interview.Note{}
	for _, n := range r.db.interviewNotes {
		if n.InterviewID == interviewID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r fakeInterviews) ListByCandidature(_ context.Context, candidatureID common.UUID) ([]interview.Interview, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []interview.Interview{}
	for _, iv := range r.db.interviews {
		if iv.CandidatureID == candidatureID {
			out = append(out, iv)
		}
	}
	return out, nil
}

// notifications

type fakeNotifications struct{ db *fakeDB }

func (r fakeNotifications) Create(_ context.Context, n *notification.Notification, recipients []common.UUID, _ []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("CreateNotification"); err != nil {
		return err
	}
	r.db.notifications = append(r.db.notifications, *n)
	seen := map[common.UUID]bool{}
	for _, id := range recipients {
		if seen[id] {
			continue
		}
		seen[id] = true
		r.db.recipients = append(r.db.recipients, fakeRecipient{notificationID: n.ID, userID: id})
	}
	return nil
}

func (r fakeNotifications) ListInbox(_ context.Context, userID common.UUID, filter notification.InboxFilter) ([]notification.Inbox, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []notification.Inbox{}
	for i := len(r.db.notifications) - 1; i >= 0; i-- {
		n := r.db.notifications[i]
		for _, rcp := range r.db.recipients {
			if rcp.notificationID != n.ID || rcp.userID != userID {
				continue
			}
			if filter.Read != nil && rcp.read != *filter.Read {
				continue
			}
			if filter.Type != "" && n.Type != filter.Type {
				continue
			}
			out = append(out, notification.Inbox{ID: n.ID, Title: n.Title, Content: n.Content, Type: n.Type, CreatedAt: n.CreatedAt, Read: rcp.read, ReadAt: rcp.readAt})
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r fakeNotifications) MarkRead(_ context.Context, userID, notificationID common.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, rcp := range r.db.recipients {
		if rcp.notificationID == notificationID && rcp.userID == userID {
			if !rcp.read {
				r.db.recipients[i].read = true
				r.db.recipients[i].readAt = &at
			}
			return nil
		}
	}
	return notFound("notification")
}

func (r fakeNotifications) MarkAllRead(_ context.Context, userID common.UUID, at time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for i, rcp := range r.db.recipients {
		if rcp.userID == userID && !rcp.read {
			r.db.recipients[i].read = true
			r.db.recipients[i].readAt = &at
			count++
		}
	}
	return count, nil
}

func (r fakeNotifications) ListDeliveries(_ context.Context) ([]notification.Delivery, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []notification.Delivery{}
	for i := len(r.db.notifications) - 1; i >= 0; i-- {
		d := notification.Delivery{Notification: r.db.notifications[i]}
		for _, rcp := range r.db.recipients {
			if rcp.notificationID != d.ID {
				continue
			}
			d.Recipients++
			if rcp.read {
				d.Read++
			}
		}
		d.Unread = d.Recipients - d.Read
		out = append(out, d)
	}
	return out, nil
}

func (r fakeNotifications) Delete(_ context.Context, id common.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, n := range r.db.notifications {
		if n.ID == id {
			r.db.notifications = append(r.db.notifications[:i:i], r.db.notifications[i+1:]...)
			return nil
		}
	}
	return notFound("notification")
}

func (r fakeNotifications) ResolveAudience(_ context.Context, audience notification.Audience, programIDs []common.UUID) ([]common.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	roles := map[notification.Audience]user.Role{
		notification.AudienceCandidates:   user.RoleCandidate,
		notification.AudienceCoordinators: user.RoleCoordinator,
		notification.AudienceExaminers:    user.RoleExaminer,
		notification.AudienceAdmins:       user.RoleAdmin,
	}
	var out []common.UUID
	if audience == notification.AudienceSpecificPrograms {
		wanted := map[common.UUID]bool{}
		for _, id := range programIDs {
			wanted[id] = true
		}
		seen := map[common.UUID]bool{}
		for _, c := range r.db.candidatures {
			if wanted[c.ProgramID] && c.Status != candidature.StatusWithdrawn && !seen[c.CandidateID] {
				seen[c.CandidateID] = true
				out = append(out, c.CandidateID)
			}
		}
		for id, a := range r.db.users {
			if a.Coordinator == nil || seen[id] {
				continue
			}
			for _, p := range a.Coordinator.AssignedPrograms {
				if wanted[p] {
					seen[id] = true
					out = append(out, id)
					break
				}
			}
		}
		return out, nil
	}
	for id, a := range r.db.users {
		if a.Status != user.StatusActive {
			continue
		}
		if role, ok := roles[audience]; ok && a.Role != role {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// refresh tokens

type fakeRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]auth.RefreshToken
}

func newFakeRefreshTokens() *fakeRefreshTokens {
	return &fakeRefreshTokens{tokens: map[string]auth.RefreshToken{}}
}

func (r *fakeRefreshTokens) Store(_ context.Context, token auth.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Token] = token
	return nil
}

func (r *fakeRefreshTokens) GetByToken(_ context.Context, token string) (*auth.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.tokens[token]
	if !ok {
		return nil, notFound("refresh token")
	}
	return &value, nil
}

func (r *fakeRefreshTokens) Revoke(_ context.Context, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.tokens[token]
	if !ok {
		return notFound("refresh token")
	}
	revokedAt := at.UTC()
	value.RevokedAt = &revokedAt
	r.tokens[token] = value
	return nil
}

func (r *fakeRefreshTokens) RevokeAll(_ context.Context, userID common.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	revokedAt := at.UTC()
	for key, value := range r.tokens {
		if value.UserID == userID && value.RevokedAt == nil {
			value.RevokedAt = &revokedAt
			r.tokens[key] = value
		}
	}
	return nil
}

// outbound services

type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string]int64
	deleted   []string
	uploadErr error
	deleteErr error
	seq       int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string]int64{}}
}

func (s *fakeObjectStore) Upload(_ context.Context, file storage.File, folder string) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return storage.Object{}, s.uploadErr
	}
	n, err := io.Copy(io.Discard, file.Body)
	if err != nil {
		return storage.Object{}, err
	}
	if n == 0 {
		n = file.Size
	}
	s.seq++
	publicID := fmt.Sprintf("%s/file-%d", folder, s.seq)
	s.objects[publicID] = n
	return storage.Object{PublicID: publicID, URL: "https://files.example.com/" + publicID, Size: file.Size}, nil
}

func (s *fakeObjectStore) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, publicID)
	s.deleted = append(s.deleted, publicID)
	return nil
}

func (s *fakeObjectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type sentMail struct {
	to       string
	template mail.TemplateID
	params   map[string]any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendTemplate(_ context.Context, to []mail.Recipient, template mail.TemplateID, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, r := range to {
		m.sent = append(m.sent, sentMail{to: r.Email, template: template, params: params})
	}
	return nil
}

func (m *fakeMailer) last(template mail.TemplateID) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].template == template {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}
