package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/document"
	"admissions/internal/domain/interview"
	"admissions/internal/domain/period"
	"admissions/internal/domain/program"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
)

// openStatuses are the statuses that count as an ongoing application.
var openStatuses = []candidature.Status{
	candidature.StatusDraft,
	candidature.StatusSubmitted,
	candidature.StatusUnderReview,
}

type CandidatureService struct {
	candidatures candidature.Repository
	documents    document.Repository
	interviews   interview.Repository
	users        user.Repository
	assignments  user.ProgramAssignments
	programs     program.Repository
	periods      period.Repository
	matrix       *access.Matrix
	notifier     notifier
	logger       *zap.Logger
	now          func() time.Time
}

func NewCandidatureService(
	candidatures candidature.Repository,
	documents document.Repository,
	interviews interview.Repository,
	users user.Repository,
	assignments user.ProgramAssignments,
	programs program.Repository,
	periods period.Repository,
	matrix *access.Matrix,
	mailer mail.Sender,
	logger *zap.Logger,
) *CandidatureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidatureService{
		candidatures: candidatures,
		documents:    documents,
		interviews:   interviews,
		users:        users,
		assignments:  assignments,
		programs:     programs,
		periods:      periods,
		matrix:       matrix,
		notifier:     newNotifier(mailer, logger),
		logger:       logger,
		now:          utcNow,
	}
}

func candidatureRef(c *candidature.Candidature) access.CandidatureRef {
	return access.CandidatureRef{OwnerID: c.CandidateID, ProgramID: c.ProgramID}
}

// authorize loads id and asks the matrix. Unknown ids are NotFound before any
// access decision is made.
func (s *CandidatureService) authorize(ctx context.Context, actor access.Actor, id common.UUID) (*candidature.Candidature, error) {
	c, err := s.candidatures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.matrix.AuthorizeCandidature(ctx, actor, candidatureRef(c)); err != nil {
		return nil, err
	}
	return c, nil
}

// locked runs fn against a row-locked copy of id in one transaction.
func (s *CandidatureService) locked(ctx context.Context, id common.UUID, fn func(tx candidature.Tx, c *candidature.Candidature) error) (*candidature.Candidature, error) {
	var result *candidature.Candidature
	err := s.candidatures.WithinTx(ctx, func(tx candidature.Tx) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CandidatureService) mutate(ctx context.Context, actor access.Actor, id common.UUID, fn func(tx candidature.Tx, c *candidature.Candidature) error) (*candidature.Candidature, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.locked(ctx, id, fn)
}

func (s *CandidatureService) event(c *candidature.Candidature, kind candidature.EventKind, description string, actor access.Actor) candidature.Event {
	return candidature.NewEvent(c.ID, kind, description, actor.ID, s.now())
}

func (s *CandidatureService) save(ctx context.Context, tx candidature.Tx, c *candidature.Candidature, event candidature.Event) error {
	c.UpdatedAt = s.now()
	if err := tx.Update(ctx, c); err != nil {
		return err
	}
	return tx.AppendEvent(ctx, event)
}

func candidateMayEdit(actor access.Actor, c *candidature.Candidature) error {
	if actor.Is(user.RoleCandidate) && !c.Status.EditableByCandidate() {
		return common.NewError(common.CodeForbidden, "candidature can no longer be edited", nil)
	}
	return nil
}

func requireDraft(c *candidature.Candidature) error {
	if c.Status != candidature.StatusDraft {
		return common.NewError(common.CodeForbidden, "only draft candidatures can be edited", nil)
	}
	return nil
}

type CreateCandidatureInput struct {
	ProgramID   common.UUID
	PeriodID    common.UUID
	CandidateID common.UUID
}

// Create opens a draft. Administrators may open one on behalf of a candidate.
func (s *CandidatureService) Create(ctx context.Context, actor access.Actor, input CreateCandidatureInput) (*candidature.Candidature, error) {
	if err := requireRole(actor, user.RoleCandidate, user.RoleAdmin); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if input.ProgramID.IsZero() {
		fields["programmeId"] = "program is required"
	}
	if input.PeriodID.IsZero() {
		fields["periodeId"] = "period is required"
	}
	candidateID := actor.ID
	if actor.Is(user.RoleAdmin) {
		candidateID = input.CandidateID
		if candidateID.IsZero() {
			fields["candidatId"] = "candidate is required"
		}
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid candidature", fields)
	}
	if actor.Is(user.RoleAdmin) {
		candidate, err := s.users.GetByID(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		if candidate.Role != user.RoleCandidate {
			return nil, common.NewValidationError("invalid candidature", map[string]string{"candidatId": "user is not a candidate"})
		}
	}
	if _, err := s.programs.GetByID(ctx, input.ProgramID); err != nil {
		return nil, err
	}
	p, err := s.periods.GetByID(ctx, input.PeriodID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deadline := p.ApplicationCutoff
	c := &candidature.Candidature{
		ID:          common.NewUUID(),
		CandidateID: candidateID,
		ProgramID:   input.ProgramID,
		PeriodID:    input.PeriodID,
		Status:      candidature.StatusDraft,
		Priority:    candidature.PriorityNormal,
		Deadline:    &deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.candidatures.WithinTx(ctx, func(tx candidature.Tx) error {
		seq, err := tx.NextNumber(ctx, p.Year)
		if err != nil {
			return err
		}
		c.Number = candidature.FormatNumber(p.Year, seq)
		if err := tx.Create(ctx, c); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, s.event(c, candidature.EventCreated, "Candidature créée", actor))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("candidature created",
		zap.String("candidature_id", c.ID.String()),
		zap.String("number", c.Number),
		zap.String("candidate_id", candidateID.String()))
	return c, nil
}

// CandidatureDetail is the denormalised view of one candidature.
type CandidatureDetail struct {
	candidature.Candidature
	Candidate       *user.Account                `json:"candidat"`
	Program         *program.Program             `json:"programme"`
	Period          *period.Period               `json:"periode"`
	AcademicRecords []candidature.AcademicRecord `json:"dossiersAcademiques"`
	Documents       []document.Document          `json:"documents"`
	References      []candidature.Reference      `json:"references"`
	Interviews      []interview.Interview        `json:"entretiens"`
	Chronology      []candidature.Event          `json:"chronologie"`
	Notes           []candidature.Note           `json:"notes,omitempty"`
}

func (s *CandidatureService) Get(ctx context.Context, actor access.Actor, id common.UUID) (*CandidatureDetail, error) {
	c, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, actor, c)
}

func (s *CandidatureService) detail(ctx context.Context, actor access.Actor, c *candidature.Candidature) (*CandidatureDetail, error) {
	d := &CandidatureDetail{Candidature: *c}
	var err error
	if d.Candidate, err = s.users.GetAccount(ctx, c.CandidateID); err != nil {
		return nil, err
	}
	if d.Program, err = s.programs.GetByID(ctx, c.ProgramID); err != nil {
		return nil, err
	}
	if d.Period, err = s.periods.GetByID(ctx, c.PeriodID); err != nil {
		return nil, err
	}
	if d.AcademicRecords, err = s.candidatures.ListRecords(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.Documents, err = s.documents.ListByCandidature(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.References, err = s.candidatures.ListReferences(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.Interviews, err = s.interviews.ListByCandidature(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.Chronology, err = s.candidatures.ListEvents(ctx, c.ID); err != nil {
		return nil, err
	}
	if actor.Role.IsStaff() {
		if d.Notes, err = s.candidatures.ListNotes(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return d, nil
}

type CandidatureList struct {
	Candidatures []candidature.Summary `json:"candidatures"`
	Pagination   Pagination            `json:"pagination"`
}

// List is scoped by role: candidates see their own files, coordinators those
// of their programs and administrators everything.
func (s *CandidatureService) List(ctx context.Context, actor access.Actor, filter candidature.Filter) (*CandidatureList, error) {
	if filter.Status != "" && !filter.Status.IsKnown() {
		return nil, common.NewValidationError("invalid status", map[string]string{"statut": "unknown status"})
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	filter.CandidateID = ""
	filter.ProgramIDs = nil
	filter.OnlyPrograms = false
	switch actor.Role {
	case user.RoleCandidate:
		filter.CandidateID = actor.ID
	case user.RoleCoordinator:
		programs, err := s.assignments.AssignedPrograms(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		filter.ProgramIDs = programs
		filter.OnlyPrograms = true
	case user.RoleAdmin:
	default:
		return nil, common.NewError(common.CodeForbidden, "examiners cannot list candidatures", nil)
	}
	items, total, err := s.candidatures.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []candidature.Summary{}
	}
	return &CandidatureList{Candidatures: items, Pagination: newPagination(filter.Page, filter.Limit, total)}, nil
}

func (s *CandidatureService) ListMine(ctx context.Context, actor access.Actor) ([]candidature.Summary, error) {
	if err := requireRole(actor, user.RoleCandidate); err != nil {
		return nil, err
	}
	return s.candidatures.ListByCandidate(ctx, actor.ID)
}

type ActiveStatus struct {
	HasActive     bool            `json:"aCandidatureActive"`
	ActivePeriods []period.Period `json:"periodesActives"`
}

func (s *CandidatureService) ActiveStatus(ctx context.Context, actor access.Actor) (*ActiveStatus, error) {
	if err := requireRole(actor, user.RoleCandidate); err != nil {
		return nil, err
	}
	now := s.now()
	open, err := s.candidatures.HasOpen(ctx, actor.ID, openStatuses, now)
	if err != nil {
		return nil, err
	}
	periods, err := s.periods.ListActive(ctx, now)
	if err != nil {
		return nil, err
	}
	if periods == nil {
		periods = []period.Period{}
	}
	return &ActiveStatus{HasActive: open, ActivePeriods: periods}, nil
}

func (s *CandidatureService) ActivePeriods(ctx context.Context) ([]period.Period, error) {
	return s.periods.ListActive(ctx, s.now())
}

// CandidatureUpdate is the general partial update. Records are upserted by id
// and never removed.
type CandidatureUpdate struct {
	Identity        user.IdentityPatch
	Profile         user.CandidateProfilePatch
	Progress        *int
	Statement       *string
	AcademicRecords []candidature.AcademicRecord
}

func validateIdentity(fields map[string]string, patch user.IdentityPatch) {
	if patch.Email != nil && !strings.Contains(*patch.Email, "@") {
		fields["email"] = "a valid email is required"
	}
	if patch.FirstName != nil && strings.TrimSpace(*patch.FirstName) == "" {
		fields["prenom"] = "must not be empty"
	}
	if patch.LastName != nil && strings.TrimSpace(*patch.LastName) == "" {
		fields["nom"] = "must not be empty"
	}
}

func validateRecord(fields map[string]string, key string, rec candidature.AcademicRecord) {
	if strings.TrimSpace(rec.Institution) == "" {
		fields[key] = "institution name is required"
		return
	}
	if rec.Average != nil && *rec.Average < 0 {
		fields[key] = "average must not be negative"
		return
	}
	if rec.Average != nil && rec.Scale != nil && *rec.Average > *rec.Scale {
		fields[key] = "average exceeds its scale"
	}
}

func recordKey(i int) string {
	return "dossiersAcademiques[" + strconv.Itoa(i) + "]"
}

func (s *CandidatureService) Update(ctx context.Context, actor access.Actor, id common.UUID, input CandidatureUpdate) (*candidature.Candidature, error) {
	fields := map[string]string{}
	validateIdentity(fields, input.Identity)
	if input.Progress != nil && (*input.Progress < 0 || *input.Progress > 100) {
		fields["progression"] = "must be between 0 and 100"
	}
	for i, rec := range input.AcademicRecords {
		validateRecord(fields, recordKey(i), rec)
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid candidature update", fields)
	}
	return s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if err := candidateMayEdit(actor, c); err != nil {
			return err
		}
		if !input.Identity.IsEmpty() || !input.Profile.IsEmpty() {
			if err := tx.UpdateCandidate(ctx, c.CandidateID, input.Identity, input.Profile); err != nil {
				return err
			}
		}
		for i := range input.AcademicRecords {
			rec := input.AcademicRecords[i]
			if err := s.upsertRecord(ctx, tx, c, &rec); err != nil {
				return err
			}
		}
		if input.Progress != nil {
			c.Progress = *input.Progress
		}
		if input.Statement != nil {
			c.Statement = strings.TrimSpace(*input.Statement)
		}
		return s.save(ctx, tx, c, s.event(c, candidature.EventUpdated, "Candidature mise à jour", actor))
	})
}

// upsertRecord updates rec when its id belongs to c and creates it otherwise.
func (s *CandidatureService) upsertRecord(ctx context.Context, tx candidature.Tx, c *candidature.Candidature, rec *candidature.AcademicRecord) error {
	rec.CandidatureID = c.ID
	if !rec.ID.IsZero() {
		existing, err := tx.GetRecord(ctx, c.ID, rec.ID)
		switch {
		case err == nil:
			rec.CreatedAt = existing.CreatedAt
			return tx.SaveRecord(ctx, rec)
		case !common.Is(err, common.CodeNotFound):
			return err
		}
	}
	rec.ID = common.NewUUID()
	rec.CreatedAt = s.now()
	return tx.SaveRecord(ctx, rec)
}

type DecisionInput struct {
	Status   *candidature.Status
	Priority *candidature.Priority
	Decision *string
	Reason   *string
	Force    bool
}

// UpdateDecision applies a staff review decision. Force lets administrators
// move the file to any status except draft and withdrawn.
func (s *CandidatureService) UpdateDecision(ctx context.Context, actor access.Actor, id common.UUID, input DecisionInput) (*candidature.Candidature, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return nil, err
	}
	if input.Force && !actor.Is(user.RoleAdmin) {
		return nil, common.NewError(common.CodeForbidden, "only administrators can force a status", nil)
	}
	if input.Status != nil && !input.Status.IsKnown() {
		return nil, common.NewValidationError("invalid status", map[string]string{"statut": "unknown status"})
	}
	if input.Priority != nil && !input.Priority.IsKnown() {
		return nil, common.NewValidationError("invalid priority", map[string]string{"priorite": "must be BASSE, NORMALE or HAUTE"})
	}

	changed := false
	updated, err := s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		event := s.event(c, candidature.EventUpdated, "Candidature mise à jour", actor)
		if input.Status != nil && (*input.Status != c.Status || input.Force) {
			from, to := c.Status, *input.Status
			metadata := map[string]any{"ancienStatut": string(from), "nouveauStatut": string(to)}
			if input.Force {
				if !candidature.CanOverride(to) {
					return candidature.TransitionError(from, to)
				}
				metadata["override"] = true
				event = s.event(c, candidature.EventStatusChanged, "Statut modifié par un administrateur", actor)
			} else {
				if !candidature.CanDecide(from, to) {
					return candidature.TransitionError(from, to)
				}
				event = s.event(c, candidature.EventDecision, "Décision: "+string(to), actor)
			}
			event.Metadata = metadata
			c.Status = to
			changed = from != to
		}
		if input.Priority != nil {
			c.Priority = *input.Priority
		}
		if input.Decision != nil {
			c.Decision = strings.TrimSpace(*input.Decision)
		}
		if input.Reason != nil {
			c.DecisionReason = strings.TrimSpace(*input.Reason)
		}
		return s.save(ctx, tx, c, event)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("candidature decision recorded",
		zap.String("candidature_id", id.String()),
		zap.String("status", string(updated.Status)),
		zap.Bool("forced", input.Force))
	if changed {
		s.notifyStatus(ctx, updated)
	}
	return updated, nil
}

func (s *CandidatureService) notifyStatus(ctx context.Context, c *candidature.Candidature) {
	candidate, err := s.users.GetByID(ctx, c.CandidateID)
	if err != nil {
		s.logger.Warn("status email skipped", zap.String("candidature_id", c.ID.String()), zap.Error(err))
		return
	}
	s.notifier.bestEffort(ctx, *candidate, mail.TemplateApplicationStatus, map[string]any{
		"prenom":            candidate.FirstName,
		"numeroCandidature": c.Number,
		"statut":            string(c.Status),
	})
}

// ApplicationInfo replaces the application content of a draft wholesale.
// Records and references absent from the payload are cleared.
type ApplicationInfo struct {
	Statement       *string
	FirstName       *string
	LastName        *string
	Phone           *string
	Address         *string
	City            *string
	Country         *string
	AcademicRecords []candidature.AcademicRecord
	References      []candidature.Reference
}

func (s *CandidatureService) UpdateApplicationInfo(ctx context.Context, actor access.Actor, id common.UUID, input ApplicationInfo) (*candidature.Candidature, error) {
	fields := map[string]string{}
	identity := user.IdentityPatch{FirstName: input.FirstName, LastName: input.LastName, Phone: input.Phone}
	validateIdentity(fields, identity)
	for i, rec := range input.AcademicRecords {
		validateRecord(fields, recordKey(i), rec)
	}
	for i, ref := range input.References {
		if strings.TrimSpace(ref.Name) == "" {
			fields["references["+strconv.Itoa(i)+"]"] = "name is required"
		}
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid application info", fields)
	}
	profile := user.CandidateProfilePatch{Address: input.Address, City: input.City, Country: input.Country}
	return s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if err := requireDraft(c); err != nil {
			return err
		}
		if !identity.IsEmpty() || !profile.IsEmpty() {
			if err := tx.UpdateCandidate(ctx, c.CandidateID, identity, profile); err != nil {
				return err
			}
		}
		records := make([]candidature.AcademicRecord, len(input.AcademicRecords))
		for i, rec := range input.AcademicRecords {
			rec.ID = common.NewUUID()
			rec.CandidatureID = c.ID
			rec.CreatedAt = s.now()
			records[i] = rec
		}
		if err := tx.ReplaceRecords(ctx, c.ID, records); err != nil {
			return err
		}
		refs := make([]candidature.Reference, len(input.References))
		for i, ref := range input.References {
			ref.ID = common.NewUUID()
			ref.CandidatureID = c.ID
			refs[i] = ref
		}
		if err := tx.ReplaceReferences(ctx, c.ID, refs); err != nil {
			return err
		}
		if input.Statement != nil {
			c.Statement = strings.TrimSpace(*input.Statement)
		}
		return s.save(ctx, tx, c, s.event(c, candidature.EventUpdated, "Informations de candidature mises à jour", actor))
	})
}

type PersonalInfo struct {
	Identity user.IdentityPatch
	Profile  user.CandidateProfilePatch
}

func (s *CandidatureService) UpdatePersonalInfo(ctx context.Context, actor access.Actor, id common.UUID, input PersonalInfo) (*candidature.Candidature, error) {
	fields := map[string]string{}
	validateIdentity(fields, input.Identity)
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid personal information", fields)
	}
	return s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if err := candidateMayEdit(actor, c); err != nil {
			return err
		}
		if err := tx.UpdateCandidate(ctx, c.CandidateID, input.Identity, input.Profile); err != nil {
			return err
		}
		return s.save(ctx, tx, c, s.event(c, candidature.EventPersonalInfoUpdated, "Informations personnelles mises à jour", actor))
	})
}

func (s *CandidatureService) owned(ctx context.Context, actor access.Actor, id common.UUID) (*candidature.Candidature, error) {
	if err := requireRole(actor, user.RoleCandidate); err != nil {
		return nil, err
	}
	c, err := s.candidatures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.CandidateID != actor.ID {
		return nil, common.NewError(common.CodeForbidden, "candidature belongs to another candidate", nil)
	}
	return c, nil
}

// GetMine returns the candidate's own file regardless of its status.
func (s *CandidatureService) GetMine(ctx context.Context, actor access.Actor, id common.UUID) (*CandidatureDetail, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, actor, c)
}

type ContactUpdate struct {
	Phone    *string
	Address  *string
	City     *string
	Province *string
	Country  *string
}

// UpdateMyContact lets the owner keep contact details current after
// submission. No other field is reachable through it.
func (s *CandidatureService) UpdateMyContact(ctx context.Context, actor access.Actor, id common.UUID, input ContactUpdate) (*candidature.Candidature, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	identity := user.IdentityPatch{Phone: input.Phone}
	profile := user.CandidateProfilePatch{Address: input.Address, City: input.City, Province: input.Province, Country: input.Country}
	return s.locked(ctx, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if c.Status == candidature.StatusWithdrawn {
			return common.NewError(common.CodeForbidden, "candidature has been withdrawn", nil)
		}
		if err := tx.UpdateCandidate(ctx, c.CandidateID, identity, profile); err != nil {
			return err
		}
		return s.save(ctx, tx, c, s.event(c, candidature.EventPersonalInfoUpdated, "Coordonnées mises à jour", actor))
	})
}

// Submit checks readiness and moves a draft to submitted. The checklist is
// read under the candidature lock so a concurrent delete cannot slip between
// the check and the status change.
func (s *CandidatureService) Submit(ctx context.Context, actor access.Actor, id common.UUID) (*candidature.Candidature, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	var candidate *user.User
	submitted, err := s.locked(ctx, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if !candidature.CanTransition(c.Status, candidature.StatusSubmitted) {
			return candidature.TransitionError(c.Status, candidature.StatusSubmitted)
		}
		docs, err := tx.ListDocuments(ctx, c.ID)
		if err != nil {
			return err
		}
		records, err := tx.ListRecords(ctx, c.ID)
		if err != nil {
			return err
		}
		candidate, err = tx.GetCandidate(ctx, c.CandidateID)
		if err != nil {
			return err
		}
		types := make([]document.Type, 0, len(docs))
		for _, d := range docs {
			types = append(types, d.Type)
		}
		if err := candidature.CheckReadiness(candidature.Readiness{
			DocumentTypes:   types,
			FirstName:       candidate.FirstName,
			LastName:        candidate.LastName,
			Email:           candidate.Email,
			Phone:           candidate.Phone,
			AcademicRecords: len(records),
			Statement:       c.Statement,
		}); err != nil {
			return err
		}
		now := s.now()
		c.Status = candidature.StatusSubmitted
		c.SubmittedAt = &now
		return s.save(ctx, tx, c, s.event(c, candidature.EventSubmitted, "Candidature soumise", actor))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("candidature submitted", zap.String("candidature_id", id.String()), zap.String("number", submitted.Number))
	s.notifier.bestEffort(ctx, *candidate, mail.TemplateApplicationStatus, map[string]any{
		"prenom":            candidate.FirstName,
		"numeroCandidature": submitted.Number,
		"statut":            string(submitted.Status),
	})
	return submitted, nil
}

// Withdraw is open to the owner and to administrators from any status but
// withdrawn itself.
func (s *CandidatureService) Withdraw(ctx context.Context, actor access.Actor, id common.UUID, reason string) (*candidature.Candidature, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, common.NewValidationError("a reason is required", map[string]string{"raison": "required"})
	}
	if err := requireRole(actor, user.RoleCandidate, user.RoleAdmin); err != nil {
		return nil, err
	}
	withdrawn, err := s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if !candidature.CanTransition(c.Status, candidature.StatusWithdrawn) {
			return candidature.TransitionError(c.Status, candidature.StatusWithdrawn)
		}
		event := s.event(c, candidature.EventWithdrawn, reason, actor)
		event.Status = candidature.EventCancelled
		event.Metadata = map[string]any{"ancienStatut": string(c.Status)}
		c.Status = candidature.StatusWithdrawn
		return s.save(ctx, tx, c, event)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("candidature withdrawn", zap.String("candidature_id", id.String()))
	return withdrawn, nil
}

func (s *CandidatureService) ListAcademicRecords(ctx context.Context, actor access.Actor, id common.UUID) ([]candidature.AcademicRecord, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.candidatures.ListRecords(ctx, id)
}

func (s *CandidatureService) AddAcademicRecord(ctx context.Context, actor access.Actor, id common.UUID, rec candidature.AcademicRecord) (*candidature.AcademicRecord, error) {
	fields := map[string]string{}
	validateRecord(fields, "nomEtablissement", rec)
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid academic record", fields)
	}
	rec.ID = common.NewUUID()
	rec.CandidatureID = id
	rec.CreatedAt = s.now()
	_, err := s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if err := candidateMayEdit(actor, c); err != nil {
			return err
		}
		if err := tx.SaveRecord(ctx, &rec); err != nil {
			return err
		}
		return s.save(ctx, tx, c, s.event(c, candidature.EventRecordAdded, "Dossier académique ajouté: "+rec.Institution, actor))
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *CandidatureService) UpdateAcademicRecord(ctx context.Context, actor access.Actor, id, recordID common.UUID, rec candidature.AcademicRecord) (*candidature.AcademicRecord, error) {
	fields := map[string]string{}
	validateRecord(fields, "nomEtablissement", rec)
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid academic record", fields)
	}
	_, err := s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if err := candidateMayEdit(actor, c); err != nil {
			return err
		}
		existing, err := tx.GetRecord(ctx, c.ID, recordID)
		if err != nil {
			return err
		}
		rec.ID = existing.ID
		rec.CandidatureID = c.ID
		rec.CreatedAt = existing.CreatedAt
		if err := tx.SaveRecord(ctx, &rec); err != nil {
			return err
		}
		return s.save(ctx, tx, c, s.event(c, candidature.EventRecordUpdated, "Dossier académique mis à jour: "+rec.Institution, actor))
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *CandidatureService) DeleteAcademicRecord(ctx context.Context, actor access.Actor, id, recordID common.UUID) error {
	_, err := s.mutate(ctx, actor, id, func(tx candidature.Tx, c *candidature.Candidature) error {
		if err := candidateMayEdit(actor, c); err != nil {
			return err
		}
		if err := tx.DeleteRecord(ctx, c.ID, recordID); err != nil {
			return err
		}
		return s.save(ctx, tx, c, s.event(c, candidature.EventRecordDeleted, "Dossier académique supprimé", actor))
	})
	return err
}

type NoteInput struct {
	Content string
	Type    candidature.NoteType
}

// AddNote records a staff note. The author's name and role are copied so the
// note reads the same after the author changes.
func (s *CandidatureService) AddNote(ctx context.Context, actor access.Actor, id common.UUID, input NoteInput) (*candidature.Note, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, common.NewValidationError("invalid note", map[string]string{"contenu": "content is required"})
	}
	noteType := input.Type
	if noteType == "" {
		noteType = candidature.NoteGeneral
	}
	if !noteType.IsKnown() {
		return nil, common.NewValidationError("invalid note", map[string]string{"type": "unknown note type"})
	}
	author, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	note := &candidature.Note{
		ID:            common.NewUUID(),
		CandidatureID: id,
		Content:       content,
		Type:          noteType,
		AuthorID:      author.ID,
		AuthorName:    author.FullName(),
		AuthorRole:    author.Role,
		CreatedAt:     s.now(),
	}
	_, err = s.mutate(ctx, actor, id, func(tx candidature.Tx, _ *candidature.Candidature) error {
		return tx.AddNote(ctx, note)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *CandidatureService) ListNotes(ctx context.Context, actor access.Actor, id common.UUID) ([]candidature.Note, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.candidatures.ListNotes(ctx, id)
}

func (s *CandidatureService) DeleteNote(ctx context.Context, actor access.Actor, id, noteID common.UUID) error {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return err
	}
	_, err := s.mutate(ctx, actor, id, func(tx candidature.Tx, _ *candidature.Candidature) error {
		return tx.DeleteNote(ctx, id, noteID)
	})
	return err
}
