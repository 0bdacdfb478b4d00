package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/interview"
	"admissions/internal/domain/period"
	"admissions/internal/domain/program"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// EntretienService schedules interviews and collects examiner evaluations.
// Overlapping slots are not detected.
type EntretienService struct {
	interviews   interview.Repository
	candidatures candidature.Repository
	users        user.Repository
	programs     program.Repository
	periods      period.Repository
	matrix       *access.Matrix
	notifier     notifier
	logger       *zap.Logger
}

func NewEntretienService(
	interviews interview.Repository,
	candidatures candidature.Repository,
	users user.Repository,
	programs program.Repository,
	periods period.Repository,
	matrix *access.Matrix,
	mailer mail.Sender,
	logger *zap.Logger,
) *EntretienService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntretienService{
		interviews:   interviews,
		candidatures: candidatures,
		users:        users,
		programs:     programs,
		periods:      periods,
		matrix:       matrix,
		notifier:     newNotifier(mailer, logger),
		logger:       logger,
	}
}

func interviewRef(d *interview.Detail) access.InterviewRef {
	return access.InterviewRef{
		ExaminerID:  d.ExaminerID,
		Candidature: access.CandidatureRef{OwnerID: d.CandidateID, ProgramID: d.ProgramID},
	}
}

func (s *EntretienService) load(ctx context.Context, actor access.Actor, id common.UUID) (*interview.Detail, error) {
	d, err := s.interviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.matrix.AuthorizeInterview(ctx, actor, interviewRef(d)); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *EntretienService) List(ctx context.Context, actor access.Actor, filter interview.Filter) ([]interview.Detail, error) {
	if filter.Status != "" && !filter.Status.IsKnown() {
		return nil, common.NewValidationError("invalid status", map[string]string{"statut": "unknown status"})
	}
	filter.CandidateID = ""
	switch actor.Role {
	case user.RoleCandidate:
		filter.CandidateID = actor.ID
	case user.RoleExaminer:
		filter.ExaminerID = actor.ID
	case user.RoleCoordinator, user.RoleAdmin:
	default:
		return nil, common.NewError(common.CodeForbidden, "insufficient role", nil)
	}
	items, err := s.interviews.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []interview.Detail{}
	}
	return items, nil
}

// Get returns the interview. Evaluation notes are withheld from candidates.
func (s *EntretienService) Get(ctx context.Context, actor access.Actor, id common.UUID) (*interview.Detail, error) {
	d, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Is(user.RoleCandidate) {
		d.Notes = nil
		return d, nil
	}
	if d.Notes, err = s.interviews.ListNotes(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

type InterviewInput struct {
	CandidatureID   common.UUID
	ExaminerID      common.UUID
	PeriodID        common.UUID
	Type            interview.Type
	Format          interview.Format
	Date            string
	Time            string
	DurationMinutes int
	Location        string
	MeetingLink     string
	MeetingID       string
	MeetingPassword string
	Title           string
	Description     string
}

func validTime(value string) bool {
	_, err := time.Parse(timeLayout, value)
	return err == nil && len(value) == len(timeLayout)
}

func (s *EntretienService) Create(ctx context.Context, actor access.Actor, input InterviewInput) (*interview.Interview, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if input.CandidatureID.IsZero() {
		fields["candidatureId"] = "candidature is required"
	}
	if input.ExaminerID.IsZero() {
		fields["examinateurId"] = "examiner is required"
	}
	if !input.Type.IsKnown() {
		fields["type"] = "must be TECHNIQUE, MOTIVATION or GENERAL"
	}
	if !input.Format.IsKnown() {
		fields["format"] = "must be PRESENTIEL, EN_LIGNE or TELEPHONIQUE"
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(input.Date))
	if err != nil {
		fields["dateProgrammee"] = "expected YYYY-MM-DD"
	}
	if !validTime(strings.TrimSpace(input.Time)) {
		fields["heureProgrammee"] = "expected HH:mm"
	}
	if input.DurationMinutes <= 0 {
		fields["duree"] = "must be positive"
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid interview", fields)
	}

	c, err := s.candidatures.GetByID(ctx, input.CandidatureID)
	if err != nil {
		return nil, err
	}
	if err := s.matrix.AuthorizeCandidature(ctx, actor, candidatureRef(c)); err != nil {
		return nil, err
	}
	if _, err := s.programs.GetByID(ctx, c.ProgramID); err != nil {
		return nil, err
	}
	periodID := input.PeriodID
	if periodID.IsZero() {
		periodID = c.PeriodID
	}
	if _, err := s.periods.GetByID(ctx, periodID); err != nil {
		return nil, err
	}
	examiner, err := s.users.GetByID(ctx, input.ExaminerID)
	if err != nil {
		return nil, err
	}
	if examiner.Role != user.RoleExaminer {
		return nil, common.NewError(common.CodeNotFound, "examiner not found", nil)
	}

	iv := &interview.Interview{
		CandidatureID:   c.ID,
		ExaminerID:      examiner.ID,
		PeriodID:        periodID,
		Type:            input.Type,
		Format:          input.Format,
		Date:            date.UTC(),
		Time:            strings.TrimSpace(input.Time),
		DurationMinutes: input.DurationMinutes,
		Location:        strings.TrimSpace(input.Location),
		MeetingLink:     strings.TrimSpace(input.MeetingLink),
		MeetingID:       strings.TrimSpace(input.MeetingID),
		MeetingPassword: input.MeetingPassword,
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		Status:          interview.StatusScheduled,
	}
	if err := s.interviews.Create(ctx, iv); err != nil {
		return nil, err
	}
	s.logger.Info("interview scheduled",
		zap.String("interview_id", iv.ID.String()),
		zap.String("candidature_id", c.ID.String()),
		zap.String("examiner_id", examiner.ID.String()))

	if candidate, err := s.users.GetByID(ctx, c.CandidateID); err == nil {
		s.notifier.bestEffort(ctx, *candidate, mail.TemplateInterviewScheduled, map[string]any{
			"prenom":            candidate.FirstName,
			"numeroCandidature": c.Number,
			"date":              iv.Date.Format(dateLayout),
			"heure":             iv.Time,
			"format":            string(iv.Format),
			"lieu":              iv.Location,
			"lienReunion":       iv.MeetingLink,
		})
	}
	return iv, nil
}

type InterviewPatch struct {
	Type            *interview.Type
	Format          *interview.Format
	Date            *string
	Time            *string
	DurationMinutes *int
	Location        *string
	MeetingLink     *string
	MeetingID       *string
	MeetingPassword *string
	Title           *string
	Description     *string
	Status          *interview.Status
	Recommendation  *string
}

func (s *EntretienService) Update(ctx context.Context, actor access.Actor, id common.UUID, patch InterviewPatch) (*interview.Interview, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin, user.RoleExaminer); err != nil {
		return nil, err
	}
	d, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	iv := d.Interview
	fields := map[string]string{}
	if patch.Type != nil {
		if !patch.Type.IsKnown() {
			fields["type"] = "must be TECHNIQUE, MOTIVATION or GENERAL"
		}
		iv.Type = *patch.Type
	}
	if patch.Format != nil {
		if !patch.Format.IsKnown() {
			fields["format"] = "must be PRESENTIEL, EN_LIGNE or TELEPHONIQUE"
		}
		iv.Format = *patch.Format
	}
	if patch.Date != nil {
		date, err := time.Parse(dateLayout, strings.TrimSpace(*patch.Date))
		if err != nil {
			fields["dateProgrammee"] = "expected YYYY-MM-DD"
		}
		iv.Date = date.UTC()
	}
	if patch.Time != nil {
		if !validTime(strings.TrimSpace(*patch.Time)) {
			fields["heureProgrammee"] = "expected HH:mm"
		}
		iv.Time = strings.TrimSpace(*patch.Time)
	}
	if patch.DurationMinutes != nil {
		if *patch.DurationMinutes <= 0 {
			fields["duree"] = "must be positive"
		}
		iv.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Status != nil {
		if !patch.Status.IsKnown() {
			fields["statut"] = "unknown status"
		}
		iv.Status = *patch.Status
	}
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid interview update", fields)
	}
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&iv.Location, patch.Location)
	assign(&iv.MeetingLink, patch.MeetingLink)
	assign(&iv.MeetingID, patch.MeetingID)
	assign(&iv.Title, patch.Title)
	assign(&iv.Description, patch.Description)
	assign(&iv.Recommendation, patch.Recommendation)
	if patch.MeetingPassword != nil {
		iv.MeetingPassword = *patch.MeetingPassword
	}
	if err := s.interviews.Update(ctx, &iv); err != nil {
		return nil, err
	}
	return &iv, nil
}

type InterviewNoteInput struct {
	TechnicalEvaluation   string
	CommunicationSkills   string
	MotivationFit         string
	OverallRecommendation string
	TechnicalScore        *int
	CommunicationScore    *int
	MotivationScore       *int
	OverallScore          *int
	Strengths             string
	Weaknesses            string
	AdditionalComments    string
	Complete              bool
	Draft                 bool
}

func checkScore(fields map[string]string, key string, score *int) {
	if score != nil && (*score < interview.MinScore || *score > interview.MaxScore) {
		fields[key] = "must be between 1 and 5"
	}
}

// AddNote records the assigned examiner's evaluation.
func (s *EntretienService) AddNote(ctx context.Context, actor access.Actor, id common.UUID, input InterviewNoteInput) (*interview.Note, error) {
	if err := requireRole(actor, user.RoleExaminer); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	checkScore(fields, "noteTechnique", input.TechnicalScore)
	checkScore(fields, "noteCommunication", input.CommunicationScore)
	checkScore(fields, "noteMotivation", input.MotivationScore)
	checkScore(fields, "noteGlobale", input.OverallScore)
	if len(fields) > 0 {
		return nil, common.NewValidationError("invalid interview note", fields)
	}
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	note := &interview.Note{
		InterviewID:           id,
		AuthorID:              actor.ID,
		TechnicalEvaluation:   strings.TrimSpace(input.TechnicalEvaluation),
		CommunicationSkills:   strings.TrimSpace(input.CommunicationSkills),
		MotivationFit:         strings.TrimSpace(input.MotivationFit),
		OverallRecommendation: strings.TrimSpace(input.OverallRecommendation),
		TechnicalScore:        input.TechnicalScore,
		CommunicationScore:    input.CommunicationScore,
		MotivationScore:       input.MotivationScore,
		OverallScore:          input.OverallScore,
		Strengths:             strings.TrimSpace(input.Strengths),
		Weaknesses:            strings.TrimSpace(input.Weaknesses),
		AdditionalComments:    strings.TrimSpace(input.AdditionalComments),
		Complete:              input.Complete,
		Draft:                 input.Draft,
	}
	if err := s.interviews.AddNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *EntretienService) ListNotes(ctx context.Context, actor access.Actor, id common.UUID) ([]interview.Note, error) {
	if actor.Is(user.RoleCandidate) {
		return nil, common.NewError(common.CodeForbidden, "interview notes are not visible to candidates", nil)
	}
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	notes, err := s.interviews.ListNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []interview.Note{}
	}
	return notes, nil
}

func (s *EntretienService) Cancel(ctx context.Context, actor access.Actor, id common.UUID, reason string) (*interview.Interview, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, common.NewValidationError("a reason is required", map[string]string{"raison": "required"})
	}
	d, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	iv := d.Interview
	iv.Status = interview.StatusCancelled
	iv.Recommendation = reason
	if err := s.interviews.Update(ctx, &iv); err != nil {
		return nil, err
	}
	s.logger.Info("interview cancelled", zap.String("interview_id", id.String()))
	return &iv, nil
}
