package app

import (
	"context"
	"testing"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/interview"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
)

func (h *harness) schedule(t *testing.T) (candidate, examiner access.Actor, iv *interview.Interview) {
	t.Helper()
	candidate, c := h.draft(t)
	examiner = h.addUser(t, user.RoleExaminer)
	coordinator := h.addUser(t, user.RoleCoordinator)
	h.assign(coordinator, c.ProgramID)
	iv, err := h.entretiens.Create(context.Background(), coordinator, InterviewInput{
		CandidatureID:   c.ID,
		ExaminerID:      examiner.ID,
		Type:            interview.TypeTechnical,
		Format:          interview.FormatOnline,
		Date:            "2025-03-20",
		Time:            "10:30",
		DurationMinutes: 45,
		MeetingLink:     "https://meet.example.com/abc",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return candidate, examiner, iv
}

func TestCreateInterview(t *testing.T) {
	h := newHarness(t)
	candidate, _, iv := h.schedule(t)

	if iv.Status != interview.StatusScheduled || iv.Time != "10:30" || iv.Date.Format(dateLayout) != "2025-03-20" {
		t.Fatalf("unexpected interview %+v", iv)
	}
	if iv.PeriodID != h.db.candidature(iv.CandidatureID).PeriodID {
		t.Fatalf("expected the candidature's period by default")
	}
	sent, ok := h.mailer.last(mail.TemplateInterviewScheduled)
	if !ok || sent.params["heure"] != "10:30" {
		t.Fatalf("expected interview email, got %+v", sent)
	}
	u, _ := (fakeUsers{db: h.db}).GetByID(context.Background(), candidate.ID)
	if sent.to != u.Email {
		t.Fatalf("expected email to %s, got %s", u.Email, sent.to)
	}
}

func TestCreateInterviewValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.draft(t)
	coordinator := h.addUser(t, user.RoleCoordinator)
	h.assign(coordinator, c.ProgramID)

	_, err := h.entretiens.Create(ctx, coordinator, InterviewInput{CandidatureID: c.ID, ExaminerID: h.addUser(t, user.RoleExaminer).ID,
		Type: interview.TypeGeneral, Format: interview.FormatOnSite, Date: "20/03/2025", Time: "9h", DurationMinutes: 30})
	if !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = h.entretiens.Create(ctx, coordinator, InterviewInput{CandidatureID: c.ID, ExaminerID: h.addUser(t, user.RoleCandidate).ID,
		Type: interview.TypeGeneral, Format: interview.FormatOnSite, Date: "2025-03-20", Time: "09:00", DurationMinutes: 30})
	if !common.Is(err, common.CodeNotFound) {
		t.Fatalf("expected non-examiner to be not found, got %v", err)
	}

	_, err = h.entretiens.Create(ctx, h.addUser(t, user.RoleExaminer), InterviewInput{CandidatureID: c.ID})
	if !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected examiner scheduling forbidden, got %v", err)
	}
}

func TestCreateInterviewOutsideAssignedPrograms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, c := h.draft(t)
	coordinator := h.addUser(t, user.RoleCoordinator)
	h.assign(coordinator, h.addProgram(t, "AUTRE").ID)

	_, err := h.entretiens.Create(ctx, coordinator, InterviewInput{CandidatureID: c.ID, ExaminerID: h.addUser(t, user.RoleExaminer).ID,
		Type: interview.TypeGeneral, Format: interview.FormatOnSite, Date: "2025-03-20", Time: "09:00", DurationMinutes: 30})
	if !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected forbidden outside assigned programs, got %v", err)
	}
	if items, _ := (fakeInterviews{db: h.db}).ListByCandidature(ctx, c.ID); len(items) != 0 {
		t.Fatalf("expected no interview stored, got %d", len(items))
	}

	admin := h.addUser(t, user.RoleAdmin)
	if _, err := h.entretiens.Create(ctx, admin, InterviewInput{CandidatureID: c.ID, ExaminerID: h.addUser(t, user.RoleExaminer).ID,
		Type: interview.TypeGeneral, Format: interview.FormatOnSite, Date: "2025-03-20", Time: "09:00", DurationMinutes: 30}); err != nil {
		t.Fatalf("expected administrator to schedule, got %v", err)
	}
}

func TestInterviewNotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, examiner, iv := h.schedule(t)

	if _, err := h.entretiens.AddNote(ctx, examiner, iv.ID, InterviewNoteInput{TechnicalScore: intPtr(6)}); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected score above 5 rejected, got %v", err)
	}
	if _, err := h.entretiens.AddNote(ctx, examiner, iv.ID, InterviewNoteInput{OverallScore: intPtr(0)}); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected score below 1 rejected, got %v", err)
	}
	if _, err := h.entretiens.AddNote(ctx, h.addUser(t, user.RoleExaminer), iv.ID, InterviewNoteInput{OverallScore: intPtr(3)}); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected other examiner forbidden, got %v", err)
	}
	note, err := h.entretiens.AddNote(ctx, examiner, iv.ID, InterviewNoteInput{
		TechnicalScore: intPtr(4),
		OverallScore:   intPtr(5),
		Strengths:      " Très bonne maîtrise ",
		Complete:       true,
	})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if note.AuthorID != examiner.ID || note.Strengths != "Très bonne maîtrise" {
		t.Fatalf("unexpected note %+v", note)
	}

	detail, err := h.entretiens.Get(ctx, examiner, iv.ID)
	if err != nil {
		t.Fatalf("examiner get: %v", err)
	}
	if len(detail.Notes) != 1 {
		t.Fatalf("expected one note, got %d", len(detail.Notes))
	}
	own, err := h.entretiens.Get(ctx, candidate, iv.ID)
	if err != nil {
		t.Fatalf("candidate get: %v", err)
	}
	if own.Notes != nil {
		t.Fatalf("expected notes hidden from candidate, got %+v", own.Notes)
	}
	if _, err := h.entretiens.ListNotes(ctx, candidate, iv.ID); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected candidate notes forbidden, got %v", err)
	}
}

func TestListInterviewsByRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, examiner, iv := h.schedule(t)
	h.schedule(t)

	for name, actor := range map[string]access.Actor{"candidate": candidate, "examiner": examiner} {
		items, err := h.entretiens.List(ctx, actor, interview.Filter{})
		if err != nil {
			t.Fatalf("%s list: %v", name, err)
		}
		if len(items) != 1 || items[0].ID != iv.ID {
			t.Fatalf("%s: expected only own interview, got %d", name, len(items))
		}
	}
	all, err := h.entretiens.List(ctx, h.addUser(t, user.RoleAdmin), interview.Filter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 interviews, got %d", len(all))
	}
}

func TestUpdateAndCancelInterview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, examiner, iv := h.schedule(t)

	done := interview.StatusDone
	updated, err := h.entretiens.Update(ctx, examiner, iv.ID, InterviewPatch{Status: &done, Recommendation: strPtr("Admettre")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != interview.StatusDone || updated.Recommendation != "Admettre" {
		t.Fatalf("unexpected interview %+v", updated)
	}
	if _, err := h.entretiens.Update(ctx, candidate, iv.ID, InterviewPatch{Status: &done}); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected candidate update forbidden, got %v", err)
	}
	if _, err := h.entretiens.Update(ctx, examiner, iv.ID, InterviewPatch{Time: strPtr("25:00")}); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected invalid time rejected, got %v", err)
	}

	coordinator := h.addUser(t, user.RoleCoordinator)
	if _, err := h.entretiens.Cancel(ctx, coordinator, iv.ID, ""); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected reason required, got %v", err)
	}
	cancelled, err := h.entretiens.Cancel(ctx, coordinator, iv.ID, "examinateur indisponible")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != interview.StatusCancelled || cancelled.Recommendation != "examinateur indisponible" {
		t.Fatalf("unexpected cancelled interview %+v", cancelled)
	}
}
