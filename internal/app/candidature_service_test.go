package app

import (
	"context"
	"strings"
	"testing"

	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/document"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
)

func TestCreateNumbersPerYearAcrossPrograms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	per := h.addPeriod(t, 2025)
	first := h.addProgram(t, "MGI")
	second := h.addProgram(t, "MDS")

	a, err := h.candidatures.Create(ctx, h.addUser(t, user.RoleCandidate), CreateCandidatureInput{ProgramID: first.ID, PeriodID: per.ID})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	b, err := h.candidatures.Create(ctx, h.addUser(t, user.RoleCandidate), CreateCandidatureInput{ProgramID: second.ID, PeriodID: per.ID})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if a.Number != "CAND-2025-001" || b.Number != "CAND-2025-002" {
		t.Fatalf("expected sequential numbers, got %s and %s", a.Number, b.Number)
	}
	if a.Status != candidature.StatusDraft || a.Priority != candidature.PriorityNormal {
		t.Fatalf("expected normal draft, got %s/%s", a.Status, a.Priority)
	}
	if a.Deadline == nil || !a.Deadline.Equal(per.ApplicationCutoff) {
		t.Fatalf("expected deadline at period cutoff, got %v", a.Deadline)
	}
	if events := h.db.eventsFor(a.ID); len(events) != 1 || events[0].Kind != candidature.EventCreated {
		t.Fatalf("expected one CREATION event, got %+v", events)
	}
}

func TestCreateRejectsExaminer(t *testing.T) {
	h := newHarness(t)
	per := h.addPeriod(t, 2025)
	prog := h.addProgram(t, "MGI")
	_, err := h.candidatures.Create(context.Background(), h.addUser(t, user.RoleExaminer), CreateCandidatureInput{ProgramID: prog.ID, PeriodID: per.ID})
	if !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateByAdminRequiresCandidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.addUser(t, user.RoleAdmin)
	per := h.addPeriod(t, 2025)
	prog := h.addProgram(t, "MGI")

	_, err := h.candidatures.Create(ctx, admin, CreateCandidatureInput{ProgramID: prog.ID, PeriodID: per.ID, CandidateID: h.addUser(t, user.RoleExaminer).ID})
	if !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	candidate := h.addUser(t, user.RoleCandidate)
	c, err := h.candidatures.Create(ctx, admin, CreateCandidatureInput{ProgramID: prog.ID, PeriodID: per.ID, CandidateID: candidate.ID})
	if err != nil {
		t.Fatalf("create on behalf: %v", err)
	}
	if c.CandidateID != candidate.ID {
		t.Fatalf("expected owner %s, got %s", candidate.ID, c.CandidateID)
	}
}

func TestCreateUnknownProgram(t *testing.T) {
	h := newHarness(t)
	per := h.addPeriod(t, 2025)
	_, err := h.candidatures.Create(context.Background(), h.addUser(t, user.RoleCandidate), CreateCandidatureInput{ProgramID: common.NewUUID(), PeriodID: per.ID})
	if !common.Is(err, common.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitReportsMissingDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	if _, err := h.documents.Upload(ctx, candidate, c.ID, UploadInput{File: pdf(2 << 20), Type: document.TypeCV}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	_, err := h.candidatures.Submit(ctx, candidate, c.ID)
	if !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Photos d'identité") || strings.Contains(err.Error(), "Documents requis manquants: CV") {
		t.Fatalf("expected missing list without CV, got %v", err)
	}
	if got := h.db.candidature(c.ID).Status; got != candidature.StatusDraft {
		t.Fatalf("expected draft to stay draft, got %s", got)
	}
}

func TestSubmitCompleteCandidature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	h.complete(t, candidate, c)

	submitted, err := h.candidatures.Submit(ctx, candidate, c.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != candidature.StatusSubmitted || submitted.SubmittedAt == nil {
		t.Fatalf("expected submitted with timestamp, got %s %v", submitted.Status, submitted.SubmittedAt)
	}
	if n := countKind(h.db.eventsFor(c.ID), candidature.EventSubmitted); n != 1 {
		t.Fatalf("expected one SOUMISSION event, got %d", n)
	}
	sent, ok := h.mailer.last(mail.TemplateApplicationStatus)
	if !ok || sent.params["numeroCandidature"] != submitted.Number {
		t.Fatalf("expected status mail for %s, got %+v", submitted.Number, sent)
	}

	if _, err := h.candidatures.Submit(ctx, candidate, c.ID); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected second submit forbidden, got %v", err)
	}
	if _, err := h.documents.Upload(ctx, candidate, c.ID, UploadInput{File: pdf(1024), Type: document.TypeOther}); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected upload after submission forbidden, got %v", err)
	}
}

func TestSubmitSeesDeleteCommittedBeforeLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	h.complete(t, candidate, c)
	cin, err := (fakeDocuments{db: h.db}).GetByType(ctx, c.ID, document.TypeNationalID)
	if err != nil {
		t.Fatalf("load CIN: %v", err)
	}

	h.db.beforeTx = func() {
		if err := h.documents.Delete(ctx, candidate, cin.ID); err != nil {
			t.Errorf("delete CIN: %v", err)
		}
	}
	_, err = h.candidatures.Submit(ctx, candidate, c.ID)
	if !common.Is(err, common.CodeValidation) || !strings.Contains(err.Error(), document.TypeNationalID.Label()) {
		t.Fatalf("expected CIN to be reported missing, got %v", err)
	}
	if got := h.db.candidature(c.ID).Status; got != candidature.StatusDraft {
		t.Fatalf("expected draft to stay draft, got %s", got)
	}
	if n := countKind(h.db.eventsFor(c.ID), candidature.EventSubmitted); n != 0 {
		t.Fatalf("expected no SOUMISSION event, got %d", n)
	}
}

func TestSubmitSurvivesMailFailure(t *testing.T) {
	h := newHarness(t)
	candidate, c := h.draft(t)
	h.complete(t, candidate, c)
	h.mailer.err = mail.ErrDeliveryFailed

	if _, err := h.candidatures.Submit(context.Background(), candidate, c.ID); err != nil {
		t.Fatalf("expected submit to ignore mail failure, got %v", err)
	}
}

func TestSubmitByOtherCandidate(t *testing.T) {
	h := newHarness(t)
	_, c := h.draft(t)
	_, err := h.candidatures.Submit(context.Background(), h.addUser(t, user.RoleCandidate), c.ID)
	if !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestWithdrawTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)

	if _, err := h.candidatures.Withdraw(ctx, candidate, c.ID, "  "); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected reason to be required, got %v", err)
	}
	withdrawn, err := h.candidatures.Withdraw(ctx, candidate, c.ID, "raisons personnelles")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Status != candidature.StatusWithdrawn {
		t.Fatalf("expected withdrawn, got %s", withdrawn.Status)
	}
	if _, err := h.candidatures.Withdraw(ctx, candidate, c.ID, "encore"); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected second withdraw forbidden, got %v", err)
	}

	events := h.db.eventsFor(c.ID)
	if n := countKind(events, candidature.EventWithdrawn); n != 1 {
		t.Fatalf("expected exactly one RETRAIT event, got %d", n)
	}
	last := events[len(events)-1]
	if last.Status != candidature.EventCancelled || last.Description != "raisons personnelles" || last.Metadata["ancienStatut"] != string(candidature.StatusDraft) {
		t.Fatalf("unexpected withdrawal event %+v", last)
	}
}

func TestWithdrawByCoordinatorForbidden(t *testing.T) {
	h := newHarness(t)
	_, c := h.draft(t)
	coordinator := h.addUser(t, user.RoleCoordinator)
	h.assign(coordinator, c.ProgramID)

	_, err := h.candidatures.Withdraw(context.Background(), coordinator, c.ID, "doublon")
	if !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateApplicationInfoReplacesRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)

	two := []candidature.AcademicRecord{{Institution: "ENSIAS"}, {Institution: "FST Settat"}}
	if _, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{AcademicRecords: two}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	one := []candidature.AcademicRecord{{Institution: "EMI"}}
	if _, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{AcademicRecords: one, City: strPtr("Rabat")}); err != nil {
		t.Fatalf("second update: %v", err)
	}

	records, err := h.candidatures.ListAcademicRecords(ctx, candidate, c.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || records[0].Institution != "EMI" {
		t.Fatalf("expected only EMI, got %+v", records)
	}
	account, _ := (fakeUsers{db: h.db}).GetAccount(ctx, candidate.ID)
	if account.Candidate.City != "Rabat" {
		t.Fatalf("expected city to be updated, got %q", account.Candidate.City)
	}
}

func TestUpdateApplicationInfoClearsOmittedCollections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	if _, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{
		AcademicRecords: []candidature.AcademicRecord{{Institution: "ENSIAS"}, {Institution: "EMI"}},
		References:      []candidature.Reference{{Name: "Pr. Alami"}},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{Statement: strPtr("Une lettre sans dossiers")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	records, _ := (fakeCandidatures{db: h.db}).ListRecords(ctx, c.ID)
	references, _ := (fakeCandidatures{db: h.db}).ListReferences(ctx, c.ID)
	if len(records) != 0 || len(references) != 0 {
		t.Fatalf("expected both collections cleared, got records=%d references=%d", len(records), len(references))
	}
}

func TestUpdateApplicationInfoRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	if _, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{
		AcademicRecords: []candidature.AcademicRecord{{Institution: "ENSIAS"}},
	}); err != nil {
		t.Fatalf("seed records: %v", err)
	}
	before := len(h.db.eventsFor(c.ID))
	h.db.failNext("ReplaceReferences")

	_, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{
		Statement:       strPtr("Une toute nouvelle lettre"),
		FirstName:       strPtr("Changé"),
		AcademicRecords: []candidature.AcademicRecord{{Institution: "EMI"}},
		References:      []candidature.Reference{{Name: "Pr. Alami"}},
	})
	if err == nil {
		t.Fatalf("expected injected failure")
	}

	records, _ := (fakeCandidatures{db: h.db}).ListRecords(ctx, c.ID)
	if len(records) != 1 || records[0].Institution != "ENSIAS" {
		t.Fatalf("expected records unchanged, got %+v", records)
	}
	if got := h.db.candidature(c.ID).Statement; got != "" {
		t.Fatalf("expected statement unchanged, got %q", got)
	}
	u, _ := (fakeUsers{db: h.db}).GetByID(ctx, candidate.ID)
	if u.FirstName != "Prenom" {
		t.Fatalf("expected first name unchanged, got %q", u.FirstName)
	}
	if after := len(h.db.eventsFor(c.ID)); after != before {
		t.Fatalf("expected no new events, got %d -> %d", before, after)
	}
}

func TestUpdateApplicationInfoRequiresDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	h.complete(t, candidate, c)
	if _, err := h.candidatures.Submit(ctx, candidate, c.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{Statement: strPtr("trop tard pour changer")})
	if !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListScopesByRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner, first := h.draft(t)
	_, second := h.draft(t)
	coordinator := h.addUser(t, user.RoleCoordinator)
	h.assign(coordinator, second.ProgramID)

	mine, err := h.candidatures.List(ctx, owner, candidature.Filter{})
	if err != nil {
		t.Fatalf("candidate list: %v", err)
	}
	if len(mine.Candidatures) != 1 || mine.Candidatures[0].ID != first.ID {
		t.Fatalf("expected only own candidature, got %+v", mine.Candidatures)
	}

	scoped, err := h.candidatures.List(ctx, coordinator, candidature.Filter{CandidateID: owner.ID})
	if err != nil {
		t.Fatalf("coordinator list: %v", err)
	}
	if len(scoped.Candidatures) != 1 || scoped.Candidatures[0].ID != second.ID {
		t.Fatalf("expected assigned program only, got %+v", scoped.Candidatures)
	}

	all, err := h.candidatures.List(ctx, h.addUser(t, user.RoleAdmin), candidature.Filter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if all.Pagination.Total != 2 {
		t.Fatalf("expected 2 candidatures, got %d", all.Pagination.Total)
	}

	if _, err := h.candidatures.List(ctx, h.addUser(t, user.RoleExaminer), candidature.Filter{}); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected examiner list forbidden, got %v", err)
	}
}

func TestGetHidesNotesFromCandidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	admin := h.addUser(t, user.RoleAdmin)
	if _, err := h.candidatures.AddNote(ctx, admin, c.ID, NoteInput{Content: "Dossier solide"}); err != nil {
		t.Fatalf("add note: %v", err)
	}

	own, err := h.candidatures.Get(ctx, candidate, c.ID)
	if err != nil {
		t.Fatalf("candidate get: %v", err)
	}
	if own.Notes != nil {
		t.Fatalf("expected no notes for candidate, got %+v", own.Notes)
	}
	staff, err := h.candidatures.Get(ctx, admin, c.ID)
	if err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if len(staff.Notes) != 1 || staff.Notes[0].Type != candidature.NoteGeneral || staff.Notes[0].AuthorRole != user.RoleAdmin {
		t.Fatalf("expected one general note by admin, got %+v", staff.Notes)
	}

	if _, err := h.candidatures.Get(ctx, h.addUser(t, user.RoleCandidate), c.ID); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected other candidate forbidden, got %v", err)
	}
	if _, err := h.candidatures.Get(ctx, admin, common.NewUUID()); !common.Is(err, common.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDecisionFollowsLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	coordinator := h.addUser(t, user.RoleCoordinator)
	h.assign(coordinator, c.ProgramID)
	accepted := candidature.StatusAccepted

	if _, err := h.candidatures.UpdateDecision(ctx, coordinator, c.ID, DecisionInput{Status: &accepted}); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected draft decision forbidden, got %v", err)
	}

	h.complete(t, candidate, c)
	if _, err := h.candidatures.Submit(ctx, candidate, c.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	decided, err := h.candidatures.UpdateDecision(ctx, coordinator, c.ID, DecisionInput{Status: &accepted, Decision: strPtr("Admis")})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decided.Status != candidature.StatusAccepted {
		t.Fatalf("expected accepted, got %s", decided.Status)
	}
	if n := countKind(h.db.eventsFor(c.ID), candidature.EventDecision); n != 1 {
		t.Fatalf("expected one DECISION event, got %d", n)
	}

	rejected := candidature.StatusRejected
	if _, err := h.candidatures.UpdateDecision(ctx, coordinator, c.ID, DecisionInput{Status: &rejected, Force: true}); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected coordinator override forbidden, got %v", err)
	}
	overridden, err := h.candidatures.UpdateDecision(ctx, h.addUser(t, user.RoleAdmin), c.ID, DecisionInput{Status: &rejected, Force: true})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if overridden.Status != candidature.StatusRejected {
		t.Fatalf("expected rejected, got %s", overridden.Status)
	}
	if n := countKind(h.db.eventsFor(c.ID), candidature.EventStatusChanged); n != 1 {
		t.Fatalf("expected one CHANGEMENT_STATUT event, got %d", n)
	}
}

func TestDecisionByUnassignedCoordinator(t *testing.T) {
	h := newHarness(t)
	_, c := h.draft(t)
	review := candidature.StatusUnderReview
	_, err := h.candidatures.UpdateDecision(context.Background(), h.addUser(t, user.RoleCoordinator), c.ID, DecisionInput{Status: &review})
	if !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAcademicRecordLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)

	average, scale := 25.0, 20.0
	if _, err := h.candidatures.AddAcademicRecord(ctx, candidate, c.ID, candidature.AcademicRecord{Institution: "ENSIAS", Average: &average, Scale: &scale}); !common.Is(err, common.CodeValidation) {
		t.Fatalf("expected average above scale rejected, got %v", err)
	}
	rec, err := h.candidatures.AddAcademicRecord(ctx, candidate, c.ID, candidature.AcademicRecord{Institution: "ENSIAS"})
	if err != nil {
		t.Fatalf("add record: %v", err)
	}
	if _, err := h.candidatures.UpdateAcademicRecord(ctx, candidate, c.ID, rec.ID, candidature.AcademicRecord{Institution: "ENSIAS Rabat"}); err != nil {
		t.Fatalf("update record: %v", err)
	}
	if err := h.candidatures.DeleteAcademicRecord(ctx, candidate, c.ID, rec.ID); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	if err := h.candidatures.DeleteAcademicRecord(ctx, candidate, c.ID, rec.ID); !common.Is(err, common.CodeNotFound) {
		t.Fatalf("expected second delete not found, got %v", err)
	}

	events := h.db.eventsFor(c.ID)
	for _, kind := range []candidature.EventKind{candidature.EventRecordAdded, candidature.EventRecordUpdated, candidature.EventRecordDeleted} {
		if countKind(events, kind) != 1 {
			t.Fatalf("expected one %s event, got %+v", kind, events)
		}
	}
}

func TestNotesAreStaffOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)

	if _, err := h.candidatures.AddNote(ctx, candidate, c.ID, NoteInput{Content: "moi"}); !common.Is(err, common.CodeForbidden) {
		t.Fatalf("expected candidate note forbidden, got %v", err)
	}
	admin := h.addUser(t, user.RoleAdmin)
	note, err := h.candidatures.AddNote(ctx, admin, c.ID, NoteInput{Content: "À revoir", Type: candidature.NoteEvaluation})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if err := h.candidatures.DeleteNote(ctx, admin, c.ID, note.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	notes, err := h.candidatures.ListNotes(ctx, admin, c.ID)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("expected no notes, got %+v", notes)
	}
}

func TestUpdateMyContactAfterSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, c := h.draft(t)
	h.complete(t, candidate, c)
	if _, err := h.candidatures.Submit(ctx, candidate, c.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := h.candidatures.UpdateMyContact(ctx, candidate, c.ID, ContactUpdate{Phone: strPtr("0611111111")}); err != nil {
		t.Fatalf("update contact: %v", err)
	}
	u, _ := (fakeUsers{db: h.db}).GetByID(ctx, candidate.ID)
	if u.Phone != "0611111111" {
		t.Fatalf("expected phone updated, got %q", u.Phone)
	}
}

func TestActiveStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	candidate, _ := h.draft(t)

	status, err := h.candidatures.ActiveStatus(ctx, candidate)
	if err != nil {
		t.Fatalf("active status: %v", err)
	}
	if !status.HasActive || len(status.ActivePeriods) == 0 {
		t.Fatalf("expected an active candidature and open periods, got %+v", status)
	}
}
