package app

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/document"
	"admissions/internal/domain/period"
	"admissions/internal/domain/program"
	"admissions/internal/domain/user"
	"admissions/internal/storage"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	db           *fakeDB
	store        *fakeObjectStore
	mailer       *fakeMailer
	candidatures *CandidatureService
	documents    *DocumentService
	entretiens   *EntretienService
	seq          int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newFakeDB()
	h := &harness{db: db, store: newFakeObjectStore(), mailer: &fakeMailer{}}
	users := fakeUsers{db: db}
	matrix := access.NewMatrix(users)
	clock := func() time.Time { return testNow }

	h.candidatures = NewCandidatureService(fakeCandidatures{db: db}, fakeDocuments{db: db}, fakeInterviews{db: db},
		users, users, fakePrograms{db: db}, fakePeriods{db: db}, matrix, h.mailer, nil)
	h.candidatures.now = clock
	h.documents = NewDocumentService(fakeCandidatures{db: db}, fakeDocuments{db: db}, users, users, matrix,
		h.store, "admissions", h.mailer, nil)
	h.documents.now = clock
	h.entretiens = NewEntretienService(fakeInterviews{db: db}, fakeCandidatures{db: db}, users,
		fakePrograms{db: db}, fakePeriods{db: db}, matrix, h.mailer, nil)
	return h
}

func (h *harness) addUser(t *testing.T, role user.Role) access.Actor {
	t.Helper()
	h.seq++
	account := &user.Account{User: user.User{
		ID:            common.NewUUID(),
		Email:         fmt.Sprintf("user%d@example.com", h.seq),
		FirstName:     "Prenom",
		LastName:      fmt.Sprintf("Nom%d", h.seq),
		Phone:         "0600000000",
		Role:          role,
		Status:        user.StatusActive,
		EmailVerified: true,
	}}
	switch role {
	case user.RoleCandidate:
		account.Candidate = &user.CandidateProfile{UserID: account.ID, Country: user.DefaultCountry}
	case user.RoleCoordinator:
		account.Coordinator = &user.CoordinatorProfile{UserID: account.ID}
	case user.RoleExaminer:
		account.Examiner = &user.ExaminerProfile{UserID: account.ID, MaxInterviewsPerDay: user.DefaultMaxInterviewsPerDay}
	case user.RoleAdmin:
		account.Admin = &user.AdminProfile{UserID: account.ID, Department: user.DefaultAdminDepartment}
	}
	if err := (fakeUsers{db: h.db}).Create(context.Background(), account); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return access.Actor{ID: account.ID, Role: role}
}

func (h *harness) assign(coordinator access.Actor, programs ...common.UUID) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	a := h.db.users[coordinator.ID]
	a.Coordinator.AssignedPrograms = append(a.Coordinator.AssignedPrograms, programs...)
	h.db.users[coordinator.ID] = a
}

func (h *harness) addProgram(t *testing.T, code string) program.Program {
	t.Helper()
	p := program.Program{
		ID:             common.NewUUID(),
		Code:           code,
		Name:           "Programme " + code,
		Department:     "Informatique",
		Degree:         "Master",
		DurationMonths: 24,
		Capacity:       30,
		Active:         true,
	}
	if err := (fakePrograms{db: h.db}).Create(context.Background(), &p); err != nil {
		t.Fatalf("create program: %v", err)
	}
	return p
}

func (h *harness) addPeriod(t *testing.T, year int) period.Period {
	t.Helper()
	p := period.Period{
		ID:                common.NewUUID(),
		Name:              fmt.Sprintf("Printemps %d", year),
		Year:              year,
		Semester:          period.SemesterSpring,
		StartDate:         testNow.AddDate(0, -1, 0),
		ApplicationCutoff: testNow.AddDate(0, 1, 0),
		EndDate:           testNow.AddDate(0, 3, 0),
		Status:            period.StatusActive,
	}
	if err := (fakePeriods{db: h.db}).Create(context.Background(), &p); err != nil {
		t.Fatalf("create period: %v", err)
	}
	return p
}

// draft opens a candidature for a fresh candidate.
func (h *harness) draft(t *testing.T) (access.Actor, *candidature.Candidature) {
	t.Helper()
	candidate := h.addUser(t, user.RoleCandidate)
	prog := h.addProgram(t, fmt.Sprintf("P%d", h.seq))
	per := h.addPeriod(t, 2025)
	c, err := h.candidatures.Create(context.Background(), candidate, CreateCandidatureInput{ProgramID: prog.ID, PeriodID: per.ID})
	if err != nil {
		t.Fatalf("create candidature: %v", err)
	}
	return candidate, c
}

func pdf(size int) *storage.File {
	body := make([]byte, size)
	copy(body, "%PDF-1.4\n")
	return &storage.File{
		Name:        "piece.pdf",
		ContentType: "application/pdf",
		Size:        int64(size),
		Body:        bytes.NewReader(body),
	}
}

// complete fills everything Submit checks.
func (h *harness) complete(t *testing.T, candidate access.Actor, c *candidature.Candidature) {
	t.Helper()
	ctx := context.Background()
	for _, docType := range document.RequiredTypes {
		if _, err := h.documents.Upload(ctx, candidate, c.ID, UploadInput{File: pdf(1024), Type: docType}); err != nil {
			t.Fatalf("upload %s: %v", docType, err)
		}
	}
	statement := "Je souhaite rejoindre ce programme."
	average, scale := 15.5, 20.0
	_, err := h.candidatures.UpdateApplicationInfo(ctx, candidate, c.ID, ApplicationInfo{
		Statement:       &statement,
		AcademicRecords: []candidature.AcademicRecord{{Institution: "Université Mohammed V", Average: &average, Scale: &scale}},
	})
	if err != nil {
		t.Fatalf("update application info: %v", err)
	}
}

func countKind(events []candidature.Event, kind candidature.EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
