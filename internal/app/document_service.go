package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/document"
	"admissions/internal/domain/user"
	"admissions/internal/mail"
	"admissions/internal/storage"
)

const (
	uploadFailedMessage  = "échec de l'envoi du fichier"
	partialDeleteMessage = "fichier supprimé mais l'enregistrement n'a pas pu être supprimé"
)

type DocumentService struct {
	candidatures candidature.Repository
	documents    document.Repository
	users        user.Repository
	assignments  user.ProgramAssignments
	matrix       *access.Matrix
	store        storage.Store
	rootFolder   string
	notifier     notifier
	logger       *zap.Logger
	now          func() time.Time
}

func NewDocumentService(
	candidatures candidature.Repository,
	documents document.Repository,
	users user.Repository,
	assignments user.ProgramAssignments,
	matrix *access.Matrix,
	store storage.Store,
	rootFolder string,
	mailer mail.Sender,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = storage.Disabled{}
	}
	return &DocumentService{
		candidatures: candidatures,
		documents:    documents,
		users:        users,
		assignments:  assignments,
		matrix:       matrix,
		store:        store,
		rootFolder:   strings.Trim(rootFolder, "/"),
		notifier:     newNotifier(mailer, logger),
		logger:       logger,
		now:          utcNow,
	}
}

type UploadInput struct {
	File        *storage.File
	Type        document.Type
	Title       string
	Description string
	Required    *bool
}

func validateUpload(input UploadInput) error {
	if input.File == nil || input.File.Body == nil || input.File.Size <= 0 {
		return common.NewValidationError("a non-empty file is required", map[string]string{"file": "required"})
	}
	if !input.Type.IsKnown() {
		return common.NewValidationError("unknown document type", map[string]string{"type": "unknown document type"})
	}
	if !document.AllowedMIME(input.File.ContentType) {
		return common.NewValidationError("file type not allowed", map[string]string{"file": "only PDF, JPEG and PNG files are accepted"})
	}
	if input.File.Size > document.MaxFileSize {
		return common.NewValidationError("file too large", map[string]string{"file": "maximum size is 5 MB"})
	}
	return sniffUpload(input.File)
}

// sniffUpload compares the leading bytes with the declared type, then puts
// them back in front of the body.
func sniffUpload(file *storage.File) error {
	head := make([]byte, document.SniffLength)
	n, err := io.ReadFull(file.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return common.NewValidationError("file could not be read", map[string]string{"file": "unreadable"})
	}
	head = head[:n]
	file.Body = io.MultiReader(bytes.NewReader(head), file.Body)
	if !document.MatchesDeclared(file.ContentType, head) {
		return common.NewValidationError("file content does not match its type", map[string]string{"file": "content is not a PDF, JPEG or PNG file"})
	}
	return nil
}

func (s *DocumentService) folder(c *candidature.Candidature) string {
	return path.Join(s.rootFolder, strconv.Itoa(s.now().Year()), "candidats", c.CandidateID.String(), "documents")
}

// ownerOrAdmin loads the candidature and checks that actor may change its
// documents.
func (s *DocumentService) ownerOrAdmin(ctx context.Context, actor access.Actor, candidatureID common.UUID) (*candidature.Candidature, error) {
	c, err := s.candidatures.GetByID(ctx, candidatureID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(user.RoleAdmin) && c.CandidateID != actor.ID {
		return nil, common.NewError(common.CodeForbidden, "only the owner or an administrator can change documents", nil)
	}
	return c, nil
}

// Upload stores the file and records it. A second upload of the same type
// replaces the first: the new object is stored before the record changes and
// the old object is removed afterwards.
func (s *DocumentService) Upload(ctx context.Context, actor access.Actor, candidatureID common.UUID, input UploadInput) (*document.Document, error) {
	if err := validateUpload(input); err != nil {
		return nil, err
	}
	c, err := s.ownerOrAdmin(ctx, actor, candidatureID)
	if err != nil {
		return nil, err
	}
	if c.Status != candidature.StatusDraft {
		return nil, common.NewError(common.CodeForbidden, "documents can only be changed while the candidature is a draft", nil)
	}
	existing, err := s.documents.GetByType(ctx, c.ID, input.Type)
	if err != nil {
		if !common.Is(err, common.CodeNotFound) {
			return nil, err
		}
		existing = nil
	}

	obj, err := s.store.Upload(ctx, *input.File, s.folder(c))
	if err != nil {
		s.logger.Error("document upload failed", zap.String("candidature_id", c.ID.String()), zap.Error(err))
		return nil, common.NewError(common.CodeUpstream, uploadFailedMessage, err)
	}

	now := s.now()
	doc := &document.Document{
		ID:            common.NewUUID(),
		CandidatureID: c.ID,
		Type:          input.Type,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Required:      input.Type.IsRequired(),
		CreatedAt:     now,
	}
	var previousPublicID string
	if existing != nil {
		doc = existing
		previousPublicID = existing.PublicID
		if title := strings.TrimSpace(input.Title); title != "" {
			doc.Title = title
		}
		if description := strings.TrimSpace(input.Description); description != "" {
			doc.Description = description
		}
	}
	if doc.Title == "" {
		doc.Title = input.Type.Label()
	}
	if input.Required != nil {
		doc.Required = *input.Required
	}
	doc.PublicID = obj.PublicID
	doc.URL = obj.URL
	doc.OriginalName = input.File.Name
	doc.Size = input.File.Size
	if obj.Size > 0 {
		doc.Size = obj.Size
	}
	doc.MIMEType = strings.ToLower(input.File.ContentType)
	doc.Status = document.StatusPending
	doc.UpdatedAt = now

	err = s.candidatures.WithinTx(ctx, func(tx candidature.Tx) error {
		current, err := tx.GetForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		if current.Status != candidature.StatusDraft {
			return common.NewError(common.CodeForbidden, "documents can only be changed while the candidature is a draft", nil)
		}
		kind, description := candidature.EventDocumentAdded, "Document ajouté: "+doc.Type.Label()
		if existing != nil {
			kind, description = candidature.EventDocumentReplaced, "Document remplacé: "+doc.Type.Label()
			if err := tx.UpdateDocument(ctx, doc); err != nil {
				return err
			}
		} else if err := tx.CreateDocument(ctx, doc); err != nil {
			return err
		}
		event := candidature.NewEvent(c.ID, kind, description, actor.ID, now)
		event.Metadata = map[string]any{"documentId": doc.ID.String(), "type": string(doc.Type)}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, obj.PublicID); delErr != nil {
			s.logger.Error("orphaned upload could not be removed",
				zap.String("public_id", obj.PublicID), zap.Error(delErr))
		}
		return nil, err
	}
	if previousPublicID != "" && previousPublicID != obj.PublicID {
		if delErr := s.store.Delete(ctx, previousPublicID); delErr != nil {
			s.logger.Warn("replaced file could not be removed",
				zap.String("public_id", previousPublicID), zap.Error(delErr))
		}
	}
	s.logger.Info("document stored",
		zap.String("candidature_id", c.ID.String()),
		zap.String("type", string(doc.Type)),
		zap.Bool("replaced", existing != nil))
	return doc, nil
}

func (s *DocumentService) ListForCandidature(ctx context.Context, actor access.Actor, candidatureID common.UUID) ([]document.Document, error) {
	c, err := s.candidatures.GetByID(ctx, candidatureID)
	if err != nil {
		return nil, err
	}
	if err := s.matrix.AuthorizeCandidature(ctx, actor, candidatureRef(c)); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByCandidature(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return docs, nil
}

// ListAll lists documents across candidatures, optionally for one period year.
func (s *DocumentService) ListAll(ctx context.Context, actor access.Actor, year int) ([]document.Document, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return nil, err
	}
	filter := document.Filter{Year: year}
	if actor.Is(user.RoleCoordinator) {
		programs, err := s.assignments.AssignedPrograms(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		filter.ProgramIDs = programs
		filter.OnlyPrograms = true
	}
	docs, err := s.documents.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return docs, nil
}

// Verify appends a review to the document. Reviews are never edited.
func (s *DocumentService) Verify(ctx context.Context, actor access.Actor, documentID common.UUID, status document.Status, notes string) (*document.Document, error) {
	if err := requireRole(actor, user.RoleCoordinator, user.RoleAdmin); err != nil {
		return nil, err
	}
	if status != document.StatusValid && status != document.StatusRejected {
		return nil, common.NewValidationError("invalid verification status", map[string]string{"statut": "must be VALIDE or REJETE"})
	}
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	c, err := s.candidatures.GetByID(ctx, doc.CandidatureID)
	if err != nil {
		return nil, err
	}
	if err := s.matrix.AuthorizeCandidature(ctx, actor, candidatureRef(c)); err != nil {
		return nil, err
	}
	verifier, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	verification := document.Verification{
		ID:           common.NewUUID(),
		DocumentID:   doc.ID,
		VerifierID:   verifier.ID,
		VerifierName: verifier.FullName(),
		VerifierRole: verifier.Role,
		Status:       status,
		Notes:        strings.TrimSpace(notes),
		CreatedAt:    now,
	}
	err = s.candidatures.WithinTx(ctx, func(tx candidature.Tx) error {
		if _, err := tx.GetForUpdate(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.AddVerification(ctx, &verification); err != nil {
			return err
		}
		doc.Status = status
		doc.UpdatedAt = now
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		event := candidature.NewEvent(c.ID, candidature.EventDocumentVerified, doc.Type.Label()+": "+string(status), actor.ID, now)
		event.Metadata = map[string]any{"documentId": doc.ID.String(), "statut": string(status)}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	doc.Verifications = append(doc.Verifications, verification)

	if candidate, err := s.users.GetByID(ctx, c.CandidateID); err == nil {
		s.notifier.bestEffort(ctx, *candidate, mail.TemplateDocumentVerification, map[string]any{
			"prenom":   candidate.FirstName,
			"document": doc.Type.Label(),
			"statut":   string(status),
			"notes":    verification.Notes,
		})
	}
	return doc, nil
}

// Delete removes the stored object first. When the record cannot be removed
// afterwards the caller gets a partial failure.
func (s *DocumentService) Delete(ctx context.Context, actor access.Actor, documentID common.UUID) error {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	c, err := s.ownerOrAdmin(ctx, actor, doc.CandidatureID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.PublicID); err != nil {
		s.logger.Error("stored file could not be deleted", zap.String("public_id", doc.PublicID), zap.Error(err))
		return common.NewError(common.CodeUpstream, "échec de la suppression du fichier", err)
	}
	err = s.candidatures.WithinTx(ctx, func(tx candidature.Tx) error {
		if _, err := tx.GetForUpdate(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}
		event := candidature.NewEvent(c.ID, candidature.EventDocumentDeleted, "Document supprimé: "+doc.Type.Label(), actor.ID, s.now())
		event.Metadata = map[string]any{"documentId": doc.ID.String(), "type": string(doc.Type)}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		s.logger.Error("document record left after file deletion",
			zap.String("document_id", doc.ID.String()),
			zap.String("public_id", doc.PublicID),
			zap.Error(err))
		return common.NewError(common.CodePartialFailure, partialDeleteMessage, err)
	}
	s.logger.Info("document deleted", zap.String("document_id", doc.ID.String()))
	return nil
}
