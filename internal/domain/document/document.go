package document

import (
	"context"
	"net/http"
	"strings"
	"time"

	"admissions/internal/common"
	"admissions/internal/domain/user"
)

type Type string

const (
	TypeCV               Type = "DEMANDE_CV"
	TypeIdentityPhotos   Type = "PHOTOS_IDENTITE"
	TypeDiplomas         Type = "DIPLOMES"
	TypeTranscripts      Type = "RELEVES_NOTES"
	TypeNationalID       Type = "CIN"
	TypeTrainingContract Type = "CONTRAT_FORMATION"
	TypeRecommendation   Type = "LETTRE_RECOMMANDATION"
	TypeOther            Type = "AUTRE"
)

// RequiredTypes lists the documents a candidature needs before submission, in
// the order they are reported when missing.
var RequiredTypes = []Type{
	TypeCV,
	TypeIdentityPhotos,
	TypeDiplomas,
	TypeTranscripts,
	TypeNationalID,
	TypeTrainingContract,
}

var labels = map[Type]string{
	TypeCV:               "CV",
	TypeIdentityPhotos:   "Photos d'identité",
	TypeDiplomas:         "Diplômes",
	TypeTranscripts:      "Relevés de notes",
	TypeNationalID:       "Carte d'identité nationale",
	TypeTrainingContract: "Contrat de formation",
	TypeRecommendation:   "Lettre de recommandation",
	TypeOther:            "Autre document",
}

func (t Type) IsKnown() bool {
	_, ok := labels[t]
	return ok
}

func (t Type) Label() string {
	if label, ok := labels[t]; ok {
		return label
	}
	return string(t)
}

func (t Type) IsRequired() bool {
	for _, required := range RequiredTypes {
		if required == t {
			return true
		}
	}
	return false
}

func NormalizeType(value string) Type {
	return Type(strings.ToUpper(strings.TrimSpace(value)))
}

type Status string

const (
	StatusPending  Status = "EN_ATTENTE"
	StatusValid    Status = "VALIDE"
	StatusRejected Status = "REJETE"
)

const MaxFileSize int64 = 5 << 20

var allowedMIME = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// SniffLength is how many leading bytes DetectMIME looks at.
const SniffLength = 512

func AllowedMIME(mime string) bool {
	return allowedMIME[baseMIME(mime)]
}

// DetectMIME reports the media type of a file from its leading bytes.
func DetectMIME(head []byte) string {
	return baseMIME(http.DetectContentType(head))
}

// MatchesDeclared reports whether the declared media type agrees with the
// content. Parameters such as charset are ignored.
func MatchesDeclared(declared string, head []byte) bool {
	detected := DetectMIME(head)
	return allowedMIME[detected] && detected == baseMIME(declared)
}

func baseMIME(value string) string {
	value, _, _ = strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(value))
}

type Document struct {
	ID            common.UUID    `json:"id"`
	CandidatureID common.UUID    `json:"candidatureId"`
	Type          Type           `json:"type"`
	Title         string         `json:"titre"`
	Description   string         `json:"description,omitempty"`
	Required      bool           `json:"estObligatoire"`
	PublicID      string         `json:"nomFichier"`
	OriginalName  string         `json:"nomOriginal"`
	URL           string         `json:"url"`
	Size          int64          `json:"tailleFichier"`
	MIMEType      string         `json:"typeMime"`
	Status        Status         `json:"statut"`
	Verifications []Verification `json:"verifications"`
	CreatedAt     time.Time      `json:"creeA"`
	UpdatedAt     time.Time      `json:"modifieA"`
}

// Verification is an immutable review record. The verifier name and role are
// copied when the record is written.
type Verification struct {
	ID           common.UUID `json:"id"`
	DocumentID   common.UUID `json:"documentId"`
	VerifierID   common.UUID `json:"verificateurId"`
	VerifierName string      `json:"verificateurNom"`
	VerifierRole user.Role   `json:"verificateurRole"`
	Status       Status      `json:"statut"`
	Notes        string      `json:"notes,omitempty"`
	CreatedAt    time.Time   `json:"creeA"`
}

type Filter struct {
	Year         int
	ProgramIDs   []common.UUID
	OnlyPrograms bool
}

type Repository interface {
	GetByID(ctx context.Context, id common.UUID) (*Document, error)
	GetByType(ctx context.Context, candidatureID common.UUID, docType Type) (*Document, error)
	ListByCandidature(ctx context.Context, candidatureID common.UUID) ([]Document, error)
	ListAll(ctx context.Context, filter Filter) ([]Document, error)
}
