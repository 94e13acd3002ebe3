package members

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db"
	"github.com/citylibrary/libraryops-backend/pkg/db/models"
	"github.com/citylibrary/libraryops-backend/pkg/enums"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

// Attempts before giving up on an unused generated member code.
const maxCodeAttempts = 5

// Service defines member registration and lookup operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Member, error)
	List(ctx context.Context) ([]models.Member, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetByEmail(ctx context.Context, email string) (*models.Member, error)
	GetByCode(ctx context.Context, code string) (*models.Member, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]models.Member, error)
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	newCode func(year int) string
	now     func() time.Time
}

// NewService wires member dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
	}
	return &service{
		repo:    repo,
		logg:    logg,
		newCode: randomMemberCode,
		now:     time.Now,
	}, nil
}

// RegisterInput carries a new membership application.
type RegisterInput struct {
	Name    string
	Email   string
	Phone   string
	Address *string
}

// UpdateInput applies partial member edits; nil fields are left untouched.
type UpdateInput struct {
	Name             *string
	Email            *string
	Phone            *string
	Address          *string
	MembershipStatus *enums.MembershipStatus
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Member, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone required")
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	member := &models.Member{
		MemberCode:       code,
		Name:             strings.TrimSpace(input.Name),
		Email:            email,
		Phone:            strings.TrimSpace(input.Phone),
		Address:          input.Address,
		MembershipDate:   s.now().UTC(),
		MembershipStatus: enums.MembershipStatusActive,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register member")
	}

	if s.logg != nil {
		mctx := s.logg.WithMemberCode(ctx, member.MemberCode)
		s.logg.Info(mctx, "member registered")
	}
	return member, nil
}

func (s *service) List(ctx context.Context) ([]models.Member, error) {
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}
	return members, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return member, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	member, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return member, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Member, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	member, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return member, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		member.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be empty")
		}
		member.Email = email
	}
	if input.Phone != nil {
		member.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Address != nil {
		member.Address = input.Address
	}
	if input.MembershipStatus != nil {
		if !input.MembershipStatus.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid membership status")
		}
		member.MembershipStatus = *input.MembershipStatus
	}

	if err := s.repo.Save(ctx, member); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member")
	}
	return member, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	member, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if member.BorrowedBooks > 0 && s.logg != nil {
		mctx := s.logg.WithFields(ctx, map[string]any{
			"member_code":    member.MemberCode,
			"borrowed_books": member.BorrowedBooks,
		})
		s.logg.Warn(mctx, "deleting member with books still out")
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete member")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	return nil
}

func (s *service) Search(ctx context.Context, query string) ([]models.Member, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query required")
	}
	members, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search members")
	}
	return members, nil
}

func (s *service) generateCode(ctx context.Context) (string, error) {
	year := s.now().UTC().Year()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate := s.newCode(year)
		exists, err := s.repo.CodeExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check member code uniqueness")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "failed to generate unique member id")
}

// randomMemberCode builds the card-facing id: MEM<year><4 random digits>.
func randomMemberCode(year int) string {
	return fmt.Sprintf("MEM%d%04d", year, rand.Intn(10000))
}
