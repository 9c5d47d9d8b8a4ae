package user

import (
	"errors"

	"github.com/kasumi-cms/core/internal/database"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/pagination"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrUnknownRole is returned when a role assignment names a role outside the
// closed set.
var ErrUnknownRole = errors.New("unknown role")

type Service struct {
	db         *gorm.DB
	bcryptCost int
}

func NewService(db *gorm.DB, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{db: db, bcryptCost: bcryptCost}
}

type CreateUserDTO struct {
	Username    string   `json:"username" binding:"required"`
	Email       string   `json:"email" binding:"required,email"`
	Password    string   `json:"password" binding:"required,min=8"`
	IsActive    bool     `json:"is_active"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	PersonalBio string   `json:"personal_bio"`
	NotifyLogin *bool    `json:"notify_login"`
	Roles       []string `json:"roles"`
}

// UpdateUserDTO carries an admin edit. Nil fields stay untouched; a non-nil
// Roles replaces the whole role set.
type UpdateUserDTO struct {
	Username    *string  `json:"username"`
	Email       *string  `json:"email"`
	Password    *string  `json:"password"`
	IsActive    *bool    `json:"is_active"`
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	PersonalBio *string  `json:"personal_bio"`
	NotifyLogin *bool    `json:"notify_login"`
	Roles       []string `json:"roles"`
}

// ProfileDTO is the self-service subset: a user may edit their own display
// fields but never their roles or activation flag.
type ProfileDTO struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PersonalBio *string `json:"personal_bio"`
	NotifyLogin *bool   `json:"notify_login"`
}

func (s *Service) List(q pagination.Query) ([]models.User, response.Pagination, error) {
	tx := s.db.Model(&models.User{}).Preload("Roles").Order("username ASC")
	var users []models.User
	pag, err := pagination.Paginate(tx, q, &users)
	return users, pag, err
}

func (s *Service) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := s.db.Preload("Roles").First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) GetByUsername(username string) (*models.User, error) {
	var u models.User
	err := s.db.Preload("Roles").Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) Create(dto *CreateUserDTO) (*models.User, error) {
	hash, err := s.HashPassword(dto.Password)
	if err != nil {
		return nil, err
	}
	u := models.User{
		Username:    dto.Username,
		Email:       dto.Email,
		Password:    hash,
		IsActive:    dto.IsActive,
		FirstName:   dto.FirstName,
		LastName:    dto.LastName,
		PersonalBio: dto.PersonalBio,
		NotifyLogin: true,
	}
	if dto.NotifyLogin != nil {
		u.NotifyLogin = *dto.NotifyLogin
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := checkIdentity(tx, 0, u.Username, u.Email); err != nil {
			return err
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		if dto.Roles != nil {
			return s.replaceRoles(tx, &u, dto.Roles)
		}
		return nil
	})
	if err != nil {
		return nil, classifyIdentityError(err)
	}
	return s.GetByID(u.ID)
}

func (s *Service) Update(id uint, dto *UpdateUserDTO) (*models.User, error) {
	u, err := s.GetByID(id)
	if err != nil || u == nil {
		return u, err
	}

	if dto.Username != nil {
		u.Username = *dto.Username
	}
	if dto.Email != nil {
		u.Email = *dto.Email
	}
	if dto.Password != nil && *dto.Password != "" {
		hash, err := s.HashPassword(*dto.Password)
		if err != nil {
			return nil, err
		}
		u.Password = hash
	}
	if dto.IsActive != nil {
		u.IsActive = *dto.IsActive
	}
	if dto.FirstName != nil {
		u.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		u.LastName = *dto.LastName
	}
	if dto.PersonalBio != nil {
		u.PersonalBio = *dto.PersonalBio
	}
	if dto.NotifyLogin != nil {
		u.NotifyLogin = *dto.NotifyLogin
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := checkIdentity(tx, u.ID, u.Username, u.Email); err != nil {
			return err
		}
		if err := tx.Omit("Roles").Save(u).Error; err != nil {
			return err
		}
		if dto.Roles != nil {
			return s.replaceRoles(tx, u, dto.Roles)
		}
		return nil
	})
	if err != nil {
		return nil, classifyIdentityError(err)
	}
	return s.GetByID(id)
}

// UpdateProfile applies the self-service fields only.
func (s *Service) UpdateProfile(id uint, dto *ProfileDTO) (*models.User, error) {
	u, err := s.GetByID(id)
	if err != nil || u == nil {
		return u, err
	}
	if dto.FirstName != nil {
		u.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		u.LastName = *dto.LastName
	}
	if dto.PersonalBio != nil {
		u.PersonalBio = *dto.PersonalBio
	}
	if dto.NotifyLogin != nil {
		u.NotifyLogin = *dto.NotifyLogin
	}
	if err := s.db.Omit("Roles").Save(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the current password before setting the new one.
func (s *Service) ChangePassword(id uint, current, next string) error {
	u, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if u == nil {
		return gorm.ErrRecordNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)) != nil {
		return ErrBadPassword
	}
	hash, err := s.HashPassword(next)
	if err != nil {
		return err
	}
	return s.db.Model(u).Update("password", hash).Error
}

// ErrBadPassword is returned when the current password does not match.
var ErrBadPassword = errors.New("current password is incorrect")

func (s *Service) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		u := models.User{Base: models.Base{ID: id}}
		if err := tx.Model(&u).Association("Roles").Clear(); err != nil {
			return err
		}
		// Authorship rows go too; the posts themselves stay.
		if err := tx.Model(&u).Association("Posts").Clear(); err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SetRoles replaces a user's role set, rejecting unknown names.
func (s *Service) SetRoles(id uint, names []string) (*models.User, error) {
	u, err := s.GetByID(id)
	if err != nil || u == nil {
		return u, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.replaceRoles(tx, u, names)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *Service) HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) replaceRoles(tx *gorm.DB, u *models.User, names []string) error {
	roles := make([]models.Role, 0, len(names))
	for _, name := range names {
		if !models.KnownRole(name) {
			return ErrUnknownRole
		}
		var r models.Role
		if err := tx.Where("name = ?", name).First(&r).Error; err != nil {
			return err
		}
		roles = append(roles, r)
	}
	return tx.Model(u).Association("Roles").Replace(roles)
}

// checkIdentity surfaces username/email collisions as field-level conflicts
// before the unique index fires, so the caller learns which field clashed.
func checkIdentity(tx *gorm.DB, selfID uint, username, email string) error {
	var count int64
	if err := tx.Model(&models.User{}).
		Where("username = ? AND id <> ?", username, selfID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &database.ConflictError{Field: "username"}
	}
	if err := tx.Model(&models.User{}).
		Where("email = ? AND id <> ?", email, selfID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &database.ConflictError{Field: "email"}
	}
	return nil
}

// classifyIdentityError keeps field conflicts intact and maps a racing
// duplicate-key failure to the username field as a best guess.
func classifyIdentityError(err error) error {
	if err == nil {
		return nil
	}
	if ce := database.AsConflict(err); ce != nil {
		return ce
	}
	if database.IsDuplicateError(err) {
		return &database.ConflictError{Field: "username"}
	}
	return err
}
