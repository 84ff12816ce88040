package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"regexp"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username     string `json:"username" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         string `json:"role" binding:"required"`
	DepartmentID string `json:"department_id"`
}

type UpdateUserRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email" binding:"omitempty,email"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// UserResponse returns a User without exposing sensitive data
type UserResponse struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	DepartmentID   *string `json:"department_id"`
	DepartmentName string  `json:"department_name,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
}

func NewUserService(users repository.UserRepository, departments repository.DepartmentRepository) UserService {
	return &userService{users: users, departments: departments}
}

const refreshTokenTTL = 7 * 24 * time.Hour

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleApprover || role == model.RoleRequester
}

func (s *userService) resolveDepartment(ctx context.Context, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	departmentID, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.ValidationFields(map[string]string{"department_id": "must be a valid uuid"})
	}
	ok, err := s.departments.Exists(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errDepartmentNotFound
	}
	return &departmentID, nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	fields := map[string]string{}
	if !validateRole(req.Role) {
		fields["role"] = "must be admin, approver, or requester"
	}
	if !emailRegex.MatchString(req.Email) {
		fields["email"] = "must be a valid email address"
	}
	if len(req.Password) < 6 {
		fields["password"] = "must be at least 6 characters"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields(fields)
	}

	departmentID, err := s.resolveDepartment(ctx, req.DepartmentID)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internalf("failed to hash password: %v", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		Password:     string(hashedPassword),
		Role:         req.Role,
		DepartmentID: departmentID,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_NAME", "username or email already exists")
		}
		return nil, err
	}

	return mapUserToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.users.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.users.DeleteRefreshToken(ctx, stored.Token)
		return nil, apperr.Unauthorized("refresh token expired")
	}

	// Rotate: the presented token is consumed
	if err := s.users.DeleteRefreshToken(ctx, stored.Token); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, &stored.User)
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.users.DeleteRefreshToken(ctx, refreshToken)
}

// issueTokens signs a short-lived access token carrying the actor triple
// (subject, roles, department) and persists a new refresh token.
func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"roles": []string{user.Role},
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	}
	if user.DepartmentID != nil {
		claims["department_id"] = user.DepartmentID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, apperr.Internalf("failed to sign token: %v", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperr.Internalf("failed to generate refresh token: %v", err)
	}
	refresh := hex.EncodeToString(raw)

	if err := s.users.CreateRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}); err != nil {
		return nil, err
	}

	return &TokenResponse{Token: tokenString, RefreshToken: refresh}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	return mapUserToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, *mapUserToResponse(&u))
	}
	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}

	if req.Role != "" {
		if !validateRole(req.Role) {
			return nil, apperr.ValidationFields(map[string]string{"role": "must be admin, approver, or requester"})
		}
		user.Role = req.Role
	}
	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Email != "" {
		if !emailRegex.MatchString(req.Email) {
			return nil, apperr.ValidationFields(map[string]string{"email": "must be a valid email address"})
		}
		user.Email = req.Email
	}
	if req.DepartmentID != "" {
		departmentID, err := s.resolveDepartment(ctx, req.DepartmentID)
		if err != nil {
			return nil, err
		}
		user.DepartmentID = departmentID
	}

	if err := s.users.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_NAME", "username or email already exists")
		}
		return nil, err
	}

	return mapUserToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return apperr.NotFound("user not found")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if _, ok := repository.IsForeignKeyViolation(err); ok {
			return apperr.Conflict("USER_IN_USE", "user is still referenced by purchase requests")
		}
		return err
	}
	return nil
}

func mapUserToResponse(user *model.User) *UserResponse {
	resp := &UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
	if user.DepartmentID != nil {
		v := user.DepartmentID.String()
		resp.DepartmentID = &v
	}
	if user.Department != nil {
		resp.DepartmentName = user.Department.Name
	}
	return resp
}
