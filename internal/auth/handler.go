package auth

import (
	"errors"
	"strings"
	"time"

	"burrito-backend/internal/config"
	"burrito-backend/internal/models"
	"burrito-backend/internal/store"
	"burrito-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Phone    string `json:"phone" validate:"omitempty,usphone"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Phone string          `json:"phone"`
	Role  models.UserRole `json:"role"`
}

var registerMessages = map[string]string{
	"Name":     "Name is required",
	"Email":    "Please enter a valid email address",
	"Phone":    validation.InvalidPhoneMessage,
	"Password": "Password must be between 8 and 72 characters",
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
}

// HashPassword is shared with the seed-admin command.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// POST /api/auth/register
func RegisterHandler(cfg *config.Config, st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		if err := validation.Struct(body, registerMessages); err != nil {
			return err
		}

		var phone string
		if body.Phone != "" {
			normalized, err := validation.NormalizePhone(body.Phone)
			if err != nil {
				return err
			}
			phone = normalized
		}

		hash, err := HashPassword(body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			Phone:        phone,
			PasswordHash: hash,
			Role:         models.RoleCustomer,
		}
		if err := st.CreateUser(c.UserContext(), &user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fiber.NewError(fiber.StatusConflict, "An account with this email already exists")
			}
			return err
		}

		token, err := GenerateToken(cfg.JWTSecret, cfg.JWTTTL, &user, time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create token")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"token": token,
			"user":  newUserResponse(&user),
		})
	}
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config, st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		user, err := st.FindUserByEmail(c.UserContext(), body.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "Email or password is incorrect")
			}
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email or password is incorrect")
		}

		token, err := GenerateToken(cfg.JWTSecret, cfg.JWTTTL, user, time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create token")
		}
		return c.JSON(fiber.Map{
			"token": token,
			"user":  newUserResponse(user),
		})
	}
}

// GET /api/auth/me
func MeHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := UserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not signed in")
		}
		user, err := st.FindUser(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(newUserResponse(user))
	}
}
