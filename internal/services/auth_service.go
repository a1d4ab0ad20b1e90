package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/DAVIDafergan/liveraise/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=2" example:"gala-admin"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// RegisterRequest represents the operator registration payload
// @Description Registration request structure
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=64" example:"gala-admin"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token    string          `json:"token"`
	Operator models.Operator `json:"operator"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// Register handles operator registration
// @Summary Register a new operator
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed: %v", err)
		SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
		return
	}

	operator := models.Operator{ID: uuid.New().String(), Username: req.Username}
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO operators (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING created_at`,
		operator.ID, operator.Username, passwordHash,
	).Scan(&operator.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Registration failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "Username already exists", http.StatusConflict, nil)
		return
	}

	token, err := generateJWT(operator.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed: %v", err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Registered operator %s", operator.Username)
	SendJSONResponse(w, http.StatusCreated, AuthResponse{Token: token, Operator: operator})
}

// Login handles operator login
// @Summary Login an operator
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var operator models.Operator
	var passwordHash string
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, username, password_hash, created_at FROM operators WHERE username = $1`,
		req.Username,
	).Scan(&operator.ID, &operator.Username, &passwordHash, &operator.CreatedAt)
	if err == sql.ErrNoRows {
		log.Printf("[AUTH] Login failed - unknown operator: %s", req.Username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Login query failed: %v", err)
		SendErrorResponse(w, "Login failed", http.StatusInternalServerError, nil)
		return
	}

	if !verifyPassword(req.Password, passwordHash) {
		log.Printf("[AUTH] Invalid password for operator: %s", req.Username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(operator.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for %s: %v", operator.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for operator %s", operator.Username)
	SendJSONResponse(w, http.StatusOK, AuthResponse{Token: token, Operator: operator})
}

// Logout handles operator logout
// @Summary Logout an operator
// @Description Logout and blacklist the bearer token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if strings.HasPrefix(token, "Bearer ") {
		token = strings.TrimPrefix(token, "Bearer ")

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	SendJSONResponse(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// GetOperator returns the authenticated operator's profile
// @Summary Get current operator
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Operator
// @Failure 401 {object} ErrorResponse
// @Router /auth/operator [get]
func (s *AuthService) GetOperator(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := r.Context().Value("operatorID").(string)
	if !ok || operatorID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var operator models.Operator
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, username, created_at FROM operators WHERE id = $1`,
		operatorID,
	).Scan(&operator.ID, &operator.Username, &operator.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Operator not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to read operator", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, operator)
}

func generateJWT(operatorID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": operatorID,
		"exp":         time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
