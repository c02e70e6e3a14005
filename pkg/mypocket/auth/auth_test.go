package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/testutil"
	"gorm.io/gorm"
)

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	handler.RegisterRoutes(r.Group("/auth"), nil)
	return r
}

func register(t *testing.T, router *gin.Engine, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, _ := json.Marshal(RegisterRequest{Email: email, Password: password, Name: "Test User"})
	req, _ := http.NewRequest("POST", "/auth/register", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == password {
		t.Error("Hash should not equal plain password")
	}
	if !CheckPassword(password, hash) {
		t.Error("CheckPassword should return true for correct password")
	}
	if CheckPassword("wrongpassword", hash) {
		t.Error("CheckPassword should return false for incorrect password")
	}
}

func TestJWTToken(t *testing.T) {
	token, err := GenerateToken(1, "test@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 1 {
		t.Errorf("Expected UserID 1, got %d", claims.UserID)
	}
	if claims.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", claims.Email)
	}
}

func TestInvalidToken(t *testing.T) {
	if _, err := ValidateToken("invalid-token"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	secret, _ := settings()
	claims := &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    issuer,
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)

	if _, err := ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenSignedWithOtherSecret(t *testing.T) {
	claims := &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("someone-else"))

	if _, err := ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, db, " Test@Example.com ", "Test", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Email != "test@example.com" {
		t.Errorf("Expected normalized email, got %s", user.Email)
	}

	if _, err := CreateUser(ctx, db, "test@example.com", "Again", "password123"); !apperr.IsConflict(err) {
		t.Errorf("Expected conflict, got %v", err)
	}
	if _, err := CreateUser(ctx, db, "short@example.com", "Short", "pw"); !apperr.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}

	found, err := FindUserByEmail(ctx, db, "TEST@example.com")
	if err != nil || found.ID != user.ID {
		t.Errorf("Expected to find user %d, got %v (%v)", user.ID, found, err)
	}
}

func TestRegister(t *testing.T) {
	router := setupTestRouter(testutil.NewDB(t))

	resp := register(t, router, "test@example.com", "password123")
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Token == "" {
		t.Error("Expected token in response")
	}
	if response.User.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", response.User.Email)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router := setupTestRouter(testutil.NewDB(t))

	register(t, router, "test@example.com", "password123")
	resp := register(t, router, "test@example.com", "password123")

	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestLogin(t *testing.T) {
	router := setupTestRouter(testutil.NewDB(t))
	register(t, router, "test@example.com", "password123")

	tests := []struct {
		password string
		want     int
	}{
		{"password123", http.StatusOK},
		{"wrongpassword", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		jsonBody, _ := json.Marshal(LoginRequest{Email: "test@example.com", Password: tt.password})
		req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != tt.want {
			t.Errorf("password %q: expected status %d, got %d: %s", tt.password, tt.want, resp.Code, resp.Body.String())
		}
	}
}

func TestMe(t *testing.T) {
	router := setupTestRouter(testutil.NewDB(t))

	resp := register(t, router, "test@example.com", "password123")
	var authResponse AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &authResponse)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+authResponse.Token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var userResponse UserResponse
	json.Unmarshal(resp.Body.Bytes(), &userResponse)
	if userResponse.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", userResponse.Email)
	}
}

func TestMeWithoutAuth(t *testing.T) {
	router := setupTestRouter(testutil.NewDB(t))

	for _, header := range []string{"", "Token abc", "Bearer not.a.jwt"} {
		req, _ := http.NewRequest("GET", "/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status 401, got %d", header, resp.Code)
		}
	}
}
