package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/tunelink/tunelink-push-api/config"
	"github.com/tunelink/tunelink-push-api/databases"
)

// ServiceToken mints short-lived HS256 tokens for trusted backends that
// submit campaigns server-to-server
type ServiceToken struct {
	DB databases.UserDatabase
}

// CreateServiceTokenHandler exchanges basic-auth credentials for a JWT scoped
// to campaign submission
func (s ServiceToken) CreateServiceTokenHandler(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth failed", http.StatusUnauthorized)
		return
	}

	dbResp, err := s.DB.Find(context.Background(), bson.M{"user.email": email})
	if err != nil || len(dbResp) == 0 {
		http.Error(w, "failed to get user by email", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(dbResp[0].Details.Password), []byte(password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		config.ErrorStatus("jwt secret is not configured", http.StatusInternalServerError, w, nil)
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   dbResp[0].ID,
		"scope": "notifications:send",
		"iat":   now.Unix(),
		"exp":   now.Add(12 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		config.ErrorStatus("failed to sign service token", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]string{"token": signed})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
