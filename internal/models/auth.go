package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RolePrincipal UserRole = "principal"
	RoleHOD       UserRole = "hod"
	RoleTeacher   UserRole = "teacher"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	// TeacherID links a teacher account to the teacher id used in entries.
	TeacherID string `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}
