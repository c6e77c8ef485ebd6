package handlers

import (
	"fmt"
	"time"

	"github.com/bkurui/fleetrent-backend/internal/models"
	"github.com/bkurui/fleetrent-backend/internal/services"
	"github.com/bkurui/fleetrent-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const otpPurposeReset = "password_reset"

type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	UserType string `json:"userType" binding:"required,oneof=customer staff"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Register(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Hash the password
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to hash password"})
			return
		}

		user := models.User{
			Username:     input.Username,
			Email:        input.Email,
			PasswordHash: string(hashedPassword),
			PhoneNumber:  input.Phone,
			UserType:     input.UserType,
		}

		if result := db.Create(&user); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to create user: " + result.Error.Error()})
			return
		}

		c.JSON(201, gin.H{
			"user": gin.H{
				"id":          user.ID,
				"email":       user.Email,
				"username":    user.Username,
				"phoneNumber": user.PhoneNumber,
				"userType":    user.UserType,
			},
		})
	}
}

func Login(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if result := db.Where("email = ?", input.Email).First(&user); result.Error != nil {
			c.JSON(401, gin.H{"error": "Invalid credentials"})
			return
		}

		if err := user.CheckPassword(input.Password); err != nil {
			c.JSON(401, gin.H{"error": "Invalid credentials"})
			return
		}

		token, err := utils.GenerateToken(&user)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(200, gin.H{
			"token": token,
			"user": gin.H{
				"id":          user.ID,
				"email":       user.Email,
				"username":    user.Username,
				"phoneNumber": user.PhoneNumber,
				"userType":    user.UserType,
			},
		})
	}
}

// ResetPasswordRequestInput defines the input for requesting a password reset
type ResetPasswordRequestInput struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestPasswordReset initiates the password reset process. The code lives
// in Redis with a TTL so any replica can verify it.
func RequestPasswordReset(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ResetPasswordRequestInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if result := db.Where("email = ?", input.Email).First(&user); result.Error != nil {
			// Do not reveal whether the email exists
			c.JSON(200, gin.H{"message": "If the email exists, a reset code has been sent"})
			return
		}

		uniqueKey := fmt.Sprintf("%s-reset-%s", user.Email, time.Now().Format("20060102150405"))
		otp := utils.GenerateOTP(uniqueKey)

		if err := services.SetOTP(c.Request.Context(), user.Email, otpPurposeReset, otp); err != nil {
			c.JSON(500, gin.H{"error": "Failed to generate reset code"})
			return
		}

		if err := utils.SendPasswordResetOTP(user.Email, otp); err != nil {
			c.JSON(500, gin.H{"error": "Failed to send reset email"})
			return
		}

		c.JSON(200, gin.H{"message": "If the email exists, a reset code has been sent"})
	}
}

type VerifyOTPInput struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=4"`
}

// VerifyOTP consumes a reset code and exchanges it for a short-lived
// one-shot reset pass stored back in Redis.
func VerifyOTP(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input VerifyOTPInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ok, err := services.CheckOTP(c.Request.Context(), input.Email, otpPurposeReset, input.Code)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to verify code"})
			return
		}
		if !ok {
			c.JSON(401, gin.H{"error": "Invalid or expired code"})
			return
		}

		// Issue a one-shot pass the reset endpoint consumes.
		pass := utils.GenerateOTP(fmt.Sprintf("%s-pass-%d", input.Email, time.Now().UnixNano()))
		if err := services.SetOTP(c.Request.Context(), input.Email, "reset_pass", pass); err != nil {
			c.JSON(500, gin.H{"error": "Failed to verify code"})
			return
		}

		c.JSON(200, gin.H{"resetPass": pass})
	}
}

type ResetPasswordInput struct {
	Email     string `json:"email" binding:"required,email"`
	ResetPass string `json:"resetPass" binding:"required"`
	Password  string `json:"password" binding:"required,min=6"`
}

// ResetPassword sets a new password after OTP verification.
func ResetPassword(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ResetPasswordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ok, err := services.CheckOTP(c.Request.Context(), input.Email, "reset_pass", input.ResetPass)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to verify reset pass"})
			return
		}
		if !ok {
			c.JSON(401, gin.H{"error": "Invalid or expired reset pass"})
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to hash password"})
			return
		}

		if err := db.Model(&models.User{}).
			Where("email = ?", input.Email).
			Update("password_hash", string(hashedPassword)).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update password"})
			return
		}

		c.JSON(200, gin.H{"message": "Password updated successfully"})
	}
}
