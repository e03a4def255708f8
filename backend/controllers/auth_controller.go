package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/services"
	"vlab-server/backend/utils"
)

type AuthController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewAuthController(db *gorm.DB, cfg *config.Config) *AuthController {
	return &AuthController{DB: db, Cfg: cfg}
}

// Register creates an account, its default profile, and hydrates the
// profile from the signup payload (blank fields only, same rule as
// social-login hydration).
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return utils.BadRequest(c, "username, email and password are required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.InternalServerError(c, "Could not hash password")
	}

	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		return utils.BadRequest(c, "Could not create user")
	}

	profile, err := services.HydrateFromSocial(ac.DB, ac.Cfg, user.ID, input.FullName, user.Email)
	if err != nil {
		return utils.InternalServerError(c, "Could not create profile")
	}

	token, err := utils.GenerateJWTToken(user.ID, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
		"profile_complete": profile.IsProfileComplete,
	})
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	type LoginInput struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var user models.User
	if err := ac.DB.Where("username = ?", input.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Unauthorized(c, "Invalid credentials")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return utils.Unauthorized(c, "Invalid credentials")
	}

	token, err := utils.GenerateJWTToken(user.ID, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}

	ac.DB.Create(&models.LoginHistory{UserID: user.ID, LoginTime: time.Now()})
	ac.touchStreak(user.ID)

	// Lazy profile creation keeps first-login flows out of error paths.
	profile, err := services.GetOrCreateProfile(ac.DB, ac.Cfg, user.ID)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	redirect := "/dashboard"
	if !profile.IsProfileComplete && !user.IsStaff && !user.IsSuperuser {
		redirect = "/profile/complete"
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
		"profile_complete": profile.IsProfileComplete,
		"redirect":         redirect,
	})
}

func (ac *AuthController) touchStreak(userID uint) {
	var activity models.UserActivity
	if err := ac.DB.Where("user_id = ?", userID).First(&activity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ac.DB.Create(&models.UserActivity{
				UserID:     userID,
				LastActive: time.Now(),
				StreakDays: 1,
			})
		}
		return
	}

	if time.Since(activity.LastActive) < 48*time.Hour {
		activity.StreakDays++
	} else {
		activity.StreakDays = 1
	}
	activity.LastActive = time.Now()
	ac.DB.Save(&activity)
}

// AuthStatus is the session + profile + user diagnostic endpoint.
func (ac *AuthController) AuthStatus(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
	if err != nil {
		return c.JSON(fiber.Map{
			"authenticated": false,
		})
	}

	var user models.User
	if err := ac.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	var profile models.UserProfile
	profileStatus := fiber.Map{"exists": false}
	if err := ac.DB.Where("user_id = ?", userID).First(&profile).Error; err == nil {
		profileStatus = fiber.Map{
			"exists":    true,
			"complete":  profile.IsProfileComplete,
			"branch":    profile.Branch,
			"semester":  profile.CurrentSemester,
			"role":      profile.Role,
			"full_name": profile.FullName,
		}
	}

	var activity models.UserActivity
	ac.DB.Where("user_id = ?", userID).First(&activity)

	return c.JSON(fiber.Map{
		"authenticated": true,
		"user": fiber.Map{
			"id":           user.ID,
			"username":     user.Username,
			"email":        user.Email,
			"is_staff":     user.IsStaff,
			"is_superuser": user.IsSuperuser,
		},
		"profile": profileStatus,
		"session": fiber.Map{
			"token_expires": utils.TokenExpiry(c, ac.Cfg),
			"ttl_hours":     ac.Cfg.SessionTTLHours,
			"last_active":   activity.LastActive,
			"streak_days":   activity.StreakDays,
		},
	})
}
