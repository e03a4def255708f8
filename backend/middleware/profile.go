package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/utils"
)

const profileNotice = "Please complete your profile to access lab content."

// Paths that don't require profile completion.
var exemptPrefixes = []string{
	"/api/auth",
	"/api/admin",
	"/api/profile/complete",
	"/api/about",
	"/api/contact",
	"/api/health",
}

// ProfileRequired is the access gate: authenticated, non-privileged users
// are turned away from lab content until their profile is complete. A
// missing profile counts as incomplete. The gate itself mutates nothing;
// it only decides the redirect.
func ProfileRequired(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isExemptPath(c.Path()) {
			return c.Next()
		}

		userID, err := utils.ExtractUserIDFromToken(c, cfg)
		if err != nil {
			// Unauthenticated requests are handled by the auth middleware
			// on the protected groups.
			return c.Next()
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			return c.Next()
		}
		if user.IsStaff || user.IsSuperuser {
			return c.Next()
		}

		var profile models.UserProfile
		err = db.Where("user_id = ?", userID).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !profile.IsProfileComplete) {
			return utils.Redirect(c, fiber.StatusForbidden,
				"/profile/complete", profileNotice, "warning")
		}
		if err != nil {
			return utils.InternalServerError(c, "Could not query database")
		}

		return c.Next()
	}
}

func isExemptPath(path string) bool {
	if path == "/api" || path == "/api/" {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
