package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/models"
	"vlab-server/backend/utils"
)

// TrackActivity refreshes the authenticated user's LastActive stamp after
// each request, the session-extension bookkeeping the platform keeps
// alongside the gate. Failures here never fail the request.
func TrackActivity(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		userID, tokenErr := utils.ExtractUserIDFromToken(c, cfg)
		if tokenErr != nil {
			return err
		}

		var activity models.UserActivity
		lookupErr := db.Where("user_id = ?", userID).First(&activity).Error
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			db.Create(&models.UserActivity{UserID: userID, LastActive: time.Now()})
			return err
		}
		if lookupErr == nil {
			db.Model(&activity).Update("last_active", time.Now())
		}

		return err
	}
}
