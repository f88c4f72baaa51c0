package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/pkg/response"
)

// Health returns a status payload useful for readiness checks. The database
// is pinged on every call so a lost connection flips the probe.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		c.JSON(code, response.Response{
			Success: code == http.StatusOK,
			Data:    gin.H{"status": status},
		})
	}
}
