package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/LeBoy2525/assist-backend/internal/logger"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно. AppError переводится
// в свой HTTP статус с кодом и сообщением; всё остальное маскируется как
// внутренняя ошибка, чтобы детали хранилища не утекали клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if logger.Log != nil && appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Log.WithFields(logrus.Fields{
					"code":   appErr.Code,
					"error":  appErr.Error(),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("request error")
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"code":  appErr.Code,
				"error": appErr.Message,
			})
			return
		}

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("unhandled request error")
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  apperror.ErrCodeInternal,
			"error": "внутренняя ошибка сервера",
		})
	}
}
