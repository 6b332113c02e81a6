// Package response holds the JSON envelope every handler replies with:
// {"success": true, "data": ...} or {"success": false, "error": {...}}.
package response

import "github.com/gin-gonic/gin"

// Success writes the data envelope with the given status.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

// Error writes the error envelope. code is a stable machine-readable
// identifier (e.g. REPLAY_DETECTED); message is for humans only.
func Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
