package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// parseID 解析路径中的正整数ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
